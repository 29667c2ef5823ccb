package metadata

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// MetaplexProgramID is the Metaplex Token Metadata program.
const MetaplexProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

const pdaMarker = "ProgramDerivedAddress"

// ErrNoViableBump is returned when every bump seed hashes onto the curve.
var ErrNoViableBump = errors.New("no viable bump seed")

// FindProgramAddress derives a program address for seeds, searching bump
// seeds from 255 down until the hash is off the ed25519 curve.
func FindProgramAddress(seeds [][]byte, programID []byte) ([]byte, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, s := range seeds {
			h.Write(s)
		}
		h.Write([]byte{byte(bump)})
		h.Write(programID)
		h.Write([]byte(pdaMarker))
		sum := h.Sum(nil)

		if !isOnCurve(sum) {
			return sum, uint8(bump), nil
		}
	}
	return nil, 0, ErrNoViableBump
}

// MetadataPDA returns the base58 Metaplex metadata account address of mint.
func MetadataPDA(mint string) (string, error) {
	mintBytes, err := decodePubkey(mint)
	if err != nil {
		return "", err
	}
	programBytes, err := decodePubkey(MetaplexProgramID)
	if err != nil {
		return "", err
	}

	addr, _, err := FindProgramAddress([][]byte{[]byte("metadata"), programBytes, mintBytes}, programBytes)
	if err != nil {
		return "", err
	}
	return base58.Encode(addr), nil
}

func decodePubkey(s string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, errors.New("pubkey must decode to 32 bytes")
	}
	return b, nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
