package metadata

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpswap-indexer/internal/domain"
)

func TestMetadataPDA_KnownMint(t *testing.T) {
	pda, err := MetadataPDA(domain.USDCMint)
	require.NoError(t, err)
	assert.Equal(t, "5x38Kp4hvdomTCnCrAny4UtMUt5rQBdB6px2K1Ui45Wq", pda)

	raw, err := base58.Decode(pda)
	require.NoError(t, err)
	assert.False(t, isOnCurve(raw))
}

func TestMetadataPDA_InvalidMint(t *testing.T) {
	_, err := MetadataPDA("not-base58-0OIl")
	assert.Error(t, err)

	_, err = MetadataPDA("abc")
	assert.Error(t, err)
}

func TestFindProgramAddress_Deterministic(t *testing.T) {
	program, err := decodePubkey(MetaplexProgramID)
	require.NoError(t, err)

	a, bumpA, err := FindProgramAddress([][]byte{[]byte("seed")}, program)
	require.NoError(t, err)
	b, bumpB, err := FindProgramAddress([][]byte{[]byte("seed")}, program)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, bumpA, bumpB)
	assert.Len(t, a, 32)
}

func TestIsOnCurve(t *testing.T) {
	// ed25519 base point
	basepoint := make([]byte, 32)
	basepoint[0] = 0x58
	for i := 1; i < 32; i++ {
		basepoint[i] = 0x66
	}
	assert.True(t, isOnCurve(basepoint))
	assert.False(t, isOnCurve([]byte{1, 2, 3}))
}
