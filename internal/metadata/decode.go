package metadata

import (
	"encoding/binary"
	"strings"
)

// metadataV1Key is the account discriminator of a Metaplex MetadataV1 account.
const metadataV1Key = 4

const (
	maxNameLen   = 64
	maxSymbolLen = 16
)

// DecodeNameSymbol extracts name and symbol from Metaplex metadata account
// data. It reads the borsh layout first:
//
//	key u8 | update_authority [32]byte | mint [32]byte | name string | symbol string | ...
//
// and falls back to the first two printable ASCII runs when the layout does
// not match. Either result may be nil.
func DecodeNameSymbol(data []byte) (name, symbol *string) {
	if n, s, ok := decodeBorsh(data); ok {
		return n, s
	}
	runs := asciiRuns(data, 2, 64)
	if len(runs) > 0 {
		name = &runs[0]
	}
	if len(runs) > 1 {
		symbol = &runs[1]
	}
	return name, symbol
}

func decodeBorsh(data []byte) (name, symbol *string, ok bool) {
	if len(data) < 1+32+32 || data[0] != metadataV1Key {
		return nil, nil, false
	}
	off := 1 + 32 + 32

	n, off, ok := borshString(data, off, maxNameLen)
	if !ok {
		return nil, nil, false
	}
	s, _, ok := borshString(data, off, maxSymbolLen)
	if !ok {
		return nil, nil, false
	}
	return nonEmpty(n), nonEmpty(s), true
}

func borshString(data []byte, off, maxLen int) (string, int, bool) {
	if off+4 > len(data) {
		return "", off, false
	}
	l := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	if l > maxLen || off+l > len(data) {
		return "", off, false
	}
	return cleanString(data[off : off+l]), off + l, true
}

// cleanString strips the NUL padding Metaplex stores fixed-width fields with.
func cleanString(b []byte) string {
	return strings.TrimSpace(strings.TrimRight(string(b), "\x00"))
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// asciiRuns returns trimmed runs of printable ASCII of length [minLen, maxLen].
// Longer runs are split into maxLen chunks.
func asciiRuns(data []byte, minLen, maxLen int) []string {
	var (
		out   []string
		start = -1
	)
	flush := func(end int) {
		for start >= 0 && end-start >= minLen {
			stop := end
			if stop-start > maxLen {
				stop = start + maxLen
			}
			if s := strings.TrimSpace(string(data[start:stop])); s != "" {
				out = append(out, s)
			}
			start = stop
		}
		start = -1
	}
	for i, c := range data {
		if c >= ' ' && c <= '~' {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(data))
	return out
}
