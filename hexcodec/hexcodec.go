// Package hexcodec converts packet bytes to and from the lowercase hex text
// form used at the transport boundary.
package hexcodec

import (
	"encoding/hex"
	stderrors "errors"
	"strings"

	"github.com/wippyai/msgwire/errors"
)

// ToHex returns the lowercase hex form of b.
func ToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// FromHex parses s, accepting either case. It fails with an invalid
// character error naming the first offending offset, or with an odd length
// error when every character is valid but the count is odd.
func FromHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err == nil {
		return b, nil
	}
	var invalid hex.InvalidByteError
	if stderrors.As(err, &invalid) {
		return nil, errors.InvalidCharacter(strings.IndexByte(s, byte(invalid)), byte(invalid))
	}
	if stderrors.Is(err, hex.ErrLength) {
		return nil, errors.OddLength(len(s))
	}
	return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "decode hex")
}
