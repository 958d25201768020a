package wire

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"google.golang.org/protobuf/encoding/protowire"
)

// Dump writes an indented field tree of packet bytes to w. Length-delimited
// fields that parse as records are expanded; the rest print as quoted
// strings, or as hex when they are not valid UTF-8.
func Dump(w io.Writer, b []byte) error {
	fields, err := parseFields(b)
	if err != nil {
		return fmt.Errorf("dump: %w", err)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "packet (%s)\n", humanize.Bytes(uint64(len(b))))
	dumpFields(&sb, fields, 1)
	_, err = io.WriteString(w, sb.String())
	return err
}

func dumpFields(sb *strings.Builder, fields []field, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, f := range fields {
		switch f.typ {
		case protowire.VarintType:
			fmt.Fprintf(sb, "%s%d: %d\n", indent, f.num, f.value)
		case protowire.BytesType:
			if nested, ok := asRecord(f.bytes); ok {
				fmt.Fprintf(sb, "%s%d {\n", indent, f.num)
				dumpFields(sb, nested, depth+1)
				fmt.Fprintf(sb, "%s}\n", indent)
				continue
			}
			if utf8.Valid(f.bytes) {
				fmt.Fprintf(sb, "%s%d: %q\n", indent, f.num, f.bytes)
			} else {
				fmt.Fprintf(sb, "%s%d: 0x%x\n", indent, f.num, f.bytes)
			}
		}
	}
}

// asRecord reports whether b is plausibly a nested record rather than text.
// Printable text that happens to parse, such as "1145140000", stays a string.
func asRecord(b []byte) ([]field, bool) {
	if len(b) == 0 {
		return nil, false
	}
	fields, err := parseFields(b)
	if err != nil {
		return nil, false
	}
	if utf8.Valid(b) && printable(b) {
		return nil, false
	}
	return fields, true
}

func printable(b []byte) bool {
	for _, r := range string(b) {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
