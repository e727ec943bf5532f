// Package source reads heterogeneous source tables and normalizes them onto
// the canonical site record.
package source

import (
	"bytes"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultFallbackEncoding decodes files that are not valid UTF-8. The
// WHATWG index maps latin1 to windows-1252, which covers the legacy exports.
const DefaultFallbackEncoding = "latin1"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode returns data as UTF-8 text and the name of the encoding used. Valid
// UTF-8 (with or without a BOM) is taken as is; anything else is decoded with
// fallback.
func Decode(data []byte, fallback string) (string, string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}

	if fallback == "" {
		fallback = DefaultFallbackEncoding
	}
	enc, err := htmlindex.Get(fallback)
	if err != nil {
		return "", "", eris.Wrapf(err, "source: unsupported encoding %q", fallback)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", eris.Wrapf(err, "source: decode as %s", fallback)
	}
	name, _ := htmlindex.Name(enc)
	return string(out), name, nil
}
