// Package normalize provides utilities for normalizing filesystem paths.
//
// Editors on macOS emit NFD-decomposed file names while most Linux tools
// write NFC. Normalizing every path to NFC before correlation keeps a
// save under "café.txt" from splitting into two unrelated paths.
package normalize

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NFC returns s in Unicode Normalization Form C.
// Invalid UTF-8 sequences pass through unchanged.
func NFC(s string) string {
	if norm.NFC.IsNormalString(s) {
		return s
	}
	return norm.NFC.String(s)
}

// Path normalizes a filesystem path for use as a correlation key:
// null bytes are stripped, the path is NFC-normalized, and redundant
// separators and dot segments are cleaned.
//
// An empty input stays empty rather than becoming ".".
func Path(p string) string {
	p = stripNUL(p)
	if p == "" {
		return ""
	}
	return filepath.Clean(NFC(p))
}

// Paths normalizes a slice of paths in place and returns it.
func Paths(ps []string) []string {
	for i, p := range ps {
		ps[i] = Path(p)
	}
	return ps
}

// stripNUL removes null bytes, which some kernel event sources include
// as string terminators and which break badger keys and JSON output.
func stripNUL(s string) string {
	if !strings.ContainsRune(s, 0) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, s)
}
