package importer

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeText turns an uploaded file into NFC-normalized UTF-8. Spreadsheet
// exports that are not valid UTF-8 are assumed to be Windows-1252.
func DecodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		if err != nil {
			return "", fmt.Errorf("decode windows-1252: %w", err)
		}
		data = decoded
	}
	return norm.NFC.String(string(data)), nil
}
