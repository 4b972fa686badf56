package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"xihong/internal/domain/ingest"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readDelimited parses CSV-like text. Non UTF-8 input is assumed to be a
// GB18030 export, which covers GBK and GB2312.
func readDelimited(raw []byte) (Sheet, error) {
	text, err := toUTF8(raw)
	if err != nil {
		return Sheet{}, err
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Sheet{}, fmt.Errorf("%w: parse delimited text: %w", ingest.ErrUnreadableFile, err)
		}
		rows = append(rows, record)
	}
	return Sheet{Name: "csv", Rows: rows}, nil
}

func toUTF8(raw []byte) ([]byte, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return raw, nil
	}
	decoded, _, err := transform.Bytes(simplifiedchinese.GB18030.NewDecoder(), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decode gb18030: %w", ingest.ErrUnreadableFile, err)
	}
	return decoded, nil
}

// sniffDelimiter picks the candidate seen most often on the first line.
func sniffDelimiter(text []byte) rune {
	line := text
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}
	best, bestCount := ',', 0
	for _, candidate := range []rune{',', '\t', ';', '|'} {
		if n := bytes.Count(line, []byte(string(candidate))); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}
