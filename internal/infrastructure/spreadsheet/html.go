package spreadsheet

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"xihong/internal/domain/ingest"
)

var charsetPattern = regexp.MustCompile(`(?i)charset\s*=\s*["']?([a-z0-9_\-]+)`)

// readHTML turns every <table> in an HTML export into a sheet.
func readHTML(raw []byte) ([]Sheet, error) {
	text, err := decodeHTML(raw)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(bytes.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %w", ingest.ErrUnreadableFile, err)
	}

	var sheets []Sheet
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Table {
			sheet := Sheet{Name: fmt.Sprintf("table%d", len(sheets)+1), Rows: tableRows(n)}
			if len(sheet.Rows) > 0 {
				sheets = append(sheets, sheet)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: html export has no table", ingest.ErrUnreadableFile)
	}
	return sheets, nil
}

func decodeHTML(raw []byte) ([]byte, error) {
	head := raw
	if len(head) > 2048 {
		head = head[:2048]
	}
	m := charsetPattern.FindSubmatch(head)
	if m == nil {
		return toUTF8(raw)
	}
	enc, err := htmlindex.Get(string(m[1]))
	if err != nil {
		return toUTF8(raw)
	}
	name, _ := htmlindex.Name(enc)
	if name == "utf-8" {
		return bytes.TrimPrefix(raw, utf8BOM), nil
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ingest.ErrUnreadableFile, m[1], err)
	}
	return decoded, nil
}

// rows of nested tables are skipped
func tableRows(table *html.Node) [][]string {
	var rows [][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Table && n != table {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
					cells = append(cells, strings.TrimSpace(nodeText(c)))
				}
			}
			rows = append(rows, cells)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)
	return rows
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
