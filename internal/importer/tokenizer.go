package importer

import "strings"

// Row maps a header name to the trimmed cell value in that column.
type Row map[string]string

// Tokenize splits CSV text into header-keyed rows. It never fails: blank lines
// are dropped, unbalanced quotes are tolerated, short rows are padded with
// empty strings and extra cells are ignored. Quoted fields cannot span lines.
func Tokenize(text string) []Row {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := make([]string, 0, strings.Count(text, "\n")+1)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) < 2 {
		return []Row{}
	}

	headers := splitLine(lines[0])
	for i, header := range headers {
		headers[i] = strings.TrimPrefix(header, "\ufeff")
	}

	rows := make([]Row, 0, len(lines)-1)
	for _, line := range lines[1:] {
		cells := splitLine(line)
		row := make(Row, len(headers))
		for i, header := range headers {
			if i < len(cells) {
				row[header] = cells[i]
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// CountBodyRows returns how many rows Tokenize would produce without building them.
func CountBodyRows(text string) int {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	if count < 2 {
		return 0
	}
	return count - 1
}

func splitLine(line string) []string {
	var (
		cells   []string
		current strings.Builder
		quoted  bool
	)
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"' && quoted && i+1 < len(line) && line[i+1] == '"':
			current.WriteByte('"')
			i++
		case ch == '"':
			quoted = !quoted
		case ch == ',' && !quoted:
			cells = append(cells, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	return append(cells, strings.TrimSpace(current.String()))
}
