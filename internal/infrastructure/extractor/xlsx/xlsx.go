// Package xlsx flattens spreadsheet content into text: one line per row,
// cells tab-separated, sheets separated by a blank line.
package xlsx

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

type Parser struct{}

func New() *Parser { return &Parser{} }

func (p *Parser) Parse(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}

		var lines []string
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t ")
			if strings.TrimSpace(line) == "" {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(sheet)
		sb.WriteString("\n")
		sb.WriteString(strings.Join(lines, "\n"))
	}

	text := sb.String()
	if text == "" {
		return "", errors.New("no cell content in workbook")
	}
	return text, nil
}
