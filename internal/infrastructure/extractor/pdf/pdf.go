package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	extpdf "github.com/ledongthuc/pdf"
)

type Parser struct{}

func New() *Parser { return &Parser{} }

func (p *Parser) Parse(data []byte) (string, error) {
	reader, err := extpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plain text: %w", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}

	text := strings.Join(strings.Fields(string(raw)), " ")
	if text == "" {
		return "", errors.New("no text content in pdf")
	}
	return text, nil
}
