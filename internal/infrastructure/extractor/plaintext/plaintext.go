package plaintext

import (
	"errors"
	"strings"
	"unicode/utf8"
)

type Parser struct{}

func New() *Parser { return &Parser{} }

func (p *Parser) Parse(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("not valid utf-8 text")
	}
	return strings.TrimSpace(string(data)), nil
}
