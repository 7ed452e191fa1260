// Package markdown strips formatting syntax from markdown sources while
// keeping the paragraph structure the segmenter splits on.
package markdown

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	linkPattern     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	imagePattern    = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	emphasisPattern = regexp.MustCompile(`(\*{1,3}|_{1,3}|~~)([^*_~]+?)(\*{1,3}|_{1,3}|~~)`)
	inlineCode      = regexp.MustCompile("`([^`]*)`")
)

type Parser struct{}

func New() *Parser { return &Parser{} }

func (p *Parser) Parse(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("not valid utf-8 text")
	}

	lines := strings.Split(string(data), "\n")
	out := make([]string, 0, len(lines))
	inFence := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}
		out = append(out, cleanLine(line))
	}

	return strings.TrimSpace(strings.Join(out, "\n")), nil
}

func cleanLine(line string) string {
	trimmed := strings.TrimLeft(line, " \t")

	for strings.HasPrefix(trimmed, "#") {
		trimmed = strings.TrimPrefix(trimmed, "#")
	}
	trimmed = strings.TrimPrefix(trimmed, " ")
	if t, ok := strings.CutPrefix(trimmed, "> "); ok {
		trimmed = t
	}
	if t, ok := strings.CutPrefix(trimmed, "- "); ok {
		trimmed = t
	} else if t, ok := strings.CutPrefix(trimmed, "* "); ok {
		trimmed = t
	}

	trimmed = imagePattern.ReplaceAllString(trimmed, "")
	trimmed = linkPattern.ReplaceAllString(trimmed, "$1")
	trimmed = emphasisPattern.ReplaceAllString(trimmed, "$2")
	trimmed = inlineCode.ReplaceAllString(trimmed, "$1")
	return trimmed
}
