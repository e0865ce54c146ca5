// Package title infers the title of an academic paper from the geometry of
// its first page.
//
// The layout comes from pdftohtml -xml. Every font gets one candidate
// block, largest font first. The candidates go through a fixed filter
// pipeline, the first survivor is rendered as text and the text is
// normalized for common extraction artifacts.
package title

import (
	"io"
	"strings"

	"github.com/pkg/errors"
)

var ErrNoTitle = errors.New("no title found")

// Infer returns the title of the page described by l, or ErrNoTitle.
func Infer(l *Layout, cfg Config) (string, error) {
	blocks := Filter(Candidates(l), cfg)
	s, ok := Select(blocks, cfg)
	if !ok {
		return "", ErrNoTitle
	}
	s = Normalize(s)
	if strings.TrimSpace(s) == "" {
		return "", ErrNoTitle
	}
	return s, nil
}

// InferXML decodes a pdftohtml -xml document and infers its title.
func InferXML(r io.Reader, cfg Config) (string, error) {
	l, err := ParseLayout(r)
	if err != nil {
		return "", err
	}
	return Infer(l, cfg)
}
