package title

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type text struct {
	top, height, width int
	font               string
	body               string
}

// pageXML renders a minimal pdftohtml -xml document with one 1188px page.
func pageXML(fonts map[string]int, order []string, texts []text) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE pdf2xml SYSTEM "pdf2xml.dtd">
<pdf2xml producer="poppler" version="22.02.0">
<page number="1" position="absolute" top="0" left="0" height="1188" width="918">
`)
	for _, id := range order {
		fmt.Fprintf(&sb, "\t<fontspec id=%q size=\"%d\" family=\"Times\" color=\"#000000\"/>\n", id, fonts[id])
	}
	for _, t := range texts {
		fmt.Fprintf(&sb, "<text top=\"%d\" left=\"100\" width=\"%d\" height=\"%d\" font=%q>%s</text>\n",
			t.top, t.width, t.height, t.font, t.body)
	}
	sb.WriteString("</page>\n</pdf2xml>\n")
	return sb.String()
}

func infer(t *testing.T, doc string, cfg Config) (string, error) {
	t.Helper()
	return InferXML(strings.NewReader(doc), cfg)
}

func TestInferSingleLine(t *testing.T) {
	doc := pageXML(
		map[string]int{"0": 24, "1": 12, "2": 10},
		[]string{"2", "1", "0"},
		[]text{
			{40, 12, 300, "2", "Proceedings of the 2014 USENIX Annual Technical Conference"},
			{120, 28, 600, "0", "<b>In Search of an Understandable Consensus Algorithm</b>"},
			{170, 14, 300, "1", "Diego Ongaro and John Ousterhout"},
			{700, 12, 600, "2", "Raft is a consensus algorithm for managing a replicated log."},
		},
	)
	got, err := infer(t, doc, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "In Search of an Understandable Consensus Algorithm", got)
}

func TestInferMultiline(t *testing.T) {
	doc := pageXML(
		map[string]int{"0": 24, "1": 12},
		[]string{"0", "1"},
		[]text{
			{120, 28, 600, "0", "Bigtable: A Distributed Storage"},
			{150, 28, 600, "0", "System for Structured Data"},
			{220, 28, 400, "0", "Fay Chang, Jeffrey Dean"},
			{300, 14, 600, "1", "Google, Inc."},
		},
	)

	cfg := DefaultConfig()
	got, err := infer(t, doc, cfg)
	require.NoError(t, err)
	assert.Equal(t, "Bigtable: A Distributed Storage", got)

	cfg.Multiline = true
	got, err = infer(t, doc, cfg)
	require.NoError(t, err)
	assert.Equal(t, "Bigtable: A Distributed Storage System for Structured Data", got)
}

func TestInferSkipsTopMarginBlock(t *testing.T) {
	doc := pageXML(
		map[string]int{"0": 30, "1": 20},
		[]string{"0", "1"},
		[]text{
			{50, 32, 600, "0", "JOURNAL OF MACHINE LEARNING"},
			{130, 22, 600, "1", "Random Forests for Dummies"},
		},
	)
	got, err := infer(t, doc, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "Random Forests for Dummies", got)
}

func TestInferNoSurvivingBlock(t *testing.T) {
	doc := pageXML(
		map[string]int{"0": 30, "1": 20},
		[]string{"0", "1"},
		[]text{
			{50, 32, 600, "0", "Header in the top margin"},
			{800, 22, 600, "1", "Text in the bottom half of the page"},
		},
	)
	_, err := infer(t, doc, DefaultConfig())
	assert.True(t, errors.Is(err, ErrNoTitle))
}

func TestInferSkipsShortLargestFont(t *testing.T) {
	doc := pageXML(
		map[string]int{"0": 40, "1": 22},
		[]string{"0", "1"},
		[]text{
			{100, 42, 60, "0", "A1"},
			{160, 24, 600, "1", "Dremel: Interactive Analysis of Web-Scale Datasets"},
		},
	)
	got, err := infer(t, doc, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "Dremel: Interactive Analysis of Web-Scale Datasets", got)
}

func TestInferIgnoresVerticalText(t *testing.T) {
	doc := pageXML(
		map[string]int{"0": 20, "1": 16},
		[]string{"0", "1"},
		[]text{
			{200, 400, 0, "0", "arXiv:1706.03762v5 [cs.CL] 6 Dec 2017"},
			{140, 18, 500, "1", "Attention Is All You Need"},
		},
	)
	got, err := infer(t, doc, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "Attention Is All You Need", got)
}

func TestInferNormalizes(t *testing.T) {
	doc := pageXML(
		map[string]int{"0": 20},
		[]string{"0"},
		[]text{
			{140, 22, 600, "0", "A STUDY OF LEARNED INDEXES.*"},
		},
	)
	got, err := infer(t, doc, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "A Study Of Learned Indexes", got)
}

func TestInferMalformed(t *testing.T) {
	_, err := infer(t, "<pdf2xml><page top=\"0\" height=\"1188\">", DefaultConfig())
	assert.True(t, errors.Is(err, ErrMalformedLayout))

	_, err = infer(t, "<pdf2xml></pdf2xml>", DefaultConfig())
	assert.True(t, errors.Is(err, ErrMalformedLayout))

	_, err = infer(t, `<pdf2xml><page top="0" height="tall"></page></pdf2xml>`, DefaultConfig())
	assert.True(t, errors.Is(err, ErrMalformedLayout))
}

func TestParseLayout(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<pdf2xml>
<page number="1" top="0" left="0" height="1188" width="918">
	<fontspec id="0" size="21.5" family="Times" color="#000000"/>
<text top="93" left="174" width="570" height="25" font="0"><b>Learning <i>to</i> Rank</b> &amp; Search</text>
<text top="130" left="174" width="570" height="25" font="0">   </text>
</page>
<page number="2" top="0" left="0" height="1188" width="918">
	<fontspec id="1" size="40" family="Times" color="#000000"/>
<text top="93" left="174" width="570" height="25" font="1">Second page</text>
</page>
</pdf2xml>`
	l, err := ParseLayout(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, Page{Top: 0, Height: 1188}, l.Page)
	assert.Equal(t, []FontSpec{{ID: "0", Size: 21}}, l.Fonts)
	require.Len(t, l.Fragments, 1)
	assert.Equal(t, Fragment{Top: 93, Height: 25, Width: 570, Text: "Learning to Rank & Search", FontID: "0"}, l.Fragments[0])
}
