package title

import (
	"encoding/xml"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var ErrMalformedLayout = errors.New("malformed layout")

// FontSpec is a font declared on the page by the layout converter.
type FontSpec struct {
	ID   string
	Size int
}

// Fragment is one rendered line of text at a single font.
type Fragment struct {
	Top    int
	Height int
	Width  int
	Text   string
	FontID string
}

type Page struct {
	Top    int
	Height int
}

// Layout is the geometry of the first page of a document: its font table
// and its text fragments in document order.
type Layout struct {
	Page      Page
	Fonts     []FontSpec
	Fragments []Fragment
}

type xmlFontSpec struct {
	ID   string `xml:"id,attr"`
	Size string `xml:"size,attr"`
}

type xmlText struct {
	Top    string
	Height string
	Width  string
	Font   string
	Text   string
}

// UnmarshalXML keeps the attributes of a <text> element and flattens every
// nested run (<b>, <i>, <a>) into one string.
func (t *xmlText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "top":
			t.Top = attr.Value
		case "height":
			t.Height = attr.Value
		case "width":
			t.Width = attr.Value
		case "font":
			t.Font = attr.Value
		}
	}
	var sb strings.Builder
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch tok := tok.(type) {
		case xml.CharData:
			sb.Write(tok)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				t.Text = sb.String()
				return nil
			}
			depth--
		}
	}
}

type xmlPage struct {
	Number string        `xml:"number,attr"`
	Top    string        `xml:"top,attr"`
	Height string        `xml:"height,attr"`
	Fonts  []xmlFontSpec `xml:"fontspec"`
	Texts  []xmlText     `xml:"text"`
}

// ParseLayout decodes the first <page> of a pdftohtml -xml document.
func ParseLayout(r io.Reader) (*Layout, error) {
	d := xml.NewDecoder(r)
	d.Entity = xml.HTMLEntity
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return nil, errors.Wrap(ErrMalformedLayout, "document has no page")
		}
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedLayout, "decode: %v", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "page" {
			continue
		}
		var page xmlPage
		if err := d.DecodeElement(&page, &start); err != nil {
			return nil, errors.Wrapf(ErrMalformedLayout, "decode page: %v", err)
		}
		return page.layout()
	}
}

func (p *xmlPage) layout() (*Layout, error) {
	var l Layout
	var err error
	if l.Page.Top, err = parseInt("page top", p.Top); err != nil {
		return nil, err
	}
	if l.Page.Height, err = parseInt("page height", p.Height); err != nil {
		return nil, err
	}
	for _, f := range p.Fonts {
		size, err := parseInt("fontspec size", f.Size)
		if err != nil {
			return nil, err
		}
		l.Fonts = append(l.Fonts, FontSpec{ID: f.ID, Size: size})
	}
	for _, t := range p.Texts {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		frag := Fragment{Text: text, FontID: t.Font}
		if frag.Top, err = parseInt("text top", t.Top); err != nil {
			return nil, err
		}
		if frag.Height, err = parseInt("text height", t.Height); err != nil {
			return nil, err
		}
		if frag.Width, err = parseInt("text width", t.Width); err != nil {
			return nil, err
		}
		l.Fragments = append(l.Fragments, frag)
	}
	return &l, nil
}

// parseInt accepts integers and truncates decimal values, which some
// poppler builds emit for font sizes.
func parseInt(name, s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.Wrapf(ErrMalformedLayout, "%s: %q is not a number", name, s)
	}
	return int(f), nil
}
