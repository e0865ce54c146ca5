package title

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// RankFonts returns font ids ordered by size, largest first. Fonts of equal
// size keep their declaration order.
func RankFonts(fonts []FontSpec) []string {
	ranked := make([]FontSpec, len(fonts))
	copy(ranked, fonts)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Size > ranked[j].Size
	})
	ids := make([]string, 0, len(ranked))
	for _, f := range ranked {
		ids = append(ids, f.ID)
	}
	return ids
}

// Block is the candidate title for one font: the run of that font's
// fragments whose positions only move down the page.
type Block struct {
	PageTop    int
	PageHeight int
	Top        int
	Fragments  []Fragment
}

func (b *Block) Text() string {
	texts := make([]string, 0, len(b.Fragments))
	for _, f := range b.Fragments {
		texts = append(texts, f.Text)
	}
	return strings.Join(texts, " ")
}

func (b *Block) length() int {
	return utf8.RuneCountInString(b.Text())
}

// withFragments returns a copy of b holding frags. Top follows the first
// fragment. It returns nil when frags is empty.
func (b *Block) withFragments(frags []Fragment) *Block {
	if len(frags) == 0 {
		return nil
	}
	return &Block{
		PageTop:    b.PageTop,
		PageHeight: b.PageHeight,
		Top:        frags[0].Top,
		Fragments:  frags,
	}
}

// AssembleBlock groups the fragments of fontID into a block. Fragments that
// sit above the previously accepted one are skipped. It returns nil when no
// fragment qualifies or when the block starts at the page origin.
func AssembleBlock(l *Layout, fontID string) *Block {
	cursor := l.Page.Top
	var frags []Fragment
	for _, f := range l.Fragments {
		if f.FontID != fontID {
			continue
		}
		if strings.TrimSpace(f.Text) == "" || f.Top < cursor {
			continue
		}
		cursor = f.Top
		frags = append(frags, f)
	}
	if len(frags) == 0 || frags[0].Top <= l.Page.Top {
		return nil
	}
	return &Block{
		PageTop:    l.Page.Top,
		PageHeight: l.Page.Height,
		Top:        frags[0].Top,
		Fragments:  frags,
	}
}

// Candidates assembles one block per font, largest font first. Fonts
// without a usable block contribute a nil entry.
func Candidates(l *Layout) []*Block {
	ids := RankFonts(l.Fonts)
	blocks := make([]*Block, 0, len(ids))
	for _, id := range ids {
		blocks = append(blocks, AssembleBlock(l, id))
	}
	return blocks
}
