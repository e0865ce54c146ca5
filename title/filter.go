package title

// A filter narrows the candidate list. Filters never modify the blocks they
// receive; a block whose fragments change is replaced by a copy.
type filter func(blocks []*Block, cfg Config) []*Block

// filters run in this order. Later stages depend on the fragments left by
// dropVertical, and everything after dropEmpty assumes non-nil blocks.
var filters = []filter{
	dropEmpty,
	dropBottomHalf,
	dropTopMargin,
	dropVertical,
	dropShort,
	dropLong,
	pruneUnrelated,
}

// Filter applies every filter stage to blocks and returns the survivors in
// their original order.
func Filter(blocks []*Block, cfg Config) []*Block {
	for _, f := range filters {
		if len(blocks) == 0 {
			return nil
		}
		blocks = f(blocks, cfg)
	}
	return blocks
}

func keep(blocks []*Block, pred func(*Block) bool) []*Block {
	var res []*Block
	for _, b := range blocks {
		if pred(b) {
			res = append(res, b)
		}
	}
	return res
}

func dropEmpty(blocks []*Block, _ Config) []*Block {
	return keep(blocks, func(b *Block) bool {
		return b != nil && len(b.Fragments) > 0
	})
}

func dropBottomHalf(blocks []*Block, _ Config) []*Block {
	return keep(blocks, func(b *Block) bool {
		return 2*(b.Top-b.PageTop) < b.PageHeight
	})
}

func dropTopMargin(blocks []*Block, cfg Config) []*Block {
	return keep(blocks, func(b *Block) bool {
		return b.Top > cfg.TopMargin
	})
}

// dropVertical removes zero-width fragments, which is how rotated text
// (arXiv side stamps, for instance) shows up in the layout.
func dropVertical(blocks []*Block, _ Config) []*Block {
	var res []*Block
	for _, b := range blocks {
		var frags []Fragment
		for _, f := range b.Fragments {
			if f.Width > 0 {
				frags = append(frags, f)
			}
		}
		if len(frags) == len(b.Fragments) {
			res = append(res, b)
		} else if nb := b.withFragments(frags); nb != nil {
			res = append(res, nb)
		}
	}
	return res
}

func dropShort(blocks []*Block, cfg Config) []*Block {
	return keep(blocks, func(b *Block) bool {
		return b.length() >= cfg.MinLength
	})
}

func dropLong(blocks []*Block, cfg Config) []*Block {
	return keep(blocks, func(b *Block) bool {
		return b.length() <= cfg.MaxLength
	})
}

// pruneUnrelated keeps the leading lines of a block that follow each other
// without a gap. A line belongs to the run while its top is less than half
// its height below the bottom of the previous line.
func pruneUnrelated(blocks []*Block, _ Config) []*Block {
	var res []*Block
	for _, b := range blocks {
		cursor := b.Top
		n := 0
		for _, f := range b.Fragments {
			if 2*f.Top >= 2*cursor+f.Height {
				break
			}
			cursor = f.Top + f.Height
			n++
		}
		if n == len(b.Fragments) {
			res = append(res, b)
		} else if nb := b.withFragments(b.Fragments[:n:n]); nb != nil {
			res = append(res, nb)
		}
	}
	return res
}

// Select renders the first surviving block: all of its lines when
// multiline is set, otherwise only the first one.
func Select(blocks []*Block, cfg Config) (string, bool) {
	if len(blocks) == 0 || blocks[0] == nil || len(blocks[0].Fragments) == 0 {
		return "", false
	}
	b := blocks[0]
	if cfg.Multiline {
		return b.Text(), true
	}
	return b.Fragments[0].Text, true
}
