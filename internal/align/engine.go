// Package align computes the spacer heights that vertically line up matching
// content blocks across two independently laid-out documents.
package align

import "strings"

// Block is one measured content block as reported by a rendering surface.
// Idx is the stable index assigned during annotation; Top and Height are the
// measured offset and size in the surface's own coordinate space.
type Block struct {
	Idx    int     `json:"idx"`
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
	Shared bool    `json:"shared"`
	Text   string  `json:"text"`
}

// Result maps block indices to spacer heights, one map per side. A missing
// key means no spacer is needed before that block.
type Result struct {
	SourceSpacers map[int]float64 `json:"sourceSpacers"`
	TargetSpacers map[int]float64 `json:"targetSpacers"`
}

type matchedPair struct {
	source Block
	target Block
}

// Compute aligns the two block lists. Empty lists and the absence of any
// matching blocks are normal cases that yield empty spacer maps.
func Compute(source, target []Block) Result {
	result := Result{
		SourceSpacers: make(map[int]float64),
		TargetSpacers: make(map[int]float64),
	}

	pairs := matchBlocks(sharedBlocks(source), sharedBlocks(target))

	// One running cumulative-spacer total per side. Each pair is aligned at
	// its effective top: the measured top plus all spacer height already
	// injected above it on that side.
	var srcTotal, dstTotal float64
	for _, p := range pairs {
		srcTop := p.source.Top + srcTotal
		dstTop := p.target.Top + dstTotal
		switch {
		case srcTop > dstTop:
			gap := srcTop - dstTop
			result.TargetSpacers[p.target.Idx] = gap
			dstTotal += gap
		case dstTop > srcTop:
			gap := dstTop - srcTop
			result.SourceSpacers[p.source.Idx] = gap
			srcTotal += gap
		}
	}

	return result
}

func sharedBlocks(blocks []Block) []Block {
	shared := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if b.Shared {
			shared = append(shared, b)
		}
	}
	return shared
}

// matchBlocks pairs source blocks with target blocks by normalized text,
// scanning forward only. The n-th shared block on one side need not
// correspond to the n-th on the other, so positional pairing is not enough;
// the forward-only cursor keeps matches monotonic in document order.
func matchBlocks(source, target []Block) []matchedPair {
	var pairs []matchedPair
	cursor := 0
	for _, src := range source {
		text := normalizeText(src.Text)
		if text == "" {
			continue
		}
		for i := cursor; i < len(target); i++ {
			if normalizeText(target[i].Text) == text {
				pairs = append(pairs, matchedPair{source: src, target: target[i]})
				cursor = i + 1
				break
			}
		}
	}
	return pairs
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
