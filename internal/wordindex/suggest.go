package wordindex

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/blevesearch/vellum"
	"github.com/blevesearch/vellum/levenshtein"
)

// ErrNoSuggestion is returned when no indexed token qualifies within
// max_dist (§4.4 "Suggestions ... or an error if none qualifies").
var ErrNoSuggestion = errors.New("wordindex: no token within max distance")

// suggestFST is a point-in-time FST snapshot of the index vocabulary,
// rebuilt lazily whenever postings change.
type suggestFST struct {
	fst *vellum.FST
}

// Suggest returns the indexed token closest to term by edit distance,
// bounded by maxDist, rebuilding the vocabulary snapshot first if it has
// gone stale since the last mutation.
func (idx *Index) Suggest(ctx context.Context, term string, maxDist int) (string, error) {
	snap, err := idx.vocabSnapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("wordindex: build vocabulary: %w", err)
	}
	if snap.fst == nil {
		return "", ErrNoSuggestion
	}

	lb, err := levenshtein.NewLevenshteinAutomatonBuilder(uint8(maxDist), false)
	if err != nil {
		return "", fmt.Errorf("wordindex: automaton builder: %w", err)
	}

	best := ""
	bestDist := maxDist + 1
	for dist := 0; dist <= maxDist; dist++ {
		dfa, err := lb.BuildDfa(term, uint8(dist))
		if err != nil {
			continue
		}
		it, err := snap.fst.Search(dfa, nil, nil)
		for err == nil {
			key, _ := it.Current()
			if dist < bestDist {
				best = string(key)
				bestDist = dist
			}
			err = it.Next()
		}
		if best != "" {
			break
		}
	}

	if best == "" {
		return "", ErrNoSuggestion
	}
	return best, nil
}

func (idx *Index) invalidateVocab() {
	idx.vocabMu.Lock()
	idx.vocabOK = false
	idx.vocabMu.Unlock()
}

func (idx *Index) vocabSnapshot(ctx context.Context) (*suggestFST, error) {
	idx.vocabMu.Lock()
	defer idx.vocabMu.Unlock()
	if idx.vocabOK && idx.vocabFST != nil {
		return idx.vocabFST, nil
	}

	res, err := idx.handle.Procedure(ctx, procDistinctTokens)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	builder, err := vellum.New(&buf, nil)
	if err != nil {
		return nil, err
	}

	n := uint64(0)
	for res.Next() {
		token := res.Get(0).AsString()
		if token == "" {
			continue
		}
		if err := builder.Insert([]byte(token), n); err != nil {
			return nil, err
		}
		n++
	}
	if err := builder.Close(); err != nil {
		return nil, err
	}

	snap := &suggestFST{}
	if n > 0 {
		fst, err := vellum.Load(buf.Bytes())
		if err != nil {
			return nil, err
		}
		snap.fst = fst
	}

	idx.vocabFST = snap
	idx.vocabOK = true
	return snap, nil
}
