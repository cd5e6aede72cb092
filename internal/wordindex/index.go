// Package wordindex is the inverted word index of §4.4: a token ->
// postings table with incremental add, differential update, and
// dud-removal, plus edit-distance term suggestion over the vocabulary.
package wordindex

import (
	"context"
	"fmt"
	"sync"

	"github.com/trackerd/trackerd/internal/dbengine"
)

// Posting is one (service, score) entry in a token's postings list.
type Posting struct {
	ServiceID     int
	ServiceTypeID int
	Score         int
}

// Index is the word index bound to one content database handle
// (file_contents or email_contents — whichever §4.4 content store this
// instance indexes).
type Index struct {
	handle *dbengine.Handle

	vocabMu   sync.Mutex
	vocabFST  *suggestFST
	vocabOK   bool
}

// New creates the schema (idempotently) on handle and returns a bound
// Index.
func New(ctx context.Context, handle *dbengine.Handle) (*Index, error) {
	idx := &Index{handle: handle}
	if err := idx.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("wordindex: init schema: %w", err)
	}
	return idx, nil
}

// AddService appends postings for a newly-indexed service (§4.4 "Adding
// a new service"). Zero-score tokens are skipped.
func (idx *Index) AddService(ctx context.Context, serviceID, serviceTypeID int, scores map[string]int) error {
	for token, score := range scores {
		if score == 0 {
			continue
		}
		if err := idx.handle.ProcedureNoReply(ctx, procUpsertPosting, token, serviceID, serviceTypeID, score); err != nil {
			return err
		}
	}
	idx.invalidateVocab()
	return nil
}

// ApplyDifferential recomputes the token-delta between oldScores and
// newScores and applies it: positive delta adds/merges a posting,
// negative delta decreases an existing one (dropped once it reaches
// zero). Tokens absent from both maps are untouched (§4.4 "Differential
// update").
func (idx *Index) ApplyDifferential(ctx context.Context, serviceID, serviceTypeID int, oldScores, newScores map[string]int) error {
	delta := make(map[string]int, len(oldScores)+len(newScores))
	for token, score := range newScores {
		delta[token] += score
	}
	for token, score := range oldScores {
		delta[token] -= score
	}

	for token, d := range delta {
		if d == 0 {
			continue
		}
		if err := idx.applyTokenDelta(ctx, token, serviceID, serviceTypeID, d); err != nil {
			return err
		}
	}
	idx.invalidateVocab()
	return nil
}

func (idx *Index) applyTokenDelta(ctx context.Context, token string, serviceID, serviceTypeID, delta int) error {
	if delta > 0 {
		return idx.handle.ProcedureNoReply(ctx, procAddScore, token, serviceID, serviceTypeID, delta)
	}

	res, err := idx.handle.Procedure(ctx, procGetPostingScore, token, serviceID)
	if err != nil {
		return err
	}
	if !res.Next() {
		// Nothing to subtract from; a negative delta against an absent
		// posting is a no-op, matching the additive end-state invariant.
		return nil
	}
	current := res.Get(0).Int
	newScore := current + int64(delta)
	if newScore <= 0 {
		return idx.handle.ProcedureNoReply(ctx, procDropPosting, token, serviceID)
	}
	return idx.handle.ProcedureNoReply(ctx, procUpsertPosting, token, serviceID, serviceTypeID, newScore)
}

// RemoveDuds drops every posting referencing one of the given service
// ids, across all tokens (§4.4 "Dud removal").
func (idx *Index) RemoveDuds(ctx context.Context, serviceIDs []int) error {
	for _, id := range serviceIDs {
		if err := idx.handle.ProcedureNoReply(ctx, procDropService, id); err != nil {
			return err
		}
	}
	if len(serviceIDs) > 0 {
		idx.invalidateVocab()
	}
	return nil
}

// Lookup returns every posting for token, unfiltered. The query engine
// intersects and ranks across multiple tokens' postings itself.
func (idx *Index) Lookup(ctx context.Context, token string) ([]Posting, error) {
	res, err := idx.handle.Procedure(ctx, procLookupToken, token)
	if err != nil {
		return nil, err
	}
	var postings []Posting
	for res.Next() {
		postings = append(postings, Posting{
			ServiceID:     int(res.Get(0).Int),
			ServiceTypeID: int(res.Get(1).Int),
			Score:         int(res.Get(2).Int),
		})
	}
	return postings, nil
}

// Count returns the number of distinct tokens in the vocabulary, for
// status reporting (§SPEC_FULL.md D).
func (idx *Index) Count(ctx context.Context) (int, error) {
	res, err := idx.handle.Procedure(ctx, procDistinctTokens)
	if err != nil {
		return 0, err
	}
	return res.NRows(), nil
}
