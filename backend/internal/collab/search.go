package collab

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
)

// Searcher is the post search collaborator. It owns post bodies and returns
// ranked post ids; the social engine hydrates them.
type Searcher interface {
	// IndexPost stores content and returns the new post id.
	IndexPost(ctx context.Context, content string) (string, error)
	RemovePost(ctx context.Context, postID string) error
	// Similar ranks posts resembling postID, excluding it.
	Similar(ctx context.Context, postID string, limit int) ([]string, error)
	// Search ranks posts matching free text.
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// MemorySearcher is an in-process Searcher ranking by shared terms. It
// stands in for the vector search service in development and tests.
type MemorySearcher struct {
	mu    sync.RWMutex
	terms map[string]map[string]int
	order []string
	newID func() string
}

// NewMemorySearcher creates an empty searcher.
func NewMemorySearcher() *MemorySearcher {
	return &MemorySearcher{terms: map[string]map[string]int{}, newID: uuid.NewString}
}

func (s *MemorySearcher) IndexPost(_ context.Context, content string) (string, error) {
	id := s.newID()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terms[id] = tokenize(content)
	s.order = append(s.order, id)
	return id, nil
}

func (s *MemorySearcher) RemovePost(_ context.Context, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.terms[postID]; !ok {
		return nil
	}
	delete(s.terms, postID)
	for i, id := range s.order {
		if id == postID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemorySearcher) Similar(_ context.Context, postID string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	source, ok := s.terms[postID]
	if !ok {
		return []string{}, nil
	}
	return s.rank(source, postID, limit), nil
}

func (s *MemorySearcher) Search(_ context.Context, query string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rank(tokenize(query), "", limit), nil
}

// rank scores every post by overlapping term counts; ties keep index order.
func (s *MemorySearcher) rank(query map[string]int, skip string, limit int) []string {
	type hit struct {
		id    string
		pos   int
		score int
	}
	var hits []hit
	for pos, id := range s.order {
		if id == skip {
			continue
		}
		score := 0
		for term, n := range s.terms[id] {
			if q, ok := query[term]; ok {
				score += min(q, n)
			}
		}
		if score > 0 {
			hits = append(hits, hit{id: id, pos: pos, score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].pos < hits[j].pos
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.id
	}
	return out
}

// tokenize lower-cases text, drops markup tags and counts letter-digit runs.
func tokenize(text string) map[string]int {
	var b strings.Builder
	inTag := false
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case inTag:
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	out := map[string]int{}
	for _, f := range strings.FieldsFunc(b.String(), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		out[f]++
	}
	return out
}
