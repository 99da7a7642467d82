package backends

import (
	"context"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"
)

// Searcher finds documents matching a query. Empty results are a valid
// outcome, not an error.
type Searcher interface {
	Search(ctx context.Context, req envelope.SearchRequest) (envelope.SearchResult, error)
}

// DefaultMaxResults applies when a search request carries no limit.
const DefaultMaxResults = 10

const searchCacheSize = 128

// MemorySearcher is the reference in-process retriever: keyword overlap
// scoring over an indexed document set, with an LRU cache of recent query
// results. Safe for concurrent use; Index invalidates the cache.
type MemorySearcher struct {
	mu    sync.RWMutex
	docs  []envelope.Document
	cache *lru.Cache[string, []envelope.Document]
}

// NewMemorySearcher creates a searcher over the given corpus.
func NewMemorySearcher(docs []envelope.Document) *MemorySearcher {
	cache, _ := lru.New[string, []envelope.Document](searchCacheSize)
	s := &MemorySearcher{cache: cache}
	s.Index(docs)
	return s
}

// Index replaces the corpus and drops cached results.
func (s *MemorySearcher) Index(docs []envelope.Document) {
	s.mu.Lock()
	s.docs = append([]envelope.Document(nil), docs...)
	s.mu.Unlock()
	s.cache.Purge()
}

// Search implements Searcher.
func (s *MemorySearcher) Search(ctx context.Context, req envelope.SearchRequest) (envelope.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return envelope.SearchResult{}, err
	}

	terms := searchTerms(req)
	if len(terms) == 0 {
		return envelope.SearchResult{Results: []envelope.Document{}, SourcesUsed: []string{"memory"}}, nil
	}
	limit := req.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}

	cacheKey := strings.Join(terms, " ")
	if cached, ok := s.cache.Get(cacheKey); ok {
		return resultPage(cached, limit), nil
	}

	s.mu.RLock()
	scored := make([]envelope.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		if score := scoreDocument(doc, terms); score > 0 {
			doc.Score = score
			scored = append(scored, doc)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	s.cache.Add(cacheKey, scored)
	return resultPage(scored, limit), nil
}

// searchTerms prefers expanded keywords, falling back to tokenizing the
// normalized then raw query.
func searchTerms(req envelope.SearchRequest) []string {
	if len(req.ExpandedKeywords) > 0 {
		return req.ExpandedKeywords
	}
	query := req.NormalizedQuery
	if query == "" {
		query = req.Query
	}
	return wordPattern.FindAllString(strings.ToLower(query), -1)
}

// scoreDocument counts term occurrences, weighting title hits over snippet
// hits. Zero means no overlap.
func scoreDocument(doc envelope.Document, terms []string) float64 {
	title := strings.ToLower(doc.Title)
	snippet := strings.ToLower(doc.Snippet)

	var score float64
	for _, term := range terms {
		term = strings.ToLower(term)
		score += 2 * float64(strings.Count(title, term))
		score += float64(strings.Count(snippet, term))
	}
	return score
}

func resultPage(scored []envelope.Document, limit int) envelope.SearchResult {
	total := len(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	page := make([]envelope.Document, len(scored))
	copy(page, scored)
	return envelope.SearchResult{
		Results:     page,
		TotalFound:  total,
		SourcesUsed: []string{"memory"},
	}
}
