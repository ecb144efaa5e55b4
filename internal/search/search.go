package search

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sha1n/mcp-prompt-server-go/internal/config"
	"github.com/sha1n/mcp-prompt-server-go/internal/prompts"
)

const defaultMaxResults = 10

// ErrEmptyQuery is returned when Search is called without query terms
var ErrEmptyQuery = errors.New("search query is empty")

// Searcher finds prompt templates matching a query
type Searcher interface {
	Search(queryStr string, opts *SearchOptions) ([]SearchResult, error)
	Close()
}

// SearchOptions narrows a search
type SearchOptions struct {
	// Limit caps the number of results. Zero means the configured maximum.
	Limit int
}

// SearchResult is a single prompt match
type SearchResult struct {
	Name        string
	Description string
	SourcePath  string
	Score       float64
}

type promptDocument struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Arguments   string `json:"arguments"`
}

// Service indexes the published catalog in an in-memory bleve index
type Service struct {
	mu         sync.RWMutex
	index      bleve.Index
	catalog    *prompts.Catalog
	maxResults int
}

// NewService creates an empty search service
func NewService(settings config.SearchSettings) *Service {
	maxResults := settings.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Service{maxResults: maxResults}
}

// Publish rebuilds the index for the current catalog
func (s *Service) Publish(_, current *prompts.Catalog) {
	if err := s.Reindex(current); err != nil {
		slog.Error("Failed to index prompts", "error", err)
	}
}

// Reindex builds a new index from catalog and swaps it in. The previous index
// stays in use if the build fails.
func (s *Service) Reindex(catalog *prompts.Catalog) error {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	batch := index.NewBatch()
	for _, def := range catalog.Definitions() {
		if err := batch.Index(def.Name, toDocument(def)); err != nil {
			_ = index.Close()
			return fmt.Errorf("failed to index prompt %s: %w", def.Name, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return fmt.Errorf("failed to commit index batch: %w", err)
	}

	s.mu.Lock()
	previous := s.index
	s.index = index
	s.catalog = catalog
	s.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			slog.Warn("Failed to close previous index", "error", err)
		}
	}

	slog.Debug("Indexed prompts", "count", catalog.Len())
	return nil
}

// Search runs queryStr against prompt names, descriptions and argument names
func (s *Service) Search(queryStr string, opts *SearchOptions) ([]SearchResult, error) {
	queryStr = strings.TrimSpace(queryStr)
	if queryStr == "" {
		return nil, ErrEmptyQuery
	}

	limit := s.maxResults
	if opts != nil && opts.Limit > 0 && opts.Limit < limit {
		limit = opts.Limit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.index == nil {
		return []SearchResult{}, nil
	}

	req := bleve.NewSearchRequestOptions(buildQuery(queryStr), limit, 0, false)
	res, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search prompts: %w", err)
	}

	results := make([]SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		def, ok := s.catalog.Lookup(hit.ID)
		if !ok {
			continue
		}
		results = append(results, SearchResult{
			Name:        def.Name,
			Description: def.Description,
			SourcePath:  def.SourcePath,
			Score:       hit.Score,
		})
	}
	return results, nil
}

// Close releases the index
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index != nil {
		if err := s.index.Close(); err != nil {
			slog.Warn("Failed to close search index", "error", err)
		}
		s.index = nil
	}
	s.catalog = nil
}

func buildQuery(queryStr string) query.Query {
	match := bleve.NewMatchQuery(queryStr)

	namePrefix := bleve.NewPrefixQuery(strings.ToLower(queryStr))
	namePrefix.SetField("name")
	namePrefix.SetBoost(2)

	return bleve.NewDisjunctionQuery(match, namePrefix)
}

func toDocument(def *prompts.Definition) promptDocument {
	names := make([]string, 0, len(def.Arguments))
	for _, arg := range def.Arguments {
		names = append(names, arg.Name)
	}
	return promptDocument{
		Name:        def.Name,
		Description: def.Description,
		Arguments:   strings.Join(names, " "),
	}
}
