package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/xamle/civic-api/internal/models"
	"github.com/xamle/civic-api/internal/repository"
	appErrors "github.com/xamle/civic-api/pkg/errors"
)

type searchMirror interface {
	Search(query string, filter repository.SearchFilter) (*models.SearchResult, error)
}

type searchFallbackStore interface {
	SearchFallback(ctx context.Context, query string, limit int) ([]models.Policy, error)
}

// SearchService fronts the search mirror. The mirror is never the source of
// truth: when it is down or misconfigured, queries degrade to a direct scan
// of the published register.
type SearchService struct {
	mirror   searchMirror
	fallback searchFallbackStore
	logger   *zap.Logger
}

// NewSearchService constructs the service. mirror may be nil, in which case
// every query goes straight to the fallback.
func NewSearchService(mirror searchMirror, fallback searchFallbackStore, logger *zap.Logger) *SearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchService{mirror: mirror, fallback: fallback, logger: logger}
}

// SearchRequest describes a full-text search.
type SearchRequest struct {
	Query  string `json:"q" validate:"required"`
	Theme  string `json:"theme"`
	Status string `json:"status"`
	Region string `json:"region"`
	Limit  int    `json:"limit"`
}

// Search queries the mirror and falls back to the register on any failure.
// Fallback responses carry only the query filter, not the facet filters, and
// are flagged as degraded.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*models.SearchResult, error) {
	if req.Query == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "search query is required")
	}
	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	if s.mirror != nil {
		result, err := s.mirror.Search(req.Query, repository.SearchFilter{
			Theme:  models.PolicyTheme(req.Theme),
			Status: models.PolicyStatus(req.Status),
			Region: req.Region,
			Limit:  limit,
		})
		if err == nil {
			return result, nil
		}
		s.logger.Warn("search mirror unavailable, falling back", zap.String("query", req.Query), zap.Error(err))
	}

	policies, err := s.fallback.SearchFallback(ctx, req.Query, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "search failed")
	}

	hits := make([]models.SearchDocument, 0, len(policies))
	for i := range policies {
		hits = append(hits, toSearchDocument(&policies[i]))
	}
	return &models.SearchResult{
		Hits:     hits,
		Total:    int64(len(hits)),
		Query:    req.Query,
		Degraded: true,
	}, nil
}
