package repository

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/meilisearch/meilisearch-go"

	"github.com/xamle/civic-api/internal/models"
)

// SearchFilter narrows mirror queries.
type SearchFilter struct {
	Theme  models.PolicyTheme
	Status models.PolicyStatus
	Region string
	Limit  int
}

// SearchRepository wraps the Meilisearch mirror. Every method can fail when
// the mirror is unreachable; callers own the fallback.
type SearchRepository struct {
	client    *meilisearch.Client
	indexName string
}

// NewSearchRepository constructs the repository.
func NewSearchRepository(client *meilisearch.Client, indexName string) *SearchRepository {
	if indexName == "" {
		indexName = "policies"
	}
	return &SearchRepository{client: client, indexName: indexName}
}

// EnsureIndex applies the index settings. Safe to call repeatedly.
func (r *SearchRepository) EnsureIndex() error {
	if r.client == nil {
		return fmt.Errorf("search mirror not configured")
	}
	searchable := []string{"title", "description"}
	filterable := []string{"theme", "status", "ministryId", "region", "workflowStatus"}
	sortable := []string{"updatedAt", "title"}
	_, err := r.client.Index(r.indexName).UpdateSettings(&meilisearch.Settings{
		SearchableAttributes: searchable,
		FilterableAttributes: filterable,
		SortableAttributes:   sortable,
	})
	if err != nil {
		return fmt.Errorf("configure search index: %w", err)
	}
	return nil
}

// IndexPolicies pushes documents to the mirror.
func (r *SearchRepository) IndexPolicies(docs []models.SearchDocument) error {
	if r.client == nil {
		return fmt.Errorf("search mirror not configured")
	}
	if len(docs) == 0 {
		return nil
	}
	if _, err := r.client.Index(r.indexName).AddDocuments(docs, "id"); err != nil {
		return fmt.Errorf("index %d policies: %w", len(docs), err)
	}
	return nil
}

// Search queries the mirror restricted to published policies.
func (r *SearchRepository) Search(query string, filter SearchFilter) (*models.SearchResult, error) {
	if r.client == nil {
		return nil, fmt.Errorf("search mirror not configured")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	clauses := []string{fmt.Sprintf("workflowStatus = %s", models.WorkflowStatusPublished)}
	if filter.Theme != "" {
		clauses = append(clauses, fmt.Sprintf("theme = %s", filter.Theme))
	}
	if filter.Status != "" {
		clauses = append(clauses, fmt.Sprintf("status = %s", filter.Status))
	}
	if filter.Region != "" {
		clauses = append(clauses, fmt.Sprintf("region = %s", filter.Region))
	}

	resp, err := r.client.Index(r.indexName).Search(query, &meilisearch.SearchRequest{
		Limit:  int64(limit),
		Filter: strings.Join(clauses, " AND "),
	})
	if err != nil {
		return nil, fmt.Errorf("search mirror query: %w", err)
	}

	hits := make([]models.SearchDocument, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		raw, err := json.Marshal(hit)
		if err != nil {
			continue
		}
		var doc models.SearchDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		hits = append(hits, doc)
	}

	return &models.SearchResult{
		Hits:  hits,
		Total: resp.EstimatedTotalHits,
		Query: query,
	}, nil
}
