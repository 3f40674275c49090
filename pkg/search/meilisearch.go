package search

import (
	"github.com/meilisearch/meilisearch-go"

	"github.com/xamle/civic-api/pkg/config"
)

// NewMeilisearch returns a configured Meilisearch client, or nil when no
// host is set. The mirror is an optimization: callers must keep working when
// this client is unreachable, so no connectivity check is performed here.
func NewMeilisearch(cfg config.SearchConfig) *meilisearch.Client {
	if cfg.Host == "" {
		return nil
	}
	return meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   cfg.Host,
		APIKey: cfg.APIKey,
	})
}
