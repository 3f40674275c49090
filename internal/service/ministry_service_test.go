package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xamle/civic-api/internal/models"
	appErrors "github.com/xamle/civic-api/pkg/errors"
)

type mockMinistryRepo struct {
	ministries map[string]*models.Ministry
	rankings   []models.MinistryRanking
	listCalls  int
}

func newMockMinistryRepo() *mockMinistryRepo {
	return &mockMinistryRepo{ministries: make(map[string]*models.Ministry)}
}

func (m *mockMinistryRepo) List(ctx context.Context) ([]models.Ministry, error) {
	m.listCalls++
	out := make([]models.Ministry, 0, len(m.ministries))
	for _, mi := range m.ministries {
		out = append(out, *mi)
	}
	return out, nil
}

func (m *mockMinistryRepo) FindByID(ctx context.Context, id string) (*models.Ministry, error) {
	if mi, ok := m.ministries[id]; ok {
		cp := *mi
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMinistryRepo) FindBySlug(ctx context.Context, slug string) (*models.Ministry, error) {
	for _, mi := range m.ministries {
		if mi.Slug == slug {
			cp := *mi
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockMinistryRepo) Create(ctx context.Context, ministry *models.Ministry) error {
	if ministry.ID == "" {
		ministry.ID = fmt.Sprintf("min-%d", len(m.ministries)+1)
	}
	cp := *ministry
	m.ministries[ministry.ID] = &cp
	return nil
}

func (m *mockMinistryRepo) Update(ctx context.Context, ministry *models.Ministry) error {
	cp := *ministry
	m.ministries[ministry.ID] = &cp
	return nil
}

func (m *mockMinistryRepo) Ranking(ctx context.Context) ([]models.MinistryRanking, error) {
	return m.rankings, nil
}

type stubPolicyLister struct {
	policies   []models.Policy
	lastFilter models.PolicyFilter
}

func (s *stubPolicyLister) List(ctx context.Context, filter models.PolicyFilter) ([]models.Policy, int, error) {
	s.lastFilter = filter
	return s.policies, len(s.policies), nil
}

func newMinistryFixture() (*mockMinistryRepo, *memoryCache, *MinistryService) {
	repo := newMockMinistryRepo()
	cache := newMemoryCache()
	cacheSvc := NewCacheService(cache, nil, time.Minute, zap.NewNop(), true)
	svc := NewMinistryService(repo, &stubPolicyLister{}, &mockAuditLogger{}, cacheSvc, nil, validator.New(), zap.NewNop(), MinistryServiceConfig{})
	return repo, cache, svc
}

func TestMinistryServiceCreate(t *testing.T) {
	_, cache, svc := newMinistryFixture()
	cache.entries[CacheKeyMinistries] = []byte("[]")

	ministry, err := svc.Create(context.Background(), MinistryRequest{Name: "Ministry of Health"}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, "ministry-of-health", ministry.Slug)
	assert.Contains(t, cache.deleted, CacheKeyMinistries)
	assert.Contains(t, cache.deleted, CacheKeyMinistryRanking)
}

func TestMinistryServiceCreateDuplicateName(t *testing.T) {
	_, _, svc := newMinistryFixture()

	_, err := svc.Create(context.Background(), MinistryRequest{Name: "Ministry of Health"}, adminClaims())
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), MinistryRequest{Name: "Ministry of Health"}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestMinistryServiceCreateRequiresAdmin(t *testing.T) {
	_, _, svc := newMinistryFixture()

	_, err := svc.Create(context.Background(), MinistryRequest{Name: "Ministry of Health"}, editorClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestMinistryServiceListCached(t *testing.T) {
	repo, _, svc := newMinistryFixture()
	repo.ministries["min-1"] = &models.Ministry{ID: "min-1", Name: "Health", Slug: "health"}

	first, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 1, repo.listCalls, "second read must come from cache")
}

func TestMinistryServiceGetAttachesPublishedPolicies(t *testing.T) {
	repo := newMockMinistryRepo()
	repo.ministries["min-1"] = &models.Ministry{ID: "min-1", Name: "Health", Slug: "health"}
	lister := &stubPolicyLister{policies: []models.Policy{{ID: "pol-1", Slug: "vaccination-program"}}}
	cacheSvc := NewCacheService(newMemoryCache(), nil, time.Minute, zap.NewNop(), true)
	svc := NewMinistryService(repo, lister, &mockAuditLogger{}, cacheSvc, nil, validator.New(), zap.NewNop(), MinistryServiceConfig{})

	detail, err := svc.Get(context.Background(), "health")
	require.NoError(t, err)
	assert.Equal(t, "min-1", detail.ID)
	require.Len(t, detail.Policies, 1)
	assert.Equal(t, "vaccination-program", detail.Policies[0].Slug)
	assert.Equal(t, "min-1", lister.lastFilter.MinistryID)
	assert.False(t, lister.lastFilter.IncludeUnlisted)
}

func TestMinistryServiceRankingRates(t *testing.T) {
	repo, _, svc := newMinistryFixture()
	repo.rankings = []models.MinistryRanking{
		{MinistryID: "min-1", Name: "Health", TotalPolicies: 4, CompletedPolicies: 1, TotalBudget: 200, TotalBudgetSpent: 50},
		{MinistryID: "min-2", Name: "Education", TotalPolicies: 2, CompletedPolicies: 2, TotalBudget: 0, TotalBudgetSpent: 0},
	}

	rankings, err := svc.Ranking(context.Background())
	require.NoError(t, err)
	require.Len(t, rankings, 2)

	// ordered by completion rate, zero budgets never divide
	assert.Equal(t, "min-2", rankings[0].MinistryID)
	assert.Equal(t, 100, rankings[0].CompletionRate)
	assert.Equal(t, 0, rankings[0].BudgetExecutionRate)
	assert.Equal(t, "min-1", rankings[1].MinistryID)
	assert.Equal(t, 25, rankings[1].CompletionRate)
	assert.Equal(t, 25, rankings[1].BudgetExecutionRate)
}

func TestMinistryServiceUpdateRenames(t *testing.T) {
	_, _, svc := newMinistryFixture()
	ministry, err := svc.Create(context.Background(), MinistryRequest{Name: "Ministry of Health"}, adminClaims())
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), ministry.ID, MinistryRequest{Name: "Ministry of Public Health"}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, "ministry-of-public-health", updated.Slug)
}
