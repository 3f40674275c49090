package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xamle/civic-api/internal/models"
	appErrors "github.com/xamle/civic-api/pkg/errors"
	"github.com/xamle/civic-api/pkg/storage"
)

type mockContributionRepo struct {
	contributions map[string]*models.Contribution
	approvedByUsr map[string]int
	moderations   int
	createErr     error
}

func newMockContributionRepo() *mockContributionRepo {
	return &mockContributionRepo{
		contributions: make(map[string]*models.Contribution),
		approvedByUsr: make(map[string]int),
	}
}

func (m *mockContributionRepo) FindByID(ctx context.Context, id string) (*models.Contribution, error) {
	if c, ok := m.contributions[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockContributionRepo) List(ctx context.Context, filter models.ContributionFilter) ([]models.Contribution, int, error) {
	out := make([]models.Contribution, 0, len(m.contributions))
	for _, c := range m.contributions {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.UserID != "" && c.UserID != filter.UserID {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockContributionRepo) Create(ctx context.Context, contribution *models.Contribution) error {
	if m.createErr != nil {
		return m.createErr
	}
	if contribution.ID == "" {
		contribution.ID = fmt.Sprintf("con-%d", len(m.contributions)+1)
	}
	contribution.Status = models.ContributionStatusPending
	cp := *contribution
	m.contributions[contribution.ID] = &cp
	return nil
}

func (m *mockContributionRepo) Moderate(ctx context.Context, contribution *models.Contribution) error {
	m.moderations++
	cp := *contribution
	m.contributions[contribution.ID] = &cp
	if contribution.Status == models.ContributionStatusApproved {
		m.approvedByUsr[contribution.UserID]++
	}
	return nil
}

func (m *mockContributionRepo) CountApprovedByUser(ctx context.Context, userID string) (int, error) {
	return m.approvedByUsr[userID], nil
}

type mockUserStore struct {
	users  map[string]*models.User
	levels map[string]models.EngagementLevel
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:  make(map[string]*models.User),
		levels: make(map[string]models.EngagementLevel),
	}
}

func (m *mockUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserStore) UpdateLevel(ctx context.Context, id string, level models.EngagementLevel) error {
	m.levels[id] = level
	if u, ok := m.users[id]; ok {
		u.Level = level
	}
	return nil
}

type mockPolicyFinder struct{ policies map[string]*models.Policy }

func (m *mockPolicyFinder) FindByID(ctx context.Context, id string) (*models.Policy, error) {
	if p, ok := m.policies[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

type mockFileStore struct {
	uploads int
	removed []string
	err     error
}

func (m *mockFileStore) Upload(ctx context.Context, data []byte, originalName, mimeType string) (*storage.UploadResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.uploads++
	return &storage.UploadResult{
		Bucket: "documents",
		Key:    originalName,
		URL:    "https://files.example.org/documents/" + originalName,
	}, nil
}

func (m *mockFileStore) Remove(ctx context.Context, bucket, key string) error {
	m.removed = append(m.removed, bucket+"/"+key)
	return nil
}

type mockContributionEvents struct{ events []models.ContributionCreatedEvent }

func (m *mockContributionEvents) PublishContributionCreated(ctx context.Context, event models.ContributionCreatedEvent) error {
	m.events = append(m.events, event)
	return nil
}

type contributionFixture struct {
	repo     *mockContributionRepo
	users    *mockUserStore
	policies *mockPolicyFinder
	files    *mockFileStore
	audit    *mockAuditLogger
	events   *mockContributionEvents
	svc      *ContributionService
}

func newContributionFixture() *contributionFixture {
	f := &contributionFixture{
		repo:   newMockContributionRepo(),
		users:  newMockUserStore(),
		files:  &mockFileStore{},
		audit:  &mockAuditLogger{},
		events: &mockContributionEvents{},
		policies: &mockPolicyFinder{policies: map[string]*models.Policy{
			"pol-1": {ID: "pol-1", Slug: "pol-1", WorkflowStatus: models.WorkflowStatusPublished},
			"pol-2": {ID: "pol-2", Slug: "pol-2", WorkflowStatus: models.WorkflowStatusDraft},
		}},
	}
	f.users.users["citizen-1"] = &models.User{ID: "citizen-1", Level: models.LevelObserver, Active: true}
	f.svc = NewContributionService(f.repo, f.users, f.policies, f.files, f.audit, f.events, validator.New(), zap.NewNop(), 10<<20)
	return f
}

func citizenClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "citizen-1", Role: models.RoleContributor}
}

func moderatorClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "mod-1", Role: models.RoleModerator}
}

func validContributionRequest() CreateContributionRequest {
	return CreateContributionRequest{
		PolicyID: "pol-1",
		Type:     string(models.ContributionTypeTestimony),
		Content:  "The new clinic in our district opened last month and is fully staffed.",
	}
}

func TestContributionServiceCreate(t *testing.T) {
	f := newContributionFixture()

	contribution, err := f.svc.Create(context.Background(), validContributionRequest(), citizenClaims())
	require.NoError(t, err)
	assert.Equal(t, models.ContributionStatusPending, contribution.Status)
	assert.Equal(t, "citizen-1", contribution.UserID)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, contribution.ID, f.events.events[0].ContributionID)
}

func TestContributionServiceCreateRequiresAuth(t *testing.T) {
	f := newContributionFixture()

	_, err := f.svc.Create(context.Background(), validContributionRequest(), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestContributionServiceCreateOnDraftPolicy(t *testing.T) {
	f := newContributionFixture()

	// citizens can weigh in before publication; only existence is required
	req := validContributionRequest()
	req.PolicyID = "pol-2"
	contribution, err := f.svc.Create(context.Background(), req, citizenClaims())
	require.NoError(t, err)
	assert.Equal(t, models.ContributionStatusPending, contribution.Status)
	assert.Equal(t, "pol-2", contribution.PolicyID)
}

func TestContributionServiceCreateUnknownPolicy(t *testing.T) {
	f := newContributionFixture()

	req := validContributionRequest()
	req.PolicyID = "pol-missing"
	_, err := f.svc.Create(context.Background(), req, citizenClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestContributionServiceCreateWithFile(t *testing.T) {
	f := newContributionFixture()

	req := validContributionRequest()
	req.File = &ContributionFile{Name: "evidence.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4")}
	contribution, err := f.svc.Create(context.Background(), req, citizenClaims())
	require.NoError(t, err)
	require.NotNil(t, contribution.FilePath)
	require.NotNil(t, contribution.FileSize)
	assert.Equal(t, int64(8), *contribution.FileSize)
	assert.Equal(t, 1, f.files.uploads)
}

func TestContributionServiceCreateFileTooLarge(t *testing.T) {
	f := newContributionFixture()

	req := validContributionRequest()
	req.File = &ContributionFile{Name: "big.pdf", MimeType: "application/pdf", Data: make([]byte, (10<<20)+1)}
	_, err := f.svc.Create(context.Background(), req, citizenClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, f.files.uploads, "oversized file must be rejected before upload")
}

func TestContributionServiceCreateFileBadMime(t *testing.T) {
	f := newContributionFixture()

	req := validContributionRequest()
	req.File = &ContributionFile{Name: "evil.exe", MimeType: "application/x-msdownload", Data: []byte{0x4d, 0x5a}}
	_, err := f.svc.Create(context.Background(), req, citizenClaims())
	require.Error(t, err)
	assert.Equal(t, 0, f.files.uploads)
}

func TestContributionServiceCreateCleansUpOrphanedUpload(t *testing.T) {
	f := newContributionFixture()
	f.repo.createErr = fmt.Errorf("insert failed")

	req := validContributionRequest()
	req.File = &ContributionFile{Name: "evidence.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4")}
	_, err := f.svc.Create(context.Background(), req, citizenClaims())
	require.Error(t, err)
	assert.Equal(t, []string{"documents/evidence.pdf"}, f.files.removed)
}

func TestContributionServiceModerateApprove(t *testing.T) {
	f := newContributionFixture()
	contribution, err := f.svc.Create(context.Background(), validContributionRequest(), citizenClaims())
	require.NoError(t, err)

	note := "well sourced testimony"
	moderated, err := f.svc.Moderate(context.Background(), contribution.ID, ModerateContributionRequest{Approve: true, ModeratorNote: &note}, moderatorClaims())
	require.NoError(t, err)
	assert.Equal(t, models.ContributionStatusApproved, moderated.Status)
	require.NotNil(t, moderated.ModeratorID)
	assert.Equal(t, "mod-1", *moderated.ModeratorID)
	require.NotNil(t, moderated.ReviewedAt)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionApproveContribution, f.audit.entries[0].Action)
	assert.JSONEq(t, `{"note":"well sourced testimony"}`, string(f.audit.entries[0].Payload))
}

func TestContributionServiceModerateSingleShot(t *testing.T) {
	f := newContributionFixture()
	contribution, err := f.svc.Create(context.Background(), validContributionRequest(), citizenClaims())
	require.NoError(t, err)

	_, err = f.svc.Moderate(context.Background(), contribution.ID, ModerateContributionRequest{Approve: true}, moderatorClaims())
	require.NoError(t, err)

	_, err = f.svc.Moderate(context.Background(), contribution.ID, ModerateContributionRequest{Approve: false}, moderatorClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 1, f.repo.moderations, "a decided contribution must never be written again")
}

func TestContributionServiceModerateRoleGate(t *testing.T) {
	f := newContributionFixture()
	contribution, err := f.svc.Create(context.Background(), validContributionRequest(), citizenClaims())
	require.NoError(t, err)

	_, err = f.svc.Moderate(context.Background(), contribution.ID, ModerateContributionRequest{Approve: true}, citizenClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestContributionServiceEngagementThresholds(t *testing.T) {
	cases := []struct {
		approved int
		want     models.EngagementLevel
	}{
		{0, models.LevelObserver},
		{4, models.LevelObserver},
		{5, models.LevelContributor},
		{19, models.LevelContributor},
		{20, models.LevelExpert},
		{49, models.LevelExpert},
		{50, models.LevelAmbassador},
		{120, models.LevelAmbassador},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, models.EngagementLevelFor(tc.approved), "approved=%d", tc.approved)
	}
}

func TestContributionServiceApprovalPromotesAuthor(t *testing.T) {
	f := newContributionFixture()
	f.repo.approvedByUsr["citizen-1"] = 4 // next approval crosses the threshold

	contribution, err := f.svc.Create(context.Background(), validContributionRequest(), citizenClaims())
	require.NoError(t, err)
	_, err = f.svc.Moderate(context.Background(), contribution.ID, ModerateContributionRequest{Approve: true}, moderatorClaims())
	require.NoError(t, err)

	assert.Equal(t, models.LevelContributor, f.users.levels["citizen-1"])
}

func TestContributionServiceRejectionKeepsLevel(t *testing.T) {
	f := newContributionFixture()
	contribution, err := f.svc.Create(context.Background(), validContributionRequest(), citizenClaims())
	require.NoError(t, err)

	_, err = f.svc.Moderate(context.Background(), contribution.ID, ModerateContributionRequest{Approve: false}, moderatorClaims())
	require.NoError(t, err)
	_, touched := f.users.levels["citizen-1"]
	assert.False(t, touched)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionRejectContribution, f.audit.entries[0].Action)
}

func TestContributionServiceListHidesPending(t *testing.T) {
	f := newContributionFixture()
	_, err := f.svc.Create(context.Background(), validContributionRequest(), citizenClaims())
	require.NoError(t, err)

	contributions, _, err := f.svc.List(context.Background(), ContributionListRequest{}, nil)
	require.NoError(t, err)
	assert.Empty(t, contributions)

	// the author can always see their own submissions
	contributions, _, err = f.svc.List(context.Background(), ContributionListRequest{UserID: "citizen-1"}, citizenClaims())
	require.NoError(t, err)
	assert.Len(t, contributions, 1)

	contributions, _, err = f.svc.List(context.Background(), ContributionListRequest{}, moderatorClaims())
	require.NoError(t, err)
	assert.Len(t, contributions, 1)
}
