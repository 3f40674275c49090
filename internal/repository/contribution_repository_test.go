package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/xamle/civic-api/internal/models"
)

func TestContributionRepositoryCreateForcesPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewContributionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO contributions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	contribution := &models.Contribution{
		UserID:   "citizen-1",
		PolicyID: "pol-1",
		Type:     models.ContributionTypeTestimony,
		Content:  "The clinic opened last month.",
		Status:   models.ContributionStatusApproved, // must be ignored
	}
	require.NoError(t, repo.Create(context.Background(), contribution))
	require.Equal(t, models.ContributionStatusPending, contribution.Status)
	require.NotEmpty(t, contribution.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContributionRepositoryModerate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewContributionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE contributions SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	moderator := "mod-1"
	now := time.Now()
	contribution := &models.Contribution{
		ID:          "con-1",
		Status:      models.ContributionStatusApproved,
		ModeratorID: &moderator,
		ReviewedAt:  &now,
	}
	require.NoError(t, repo.Moderate(context.Background(), contribution))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContributionRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewContributionRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "policy_id", "type", "content", "file_path", "file_size", "mime_type",
		"region", "status", "reliability", "moderator_id", "moderator_note", "reviewed_at",
		"created_at", "updated_at",
	}).AddRow("con-1", "citizen-1", "pol-1", "TESTIMONY", "text", nil, nil, nil,
		nil, "APPROVED", 0, nil, nil, nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, policy_id")).
		WithArgs("pol-1", "APPROVED").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM contributions")).
		WithArgs("pol-1", "APPROVED").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	contributions, total, err := repo.List(context.Background(), models.ContributionFilter{
		PolicyID: "pol-1",
		Status:   models.ContributionStatusApproved,
	})
	require.NoError(t, err)
	require.Len(t, contributions, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContributionRepositoryCountApprovedByUser(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewContributionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM contributions WHERE user_id = $1 AND status = $2")).
		WithArgs("citizen-1", models.ContributionStatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountApprovedByUser(context.Background(), "citizen-1")
	require.NoError(t, err)
	require.Equal(t, 7, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
