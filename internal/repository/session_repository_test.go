package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/models"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/pkg/database"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	db, err := database.Connect(context.Background(), url)
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSessionRepository_SaveAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.EnsureSchema(ctx))

	started := time.Now().UTC().Truncate(time.Millisecond)
	rec := &models.SessionRecord{
		RoomID:          "interview_" + uuid.New().String(),
		SolverID:        "u-" + uuid.New().String(),
		SolverName:      "Alice",
		InterviewerID:   "u-" + uuid.New().String(),
		InterviewerName: "Bob",
		StartedAt:       started,
		EndedAt:         started.Add(42 * time.Minute),
		EndReason:       models.EndReasonEndCall,
		EndedBy:         "u1",
		RoleSwaps:       1,
		FinalCode:       "print(1)",
	}

	require.NoError(t, repo.Save(ctx, rec))
	// 같은 room은 한 번만 기록
	require.NoError(t, repo.Save(ctx, rec))

	got, err := repo.FindByRoomID(ctx, rec.RoomID)
	require.NoError(t, err)
	assert.Equal(t, rec.SolverID, got.SolverID)
	assert.Equal(t, rec.EndReason, got.EndReason)
	assert.Equal(t, rec.FinalCode, got.FinalCode)
	assert.WithinDuration(t, rec.EndedAt, got.EndedAt, time.Millisecond)

	history, err := repo.ListByUser(ctx, rec.InterviewerID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, rec.RoomID, history[0].RoomID)
}

func TestSessionRepository_FindMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db)
	require.NoError(t, repo.EnsureSchema(context.Background()))

	_, err := repo.FindByRoomID(context.Background(), "interview_missing")
	assert.Error(t, err)
}
