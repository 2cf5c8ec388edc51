package repository

import (
	"context"
	"fmt"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/models"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/pkg/database"
)

const sessionSchema = `
	CREATE TABLE IF NOT EXISTS interview_sessions (
		room_id          TEXT PRIMARY KEY,
		solver_id        TEXT NOT NULL,
		solver_name      TEXT NOT NULL DEFAULT '',
		interviewer_id   TEXT NOT NULL,
		interviewer_name TEXT NOT NULL DEFAULT '',
		started_at       TIMESTAMPTZ NOT NULL,
		ended_at         TIMESTAMPTZ NOT NULL,
		end_reason       TEXT NOT NULL,
		ended_by         TEXT NOT NULL DEFAULT '',
		role_swaps       INTEGER NOT NULL DEFAULT 0,
		final_code       TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_interview_sessions_solver ON interview_sessions (solver_id);
	CREATE INDEX IF NOT EXISTS idx_interview_sessions_interviewer ON interview_sessions (interviewer_id);
`

// SessionRepository 종료된 인터뷰 세션 기록 (PostgreSQL)
type SessionRepository struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// EnsureSchema 테이블이 없으면 생성
func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sessionSchema); err != nil {
		return fmt.Errorf("failed to create interview_sessions table: %w", err)
	}
	return nil
}

// Save 세션 기록 저장. 같은 room ID는 한 번만 기록된다
func (r *SessionRepository) Save(ctx context.Context, rec *models.SessionRecord) error {
	query := `
		INSERT INTO interview_sessions (
			room_id, solver_id, solver_name, interviewer_id, interviewer_name,
			started_at, ended_at, end_reason, ended_by, role_swaps, final_code
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (room_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.RoomID,
		rec.SolverID,
		rec.SolverName,
		rec.InterviewerID,
		rec.InterviewerName,
		rec.StartedAt,
		rec.EndedAt,
		string(rec.EndReason),
		rec.EndedBy,
		rec.RoleSwaps,
		rec.FinalCode,
	)
	if err != nil {
		return fmt.Errorf("failed to save interview session: %w", err)
	}

	return nil
}

// FindByRoomID room ID로 기록 조회
func (r *SessionRepository) FindByRoomID(ctx context.Context, roomID string) (*models.SessionRecord, error) {
	query := `
		SELECT room_id, solver_id, solver_name, interviewer_id, interviewer_name,
		       started_at, ended_at, end_reason, ended_by, role_swaps, final_code
		FROM interview_sessions
		WHERE room_id = $1
	`

	rec := &models.SessionRecord{}
	err := r.db.QueryRowContext(ctx, query, roomID).Scan(
		&rec.RoomID,
		&rec.SolverID,
		&rec.SolverName,
		&rec.InterviewerID,
		&rec.InterviewerName,
		&rec.StartedAt,
		&rec.EndedAt,
		&rec.EndReason,
		&rec.EndedBy,
		&rec.RoleSwaps,
		&rec.FinalCode,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find interview session: %w", err)
	}

	return rec, nil
}

// ListByUser 사용자가 참여한 최근 세션 기록
func (r *SessionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT room_id, solver_id, solver_name, interviewer_id, interviewer_name,
		       started_at, ended_at, end_reason, ended_by, role_swaps, final_code
		FROM interview_sessions
		WHERE solver_id = $1 OR interviewer_id = $1
		ORDER BY ended_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list interview sessions: %w", err)
	}
	defer rows.Close()

	var records []models.SessionRecord
	for rows.Next() {
		var rec models.SessionRecord
		if err := rows.Scan(
			&rec.RoomID,
			&rec.SolverID,
			&rec.SolverName,
			&rec.InterviewerID,
			&rec.InterviewerName,
			&rec.StartedAt,
			&rec.EndedAt,
			&rec.EndReason,
			&rec.EndedBy,
			&rec.RoleSwaps,
			&rec.FinalCode,
		); err != nil {
			return nil, fmt.Errorf("failed to scan interview session: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
