package models

import "time"

// QueueEntry 매칭 대기열 항목
type QueueEntry struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	EnqueuedAt  time.Time `json:"enqueuedAt"`
}

func (e QueueEntry) Participant() Participant {
	return Participant{UserID: e.UserID, DisplayName: e.DisplayName}
}

type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

type EndReason string

const (
	EndReasonEndCall    EndReason = "end_call"
	EndReasonDisconnect EndReason = "disconnect"
	EndReasonShutdown   EndReason = "shutdown"
)

// SessionRecord 종료된 인터뷰 세션 기록 (역할은 세션 시작 시점 기준)
type SessionRecord struct {
	RoomID          string    `db:"room_id" json:"roomId"`
	SolverID        string    `db:"solver_id" json:"solverId"`
	SolverName      string    `db:"solver_name" json:"solverName"`
	InterviewerID   string    `db:"interviewer_id" json:"interviewerId"`
	InterviewerName string    `db:"interviewer_name" json:"interviewerName"`
	StartedAt       time.Time `db:"started_at" json:"startedAt"`
	EndedAt         time.Time `db:"ended_at" json:"endedAt"`
	EndReason       EndReason `db:"end_reason" json:"endReason"`
	EndedBy         string    `db:"ended_by" json:"endedBy,omitempty"`
	RoleSwaps       int       `db:"role_swaps" json:"roleSwaps"`
	FinalCode       string    `db:"final_code" json:"finalCode"`
}

type LifecycleEventType string

const (
	LifecycleSessionStarted LifecycleEventType = "session_started"
	LifecycleRolesSwapped   LifecycleEventType = "roles_swapped"
	LifecycleSessionEnded   LifecycleEventType = "session_ended"
)

// LifecycleEvent 다른 서버 인스턴스에 알리는 세션 수명 주기 이벤트
type LifecycleEvent struct {
	Type         LifecycleEventType `json:"type"`
	InstanceID   string             `json:"instanceId"`
	RoomID       string             `json:"roomId"`
	Participants []Participant      `json:"participants,omitempty"`
	Reason       string             `json:"reason,omitempty"`
	At           time.Time          `json:"at"`
}
