package protocol

import (
	"encoding/json"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/models"
)

// Message 서버 → 클라이언트 메시지
type Message struct {
	Type    Type        `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

func NewMessage(t Type, payload interface{}) *Message {
	return &Message{Type: t, Payload: payload}
}

type MatchFoundPayload struct {
	RoomID  string             `json:"roomId"`
	Partner models.Participant `json:"partner"`
	Role    models.Role        `json:"role"`
}

type ReceiveMessagePayload struct {
	DisplayName string `json:"displayName"`
	Text        string `json:"text"`
	Timestamp   string `json:"timestamp"`
}

type CodeUpdatePayload struct {
	Code string `json:"code"`
}

type PartnerMuteStatusPayload struct {
	IsMuted     bool   `json:"isMuted"`
	DisplayName string `json:"displayName"`
}

type PartnerDeafenStatusPayload struct {
	IsDeafened  bool   `json:"isDeafened"`
	DisplayName string `json:"displayName"`
}

type RolesSwappedPayload struct {
	NewRole models.Role `json:"newRole"`
	Reason  SwapReason  `json:"reason"`
}

type PartnerDisconnectedPayload struct {
	Reason models.EndReason `json:"reason"`
}

type HeartbeatResponsePayload struct {
	Status string `json:"status"`
}

type TypingPayload struct {
	DisplayName string `json:"displayName"`
}

type TestResultsPayload struct {
	Results json.RawMessage `json:"results"`
}

type VoiceOfferPayload struct {
	Offer json.RawMessage `json:"offer"`
}

type VoiceAnswerPayload struct {
	Answer json.RawMessage `json:"answer"`
}

type VoiceICECandidatePayload struct {
	Candidate json.RawMessage `json:"candidate"`
}

type NewProblemPayload struct {
	Problem json.RawMessage `json:"problem"`
	Turn    models.Role     `json:"turn"`
	Round   int             `json:"round"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func OnlineUsersCount(n int) *Message {
	return NewMessage(TypeOnlineUsersCount, n)
}

func WaitingUsers(entries []models.QueueEntry) *Message {
	if entries == nil {
		entries = []models.QueueEntry{}
	}
	return NewMessage(TypeWaitingUsers, entries)
}

func MatchFound(roomID string, partner models.Participant, role models.Role) *Message {
	return NewMessage(TypeMatchFound, MatchFoundPayload{RoomID: roomID, Partner: partner, Role: role})
}

func RolesSwapped(role models.Role, reason SwapReason) *Message {
	return NewMessage(TypeRolesSwapped, RolesSwappedPayload{NewRole: role, Reason: reason})
}

func PartnerDisconnected(reason models.EndReason) *Message {
	return NewMessage(TypePartnerDisconnected, PartnerDisconnectedPayload{Reason: reason})
}

func HeartbeatResponse() *Message {
	return NewMessage(TypeHeartbeatResponse, HeartbeatResponsePayload{Status: "alive"})
}

func NewProblem(problem json.RawMessage, round int) *Message {
	return NewMessage(TypeNewProblem, NewProblemPayload{Problem: problem, Turn: models.RoleSolver, Round: round})
}

func Error(message string) *Message {
	return NewMessage(TypeError, ErrorPayload{Message: message})
}
