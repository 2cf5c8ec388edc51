package protocol

import "encoding/json"

// Event is implemented only by the inbound payload structs in this file.
type Event interface {
	Type() Type
}

// RoomEvent is an inbound event scoped to a session room.
type RoomEvent interface {
	Event
	Room() string
}

// Relayable is a room event forwarded verbatim to the partner.
type Relayable interface {
	RoomEvent
	Outbound() *Message
}

type RoomRef struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
}

func (r RoomRef) Room() string { return r.RoomID }

type JoinPool struct {
	UserID      string `json:"userId" validate:"required,max=128"`
	DisplayName string `json:"displayName" validate:"max=64"`
}

func (JoinPool) Type() Type { return TypeJoinPool }

type FindMatch struct {
	UserID      string `json:"userId" validate:"required,max=128"`
	DisplayName string `json:"displayName" validate:"max=64"`
}

func (FindMatch) Type() Type { return TypeFindMatch }

type CancelSearch struct {
	UserID string `json:"userId" validate:"required,max=128"`
}

func (CancelSearch) Type() Type { return TypeCancelSearch }

type SendMessage struct {
	RoomRef
	DisplayName string `json:"displayName" validate:"max=64"`
	Text        string `json:"text" validate:"required,max=4000"`
	Timestamp   string `json:"timestamp" validate:"max=64"`
}

func (SendMessage) Type() Type { return TypeSendMessage }

func (e SendMessage) Outbound() *Message {
	return NewMessage(TypeReceiveMessage, ReceiveMessagePayload{
		DisplayName: e.DisplayName,
		Text:        e.Text,
		Timestamp:   e.Timestamp,
	})
}

type CodeUpdate struct {
	RoomRef
	Code string `json:"code" validate:"max=262144"`
}

func (CodeUpdate) Type() Type { return TypeCodeUpdate }

func (e CodeUpdate) Outbound() *Message {
	return NewMessage(TypeCodeUpdate, CodeUpdatePayload{Code: e.Code})
}

type VoiceMuteStatus struct {
	RoomRef
	IsMuted     *bool  `json:"isMuted" validate:"required"`
	DisplayName string `json:"displayName" validate:"max=64"`
}

func (VoiceMuteStatus) Type() Type { return TypeVoiceMuteStatus }

func (e VoiceMuteStatus) Outbound() *Message {
	return NewMessage(TypePartnerMuteStatus, PartnerMuteStatusPayload{
		IsMuted:     *e.IsMuted,
		DisplayName: e.DisplayName,
	})
}

type VoiceDeafenStatus struct {
	RoomRef
	IsDeafened  *bool  `json:"isDeafened" validate:"required"`
	DisplayName string `json:"displayName" validate:"max=64"`
}

func (VoiceDeafenStatus) Type() Type { return TypeVoiceDeafenStatus }

func (e VoiceDeafenStatus) Outbound() *Message {
	return NewMessage(TypePartnerDeafenStatus, PartnerDeafenStatusPayload{
		IsDeafened:  *e.IsDeafened,
		DisplayName: e.DisplayName,
	})
}

type SwapRoles struct {
	RoomRef
}

func (SwapRoles) Type() Type { return TypeSwapRoles }

type DisconnectInterview struct {
	RoomRef
}

func (DisconnectInterview) Type() Type { return TypeDisconnectInterview }

type Heartbeat struct{}

func (Heartbeat) Type() Type { return TypeHeartbeat }

type TypingStart struct {
	RoomRef
	DisplayName string `json:"displayName" validate:"max=64"`
}

func (TypingStart) Type() Type { return TypeTypingStart }

func (e TypingStart) Outbound() *Message {
	return NewMessage(TypeTypingStart, TypingPayload{DisplayName: e.DisplayName})
}

type TypingStop struct {
	RoomRef
	DisplayName string `json:"displayName" validate:"max=64"`
}

func (TypingStop) Type() Type { return TypeTypingStop }

func (e TypingStop) Outbound() *Message {
	return NewMessage(TypeTypingStop, TypingPayload{DisplayName: e.DisplayName})
}

type TestResults struct {
	RoomRef
	Results json.RawMessage `json:"results" validate:"required"`
}

func (TestResults) Type() Type { return TypeTestResults }

func (e TestResults) Outbound() *Message {
	return NewMessage(TypeTestResults, TestResultsPayload{Results: e.Results})
}

// VoiceOffer, VoiceAnswer and VoiceICECandidate carry opaque WebRTC
// signalling blobs; the service never inspects them.
type VoiceOffer struct {
	RoomRef
	Offer json.RawMessage `json:"offer" validate:"required"`
}

func (VoiceOffer) Type() Type { return TypeVoiceOffer }

func (e VoiceOffer) Outbound() *Message {
	return NewMessage(TypeVoiceOffer, VoiceOfferPayload{Offer: e.Offer})
}

type VoiceAnswer struct {
	RoomRef
	Answer json.RawMessage `json:"answer" validate:"required"`
}

func (VoiceAnswer) Type() Type { return TypeVoiceAnswer }

func (e VoiceAnswer) Outbound() *Message {
	return NewMessage(TypeVoiceAnswer, VoiceAnswerPayload{Answer: e.Answer})
}

type VoiceICECandidate struct {
	RoomRef
	Candidate json.RawMessage `json:"candidate" validate:"required"`
}

func (VoiceICECandidate) Type() Type { return TypeVoiceICECandidate }

func (e VoiceICECandidate) Outbound() *Message {
	return NewMessage(TypeVoiceICECandidate, VoiceICECandidatePayload{Candidate: e.Candidate})
}

// StartRound is delivered to both participants, not relayed.
type StartRound struct {
	RoomRef
	Problem json.RawMessage `json:"problem" validate:"required"`
	Round   int             `json:"round" validate:"gte=0,lte=100"`
}

func (StartRound) Type() Type { return TypeStartRound }
