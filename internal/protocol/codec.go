package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrUnknownEventType  = errors.New("unknown event type")
	ErrInvalidPayload    = errors.New("invalid payload")
)

// Envelope 모든 프레임의 공통 형식
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var inbound = map[Type]func() Event{
	TypeJoinPool:            func() Event { return &JoinPool{} },
	TypeFindMatch:           func() Event { return &FindMatch{} },
	TypeCancelSearch:        func() Event { return &CancelSearch{} },
	TypeSendMessage:         func() Event { return &SendMessage{} },
	TypeCodeUpdate:          func() Event { return &CodeUpdate{} },
	TypeVoiceMuteStatus:     func() Event { return &VoiceMuteStatus{} },
	TypeVoiceDeafenStatus:   func() Event { return &VoiceDeafenStatus{} },
	TypeSwapRoles:           func() Event { return &SwapRoles{} },
	TypeDisconnectInterview: func() Event { return &DisconnectInterview{} },
	TypeHeartbeat:           func() Event { return &Heartbeat{} },
	TypeTypingStart:         func() Event { return &TypingStart{} },
	TypeTypingStop:          func() Event { return &TypingStop{} },
	TypeTestResults:         func() Event { return &TestResults{} },
	TypeVoiceOffer:          func() Event { return &VoiceOffer{} },
	TypeVoiceAnswer:         func() Event { return &VoiceAnswer{} },
	TypeVoiceICECandidate:   func() Event { return &VoiceICECandidate{} },
	TypeStartRound:          func() Event { return &StartRound{} },
}

// Decode 수신 프레임을 검증된 Event로 변환
//
// 반환되는 Event는 항상 값 타입이다 (예: CodeUpdate, *CodeUpdate 아님).
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}

	newEvent, ok := inbound[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}

	event := newEvent()
	payload := bytes.TrimSpace(env.Payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		payload = []byte("{}")
	}
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, env.Type, err)
	}
	if err := validate.Struct(event); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, env.Type, err)
	}

	return deref(event), nil
}

func deref(e Event) Event {
	switch v := e.(type) {
	case *JoinPool:
		return *v
	case *FindMatch:
		return *v
	case *CancelSearch:
		return *v
	case *SendMessage:
		return *v
	case *CodeUpdate:
		return *v
	case *VoiceMuteStatus:
		return *v
	case *VoiceDeafenStatus:
		return *v
	case *SwapRoles:
		return *v
	case *DisconnectInterview:
		return *v
	case *Heartbeat:
		return *v
	case *TypingStart:
		return *v
	case *TypingStop:
		return *v
	case *TestResults:
		return *v
	case *VoiceOffer:
		return *v
	case *VoiceAnswer:
		return *v
	case *VoiceICECandidate:
		return *v
	case *StartRound:
		return *v
	}
	return e
}

// Encode 이벤트를 Envelope 프레임으로 직렬화 (클라이언트 송신용)
func Encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", e.Type(), err)
	}
	return json.Marshal(Envelope{Type: e.Type(), Payload: payload})
}
