package interviewclient

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/models"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/protocol"
)

// Apply 서버가 보낸 프레임 하나를 상태 머신에 반영
//
// reply가 nil이 아니면 서버와 상태를 맞추기 위해 연결이 그대로 보내야 하는 이벤트다.
func (m *Machine) Apply(frame []byte) (reply protocol.Event, err error) {
	var env protocol.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrMalformedEnvelope, err)
	}

	switch env.Type {
	case protocol.TypeOnlineUsersCount:
		var n int
		return nil, decodeThen(env, &n, func() { m.HandleOnlineUsers(n) })

	case protocol.TypeWaitingUsers:
		var entries []models.QueueEntry
		return nil, decodeThen(env, &entries, func() { m.HandleWaitingUsers(entries) })

	case protocol.TypeMatchFound:
		var p protocol.MatchFoundPayload
		err = decodeThen(env, &p, func() { _, reply = m.HandleMatchFound(p) })
		return reply, err

	case protocol.TypePartnerDisconnected:
		var p protocol.PartnerDisconnectedPayload
		return nil, decodeThen(env, &p, func() { m.HandlePartnerDisconnected(p) })

	case protocol.TypeRolesSwapped:
		var p protocol.RolesSwappedPayload
		return nil, decodeThen(env, &p, func() { m.HandleRolesSwapped(p) })

	case protocol.TypeCodeUpdate:
		var p protocol.CodeUpdatePayload
		return nil, decodeThen(env, &p, func() { m.HandleCodeUpdate(p) })

	case protocol.TypeReceiveMessage:
		var p protocol.ReceiveMessagePayload
		return nil, decodeThen(env, &p, func() { m.HandleMessage(p) })

	case protocol.TypePartnerMuteStatus:
		var p protocol.PartnerMuteStatusPayload
		return nil, decodeThen(env, &p, func() { m.HandleMuteStatus(p) })

	case protocol.TypePartnerDeafenStatus:
		var p protocol.PartnerDeafenStatusPayload
		return nil, decodeThen(env, &p, func() { m.HandleDeafenStatus(p) })

	case protocol.TypeNewProblem:
		var p protocol.NewProblemPayload
		return nil, decodeThen(env, &p, func() { m.HandleNewProblem(p) })

	case protocol.TypeError:
		var p protocol.ErrorPayload
		err = decodeThen(env, &p, func() { reply = m.HandleError(p) })
		return reply, err

	case protocol.TypeHeartbeatResponse,
		protocol.TypeTypingStart, protocol.TypeTypingStop, protocol.TypeTestResults,
		protocol.TypeVoiceOffer, protocol.TypeVoiceAnswer, protocol.TypeVoiceICECandidate:
		// 상태와 무관 (UI/WebRTC 계층에서 처리)
		return nil, nil

	default:
		m.logger.Debug("Ignoring unknown server event", zap.String("type", string(env.Type)))
		return nil, nil
	}
}

func decodeThen(env protocol.Envelope, v interface{}, apply func()) error {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", protocol.ErrInvalidPayload, env.Type, err)
	}
	apply()
	return nil
}
