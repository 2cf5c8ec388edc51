// Package relay forwards room-scoped events from one participant to the
// other.
package relay

import (
	"errors"

	"go.uber.org/zap"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/protocol"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/session"
)

type Outcome string

const (
	Delivered        Outcome = "delivered"
	DroppedStale     Outcome = "stale_room"
	DroppedNotMember Outcome = "not_member"
	DroppedNotSolver Outcome = "not_solver"
	DeliveryFailed   Outcome = "delivery_failed"
)

// Observer receives one call per relayed event.
type Observer interface {
	ObserveRelay(t protocol.Type, outcome Outcome)
}

type Relay struct {
	sessions   *session.Registry
	solverOnly bool
	observer   Observer
	logger     *zap.Logger
}

type Option func(*Relay)

// WithSolverOnlyCode drops code updates sent by the current interviewer.
func WithSolverOnlyCode(enabled bool) Option {
	return func(r *Relay) { r.solverOnly = enabled }
}

func WithObserver(o Observer) Option {
	return func(r *Relay) { r.observer = o }
}

func New(sessions *session.Registry, logger *zap.Logger, opts ...Option) *Relay {
	r := &Relay{
		sessions: sessions,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Forward delivers ev to the sender's partner in ev.Room(). Events for
// unknown or ended rooms are dropped without error; the sender's own view is
// authoritative for its optimistic update.
func (r *Relay) Forward(senderUserID string, ev protocol.Relayable) Outcome {
	outcome := r.forward(senderUserID, ev)

	if outcome != Delivered {
		r.logger.Debug("Relay event dropped",
			zap.String("type", string(ev.Type())),
			zap.String("roomId", ev.Room()),
			zap.String("userId", senderUserID),
			zap.String("outcome", string(outcome)))
	}
	if r.observer != nil {
		r.observer.ObserveRelay(ev.Type(), outcome)
	}
	return outcome
}

func (r *Relay) forward(senderUserID string, ev protocol.Relayable) Outcome {
	s, ok := r.sessions.Get(ev.Room())
	if !ok {
		return DroppedStale
	}

	var err error
	if cu, isCode := ev.(protocol.CodeUpdate); isCode {
		err = s.ForwardCode(senderUserID, cu.Code, r.solverOnly)
	} else {
		err = s.Forward(senderUserID, ev.Outbound())
	}
	return outcomeOf(err)
}

func outcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return Delivered
	case errors.Is(err, session.ErrSessionEnded):
		return DroppedStale
	case errors.Is(err, session.ErrNotMember):
		return DroppedNotMember
	case errors.Is(err, session.ErrNotSolver):
		return DroppedNotSolver
	default:
		return DeliveryFailed
	}
}
