package distributed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/models"
)

const (
	defaultLifecycleChannel = "alphax:sessions:events"
	defaultActiveSessionKey = "alphax:sessions:active"
)

// LifecycleBus Redis Pub/Sub 기반 세션 수명 주기 이벤트 전파
//
// 발행과 함께 active 세션 해시 (room ID → 인스턴스 ID)를 갱신해
// 클러스터 전체의 진행 중인 세션 수를 조회할 수 있다.
type LifecycleBus struct {
	client     redis.UniversalClient
	logger     *zap.Logger
	instanceID string
	channel    string
	activeKey  string
}

// NewLifecycleBus 이벤트 버스 생성
func NewLifecycleBus(client redis.UniversalClient, instanceID string, logger *zap.Logger) *LifecycleBus {
	return &LifecycleBus{
		client:     client,
		logger:     logger,
		instanceID: instanceID,
		channel:    defaultLifecycleChannel,
		activeKey:  defaultActiveSessionKey,
	}
}

func (b *LifecycleBus) InstanceID() string {
	return b.instanceID
}

// Publish 이벤트 발행 및 active 세션 해시 갱신
func (b *LifecycleBus) Publish(ctx context.Context, ev models.LifecycleEvent) error {
	if ev.InstanceID == "" {
		ev.InstanceID = b.instanceID
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal lifecycle event: %w", err)
	}

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		switch ev.Type {
		case models.LifecycleSessionStarted:
			pipe.HSet(ctx, b.activeKey, ev.RoomID, ev.InstanceID)
		case models.LifecycleSessionEnded:
			pipe.HDel(ctx, b.activeKey, ev.RoomID)
		}
		pipe.Publish(ctx, b.channel, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish lifecycle event: %w", err)
	}

	b.logger.Debug("Published lifecycle event",
		zap.String("type", string(ev.Type)),
		zap.String("roomId", ev.RoomID))

	return nil
}

// ActiveSessions 클러스터 전체의 진행 중인 세션 수
func (b *LifecycleBus) ActiveSessions(ctx context.Context) (int64, error) {
	n, err := b.client.HLen(ctx, b.activeKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return n, nil
}

// ForgetInstance 종료하는 인스턴스가 소유한 세션을 active 해시에서 제거
func (b *LifecycleBus) ForgetInstance(ctx context.Context) error {
	all, err := b.client.HGetAll(ctx, b.activeKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read active sessions: %w", err)
	}

	var rooms []string
	for room, owner := range all {
		if owner == b.instanceID {
			rooms = append(rooms, room)
		}
	}
	if len(rooms) == 0 {
		return nil
	}
	return b.client.HDel(ctx, b.activeKey, rooms...).Err()
}

// Subscribe 다른 인스턴스의 이벤트 수신. ctx가 끝날 때까지 블로킹
//
// 구독이 확인된 뒤 ready가 닫힌다 (nil이면 무시).
func (b *LifecycleBus) Subscribe(ctx context.Context, ready chan<- struct{}, handler func(ev models.LifecycleEvent)) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	// 구독 확인
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	if ready != nil {
		close(ready)
	}

	b.logger.Info("Lifecycle subscriber started",
		zap.String("instanceId", b.instanceID),
		zap.String("channel", b.channel))

	// 메시지 수신 루프
	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var ev models.LifecycleEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Error("Failed to unmarshal lifecycle event", zap.Error(err))
				continue
			}
			if ev.InstanceID == b.instanceID {
				continue
			}
			handler(ev)

		case <-ctx.Done():
			b.logger.Info("Lifecycle subscriber stopped")
			return nil
		}
	}
}
