package distributed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/models"
)

func TestLifecycleBus_DeliversOtherInstances(t *testing.T) {
	client := setupRedisClient(t)
	local := NewLifecycleBus(client, "node-a", zap.NewNop())
	remote := NewLifecycleBus(client, "node-b", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan models.LifecycleEvent, 4)
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- local.Subscribe(ctx, ready, func(ev models.LifecycleEvent) { received <- ev })
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not start")
	}

	// 자기 인스턴스 이벤트는 건너뛴다
	require.NoError(t, local.Publish(ctx, models.LifecycleEvent{Type: models.LifecycleSessionStarted, RoomID: "interview_a"}))
	require.NoError(t, remote.Publish(ctx, models.LifecycleEvent{Type: models.LifecycleSessionStarted, RoomID: "interview_b"}))

	select {
	case ev := <-received:
		assert.Equal(t, "node-b", ev.InstanceID)
		assert.Equal(t, "interview_b", ev.RoomID)
	case <-time.After(2 * time.Second):
		t.Fatal("remote event not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
	assert.Empty(t, received)
}

func TestLifecycleBus_TracksActiveSessions(t *testing.T) {
	client := setupRedisClient(t)
	a := NewLifecycleBus(client, "node-a", zap.NewNop())
	b := NewLifecycleBus(client, "node-b", zap.NewNop())
	ctx := context.Background()

	require.NoError(t, a.Publish(ctx, models.LifecycleEvent{Type: models.LifecycleSessionStarted, RoomID: "r1"}))
	require.NoError(t, a.Publish(ctx, models.LifecycleEvent{Type: models.LifecycleSessionStarted, RoomID: "r2"}))
	require.NoError(t, b.Publish(ctx, models.LifecycleEvent{Type: models.LifecycleSessionStarted, RoomID: "r3"}))
	require.NoError(t, a.Publish(ctx, models.LifecycleEvent{Type: models.LifecycleRolesSwapped, RoomID: "r1"}))

	n, err := a.ActiveSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.NoError(t, a.Publish(ctx, models.LifecycleEvent{Type: models.LifecycleSessionEnded, RoomID: "r1"}))
	require.NoError(t, a.ForgetInstance(ctx))

	n, err = b.ActiveSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
