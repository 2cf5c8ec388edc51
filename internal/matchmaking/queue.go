// Package matchmaking implements the greedy pairwise FIFO waiting pool.
package matchmaking

import (
	"sort"
	"sync"
	"time"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/models"
)

// Pair 매칭된 두 대기자. First가 먼저 대기열에 들어온 쪽
type Pair struct {
	First  models.QueueEntry
	Second models.QueueEntry
}

type entry struct {
	models.QueueEntry
	seq uint64
}

// Queue 사용자 ID당 최대 하나의 항목만 갖는 대기열
//
// 모든 연산은 하나의 mutex 아래에서 실행되므로 동시에 두 Enqueue가
// 같은 항목을 서로 다른 Pair로 가져갈 수 없다.
type Queue struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextSeq uint64
	now     func() time.Time
}

type Option func(*Queue)

// WithClock 테스트용 시계 주입
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue 대기열에 추가하고, 두 명 이상이면 가장 먼저 들어온 두 명을 꺼내 Pair로 반환
//
// 이미 대기 중인 사용자의 재요청은 순번을 유지한 채 표시 이름만 갱신한다.
func (q *Queue) Enqueue(p models.Participant) (*Pair, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.entries[p.UserID]; ok {
		if p.DisplayName != "" {
			existing.DisplayName = p.DisplayName
		}
	} else {
		q.nextSeq++
		q.entries[p.UserID] = &entry{
			QueueEntry: models.QueueEntry{
				UserID:      p.UserID,
				DisplayName: p.DisplayName,
				EnqueuedAt:  q.now(),
			},
			seq: q.nextSeq,
		}
	}

	if len(q.entries) < 2 {
		return nil, false
	}

	ordered := q.orderedLocked()
	first, second := ordered[0], ordered[1]
	delete(q.entries, first.UserID)
	delete(q.entries, second.UserID)

	return &Pair{First: first.QueueEntry, Second: second.QueueEntry}, true
}

// Cancel 대기열에서 제거. 대기 중이 아니었으면 false (이미 매칭된 경우 포함)
func (q *Queue) Cancel(userID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.entries[userID]; !ok {
		return false
	}
	delete(q.entries, userID)
	return true
}

// Contains 대기 중인지 확인
func (q *Queue) Contains(userID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, ok := q.entries[userID]
	return ok
}

// Snapshot 대기 순서대로 정렬된 복사본
func (q *Queue) Snapshot() []models.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	ordered := q.orderedLocked()
	out := make([]models.QueueEntry, len(ordered))
	for i, e := range ordered {
		out[i] = e.QueueEntry
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Queue) orderedLocked() []*entry {
	ordered := make([]*entry, 0, len(q.entries))
	for _, e := range q.entries {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].EnqueuedAt.Equal(ordered[j].EnqueuedAt) {
			return ordered[i].EnqueuedAt.Before(ordered[j].EnqueuedAt)
		}
		return ordered[i].seq < ordered[j].seq
	})
	return ordered
}
