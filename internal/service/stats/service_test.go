package stats_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/stats"
)

type memRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.UserCounters
	calls int
}

func (m *memRepo) Increment(_ context.Context, id uuid.UUID, send, recipients int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	u, ok := m.users[id]
	if !ok {
		return stats.ErrUserNotFound
	}
	u.EmailSendCount += send
	u.EmailRecipientCount += recipients
	return nil
}

func (m *memRepo) Counters(_ context.Context, id uuid.UUID) (*domain.UserCounters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, stats.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func TestRecordStats(t *testing.T) {
	id := uuid.New()
	repo := &memRepo{users: map[uuid.UUID]*domain.UserCounters{id: {UserID: id}}}
	svc := stats.NewService(repo)
	ctx := context.Background()

	if err := svc.RecordStats(ctx, id, 1, 5); err != nil {
		t.Fatalf("RecordStats: %v", err)
	}
	if err := svc.RecordStats(ctx, id, 0, 0); err != nil {
		t.Fatalf("zero deltas: %v", err)
	}
	if repo.calls != 1 {
		t.Errorf("repo calls = %d, want 1 (zero delta is a no-op)", repo.calls)
	}
	if err := svc.RecordStats(ctx, id, -1, 0); !errors.Is(err, stats.ErrNegativeDelta) {
		t.Errorf("err = %v, want ErrNegativeDelta", err)
	}

	c, _ := svc.Counters(ctx, id)
	if c.EmailSendCount != 1 || c.EmailRecipientCount != 5 {
		t.Errorf("counters = %+v", c)
	}
}

func TestRecordStats_ConcurrentIncrementsAllLand(t *testing.T) {
	id := uuid.New()
	repo := &memRepo{users: map[uuid.UUID]*domain.UserCounters{id: {UserID: id}}}
	svc := stats.NewService(repo)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.RecordStats(context.Background(), id, 1, 2)
		}()
	}
	wg.Wait()
	c, _ := svc.Counters(context.Background(), id)
	if c.EmailSendCount != 20 || c.EmailRecipientCount != 40 {
		t.Errorf("counters = %+v", c)
	}
}

func TestRecordStats_UnknownUser(t *testing.T) {
	svc := stats.NewService(&memRepo{users: map[uuid.UUID]*domain.UserCounters{}})
	if err := svc.RecordStats(context.Background(), uuid.New(), 1, 1); !errors.Is(err, stats.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}
