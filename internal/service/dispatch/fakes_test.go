package dispatch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/campaign-dispatch/internal/domain"
)

// memStore is an in-memory queue with the same claim guarantees as the
// Postgres store: every mutation happens under one lock.
type memStore struct {
	mu        sync.Mutex
	items     map[uuid.UUID]*domain.QueueItem
	failSent  error
	claimHook func()
}

func newMemStore() *memStore {
	return &memStore{items: make(map[uuid.UUID]*domain.QueueItem)}
}

func (m *memStore) add(items ...domain.QueueItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range items {
		it := items[i]
		m.items[it.ID] = &it
	}
}

func (m *memStore) get(id uuid.UUID) domain.QueueItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.items[id]
}

func (m *memStore) all() []domain.QueueItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.QueueItem, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Recipient < out[j].Recipient })
	return out
}

func (m *memStore) ReclaimStale(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, it := range m.items {
		if it.Status == domain.QueueProcessing && it.ProcessedAt != nil && it.ProcessedAt.Before(before) {
			it.Status = domain.QueuePending
			it.ProcessedAt = nil
			n++
		}
	}
	return n, nil
}

func (m *memStore) Claim(_ context.Context, limit, maxRetries int, now time.Time) ([]domain.QueueItem, error) {
	if m.claimHook != nil {
		m.claimHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var eligible []*domain.QueueItem
	for _, it := range m.items {
		if it.Eligible(maxRetries) {
			eligible = append(eligible, it)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
		}
		return eligible[i].Recipient < eligible[j].Recipient
	})
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}
	out := make([]domain.QueueItem, 0, len(eligible))
	for _, it := range eligible {
		it.Status = domain.QueueProcessing
		at := now
		it.ProcessedAt = &at
		out = append(out, *it)
	}
	return out, nil
}

func (m *memStore) MarkSent(_ context.Context, id uuid.UUID, messageID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSent != nil {
		return false, m.failSent
	}
	it := m.items[id]
	if it == nil || it.Status != domain.QueueProcessing {
		return false, nil
	}
	it.Status = domain.QueueSent
	it.MessageID = &messageID
	it.ProcessedAt = &at
	it.ErrorMessage = nil
	return true, nil
}

func (m *memStore) MarkFailed(_ context.Context, id uuid.UUID, reason string, permanent bool, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := m.items[id]
	if it == nil || it.Status != domain.QueueProcessing {
		return false, nil
	}
	it.Status = domain.QueueFailed
	it.RetryCount++
	if permanent && it.RetryCount < domain.MaxRetries+1 {
		it.RetryCount = domain.MaxRetries + 1
	}
	it.ErrorMessage = &reason
	it.ProcessedAt = &at
	return true, nil
}

func (m *memStore) Release(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it := m.items[id]
	if it == nil || it.Status != domain.QueueProcessing {
		return false, nil
	}
	it.Status = domain.QueuePending
	it.ProcessedAt = nil
	return true, nil
}

type fakeContacts struct {
	byEmail map[string]*domain.Contact
	err     error
}

func (f *fakeContacts) FindByEmail(_ context.Context, email string) (*domain.Contact, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byEmail[email], nil
}

type fakeConversations struct {
	mu      sync.Mutex
	records []domain.ConversationRecord
	err     error
}

func (f *fakeConversations) InsertConversation(_ context.Context, rec *domain.ConversationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, *rec)
	return nil
}

type fakeUnread struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
}

func (f *fakeUnread) RefreshUnread(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	return f.err
}

type statsCall struct {
	user              uuid.UUID
	sends, recipients int64
}

type fakeStats struct {
	mu    sync.Mutex
	calls []statsCall
	err   error
}

func (f *fakeStats) RecordStats(_ context.Context, user uuid.UUID, sends, recipients int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, statsCall{user, sends, recipients})
	return nil
}

func (f *fakeStats) totals(user uuid.UUID) (sends, recipients int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.user == user {
			sends += c.sends
			recipients += c.recipients
		}
	}
	return sends, recipients
}

// fakeTransport delegates each send to fn and records every message.
type fakeTransport struct {
	mu    sync.Mutex
	fn    func(msg *domain.EmailMessage, attempt int) error
	sent  []domain.EmailMessage
	tries map[string]int
}

func newFakeTransport(fn func(msg *domain.EmailMessage, attempt int) error) *fakeTransport {
	return &fakeTransport{fn: fn, tries: map[string]int{}}
}

func (f *fakeTransport) Send(_ context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	f.mu.Lock()
	f.tries[msg.To]++
	attempt := f.tries[msg.To]
	f.sent = append(f.sent, *msg)
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		if err := fn(msg, attempt); err != nil {
			return nil, err
		}
	}
	return &domain.SendResult{MessageID: "msg-" + msg.QueueItemID, Transport: domain.TransportHTTP, SentAt: time.Now()}, nil
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

var errTransient = errors.New("connection reset")
