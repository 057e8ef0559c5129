package contact_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/contact"
)

type memRepo struct {
	contacts map[uuid.UUID]*domain.Contact
	lastList contact.ListFilter
}

func (m *memRepo) Get(_ context.Context, id uuid.UUID) (*domain.Contact, error) {
	c, ok := m.contacts[id]
	if !ok {
		return nil, contact.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f contact.ListFilter) ([]domain.Contact, int, error) {
	m.lastList = f
	var out []domain.Contact
	for _, c := range m.contacts {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *memRepo) SetUnsubscribed(_ context.Context, id uuid.UUID, v bool) error {
	c, ok := m.contacts[id]
	if !ok {
		return contact.ErrNotFound
	}
	c.Unsubscribed = v
	return nil
}

func TestSetUnsubscribed(t *testing.T) {
	id := uuid.New()
	repo := &memRepo{contacts: map[uuid.UUID]*domain.Contact{id: {ID: id, Company: "Acme"}}}
	svc := contact.NewService(repo)

	got, err := svc.SetUnsubscribed(context.Background(), id, true)
	if err != nil {
		t.Fatalf("SetUnsubscribed: %v", err)
	}
	if !got.Unsubscribed {
		t.Error("contact not unsubscribed")
	}
	if _, err := svc.SetUnsubscribed(context.Background(), uuid.New(), true); !errors.Is(err, contact.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestList_ClampsPaging(t *testing.T) {
	repo := &memRepo{contacts: map[uuid.UUID]*domain.Contact{}}
	svc := contact.NewService(repo)

	if _, _, err := svc.List(context.Background(), contact.ListFilter{Limit: 10000, Offset: -3}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if repo.lastList.Limit != 50 || repo.lastList.Offset != 0 {
		t.Errorf("filter passed to repo = %+v", repo.lastList)
	}
}
