package contact

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/pkg/validate"
)

// -- Mocks --

type mockRepo struct {
	items map[uuid.UUID]*Message
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Message)}
}

func (m *mockRepo) Create(_ context.Context, msg *Message) error {
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	cp := *msg
	m.items[msg.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Message, error) {
	msg, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, handled *bool, limit, offset int) ([]*Message, int, error) {
	var out []*Message
	for _, msg := range m.items {
		if handled != nil && msg.Handled != *handled {
			continue
		}
		cp := *msg
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (m *mockRepo) MarkHandled(_ context.Context, id, by uuid.UUID) (*Message, error) {
	msg, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !msg.Handled {
		now := time.Now()
		msg.Handled = true
		msg.HandledBy = &by
		msg.HandledAt = &now
	}
	cp := *msg
	return &cp, nil
}

func adminCtx() context.Context {
	return auth.WithSession(context.Background(), auth.Session{
		UserID: uuid.NewString(),
		Role:   auth.RoleAdmin,
		Email:  "admin@example.com",
	})
}

func validSubmit() SubmitRequest {
	return SubmitRequest{
		Name:    "Asha Rao",
		Email:   " Asha@Example.com ",
		Phone:   "9876543210",
		Subject: "Home nursing",
		Message: "Do you offer night shifts?",
	}
}

// -- Tests --

func TestSubmit(t *testing.T) {
	svc := NewService(newMockRepo(), zerolog.Nop())

	m, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if m.Email != "asha@example.com" {
		t.Errorf("expected normalized email, got %q", m.Email)
	}
	if m.Phone != "+919876543210" {
		t.Errorf("expected E.164 phone, got %q", m.Phone)
	}
	if m.Handled {
		t.Error("new message must not be handled")
	}
}

func TestSubmit_Validation(t *testing.T) {
	svc := NewService(newMockRepo(), zerolog.Nop())
	tests := []struct {
		name   string
		mutate func(*SubmitRequest)
		field  string
	}{
		{"bad name", func(r *SubmitRequest) { r.Name = "1" }, "name"},
		{"bad email", func(r *SubmitRequest) { r.Email = "asha" }, "email"},
		{"bad phone", func(r *SubmitRequest) { r.Phone = "12" }, "phone"},
		{"empty message", func(r *SubmitRequest) { r.Message = "   " }, "message"},
		{"long message", func(r *SubmitRequest) { r.Message = strings.Repeat("a", MaxMessageLength+1) }, "message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validSubmit()
			tt.mutate(&req)
			_, err := svc.Submit(context.Background(), req)
			var verr *validate.Error
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("expected validation error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestSubmit_PhoneOptional(t *testing.T) {
	svc := NewService(newMockRepo(), zerolog.Nop())
	req := validSubmit()
	req.Phone = ""
	m, err := svc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if m.Phone != "" {
		t.Errorf("expected empty phone, got %q", m.Phone)
	}
}

func TestMarkHandled(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, zerolog.Nop())
	m, _ := svc.Submit(context.Background(), validSubmit())
	ctx := adminCtx()

	got, err := svc.MarkHandled(ctx, m.ID)
	if err != nil {
		t.Fatalf("MarkHandled: %v", err)
	}
	if !got.Handled || got.HandledBy == nil || got.HandledBy.String() != auth.UserIDFromContext(ctx) {
		t.Errorf("unexpected message %+v", got)
	}
	first := *got.HandledAt

	again, err := svc.MarkHandled(adminCtx(), m.ID)
	if err != nil {
		t.Fatalf("MarkHandled again: %v", err)
	}
	if !again.HandledAt.Equal(first) {
		t.Error("second mark must not move handled_at")
	}

	if _, err := svc.MarkHandled(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestList_HandledFilter(t *testing.T) {
	svc := NewService(newMockRepo(), zerolog.Nop())
	a, _ := svc.Submit(context.Background(), validSubmit())
	svc.Submit(context.Background(), validSubmit())
	svc.MarkHandled(adminCtx(), a.ID)

	open := false
	items, total, err := svc.List(context.Background(), &open, 20, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].Handled {
		t.Errorf("expected one open message, got %d", total)
	}
	_, total, _ = svc.List(context.Background(), nil, 20, 0)
	if total != 2 {
		t.Errorf("expected 2 messages, got %d", total)
	}
}
