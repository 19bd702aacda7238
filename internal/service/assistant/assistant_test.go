package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/facebookgo/clock"

	"medtrack/internal/apperr"
	"medtrack/internal/logger"
	"medtrack/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.MemoryStore) {
	t.Helper()
	clk := clock.NewMock()
	store := storage.NewMemoryStore(clk)
	return NewService(store, clk, logger.NewNop()), store
}

func TestReplyRules(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"I need a refill reminder", ReplyRefill},
		{"PRESCRIPTION please", ReplyRefill},
		{"can you change my schedule", ReplyReminder},
		{"set a Reminder", ReplyReminder},
		{"I had a bad reaction", ReplySideEffect},
		{"any side effects?", ReplySideEffect},
		{"Hello there", ReplyGreeting},
		{"hi", ReplyGreeting},
		{"this one", ReplyGreeting},
		{"banana", ReplyNotUnderstood},
		{"", ReplyNotUnderstood},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			if got := Reply(tc.in); got != tc.want {
				t.Fatalf("Reply(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRegisterLoginFlow(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, Registration{Username: "alice", Password: "pw123", FirstName: "Alice"})
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if user.PasswordHash == "pw123" || user.PasswordHash == "" {
		t.Fatalf("password not hashed")
	}

	history, err := svc.History(ctx, user.ID)
	if err != nil || len(history) != 1 {
		t.Fatalf("expected welcome message: %v %v", history, err)
	}
	if !history[0].IsBot || history[0].Content != WelcomeMessage {
		t.Fatalf("unexpected welcome: %+v", history[0])
	}

	if _, err := svc.RegisterUser(ctx, Registration{Username: "alice", Password: "other"}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := svc.RegisterUser(ctx, Registration{Username: " ", Password: "x"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	got, err := svc.Login(ctx, "alice", "pw123")
	if err != nil || got.ID != user.ID {
		t.Fatalf("Login: %+v %v", got, err)
	}
	if _, err := svc.Login(ctx, "alice", "wrong"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated for bad password, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "pw123"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated for unknown user, got %v", err)
	}

	profile, err := svc.Profile(ctx, user.ID)
	if err != nil || profile.FirstName != "Alice" {
		t.Fatalf("Profile: %+v %v", profile, err)
	}
	stored, _ := store.GetUser(ctx, user.ID)
	if stored.Username != "alice" {
		t.Fatalf("unexpected stored user: %+v", stored)
	}
}

func TestRegisterRejectsOverlongPassword(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	_, err := svc.RegisterUser(ctx, Registration{Username: "bob", Password: strings.Repeat("a", 80)})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := apperr.PublicMessage(err); got != "Validation error: password must be at most 72 bytes" {
		t.Fatalf("unexpected message: %q", got)
	}
	if _, err := store.GetUserByUsername(ctx, "bob"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("rejected signup created a user: %v", err)
	}
}

func TestSendPersistsPairInOrder(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	user, err := svc.RegisterUser(ctx, Registration{Username: "bob", Password: "pw"})
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	pair, err := svc.Send(ctx, user.ID, "banana")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(pair) != 2 {
		t.Fatalf("expected two messages, got %d", len(pair))
	}
	if pair[0].IsBot || pair[0].Content != "banana" {
		t.Fatalf("unexpected user message: %+v", pair[0])
	}
	if !pair[1].IsBot || pair[1].Content != ReplyNotUnderstood {
		t.Fatalf("unexpected bot message: %+v", pair[1])
	}

	if _, err := svc.Send(ctx, user.ID, "I need a refill reminder"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	history, err := store.ListMessages(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	want := []struct {
		content string
		bot     bool
	}{
		{WelcomeMessage, true},
		{"banana", false},
		{ReplyNotUnderstood, true},
		{"I need a refill reminder", false},
		{ReplyRefill, true},
	}
	if len(history) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(history))
	}
	for i, w := range want {
		if history[i].Content != w.content || history[i].IsBot != w.bot {
			t.Fatalf("message %d = %+v, want %+v", i, history[i], w)
		}
	}
}

func TestSendRejectsBlankContent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	user, _ := svc.RegisterUser(ctx, Registration{Username: "carl", Password: "pw"})
	if _, err := svc.Send(ctx, user.ID, "   "); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	history, _ := store.ListMessages(ctx, user.ID)
	if len(history) != 1 {
		t.Fatalf("blank message was stored: %d messages", len(history))
	}
}
