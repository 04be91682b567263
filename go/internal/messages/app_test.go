package messages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chylnx/hub/go/internal/models"
)

type statusKey struct {
	messageID  uuid.UUID
	identityID uuid.UUID
}

type fakeMessagesRepo struct {
	messages  map[uuid.UUID]*models.Message
	statuses  map[statusKey]models.MessageState
	history   []HistoryMessage
	createErr error
	upsertErr error
}

func newFakeMessagesRepo() *fakeMessagesRepo {
	return &fakeMessagesRepo{
		messages: make(map[uuid.UUID]*models.Message),
		statuses: make(map[statusKey]models.MessageState),
	}
}

func (f *fakeMessagesRepo) CreateMessage(ctx context.Context, identityID uuid.UUID, body string) (*models.Message, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	msg := &models.Message{
		ID:         uuid.New(),
		IdentityID: identityID,
		Body:       body,
		CreatedAt:  time.Now(),
	}
	f.messages[msg.ID] = msg
	return msg, nil
}

func (f *fakeMessagesRepo) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	msg, ok := f.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return msg, nil
}

func (f *fakeMessagesRepo) UpsertStatus(ctx context.Context, messageID, identityID uuid.UUID, state models.MessageState) (bool, error) {
	if f.upsertErr != nil {
		return false, f.upsertErr
	}
	key := statusKey{messageID, identityID}
	if existing, ok := f.statuses[key]; ok && existing.Rank() >= state.Rank() {
		return false, nil
	}
	f.statuses[key] = state
	return true, nil
}

func (f *fakeMessagesRepo) GetStatus(ctx context.Context, messageID, identityID uuid.UUID) (*models.MessageStatus, error) {
	state, ok := f.statuses[statusKey{messageID, identityID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &models.MessageStatus{
		MessageID:  messageID,
		IdentityID: identityID,
		State:      state,
		UpdatedAt:  time.Now(),
	}, nil
}

func (f *fakeMessagesRepo) ListWithStatus(ctx context.Context, identityID uuid.UUID, since time.Time, limit int32) ([]HistoryMessage, error) {
	return f.history, nil
}

func TestSubmitRejectsEmptyBody(t *testing.T) {
	app := NewApp(newFakeMessagesRepo())
	sender := &models.Identity{ID: uuid.New(), Username: "alice"}

	for _, body := range []string{"", "   ", "\n\t"} {
		if _, err := app.Submit(context.Background(), sender, body); !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("body %q: expected ErrEmptyMessage, got %v", body, err)
		}
	}
}

func TestSubmitTrimsAndCarriesAuthor(t *testing.T) {
	repo := newFakeMessagesRepo()
	app := NewApp(repo)
	sender := &models.Identity{ID: uuid.New(), Username: "alice"}

	msg, err := app.Submit(context.Background(), sender, "  hello world  ")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if msg.Body != "hello world" {
		t.Fatalf("expected trimmed body, got %q", msg.Body)
	}
	if msg.Author != "alice" {
		t.Fatalf("expected author alice, got %q", msg.Author)
	}
	if _, ok := repo.messages[msg.ID]; !ok {
		t.Fatal("expected message persisted")
	}
}

func TestRecordBroadcastStatuses(t *testing.T) {
	repo := newFakeMessagesRepo()
	app := NewApp(repo)

	author := uuid.New()
	bob := uuid.New()
	carol := uuid.New()
	messageID := uuid.New()

	// author appears in the present set too; sent must win
	app.RecordBroadcastStatuses(context.Background(), messageID, author, []uuid.UUID{author, bob, carol, bob})

	if got := repo.statuses[statusKey{messageID, author}]; got != models.MessageStateSent {
		t.Fatalf("author state: expected sent, got %q", got)
	}
	if got := repo.statuses[statusKey{messageID, bob}]; got != models.MessageStateDelivered {
		t.Fatalf("recipient state: expected delivered, got %q", got)
	}
	if got := repo.statuses[statusKey{messageID, carol}]; got != models.MessageStateDelivered {
		t.Fatalf("recipient state: expected delivered, got %q", got)
	}
	if len(repo.statuses) != 3 {
		t.Fatalf("expected 3 status rows, got %d", len(repo.statuses))
	}
}

func TestMarkNeverRegresses(t *testing.T) {
	repo := newFakeMessagesRepo()
	app := NewApp(repo)

	messageID := uuid.New()
	recipient := uuid.New()

	status, advanced, err := app.MarkRead(context.Background(), messageID, recipient)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !advanced {
		t.Fatal("expected first read mark to advance")
	}
	if status.State != models.MessageStateRead {
		t.Fatalf("expected read, got %q", status.State)
	}

	// delivered after read must be a no-op
	status, advanced, err = app.MarkDelivered(context.Background(), messageID, recipient)
	if err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if advanced {
		t.Fatal("expected delivered after read not to advance")
	}
	if status.State != models.MessageStateRead {
		t.Fatalf("expected state to stay read, got %q", status.State)
	}

	// repeating read is idempotent
	_, advanced, err = app.MarkRead(context.Background(), messageID, recipient)
	if err != nil {
		t.Fatalf("repeat read: %v", err)
	}
	if advanced {
		t.Fatal("expected repeat read not to advance")
	}
}

func TestHistoryReversesToAscending(t *testing.T) {
	repo := newFakeMessagesRepo()
	now := time.Now()
	// store answers newest-first
	repo.history = []HistoryMessage{
		{ID: uuid.New(), Author: "alice", Body: "third", CreatedAt: now},
		{ID: uuid.New(), Author: "bob", Body: "second", CreatedAt: now.Add(-time.Minute)},
		{ID: uuid.New(), Author: "alice", Body: "first", CreatedAt: now.Add(-2 * time.Minute)},
	}
	app := NewApp(repo)

	history, err := app.History(context.Background(), uuid.New(), now)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	if history[0].Body != "first" || history[2].Body != "third" {
		t.Fatalf("expected ascending order, got %q..%q", history[0].Body, history[2].Body)
	}
}
