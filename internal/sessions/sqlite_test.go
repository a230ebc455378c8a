package sessions

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dialkit/dialkit/internal/dialog"
	"github.com/dialkit/dialkit/pkg/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreGetOrCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	session, err := store.GetOrCreate(ctx, "call-1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if session.Stage != models.StageGreeting {
		t.Errorf("new session stage = %s, want greeting", session.Stage)
	}
	if session.LastResponse != dialog.DefaultGreeting {
		t.Errorf("new session last response = %q, want default greeting", session.LastResponse)
	}

	again, err := store.GetOrCreate(ctx, "call-1")
	if err != nil {
		t.Fatalf("GetOrCreate() second call error = %v", err)
	}
	if !again.CreatedAt.Equal(session.CreatedAt) {
		t.Error("GetOrCreate() did not return the existing row")
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	now := time.Now().Truncate(time.Microsecond)
	session := &models.CallSession{
		CallID:       "call-1",
		Stage:        models.StageConversation,
		LastResponse: "नमस्ते",
		History: []models.Turn{
			{Role: models.RoleUser, Content: "मुझे मदद चाहिए", Language: models.LangHindi, Timestamp: now},
			{Role: models.RoleAssistant, Content: "ज़रूर", Language: models.LangHindi, Timestamp: now},
		},
		CustomerInfo:    map[string]string{"from": "+15550001111"},
		LastInteraction: now,
		CreatedAt:       now,
	}
	if err := store.Put(ctx, session); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, "call-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Stage != models.StageConversation {
		t.Errorf("stage = %s, want conversation", got.Stage)
	}
	if len(got.History) != 2 || got.History[0].Content != "मुझे मदद चाहिए" {
		t.Errorf("history did not survive the round trip: %+v", got.History)
	}
	if got.CustomerInfo["from"] != "+15550001111" {
		t.Errorf("customer info = %v, want from number", got.CustomerInfo)
	}
	if !got.LastInteraction.Equal(now) {
		t.Errorf("last interaction = %v, want %v", got.LastInteraction, now)
	}
}

func TestSQLiteStorePutUpserts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	session, err := store.GetOrCreate(ctx, "call-1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	session.Stage = models.StageProductInfo
	session.LastResponse = "updated"
	if err := store.Put(ctx, session); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, "call-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Stage != models.StageProductInfo || got.LastResponse != "updated" {
		t.Errorf("upsert lost changes: stage=%s last=%q", got.Stage, got.LastResponse)
	}
}

func TestSQLiteStoreGetNotFound(t *testing.T) {
	t.Parallel()
	store := newTestSQLiteStore(t)

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStoreDeleteIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	if _, err := store.GetOrCreate(ctx, "call-1"); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := store.Delete(ctx, "call-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "call-1"); err != nil {
		t.Fatalf("second Delete() error = %v, want nil", err)
	}
}

func TestSQLiteStoreSweepAndStaleIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	base := time.Now()
	clock := base.Add(-time.Hour)
	store.SetNowFunc(func() time.Time { return clock })
	if _, err := store.GetOrCreate(ctx, "stale"); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	clock = base
	if _, err := store.GetOrCreate(ctx, "fresh"); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	ids, err := store.StaleIDs(ctx, base.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("StaleIDs() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != "stale" {
		t.Errorf("StaleIDs() = %v, want [stale]", ids)
	}

	removed, err := store.Sweep(ctx, 10*time.Minute)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Sweep() removed = %d, want 1", removed)
	}
	if _, err := store.Get(ctx, "fresh"); err != nil {
		t.Errorf("fresh session was swept: %v", err)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	session, err := store.GetOrCreate(ctx, "call-1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	session.Stage = models.StageConversation
	if err := store.Put(ctx, session); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "call-1")
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if got.Stage != models.StageConversation {
		t.Errorf("stage after reopen = %s, want conversation", got.Stage)
	}
}
