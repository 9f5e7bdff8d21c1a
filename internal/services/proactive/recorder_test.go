package proactive

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/propeld/propeld/internal/models"
	"go.uber.org/zap"
)

// mockActionRepo is an in-memory append-only action store
type mockActionRepo struct {
	actions []*models.ProactiveAction
}

func (m *mockActionRepo) Insert(_ context.Context, action *models.ProactiveAction) error {
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now()
	}
	copied := *action
	m.actions = append(m.actions, &copied)
	return nil
}

func (m *mockActionRepo) Recent(_ context.Context, userID uuid.UUID, since time.Time, onlyAutoExecuted bool, limit int) ([]*models.ProactiveAction, error) {
	var out []*models.ProactiveAction
	for _, action := range m.actions {
		if action.UserID != userID || action.CreatedAt.Before(since) {
			continue
		}
		if onlyAutoExecuted && !action.WasAutoExecuted {
			continue
		}
		copied := *action
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func TestRecord_AppendsImmutableRecord(t *testing.T) {
	t.Parallel()

	repo := &mockActionRepo{}
	recorder := NewRecorder(repo, zap.NewNop())
	userID := uuid.New()
	taskID := uuid.New()

	action, err := recorder.Record(context.Background(), userID, models.TriggerRoutineStep, "Sent rent reminder to tenant", &taskID, true)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if action.ID == uuid.Nil {
		t.Error("Expected action ID to be set")
	}
	if action.TaskID == nil || *action.TaskID != taskID {
		t.Errorf("Expected task ID %s, got %v", taskID, action.TaskID)
	}
	if !action.WasAutoExecuted {
		t.Error("Expected was_auto_executed true")
	}
	if len(repo.actions) != 1 {
		t.Fatalf("Expected 1 stored record, got %d", len(repo.actions))
	}
}

func TestRecord_EmptyActionRejected(t *testing.T) {
	t.Parallel()

	repo := &mockActionRepo{}
	recorder := NewRecorder(repo, zap.NewNop())

	_, err := recorder.Record(context.Background(), uuid.New(), models.TriggerScheduledCheck, "", nil, true)
	if !errors.Is(err, ErrEmptyAction) {
		t.Fatalf("Expected ErrEmptyAction, got %v", err)
	}
	if len(repo.actions) != 0 {
		t.Error("Expected nothing persisted for rejected record")
	}
}

func TestRecent_WindowFilterAndOrder(t *testing.T) {
	t.Parallel()

	repo := &mockActionRepo{}
	recorder := NewRecorder(repo, zap.NewNop())
	userID := uuid.New()
	now := time.Now()

	seed := []struct {
		age  time.Duration
		auto bool
		desc string
	}{
		{age: 1 * 24 * time.Hour, auto: true, desc: "Logged maintenance request"},
		{age: 3 * 24 * time.Hour, auto: true, desc: "Sent rent reminder"},
		{age: 6 * 24 * time.Hour, auto: true, desc: "Renewed listing"},
		{age: 12 * 24 * time.Hour, auto: true, desc: "Scheduled inspection"},
	}
	for _, s := range seed {
		repo.actions = append(repo.actions, &models.ProactiveAction{
			ID:              uuid.New(),
			UserID:          userID,
			TriggerType:     models.TriggerRoutineStep,
			ActionTaken:     s.desc,
			WasAutoExecuted: s.auto,
			CreatedAt:       now.Add(-s.age),
		})
	}

	actions, err := recorder.Recent(context.Background(), userID, 7, true, 3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("Expected exactly the 3 in-window records, got %d", len(actions))
	}
	for i := 1; i < len(actions); i++ {
		if actions[i].CreatedAt.After(actions[i-1].CreatedAt) {
			t.Error("Expected newest-first ordering")
		}
	}
	if actions[0].ActionTaken != "Logged maintenance request" {
		t.Errorf("Expected newest record first, got %q", actions[0].ActionTaken)
	}
}

func TestRecent_ExcludesCheckpointedWork(t *testing.T) {
	t.Parallel()

	repo := &mockActionRepo{}
	recorder := NewRecorder(repo, zap.NewNop())
	userID := uuid.New()

	repo.actions = append(repo.actions,
		&models.ProactiveAction{ID: uuid.New(), UserID: userID, ActionTaken: "Auto-sent reminder", WasAutoExecuted: true, CreatedAt: time.Now()},
		&models.ProactiveAction{ID: uuid.New(), UserID: userID, ActionTaken: "Raised checkpoint task", WasAutoExecuted: false, CreatedAt: time.Now()},
	)

	actions, err := recorder.Recent(context.Background(), userID, 7, true, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(actions) != 1 || !actions[0].WasAutoExecuted {
		t.Fatalf("Expected only auto-executed records, got %d", len(actions))
	}
}

func TestRecent_DefaultsAndCaps(t *testing.T) {
	t.Parallel()

	repo := &mockActionRepo{}
	recorder := NewRecorder(repo, zap.NewNop())

	// Zero values fall back to defaults; an oversized limit is capped.
	if _, err := recorder.Recent(context.Background(), uuid.New(), 0, false, 0); err != nil {
		t.Fatalf("Recent with defaults failed: %v", err)
	}
	if _, err := recorder.Recent(context.Background(), uuid.New(), 7, false, MaxLimit+50); err != nil {
		t.Fatalf("Recent with capped limit failed: %v", err)
	}
}
