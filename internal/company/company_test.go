package company

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autocorp/engine/internal/simerr"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newTestState(t *testing.T) *State {
	t.Helper()
	st := NewState(zerolog.Nop())
	st.AddLocation("Planning Room", "strategy", []string{"whiteboard"})
	st.AddLocation("AI Lab", "delivery", nil)
	return st
}

func TestCreateWorkerUnknownLocation(t *testing.T) {
	st := newTestState(t)
	_, err := st.CreateWorker("Ana", RoleExecutor, "m", "Basement", "")
	require.ErrorIs(t, err, simerr.ErrLocationNotFound)
}

func TestMoveWorkerKeepsMembershipConsistent(t *testing.T) {
	st := newTestState(t)
	_, err := st.CreateWorker("Ana", RoleExecutor, "m", "Planning Room", ObjectiveAwaiting)
	require.NoError(t, err)

	require.NoError(t, st.MoveWorker("Ana", "AI Lab"))

	assert.Empty(t, st.Locations["Planning Room"].Members)
	assert.Equal(t, []string{"Ana"}, st.Locations["AI Lab"].Members)
	assert.Equal(t, "AI Lab", st.Workers["Ana"].Location)
	// Visited is capped at the two most recent locations.
	assert.Equal(t, []string{"Planning Room", "AI Lab"}, st.Workers["Ana"].Visited)

	require.NoError(t, st.MoveWorker("Ana", "Planning Room"))
	assert.Equal(t, []string{"AI Lab", "Planning Room"}, st.Workers["Ana"].Visited)
}

func TestMoveWorkerUnknownTargets(t *testing.T) {
	st := newTestState(t)
	require.ErrorIs(t, st.MoveWorker("Ghost", "AI Lab"), simerr.ErrWorkerNotFound)

	_, err := st.CreateWorker("Ana", RoleExecutor, "m", "Planning Room", "")
	require.NoError(t, err)
	require.ErrorIs(t, st.MoveWorker("Ana", "Basement"), simerr.ErrLocationNotFound)
	// Failed move leaves the worker where it was.
	assert.Equal(t, []string{"Ana"}, st.Locations["Planning Room"].Members)
}

func TestRemoveWorker(t *testing.T) {
	st := newTestState(t)
	_, err := st.CreateWorker("Ana", RoleExecutor, "m", "Planning Room", "")
	require.NoError(t, err)

	st.RemoveWorker("Ana")
	assert.Empty(t, st.Locations["Planning Room"].Members)
	assert.NotContains(t, st.Workers, "Ana")

	st.RemoveWorker("Ana") // idempotent
}

func TestRecordActionCapsAndMoodClamp(t *testing.T) {
	w := &Worker{Name: "Ana"}
	for i := 0; i < 8; i++ {
		w.RecordAction("did something: ok", true)
	}
	assert.Len(t, w.Actions, 3)
	assert.Equal(t, 5, w.Mood)
	assert.True(t, w.LastActionOK())

	for i := 0; i < 20; i++ {
		w.RecordAction("did something: error", false)
	}
	assert.Equal(t, -5, w.Mood)
	assert.False(t, w.LastActionOK())
}

func TestWorkerIdle(t *testing.T) {
	w := &Worker{}
	assert.True(t, w.Idle())
	w.Objective = "None"
	assert.True(t, w.Idle())
	w.Objective = ObjectiveAwaiting
	assert.True(t, w.Idle())
	w.Objective = TaskObjective("abc")
	assert.False(t, w.Idle())
}

func TestObjectiveBindings(t *testing.T) {
	w := &Worker{Objective: TaskObjective("t-1")}
	id, ok := w.BoundTaskID()
	require.True(t, ok)
	assert.Equal(t, "t-1", id)
	_, ok = w.BoundServiceID()
	assert.False(t, ok)

	w.Objective = ServiceObjective("s-9")
	id, ok = w.BoundServiceID()
	require.True(t, ok)
	assert.Equal(t, "s-9", id)
}

func TestServiceRevenue(t *testing.T) {
	fixed := NewService("Audit", "one-off", "Clara", 20, PricingFixed, 150)
	assert.Equal(t, 150.0, fixed.Revenue())

	hourly := NewService("Consulting", "ongoing", "Clara", 10, PricingHourly, 12.5)
	assert.Equal(t, 125.0, hourly.Revenue())
}

func TestSnapshotRoundTrip(t *testing.T) {
	st := newTestState(t)
	_, err := st.CreateWorker("Ana", RoleExecutor, "m", "AI Lab", ObjectiveAwaiting)
	require.NoError(t, err)
	st.AddTask("Ship the landing page")
	st.Services = append(st.Services, NewService("Audit", "one-off", "Clara", 20, PricingFixed, 150))
	st.Ideas = append(st.Ideas, NewIdea("AI helpdesk", "Large market", "Rafael"))
	st.Ledger.Balance = 42.5
	st.Ledger.History = []float64{30, 42.5}
	st.Cycle = 7

	dir := t.TempDir()
	require.NoError(t, st.Snapshot().Save(dir))

	snap, migrated, err := LoadSnapshot(dir)
	require.NoError(t, err)
	assert.Empty(t, migrated)

	restored := NewState(zerolog.Nop())
	restored.Restore(snap)

	assert.Equal(t, 7, restored.Cycle)
	assert.Equal(t, 42.5, restored.Ledger.Balance)
	require.Len(t, restored.Ledger.History, 2)
	assert.Equal(t, []float64{30, 42.5}, restored.Ledger.History)
	require.Contains(t, restored.Workers, "Ana")
	assert.Equal(t, []string{"Ana"}, restored.Locations["AI Lab"].Members)
	require.Len(t, restored.Tasks, 1)
	assert.Equal(t, TaskTodo, restored.Tasks[0].Status)
	require.Len(t, restored.Services, 1)
	assert.Equal(t, ServiceProposed, restored.Services[0].Status)
	require.Len(t, restored.Ideas, 1)
	// Events written during setup survive the round trip.
	assert.Equal(t, len(st.Events), len(restored.Events))
}

func TestLoadSnapshotMigratesLegacyTasks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tasks.json", `["Fix the billing bug", {"id":"t1","description":"Ship it","status":"in_progress"}]`)

	snap, migrated, err := LoadSnapshot(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"Fix the billing bug"}, migrated)
	require.Len(t, snap.Tasks, 2)

	assert.Equal(t, "Fix the billing bug", snap.Tasks[0].Description)
	assert.Equal(t, TaskTodo, snap.Tasks[0].Status)
	assert.NotEmpty(t, snap.Tasks[0].ID)

	assert.Equal(t, "t1", snap.Tasks[1].ID)
	assert.Equal(t, TaskInProgress, snap.Tasks[1].Status)
}

func TestRestoreReassignsOrphanedWorker(t *testing.T) {
	snap := &Snapshot{
		Locations: []Location{{Name: "AI Lab"}},
		Workers:   []Worker{{Name: "Ana", Role: RoleExecutor, Location: "Demolished Wing"}},
	}
	st := NewState(zerolog.Nop())
	st.Restore(snap)

	require.Contains(t, st.Workers, "Ana")
	assert.Equal(t, "AI Lab", st.Workers["Ana"].Location)
	assert.Equal(t, []string{"Ana"}, st.Locations["AI Lab"].Members)
}
