package decision

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autocorp/engine/internal/company"
	"github.com/autocorp/engine/internal/simerr"
)

func TestParseAction(t *testing.T) {
	a, err := ParseAction(`{"action":"move","location":"AI Lab"}`)
	require.NoError(t, err)
	assert.Equal(t, ActionMove, a.Kind)
	assert.Equal(t, "AI Lab", a.Location)

	// Prose-wrapped JSON still parses.
	a, err = ParseAction("Sure! Here is my decision:\n{\"action\":\"stay\"}\nThanks.")
	require.NoError(t, err)
	assert.Equal(t, ActionStay, a.Kind)

	_, err = ParseAction("I will just keep working.")
	require.Error(t, err)

	_, err = ParseAction(`{"action":"dance"}`)
	require.Error(t, err)
}

func newExecutorState(t *testing.T) (*Executor, *company.State) {
	t.Helper()
	st := company.NewState(zerolog.Nop())
	st.AddLocation("Planning Room", "", nil)
	st.AddLocation("AI Lab", "", nil)
	ex := NewExecutor(st, []string{company.RoleExecutor}, zerolog.Nop())
	return ex, st
}

func TestApplyMove(t *testing.T) {
	ex, st := newExecutorState(t)
	w, err := st.CreateWorker("Ana", company.RoleEmployee, "m", "Planning Room", "")
	require.NoError(t, err)

	a := ex.Apply(w, `{"action":"move","location":"AI Lab"}`)
	assert.Equal(t, ActionMove, a.Kind)
	assert.Equal(t, "AI Lab", w.Location)
	require.Len(t, w.Actions, 1)
	assert.True(t, w.LastActionOK())
	assert.Equal(t, 1, w.Mood)
}

func TestApplyMoveUnknownLocationFallsBackToStay(t *testing.T) {
	ex, st := newExecutorState(t)
	w, err := st.CreateWorker("Ana", company.RoleEmployee, "m", "Planning Room", "")
	require.NoError(t, err)

	a := ex.Apply(w, `{"action":"move","location":"Basement"}`)
	assert.Equal(t, ActionStay, a.Kind)
	assert.Equal(t, "Planning Room", w.Location)
	// Exactly one action entry: the fallback stay, recorded as success.
	require.Len(t, w.Actions, 1)
	assert.True(t, w.LastActionOK())
	// The rejected intent shows up in the event log.
	events := st.EventsCopy()
	require.NotEmpty(t, events)
	assert.Contains(t, events[len(events)-1].Message, "rejected")
}

func TestApplyUnparseableFallsBackToStay(t *testing.T) {
	ex, st := newExecutorState(t)
	w, err := st.CreateWorker("Ana", company.RoleEmployee, "m", "Planning Room", "")
	require.NoError(t, err)

	a := ex.Apply(w, "no json here")
	assert.Equal(t, ActionStay, a.Kind)
	require.Len(t, w.Actions, 1)
	assert.True(t, w.LastActionOK())
}

func TestApplyMessage(t *testing.T) {
	ex, st := newExecutorState(t)
	w, err := st.CreateWorker("Ana", company.RoleEmployee, "m", "Planning Room", "")
	require.NoError(t, err)
	b, err := st.CreateWorker("Bruno", company.RoleEmployee, "m", "AI Lab", "")
	require.NoError(t, err)

	a := ex.Apply(w, `{"action":"message","recipient":"Bruno","content":"status?"}`)
	assert.Equal(t, ActionMessage, a.Kind)
	require.Len(t, w.Interactions, 1)
	require.Len(t, b.Interactions, 1)
	assert.Contains(t, b.Interactions[0], "from Ana")

	// Unknown recipient falls back to stay without touching interactions.
	a = ex.Apply(w, `{"action":"message","recipient":"Ghost","content":"hi"}`)
	assert.Equal(t, ActionStay, a.Kind)
	assert.Len(t, w.Interactions, 1)
}

func TestApplyAssignService(t *testing.T) {
	ex, st := newExecutorState(t)
	ceo, err := st.CreateWorker("Clara", company.RoleCEO, "m", "Planning Room", "")
	require.NoError(t, err)
	target, err := st.CreateWorker("Ana", company.RoleExecutor, "m", "AI Lab", company.ObjectiveAwaiting)
	require.NoError(t, err)

	svc := company.NewService("Audit", "", "Clara", 20, company.PricingFixed, 150)
	svc.LogStatus(company.ServiceValidated, "approved")
	st.Services = append(st.Services, svc)

	a := ex.Apply(ceo, `{"action":"assign_service","service_id":"`+svc.ID+`","worker":"Ana"}`)
	assert.Equal(t, ActionAssignService, a.Kind)
	assert.Equal(t, company.ServiceInProgress, svc.Status)
	assert.Equal(t, "Ana", svc.AssignedWorker)
	assert.Equal(t, company.ServiceObjective(svc.ID), target.Objective)
	assert.True(t, ceo.LastActionOK())
}

func TestApplyAssignServiceFailsWithoutFallback(t *testing.T) {
	ex, st := newExecutorState(t)
	ceo, err := st.CreateWorker("Clara", company.RoleCEO, "m", "Planning Room", "")
	require.NoError(t, err)

	svc := company.NewService("Audit", "", "Clara", 20, company.PricingFixed, 150)
	st.Services = append(st.Services, svc) // still proposed

	a := ex.Apply(ceo, `{"action":"assign_service","service_id":"`+svc.ID+`","worker":"Nobody"}`)
	assert.Equal(t, ActionAssignService, a.Kind)
	assert.Equal(t, company.ServiceProposed, svc.Status)
	// Failure is recorded as a failed action, not a stay.
	require.Len(t, ceo.Actions, 1)
	assert.False(t, ceo.LastActionOK())
	assert.Equal(t, -1, ceo.Mood)
}

func TestApplyProposeTaskCEOOnly(t *testing.T) {
	ex, st := newExecutorState(t)
	ceo, err := st.CreateWorker("Clara", company.RoleCEO, "m", "Planning Room", "")
	require.NoError(t, err)
	emp, err := st.CreateWorker("Ana", company.RoleEmployee, "m", "AI Lab", "")
	require.NoError(t, err)

	a := ex.Apply(ceo, `{"action":"propose_task","description":"Launch the beta"}`)
	assert.Equal(t, ActionProposeTask, a.Kind)
	require.Len(t, st.Tasks, 1)
	assert.Equal(t, "Launch the beta", st.Tasks[0].Description)

	a = ex.Apply(emp, `{"action":"propose_task","description":"My pet project"}`)
	assert.Equal(t, ActionStay, a.Kind)
	assert.Len(t, st.Tasks, 1)
}

func TestRecordGatewayFailure(t *testing.T) {
	ex, st := newExecutorState(t)
	w, err := st.CreateWorker("Ana", company.RoleEmployee, "m", "Planning Room", "")
	require.NoError(t, err)

	ex.RecordGatewayFailure(w, simerr.NewAPIError(502, "upstream down"))
	require.Len(t, w.Actions, 1)
	assert.False(t, w.LastActionOK())
	assert.Contains(t, w.Actions[0], "api_call")
}

func TestTaskProgressCompletesBoundTask(t *testing.T) {
	ex, st := newExecutorState(t)
	task := st.AddTask("Ship the landing page")
	task.LogStatus(company.TaskInProgress, "claimed")

	w, err := st.CreateWorker("Ana", company.RoleExecutor, "m", "AI Lab", company.TaskObjective(task.ID))
	require.NoError(t, err)

	ex.Apply(w, `{"action":"stay"}`)
	ex.Apply(w, `{"action":"message","recipient":"Ghost","content":"x"}`) // fallback stay still counts
	assert.Equal(t, company.TaskInProgress, task.Status)

	ex.Apply(w, `{"action":"stay"}`)
	assert.Equal(t, company.TaskDone, task.Status)
	assert.Equal(t, company.ObjectiveAwaiting, w.Objective)
	assert.Equal(t, 0, w.ObjectiveProgress)
}

func TestTaskProgressIgnoredForUnmanagedRoles(t *testing.T) {
	ex, st := newExecutorState(t)
	task := st.AddTask("Ship it")
	task.LogStatus(company.TaskInProgress, "claimed")

	w, err := st.CreateWorker("Clara", company.RoleCEO, "m", "Planning Room", company.TaskObjective(task.ID))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ex.Apply(w, `{"action":"stay"}`)
	}
	assert.Equal(t, company.TaskInProgress, task.Status)
}

func TestBuildPrompt(t *testing.T) {
	_, st := newExecutorState(t)
	ceo, err := st.CreateWorker("Clara", company.RoleCEO, "m", "Planning Room", "Grow the company")
	require.NoError(t, err)
	_, err = st.CreateWorker("Ana", company.RoleExecutor, "m", "AI Lab", company.ObjectiveAwaiting)
	require.NoError(t, err)
	st.AddTask("Plan the launch")

	p := BuildPrompt(st, ceo)
	assert.Contains(t, p, "You are Clara")
	assert.Contains(t, p, "Planning Room")
	assert.Contains(t, p, "Ana (Executor)")
	assert.Contains(t, p, "Plan the launch")
	assert.Contains(t, p, "propose_task")

	ana := st.Workers["Ana"]
	p = BuildPrompt(st, ana)
	assert.NotContains(t, p, "propose_task")
}
