package decision

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/autocorp/engine/internal/company"
	"github.com/autocorp/engine/internal/simerr"
)

// taskProgressTarget is how many successful actions complete a bound task.
const taskProgressTarget = 3

// Executor applies decoded actions to the company state. It expects the
// caller to hold the state write lock; it never locks itself.
type Executor struct {
	state          *company.State
	attritionRoles map[string]bool
	logger         zerolog.Logger
}

// NewExecutor builds an executor. attritionRoles mirrors the workforce
// autoscaler's managed-role set so task progress only accrues on workers
// the autoscaler binds to tasks.
func NewExecutor(state *company.State, attritionRoles []string, logger zerolog.Logger) *Executor {
	roles := make(map[string]bool, len(attritionRoles))
	for _, r := range attritionRoles {
		roles[r] = true
	}
	return &Executor{
		state:          state,
		attritionRoles: roles,
		logger:         logger.With().Str("component", "decision").Logger(),
	}
}

// RecordGatewayFailure registers a failed decision request on the worker.
// No fallback action is taken; the next cycle retries with a fresh prompt.
func (e *Executor) RecordGatewayFailure(w *company.Worker, err error) {
	kind := simerr.Kind(err)
	w.RecordAction(fmt.Sprintf("decision request failed (%s): error", kind), false)
	e.state.AppendEvent("Worker %s: decision request failed (%s)", w.Name, kind)
}

// Apply parses and executes one reply, registering exactly one
// action-outcome entry on the worker. Unparseable or invalid replies fall
// back to a stay at the current location, recorded as success after the
// original intent is logged as a failure event.
func (e *Executor) Apply(w *company.Worker, rawReply string) Action {
	a, err := ParseAction(rawReply)
	if err != nil {
		e.state.AppendEvent("Worker %s: unusable decision reply (%v), staying put", w.Name, err)
		return e.fallbackStay(w)
	}

	switch a.Kind {
	case ActionStay:
		w.RecordAction(fmt.Sprintf("stay in %s: ok", w.Location), true)
		e.creditTaskProgress(w)
		return a

	case ActionMove:
		if err := e.state.MoveWorker(w.Name, a.Location); err != nil {
			e.state.AppendEvent("Worker %s: move to %q rejected (%v), staying put", w.Name, a.Location, err)
			return e.fallbackStay(w)
		}
		w.RecordAction(fmt.Sprintf("move to %s: ok", a.Location), true)
		e.creditTaskProgress(w)
		return a

	case ActionMessage:
		recipient, ok := e.state.Workers[a.Recipient]
		if !ok || a.Content == "" {
			e.state.AppendEvent("Worker %s: message to %q rejected, staying put", w.Name, a.Recipient)
			return e.fallbackStay(w)
		}
		w.RecordInteraction(fmt.Sprintf("to %s: %s", recipient.Name, a.Content))
		recipient.RecordInteraction(fmt.Sprintf("from %s: %s", w.Name, a.Content))
		w.RecordAction(fmt.Sprintf("message to %s: ok", recipient.Name), true)
		e.creditTaskProgress(w)
		return a

	case ActionAssignService:
		if err := e.assignService(w, a); err != nil {
			// Service assignment has no safe default.
			w.RecordAction(fmt.Sprintf("assign service %s: error", a.ServiceID), false)
			e.state.AppendEvent("Worker %s: service assignment failed (%v)", w.Name, err)
			return a
		}
		w.RecordAction(fmt.Sprintf("assign service %s to %s: ok", a.ServiceID, a.Worker), true)
		return a

	case ActionProposeTask:
		if w.Role != company.RoleCEO || a.Description == "" {
			e.state.AppendEvent("Worker %s: task proposal rejected, staying put", w.Name)
			return e.fallbackStay(w)
		}
		e.state.AddTask(a.Description)
		w.RecordAction(fmt.Sprintf("propose task %q: ok", a.Description), true)
		return a
	}

	e.state.AppendEvent("Worker %s: unhandled action %q, staying put", w.Name, a.Kind)
	return e.fallbackStay(w)
}

func (e *Executor) fallbackStay(w *company.Worker) Action {
	w.RecordAction(fmt.Sprintf("stay in %s: ok", w.Location), true)
	e.creditTaskProgress(w)
	return Action{Kind: ActionStay, Location: w.Location}
}

func (e *Executor) assignService(w *company.Worker, a Action) error {
	svc, ok := e.state.ServiceByID(a.ServiceID)
	if !ok {
		return fmt.Errorf("service %q not found", a.ServiceID)
	}
	if svc.Status != company.ServiceValidated {
		return fmt.Errorf("service %q is %s, not validated", a.ServiceID, svc.Status)
	}
	target, ok := e.state.Workers[a.Worker]
	if !ok {
		return fmt.Errorf("worker %q: %w", a.Worker, simerr.ErrWorkerNotFound)
	}
	svc.AssignedWorker = target.Name
	svc.CyclesUnassigned = 0
	svc.LogStatus(company.ServiceInProgress, "Assigned to "+target.Name)
	target.Objective = company.ServiceObjective(svc.ID)
	target.IdleCycles = 0
	e.state.AppendEvent("Service %q assigned to %s", svc.Name, target.Name)
	return nil
}

// creditTaskProgress advances the worker's bound task after a successful
// action. Three successes while the task is in_progress complete it.
func (e *Executor) creditTaskProgress(w *company.Worker) {
	if !e.attritionRoles[w.Role] {
		return
	}
	id, ok := w.BoundTaskID()
	if !ok {
		return
	}
	task, found := e.state.TaskByID(id)
	if !found || task.Status != company.TaskInProgress {
		return
	}
	w.ObjectiveProgress++
	if w.ObjectiveProgress < taskProgressTarget {
		return
	}
	task.LogStatus(company.TaskDone, "Completed by "+w.Name)
	e.state.AppendEvent("Task %q completed by %s", task.Description, w.Name)
	w.Objective = company.ObjectiveAwaiting
	w.ObjectiveProgress = 0
}
