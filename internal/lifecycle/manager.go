// Package lifecycle owns the task and service state machines, the
// creative intake pipeline and the per-cycle service execution pass.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/autocorp/engine/internal/company"
)

// Completer is the slice of the decision gateway the lifecycle needs.
type Completer interface {
	Complete(ctx context.Context, modelRef, prompt string) (string, error)
}

// Config tunes the lifecycle manager.
type Config struct {
	// HoursPerCycle is how much effort an in_progress service accrues
	// each cycle.
	HoursPerCycle float64
	// BacklogBatch is how many generic tasks to generate when the
	// backlog runs dry.
	BacklogBatch int
	// ServiceEffortThreshold approves services without a validator when
	// their estimated effort is at or below it.
	ServiceEffortThreshold float64
	// AttritionRoles are the roles eligible for service auto-assignment.
	AttritionRoles []string
	// Unlimited widens the fallback idea batch when no proposal comes in.
	Unlimited bool
}

// Manager drives tasks, services and ideas through their state machines.
// Like all cycle-phase components it expects the caller to hold the state
// write lock.
type Manager struct {
	state   *company.State
	gateway Completer
	cfg     Config
	themes  *themeBook
	logger  zerolog.Logger
}

// NewManager builds a lifecycle manager.
func NewManager(state *company.State, gw Completer, cfg Config, logger zerolog.Logger) *Manager {
	if cfg.HoursPerCycle <= 0 {
		cfg.HoursPerCycle = 8
	}
	if cfg.BacklogBatch <= 0 {
		cfg.BacklogBatch = 2
	}
	if cfg.ServiceEffortThreshold <= 0 {
		cfg.ServiceEffortThreshold = 40
	}
	return &Manager{
		state:   state,
		gateway: gw,
		cfg:     cfg,
		themes:  newThemeBook(),
		logger:  logger.With().Str("component", "lifecycle").Logger(),
	}
}

// taskTransitions is the allowed task state machine.
var taskTransitions = map[company.TaskStatus][]company.TaskStatus{
	company.TaskTodo:       {company.TaskInProgress, company.TaskCancelled},
	company.TaskInProgress: {company.TaskDone, company.TaskFailed, company.TaskCancelled, company.TaskTodo},
}

// serviceTransitions is the allowed service state machine.
var serviceTransitions = map[company.ServiceStatus][]company.ServiceStatus{
	company.ServiceProposed:   {company.ServiceValidated, company.ServiceRejected},
	company.ServiceValidated:  {company.ServiceInProgress, company.ServiceCancelled},
	company.ServiceInProgress: {company.ServiceCompleted, company.ServiceCancelled},
}

// TransitionTask moves a task to the given status. Invalid transitions are
// rejected with a logged warning and leave the task unchanged.
func (m *Manager) TransitionTask(t *company.Task, to company.TaskStatus, message string) error {
	for _, allowed := range taskTransitions[t.Status] {
		if allowed == to {
			t.LogStatus(to, message)
			return nil
		}
	}
	m.logger.Warn().Str("task", t.ID).
		Str("from", string(t.Status)).Str("to", string(to)).
		Msg("rejected task transition")
	m.state.AppendEvent("Rejected task transition %s -> %s for %q", t.Status, to, t.Description)
	return fmt.Errorf("task %s: invalid transition %s -> %s", t.ID, t.Status, to)
}

// TransitionService moves a service to the given status, rejecting invalid
// transitions the same way TransitionTask does.
func (m *Manager) TransitionService(s *company.Service, to company.ServiceStatus, message string) error {
	for _, allowed := range serviceTransitions[s.Status] {
		if allowed == to {
			s.LogStatus(to, message)
			return nil
		}
	}
	m.logger.Warn().Str("service", s.ID).
		Str("from", string(s.Status)).Str("to", string(to)).
		Msg("rejected service transition")
	m.state.AppendEvent("Rejected service transition %s -> %s for %q", s.Status, to, s.Name)
	return fmt.Errorf("service %s: invalid transition %s -> %s", s.ID, s.Status, to)
}

// EnsureBacklog generates a batch of generic tasks when nothing is left
// to do. Runs at the top of every cycle.
func (m *Manager) EnsureBacklog() {
	for _, t := range m.state.Tasks {
		if t.Status == company.TaskTodo || t.Status == company.TaskInProgress {
			return
		}
	}
	for i := 0; i < m.cfg.BacklogBatch; i++ {
		m.state.AddTask(fmt.Sprintf("Cycle %d operational task #%d", m.state.Cycle, i+1))
	}
}

// RunServices advances every in_progress service by the per-cycle effort
// amount and tracks how long validated services sit unassigned. A service
// unassigned for two consecutive cycles is handed to an idle managed
// worker when one exists; the workforce pass hires for it otherwise.
func (m *Manager) RunServices() {
	managed := make(map[string]bool, len(m.cfg.AttritionRoles))
	for _, r := range m.cfg.AttritionRoles {
		managed[r] = true
	}

	for _, s := range m.state.Services {
		switch s.Status {
		case company.ServiceValidated:
			s.CyclesUnassigned++
			if s.CyclesUnassigned < 2 {
				continue
			}
			if w := m.idleManagedWorker(managed); w != nil {
				m.assign(s, w)
			}

		case company.ServiceInProgress:
			s.ProgressHours += m.cfg.HoursPerCycle
			if s.ProgressHours < s.EstimatedEffortHours {
				continue
			}
			if err := m.TransitionService(s, company.ServiceCompleted, "Effort estimate reached"); err != nil {
				continue
			}
			m.state.AppendEvent("Service %q completed after %.0f hours", s.Name, s.ProgressHours)
			if w, ok := m.state.Workers[s.AssignedWorker]; ok {
				w.Objective = company.ObjectiveAwaiting
			}
		}
	}
}

// UnassignedValidated returns validated services that have waited at
// least two cycles for an assignee. The workforce pass hires for these.
func (m *Manager) UnassignedValidated() []*company.Service {
	var out []*company.Service
	for _, s := range m.state.Services {
		if s.Status == company.ServiceValidated && s.CyclesUnassigned >= 2 {
			out = append(out, s)
		}
	}
	return out
}

// Assign binds a worker to a validated service.
func (m *Manager) Assign(s *company.Service, w *company.Worker) error {
	if s.Status != company.ServiceValidated {
		return fmt.Errorf("service %s is %s, not validated", s.ID, s.Status)
	}
	m.assign(s, w)
	return nil
}

func (m *Manager) assign(s *company.Service, w *company.Worker) {
	s.AssignedWorker = w.Name
	s.CyclesUnassigned = 0
	s.LogStatus(company.ServiceInProgress, "Assigned to "+w.Name)
	w.Objective = company.ServiceObjective(s.ID)
	w.IdleCycles = 0
	m.state.AppendEvent("Service %q assigned to %s", s.Name, w.Name)
}

func (m *Manager) idleManagedWorker(managed map[string]bool) *company.Worker {
	for _, w := range m.state.SortedWorkers() {
		if managed[w.Role] && w.Idle() {
			return w
		}
	}
	return nil
}
