// Package workforce is the per-cycle staffing pass: minimum headcount
// hiring, one managed worker per todo task, idle accounting and the
// dismiss-or-repurpose autoscale-down.
package workforce

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/autocorp/engine/internal/company"
	"github.com/autocorp/engine/internal/lifecycle"
)

// Observer counts headcount changes made by the staffing pass.
type Observer interface {
	WorkerHired()
	WorkerDismissed()
}

// Config tunes the staffing pass.
type Config struct {
	// MinPerLocation is the member floor for every location.
	MinPerLocation int
	// MinPerRole is the headcount floor for each core role.
	MinPerRole int
	// CoreRoles are the roles kept at MinPerRole.
	CoreRoles []string
	// AttritionRoles are actively autoscaled: hired per todo task,
	// idle-tracked, and dismissed or repurposed when idle too long.
	AttritionRoles []string
	// IdleDismissAfter is the idle-cycle count that makes a managed
	// worker eligible for autoscale-down.
	IdleDismissAfter int
	// DefaultModel is the model reference given to hired workers.
	DefaultModel string
	// Unlimited disables balance gating on hires.
	Unlimited bool
	// EmergencyCredit is the one-shot balance injection granted with
	// EmergencyChance probability when backlog exists but fewer than
	// two workers do.
	EmergencyCredit float64
	EmergencyChance float64
	// Observer, when set, is notified of every hire and dismissal.
	Observer Observer
}

// Manager runs the staffing pass. Caller holds the state write lock.
type Manager struct {
	state     *company.State
	lifecycle *lifecycle.Manager
	cfg       Config
	rng       *rand.Rand
	logger    zerolog.Logger
}

// NewManager builds a workforce manager. rng drives the probabilistic
// decisions and is injected so tests can pin it.
func NewManager(state *company.State, lc *lifecycle.Manager, cfg Config, rng *rand.Rand, logger zerolog.Logger) *Manager {
	if cfg.MinPerLocation <= 0 {
		cfg.MinPerLocation = 1
	}
	if cfg.MinPerRole <= 0 {
		cfg.MinPerRole = 1
	}
	if cfg.IdleDismissAfter <= 0 {
		cfg.IdleDismissAfter = 5
	}
	if cfg.EmergencyCredit <= 0 {
		cfg.EmergencyCredit = 20
	}
	if cfg.EmergencyChance <= 0 {
		cfg.EmergencyChance = 0.1
	}
	if len(cfg.AttritionRoles) == 0 {
		cfg.AttritionRoles = []string{company.RoleExecutor}
	}
	return &Manager{
		state:     state,
		lifecycle: lc,
		cfg:       cfg,
		rng:       rng,
		logger:    logger.With().Str("component", "workforce").Logger(),
	}
}

// Run executes the full staffing pass for one cycle.
func (m *Manager) Run() {
	m.maybeGrantEmergencyCredit()
	m.staffLocations()
	m.staffRoles()
	m.staffTasks()
	m.staffServices()
	m.accountIdle()
	m.autoscaleDown()
}

func (m *Manager) canHire() bool {
	return m.cfg.Unlimited || m.state.Ledger.Balance > 0
}

func (m *Manager) backlogExists() bool {
	return len(m.state.TodoTasks()) > 0
}

// maybeGrantEmergencyCredit avoids a permanent deadlock where an empty
// registry and an empty balance starve each other.
func (m *Manager) maybeGrantEmergencyCredit() {
	if m.cfg.Unlimited || !m.backlogExists() || len(m.state.Workers) >= 2 {
		return
	}
	if m.rng.Float64() >= m.cfg.EmergencyChance {
		return
	}
	m.state.Ledger.Balance += m.cfg.EmergencyCredit
	m.state.AppendEvent("Emergency credit of %.1f granted to restart hiring", m.cfg.EmergencyCredit)
}

func (m *Manager) staffLocations() {
	for _, loc := range m.state.SortedLocations() {
		if len(loc.Members) >= m.cfg.MinPerLocation {
			continue
		}
		if !m.backlogExists() || !m.canHire() {
			return
		}
		m.hire(company.RoleEmployee, loc.Name, company.ObjectiveAwaiting)
	}
}

func (m *Manager) staffRoles() {
	counts := make(map[string]int)
	for _, w := range m.state.Workers {
		counts[w.Role]++
	}
	for _, role := range m.cfg.CoreRoles {
		if counts[role] >= m.cfg.MinPerRole {
			continue
		}
		if !m.backlogExists() || !m.canHire() {
			return
		}
		if m.hire(role, m.emptiestLocation(), company.ObjectiveAwaiting) != nil {
			counts[role]++
		}
	}
}

// staffTasks hires one managed worker per todo task and claims the task.
// A failed hire leaves the task in todo rather than losing it.
func (m *Manager) staffTasks() {
	for _, task := range m.state.TodoTasks() {
		if !m.canHire() {
			return
		}
		w := m.hire(m.cfg.AttritionRoles[0], m.emptiestLocation(), company.TaskObjective(task.ID))
		if w == nil {
			continue
		}
		if err := m.lifecycle.TransitionTask(task, company.TaskInProgress, "Claimed by "+w.Name); err != nil {
			// Undo the binding; the worker goes back to the idle pool.
			w.Objective = company.ObjectiveAwaiting
			continue
		}
		m.state.AppendEvent("Task %q claimed by %s", task.Description, w.Name)
	}
}

// staffServices hires for validated services nobody picked up.
func (m *Manager) staffServices() {
	for _, svc := range m.lifecycle.UnassignedValidated() {
		if !m.canHire() {
			return
		}
		w := m.hire(m.cfg.AttritionRoles[0], m.emptiestLocation(), company.ObjectiveAwaiting)
		if w == nil {
			continue
		}
		if err := m.lifecycle.Assign(svc, w); err != nil {
			m.logger.Warn().Err(err).Str("service", svc.ID).Msg("assignment after hire failed")
		}
	}
}

func (m *Manager) accountIdle() {
	managed := m.managedSet()
	for _, w := range m.state.Workers {
		if !managed[w.Role] {
			continue
		}
		if w.Idle() {
			w.IdleCycles++
		} else {
			w.IdleCycles = 0
		}
	}
}

// autoscaleDown makes a one-shot decision per eligible worker: an
// independent coin flip between dismissal and repurposing.
func (m *Manager) autoscaleDown() {
	managed := m.managedSet()
	for _, w := range m.state.SortedWorkers() {
		if !managed[w.Role] || w.IdleCycles < m.cfg.IdleDismissAfter {
			continue
		}
		if m.rng.Float64() < 0.5 {
			m.state.RemoveWorker(w.Name)
			m.state.AppendEvent("Worker %s dismissed after %d idle cycles", w.Name, w.IdleCycles)
			if m.cfg.Observer != nil {
				m.cfg.Observer.WorkerDismissed()
			}
		} else {
			w.Role = company.RoleEmployee
			w.Objective = company.ObjectiveAwaiting
			w.IdleCycles = 0
			m.state.AppendEvent("Worker %s repurposed as %s", w.Name, company.RoleEmployee)
		}
	}
}

func (m *Manager) hire(role, location, objective string) *company.Worker {
	if location == "" {
		m.logger.Warn().Str("role", role).Msg("no location available for hire")
		return nil
	}
	name := fmt.Sprintf("%s-%s", role, uuid.NewString()[:8])
	w, err := m.state.CreateWorker(name, role, m.cfg.DefaultModel, location, objective)
	if err != nil {
		m.logger.Warn().Err(err).Str("role", role).Msg("hire failed")
		return nil
	}
	m.state.AppendEvent("Hired %s as %s in %s", name, role, location)
	if m.cfg.Observer != nil {
		m.cfg.Observer.WorkerHired()
	}
	return w
}

func (m *Manager) emptiestLocation() string {
	best := ""
	bestCount := -1
	for _, loc := range m.state.SortedLocations() {
		if bestCount == -1 || len(loc.Members) < bestCount {
			best = loc.Name
			bestCount = len(loc.Members)
		}
	}
	return best
}

func (m *Manager) managedSet() map[string]bool {
	out := make(map[string]bool, len(m.cfg.AttritionRoles))
	for _, r := range m.cfg.AttritionRoles {
		out[r] = true
	}
	return out
}
