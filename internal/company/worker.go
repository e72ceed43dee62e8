// Package company holds the in-memory company state: workers, locations,
// tasks, services, ideas, the ledger and the event log. Entities are
// mutated only through manager operations so that histories and the
// worker/location back-references stay consistent.
package company

import "strings"

// Well-known roles. RoleExecutor headcount is actively managed by the
// workforce autoscaler; RoleEmployee is the generic role repurposed
// workers fall back to.
const (
	RoleCEO       = "CEO"
	RoleIdeation  = "Ideation"
	RoleValidator = "Validator"
	RoleExecutor  = "Executor"
	RoleEmployee  = "Employee"
)

// ObjectiveAwaiting is the objective of a worker with nothing to do.
const ObjectiveAwaiting = "Awaiting assignment"

// Rolling history caps on a worker.
const (
	maxActions      = 3
	maxInteractions = 3
	maxVisited      = 2
)

// Worker is a unit of the simulated workforce. Location holds the name of
// the one location the worker belongs to; the location's member list is
// kept in sync by State.MoveWorker and never mutated directly.
type Worker struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	ModelRef string `json:"model_ref"`
	Location string `json:"location"`

	Actions      []string `json:"actions,omitempty"`
	Interactions []string `json:"interactions,omitempty"`
	Visited      []string `json:"visited,omitempty"`

	Objective string `json:"objective,omitempty"`
	Mood      int    `json:"mood"`

	// ObjectiveProgress counts successful actions toward a bound task.
	ObjectiveProgress int `json:"objective_progress,omitempty"`
	// IdleCycles is only meaningful while the role is attrition-managed.
	IdleCycles int `json:"idle_cycles,omitempty"`
}

// RecordAction appends an action outcome to the rolling history and moves
// mood by +1 on success, -1 on failure, clamped to [-5, 5].
func (w *Worker) RecordAction(desc string, ok bool) {
	w.Actions = appendCapped(w.Actions, desc, maxActions)
	if ok {
		w.Mood++
	} else {
		w.Mood--
	}
	if w.Mood > 5 {
		w.Mood = 5
	}
	if w.Mood < -5 {
		w.Mood = -5
	}
}

// RecordInteraction appends a message exchange to the rolling history.
func (w *Worker) RecordInteraction(desc string) {
	w.Interactions = appendCapped(w.Interactions, desc, maxInteractions)
}

// LastActionOK reports whether the most recent recorded action succeeded.
func (w *Worker) LastActionOK() bool {
	if len(w.Actions) == 0 {
		return false
	}
	return strings.HasSuffix(w.Actions[len(w.Actions)-1], "ok")
}

// Idle reports whether the worker's objective counts as idle for
// autoscaling purposes.
func (w *Worker) Idle() bool {
	obj := strings.TrimSpace(w.Objective)
	if obj == "" || obj == "None" {
		return true
	}
	return strings.Contains(strings.ToLower(obj), "awaiting")
}

// TaskObjective formats the objective binding a worker to a task.
func TaskObjective(taskID string) string { return "task_id:" + taskID }

// ServiceObjective formats the objective binding a worker to a service.
func ServiceObjective(serviceID string) string { return "service_id:" + serviceID }

// BoundTaskID extracts the task ID from a task objective, if any.
func (w *Worker) BoundTaskID() (string, bool) {
	return strings.CutPrefix(w.Objective, "task_id:")
}

// BoundServiceID extracts the service ID from a service objective, if any.
func (w *Worker) BoundServiceID() (string, bool) {
	return strings.CutPrefix(w.Objective, "service_id:")
}

func appendCapped(list []string, v string, cap int) []string {
	list = append(list, v)
	if len(list) > cap {
		list = list[len(list)-cap:]
	}
	return list
}

// Location is a place in the company. Members holds worker names only;
// workers own their own lifecycle.
type Location struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Inventory   []string `json:"inventory,omitempty"`
	Members     []string `json:"-"`
}

func (l *Location) addMember(name string) {
	for _, m := range l.Members {
		if m == name {
			return
		}
	}
	l.Members = append(l.Members, name)
}

func (l *Location) removeMember(name string) {
	for i, m := range l.Members {
		if m == name {
			l.Members = append(l.Members[:i], l.Members[i+1:]...)
			return
		}
	}
}
