package company

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/autocorp/engine/internal/simerr"
)

// State is the single arena for all company entities. Cross-entity
// references are name/ID keys into its maps, never shared pointers.
//
// Locking discipline: the cycle driver holds the write lock for the whole
// of a cycle's mutation phases, so manager methods do not lock. External
// readers go through the *Copy accessors, which take the read lock.
type State struct {
	mu sync.RWMutex

	Workers   map[string]*Worker
	Locations map[string]*Location
	Tasks     []*Task
	Services  []*Service
	Ideas     []*Idea
	Ledger    Ledger
	Events    []Event

	Cycle int

	logger zerolog.Logger
}

// NewState creates an empty company state.
func NewState(logger zerolog.Logger) *State {
	return &State{
		Workers:   make(map[string]*Worker),
		Locations: make(map[string]*Location),
		logger:    logger.With().Str("component", "company").Logger(),
	}
}

// Lock acquires the state write lock for the duration of a cycle.
func (st *State) Lock() { st.mu.Lock() }

// Unlock releases the state write lock.
func (st *State) Unlock() { st.mu.Unlock() }

// AppendEvent records a simulation event. Every failure or notable state
// change goes through here so external observers can reconstruct what
// happened.
func (st *State) AppendEvent(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	st.Events = append(st.Events, Event{
		Seq:     len(st.Events) + 1,
		Cycle:   st.Cycle,
		Message: msg,
		At:      time.Now().UTC(),
	})
	st.logger.Info().Int("cycle", st.Cycle).Msg(msg)
}

// AddLocation registers a new location.
func (st *State) AddLocation(name, description string, inventory []string) *Location {
	loc := &Location{Name: name, Description: description, Inventory: inventory}
	st.Locations[name] = loc
	return loc
}

// CreateWorker registers a new worker into an existing location. An
// unknown location is a configuration bug and propagates as
// simerr.ErrLocationNotFound.
func (st *State) CreateWorker(name, role, modelRef, location, objective string) (*Worker, error) {
	loc, ok := st.Locations[location]
	if !ok {
		return nil, fmt.Errorf("creating worker %q in %q: %w", name, location, simerr.ErrLocationNotFound)
	}
	w := &Worker{
		Name:      name,
		Role:      role,
		ModelRef:  modelRef,
		Location:  location,
		Objective: objective,
	}
	w.Visited = appendCapped(w.Visited, location, maxVisited)
	st.Workers[name] = w
	loc.addMember(name)
	return w, nil
}

// RemoveWorker dismisses a worker: removed from its location's member
// list and from the registry.
func (st *State) RemoveWorker(name string) {
	w, ok := st.Workers[name]
	if !ok {
		return
	}
	if loc, ok := st.Locations[w.Location]; ok {
		loc.removeMember(name)
	}
	delete(st.Workers, name)
}

// MoveWorker relocates a worker, updating both sides of the membership
// relation and the worker's visited history in one step.
func (st *State) MoveWorker(name, newLocation string) error {
	w, ok := st.Workers[name]
	if !ok {
		return fmt.Errorf("moving %q: %w", name, simerr.ErrWorkerNotFound)
	}
	dst, ok := st.Locations[newLocation]
	if !ok {
		return fmt.Errorf("moving %q to %q: %w", name, newLocation, simerr.ErrLocationNotFound)
	}
	if src, ok := st.Locations[w.Location]; ok {
		src.removeMember(name)
	}
	dst.addMember(name)
	w.Location = newLocation
	w.Visited = appendCapped(w.Visited, newLocation, maxVisited)
	return nil
}

// AddTask appends a new todo task to the backlog.
func (st *State) AddTask(description string) *Task {
	t := NewTask(description)
	st.Tasks = append(st.Tasks, t)
	st.AppendEvent("New task %q added with status 'todo' (ID %s)", description, t.ID)
	return t
}

// TaskByID returns the task with the given ID, if present.
func (st *State) TaskByID(id string) (*Task, bool) {
	for _, t := range st.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// ServiceByID returns the service with the given ID, if present.
func (st *State) ServiceByID(id string) (*Service, bool) {
	for _, s := range st.Services {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// TodoTasks returns the current backlog in insertion order.
func (st *State) TodoTasks() []*Task {
	var out []*Task
	for _, t := range st.Tasks {
		if t.Status == TaskTodo {
			out = append(out, t)
		}
	}
	return out
}

// SortedLocations returns locations ordered by name, for deterministic
// staffing passes.
func (st *State) SortedLocations() []*Location {
	out := make([]*Location, 0, len(st.Locations))
	for _, l := range st.Locations {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SortedWorkers returns workers ordered by name.
func (st *State) SortedWorkers() []*Worker {
	out := make([]*Worker, 0, len(st.Workers))
	for _, w := range st.Workers {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Colleagues returns the names of the other workers sharing a worker's
// location.
func (st *State) Colleagues(w *Worker) []string {
	loc, ok := st.Locations[w.Location]
	if !ok {
		return nil
	}
	var out []string
	for _, m := range loc.Members {
		if m != w.Name {
			out = append(out, m)
		}
	}
	return out
}

// --- Read accessors for external collaborators. These take the read lock
// and return copies so callers never hold live pointers into the arena.

// WorkersCopy returns a deep copy of the worker registry, name-sorted.
func (st *State) WorkersCopy() []Worker {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]Worker, 0, len(st.Workers))
	for _, w := range st.SortedWorkers() {
		out = append(out, *w)
	}
	return out
}

// LocationsCopy returns a deep copy of the locations, name-sorted.
func (st *State) LocationsCopy() []Location {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]Location, 0, len(st.Locations))
	for _, l := range st.SortedLocations() {
		cp := *l
		cp.Members = append([]string(nil), l.Members...)
		out = append(out, cp)
	}
	return out
}

// TasksCopy returns a copy of all tasks.
func (st *State) TasksCopy() []Task {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]Task, 0, len(st.Tasks))
	for _, t := range st.Tasks {
		out = append(out, *t)
	}
	return out
}

// ServicesCopy returns a copy of all services.
func (st *State) ServicesCopy() []Service {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]Service, 0, len(st.Services))
	for _, s := range st.Services {
		out = append(out, *s)
	}
	return out
}

// IdeasCopy returns a copy of all ideas.
func (st *State) IdeasCopy() []Idea {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]Idea, 0, len(st.Ideas))
	for _, i := range st.Ideas {
		out = append(out, *i)
	}
	return out
}

// LedgerCopy returns the current balance and its history.
func (st *State) LedgerCopy() Ledger {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return Ledger{Balance: st.Ledger.Balance, History: append([]float64(nil), st.Ledger.History...)}
}

// EventsCopy returns a copy of the event log.
func (st *State) EventsCopy() []Event {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return append([]Event(nil), st.Events...)
}
