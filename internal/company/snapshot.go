package company

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Snapshot is a deep copy of the full entity set, suitable for
// persistence round-trips. Persistence is best-effort snapshotting, not a
// durable log.
type Snapshot struct {
	Workers   []Worker  `json:"workers"`
	Locations []Location `json:"locations"`
	Tasks     []Task     `json:"tasks"`
	Services  []Service  `json:"services"`
	Ideas     []Idea     `json:"ideas"`
	Ledger    Ledger     `json:"ledger"`
	Events    []Event    `json:"events"`
	Cycle     int        `json:"cycle"`
}

// Snapshot captures the current state.
func (st *State) Snapshot() *Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()

	snap := &Snapshot{Cycle: st.Cycle}
	for _, w := range st.SortedWorkers() {
		cp := *w
		cp.Actions = append([]string(nil), w.Actions...)
		cp.Interactions = append([]string(nil), w.Interactions...)
		cp.Visited = append([]string(nil), w.Visited...)
		snap.Workers = append(snap.Workers, cp)
	}
	for _, l := range st.SortedLocations() {
		cp := *l
		cp.Inventory = append([]string(nil), l.Inventory...)
		cp.Members = nil // rebuilt from workers on restore
		snap.Locations = append(snap.Locations, cp)
	}
	for _, t := range st.Tasks {
		cp := *t
		cp.History = append([]HistoryEntry(nil), t.History...)
		snap.Tasks = append(snap.Tasks, cp)
	}
	for _, s := range st.Services {
		cp := *s
		cp.History = append([]HistoryEntry(nil), s.History...)
		snap.Services = append(snap.Services, cp)
	}
	for _, i := range st.Ideas {
		snap.Ideas = append(snap.Ideas, *i)
	}
	snap.Ledger = Ledger{Balance: st.Ledger.Balance, History: append([]float64(nil), st.Ledger.History...)}
	snap.Events = append([]Event(nil), st.Events...)
	return snap
}

// Restore replaces the full state with the snapshot's contents. Location
// membership is rebuilt from the workers' location references; a worker
// whose location no longer exists is placed in the first location, or
// dropped when none exist.
func (st *State) Restore(snap *Snapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.Workers = make(map[string]*Worker, len(snap.Workers))
	st.Locations = make(map[string]*Location, len(snap.Locations))
	st.Tasks = nil
	st.Services = nil
	st.Ideas = nil

	for i := range snap.Locations {
		cp := snap.Locations[i]
		cp.Members = nil
		st.Locations[cp.Name] = &cp
	}
	fallback := ""
	for _, l := range st.SortedLocations() {
		fallback = l.Name
		break
	}
	for i := range snap.Workers {
		cp := snap.Workers[i]
		if _, ok := st.Locations[cp.Location]; !ok {
			if fallback == "" {
				st.logger.Warn().Str("worker", cp.Name).Str("location", cp.Location).
					Msg("worker references unknown location and no fallback exists, dropping")
				continue
			}
			st.logger.Warn().Str("worker", cp.Name).Str("location", cp.Location).
				Str("fallback", fallback).Msg("worker references unknown location, reassigning")
			cp.Location = fallback
		}
		st.Workers[cp.Name] = &cp
		st.Locations[cp.Location].addMember(cp.Name)
	}
	for i := range snap.Tasks {
		cp := snap.Tasks[i]
		st.Tasks = append(st.Tasks, &cp)
	}
	for i := range snap.Services {
		cp := snap.Services[i]
		st.Services = append(st.Services, &cp)
	}
	for i := range snap.Ideas {
		cp := snap.Ideas[i]
		st.Ideas = append(st.Ideas, &cp)
	}
	st.Ledger = Ledger{Balance: snap.Ledger.Balance, History: append([]float64(nil), snap.Ledger.History...)}
	st.Events = append([]Event(nil), snap.Events...)
	st.Cycle = snap.Cycle
}

// Collection file names inside the snapshot directory.
const (
	workersFile   = "workers.json"
	locationsFile = "locations.json"
	tasksFile     = "tasks.json"
	servicesFile  = "services.json"
	ideasFile     = "ideas.json"
	ledgerFile    = "ledger.json"
	eventsFile    = "events.json"
)

// Save writes the snapshot as one JSON document per entity collection.
func (snap *Snapshot) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}
	files := map[string]any{
		workersFile:   snap.Workers,
		locationsFile: snap.Locations,
		tasksFile:     snap.Tasks,
		servicesFile:  snap.Services,
		ideasFile:     snap.Ideas,
		ledgerFile:    struct {
			Ledger Ledger `json:"ledger"`
			Cycle  int    `json:"cycle"`
		}{snap.Ledger, snap.Cycle},
		eventsFile: snap.Events,
	}
	for name, v := range files {
		raw, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), raw, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}

// LoadSnapshot reads a snapshot directory written by Save. Missing files
// load as empty collections. The legacy task format, where a task was a
// bare string, is migrated to a todo task; each conversion is reported so
// the caller can log an event for it.
func LoadSnapshot(dir string) (*Snapshot, []string, error) {
	snap := &Snapshot{}
	var migrated []string

	if err := readJSON(filepath.Join(dir, workersFile), &snap.Workers); err != nil {
		return nil, nil, err
	}
	if err := readJSON(filepath.Join(dir, locationsFile), &snap.Locations); err != nil {
		return nil, nil, err
	}
	if err := readJSON(filepath.Join(dir, servicesFile), &snap.Services); err != nil {
		return nil, nil, err
	}
	if err := readJSON(filepath.Join(dir, ideasFile), &snap.Ideas); err != nil {
		return nil, nil, err
	}
	if err := readJSON(filepath.Join(dir, eventsFile), &snap.Events); err != nil {
		return nil, nil, err
	}

	var ledgerDoc struct {
		Ledger Ledger `json:"ledger"`
		Cycle  int    `json:"cycle"`
	}
	if err := readJSON(filepath.Join(dir, ledgerFile), &ledgerDoc); err != nil {
		return nil, nil, err
	}
	snap.Ledger = ledgerDoc.Ledger
	snap.Cycle = ledgerDoc.Cycle

	var rawTasks []json.RawMessage
	if err := readJSON(filepath.Join(dir, tasksFile), &rawTasks); err != nil {
		return nil, nil, err
	}
	for _, raw := range rawTasks {
		var legacy string
		if err := json.Unmarshal(raw, &legacy); err == nil {
			t := NewTask(legacy)
			snap.Tasks = append(snap.Tasks, *t)
			migrated = append(migrated, legacy)
			continue
		}
		var t Task
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, nil, fmt.Errorf("decoding task entry: %w", err)
		}
		if t.Description == "" {
			continue
		}
		if t.ID == "" {
			t.ID = NewTask(t.Description).ID
		}
		if t.Status == "" {
			t.Status = TaskTodo
		}
		snap.Tasks = append(snap.Tasks, t)
	}

	return snap, migrated, nil
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
