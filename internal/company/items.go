package company

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the task lifecycle state.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
)

// ServiceStatus is the service lifecycle state.
type ServiceStatus string

const (
	ServiceProposed   ServiceStatus = "proposed"
	ServiceValidated  ServiceStatus = "validated"
	ServiceRejected   ServiceStatus = "rejected"
	ServiceInProgress ServiceStatus = "in_progress"
	ServiceCompleted  ServiceStatus = "completed"
	ServiceCancelled  ServiceStatus = "cancelled"
)

// PricingModel selects how a completed service is billed.
type PricingModel string

const (
	PricingFixed  PricingModel = "fixed_price"
	PricingHourly PricingModel = "hourly_rate"
)

// HistoryEntry is one append-only status log record on a task or service.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
}

// Task is a unit of backlog work.
type Task struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Status      TaskStatus     `json:"status"`
	History     []HistoryEntry `json:"history,omitempty"`
}

// NewTask creates a todo task with its creation history entry.
func NewTask(description string) *Task {
	t := &Task{
		ID:          uuid.NewString(),
		Description: description,
		Status:      TaskTodo,
	}
	t.LogStatus(TaskTodo, "Task created")
	return t
}

// LogStatus sets the status and appends a history entry. Transition
// validity is enforced by the lifecycle manager, not here.
func (t *Task) LogStatus(status TaskStatus, message string) {
	t.Status = status
	t.History = append(t.History, HistoryEntry{
		Timestamp: time.Now().UTC(),
		Status:    string(status),
		Message:   message,
	})
}

// Service is a billable offering proposed during creative intake.
type Service struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	Description          string         `json:"description"`
	Author               string         `json:"author"`
	Status               ServiceStatus  `json:"status"`
	EstimatedEffortHours float64        `json:"estimated_effort_hours"`
	PricingModel         PricingModel   `json:"pricing_model"`
	PriceAmount          float64        `json:"price_amount"`
	AssignedWorker       string         `json:"assigned_worker,omitempty"`
	ProgressHours        float64        `json:"progress_hours"`
	CyclesUnassigned     int            `json:"cycles_unassigned"`
	RevenueRecognized    bool           `json:"revenue_recognized"`
	History              []HistoryEntry `json:"history,omitempty"`
}

// NewService creates a proposed service with its creation history entry.
func NewService(name, description, author string, effortHours float64, pricing PricingModel, price float64) *Service {
	s := &Service{
		ID:                   uuid.NewString(),
		Name:                 name,
		Description:          description,
		Author:               author,
		Status:               ServiceProposed,
		EstimatedEffortHours: effortHours,
		PricingModel:         pricing,
		PriceAmount:          price,
	}
	s.LogStatus(ServiceProposed, "Service proposed")
	return s
}

// LogStatus sets the status and appends a history entry.
func (s *Service) LogStatus(status ServiceStatus, message string) {
	s.Status = status
	s.History = append(s.History, HistoryEntry{
		Timestamp: time.Now().UTC(),
		Status:    string(status),
		Message:   message,
	})
}

// Revenue returns the amount recognized when the service completes.
func (s *Service) Revenue() float64 {
	if s.PricingModel == PricingHourly {
		return s.PriceAmount * s.EstimatedEffortHours
	}
	return s.PriceAmount
}

// Idea is a product idea proposed during creative intake. Once executed
// it is immutable.
type Idea struct {
	ID            string  `json:"id"`
	Description   string  `json:"description"`
	Justification string  `json:"justification"`
	Author        string  `json:"author"`
	Validated     bool    `json:"validated"`
	Executed      bool    `json:"executed"`
	Result        float64 `json:"result"`
}

// NewIdea creates an unvalidated idea.
func NewIdea(description, justification, author string) *Idea {
	return &Idea{
		ID:            uuid.NewString(),
		Description:   description,
		Justification: justification,
		Author:        author,
	}
}

// Ledger is the running balance and its per-cycle history. It is mutated
// only by settlement.
type Ledger struct {
	Balance float64   `json:"balance"`
	History []float64 `json:"history"`
}

// Event is one entry in the append-only simulation event log.
type Event struct {
	Seq     int       `json:"seq"`
	Cycle   int       `json:"cycle"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}
