package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/autocorp/engine/internal/company"
)

const validationAttempts = 3

// Idea outcomes applied to the balance when a prototype is executed.
const (
	ideaHitResult  = 25.0
	ideaMissResult = -10.0
)

// themeBook tracks which proposal themes have paid off. Positive
// prototype outcomes reinforce a theme, negative outcomes penalize it.
type themeBook struct {
	order  []string
	scores map[string]int
}

func newThemeBook() *themeBook {
	order := []string{"automation", "artificial intelligence", "data analytics", "sustainability"}
	scores := make(map[string]int, len(order))
	for _, t := range order {
		scores[t] = 0
	}
	return &themeBook{order: order, scores: scores}
}

// Preferred returns the best-scoring theme, seed order breaking ties.
func (tb *themeBook) Preferred() string {
	best := tb.order[0]
	for _, t := range tb.order[1:] {
		if tb.scores[t] > tb.scores[best] {
			best = t
		}
	}
	return best
}

// Top returns up to n themes ordered by score, seed order breaking ties.
func (tb *themeBook) Top(n int) []string {
	themes := append([]string(nil), tb.order...)
	sort.SliceStable(themes, func(i, j int) bool {
		return tb.scores[themes[i]] > tb.scores[themes[j]]
	})
	if len(themes) > n {
		themes = themes[:n]
	}
	return themes
}

func (tb *themeBook) Reinforce(theme string, delta int) {
	if _, ok := tb.scores[theme]; ok {
		tb.scores[theme] += delta
	}
}

// matches reports whether a description touches any known theme, and
// which one.
func (tb *themeBook) matches(description string) (string, bool) {
	lower := strings.ToLower(description)
	for _, t := range tb.order {
		if strings.Contains(lower, t) {
			return t, true
		}
	}
	return "", false
}

type proposal struct {
	Type                 string  `json:"type"`
	Description          string  `json:"description"`
	Justification        string  `json:"justification"`
	Name                 string  `json:"name"`
	EstimatedEffortHours float64 `json:"estimated_effort_hours"`
	PricingModel         string  `json:"pricing_model"`
	PriceAmount          float64 `json:"price_amount"`
}

type verdict struct {
	Decision      string `json:"decision"`
	Justification string `json:"justification"`
}

// RunIntake is the per-cycle creative pass: an ideation worker proposes
// one idea or service, pending items are validated, and validated ideas
// are prototyped with their result applied to the balance.
func (m *Manager) RunIntake(ctx context.Context) {
	m.propose(ctx)
	m.validatePending(ctx)
	m.executeIdeas()
}

func (m *Manager) propose(ctx context.Context) {
	author := m.workerWithRole(company.RoleIdeation)
	if author == nil {
		m.fallbackIdeas("system", "no ideation worker available")
		return
	}

	reply, err := m.gateway.Complete(ctx, author.ModelRef, m.proposalPrompt(author))
	if err != nil {
		m.fallbackIdeas(author.Name, fmt.Sprintf("proposal request failed: %v", err))
		return
	}
	var p proposal
	if uerr := json.Unmarshal([]byte(extractObject(reply)), &p); uerr != nil || p.Description == "" {
		m.fallbackIdeas(author.Name, "proposal reply was not usable")
		return
	}

	if strings.EqualFold(p.Type, "service") {
		name := p.Name
		if name == "" {
			name = p.Description
		}
		pricing := company.PricingFixed
		if strings.EqualFold(p.PricingModel, string(company.PricingHourly)) {
			pricing = company.PricingHourly
		}
		if p.EstimatedEffortHours <= 0 {
			p.EstimatedEffortHours = m.cfg.HoursPerCycle
		}
		if p.PriceAmount <= 0 {
			p.PriceAmount = 100
		}
		svc := company.NewService(name, p.Description, author.Name, p.EstimatedEffortHours, pricing, p.PriceAmount)
		m.state.Services = append(m.state.Services, svc)
		m.state.AppendEvent("Worker %s proposed service %q", author.Name, svc.Name)
		return
	}

	idea := company.NewIdea(p.Description, p.Justification, author.Name)
	m.state.Ideas = append(m.state.Ideas, idea)
	m.state.AppendEvent("Worker %s proposed idea %q", author.Name, idea.Description)
}

// fallbackIdeas keeps the creative pipeline fed when nobody proposes or
// the model is unreachable or incoherent: one themed process-optimization
// idea, or one per top-three theme under unlimited mode.
func (m *Manager) fallbackIdeas(author, reason string) {
	themes := m.themes.Top(1)
	if m.cfg.Unlimited {
		themes = m.themes.Top(3)
	}
	for _, theme := range themes {
		idea := company.NewIdea(
			fmt.Sprintf("Process optimization through %s", theme),
			"Generated internally from the current theme preference",
			author,
		)
		m.state.Ideas = append(m.state.Ideas, idea)
		m.state.AppendEvent("Fallback idea generated for %s (%s)", author, reason)
	}
}

func (m *Manager) validatePending(ctx context.Context) {
	validator := m.workerWithRole(company.RoleValidator)

	for _, idea := range m.state.Ideas {
		if idea.Validated || idea.Executed {
			continue
		}
		approved, reason := m.validate(ctx, validator,
			fmt.Sprintf("idea: %s (%s)", idea.Description, idea.Justification),
			func() bool { _, ok := m.themes.matches(idea.Description); return ok })
		if approved {
			idea.Validated = true
			m.state.AppendEvent("Idea %q approved: %s", idea.Description, reason)
		} else {
			// Rejected ideas are closed out so they are never revisited.
			idea.Executed = true
			m.state.AppendEvent("Idea %q rejected: %s", idea.Description, reason)
		}
	}

	for _, svc := range m.state.Services {
		if svc.Status != company.ServiceProposed {
			continue
		}
		approved, reason := m.validate(ctx, validator,
			fmt.Sprintf("service: %s (%s), estimated effort %.0f hours", svc.Name, svc.Description, svc.EstimatedEffortHours),
			func() bool { return svc.EstimatedEffortHours <= m.cfg.ServiceEffortThreshold })
		if approved {
			_ = m.TransitionService(svc, company.ServiceValidated, "Validation approved: "+reason)
		} else {
			_ = m.TransitionService(svc, company.ServiceRejected, "Validation rejected: "+reason)
		}
	}
}

// validate produces an accept/reject verdict: up to three structured
// model verdicts when a validator exists (auto-reject when none parse),
// else the side-effect-free heuristic.
func (m *Manager) validate(ctx context.Context, validator *company.Worker, summary string, heuristic func() bool) (bool, string) {
	if validator == nil {
		if heuristic() {
			return true, "heuristic approval"
		}
		return false, "heuristic rejection"
	}

	prompt := fmt.Sprintf(
		"You are %s, the validation reviewer. Evaluate the following proposal and respond with a single JSON object "+
			`{"decision":"approve"|"reject","justification":"<short reason>"} and nothing else.`+"\n\nProposal %s",
		validator.Name, summary)

	for attempt := 0; attempt < validationAttempts; attempt++ {
		reply, err := m.gateway.Complete(ctx, validator.ModelRef, prompt)
		if err != nil {
			continue
		}
		var v verdict
		if err := json.Unmarshal([]byte(extractObject(reply)), &v); err != nil {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(v.Decision)) {
		case "approve":
			return true, v.Justification
		case "reject":
			return false, v.Justification
		}
	}
	return false, "auto-rejected after failed validation attempts"
}

// executeIdeas prototypes every validated, unexecuted idea. The signed
// result lands on the balance immediately and feeds the theme scores.
func (m *Manager) executeIdeas() {
	for _, idea := range m.state.Ideas {
		if !idea.Validated || idea.Executed {
			continue
		}
		theme, hit := m.themes.matches(idea.Description)
		if hit {
			idea.Result = ideaHitResult
			m.themes.Reinforce(theme, 1)
		} else {
			idea.Result = ideaMissResult
			// A dud with no recognizable theme counts against whatever
			// preference steered the pipeline toward it.
			m.themes.Reinforce(m.themes.Preferred(), -1)
		}
		idea.Executed = true
		m.state.Ledger.Balance += idea.Result
		m.state.AppendEvent("Idea %q prototyped with result %+.1f", idea.Description, idea.Result)
	}
}

func (m *Manager) proposalPrompt(author *company.Worker) string {
	return fmt.Sprintf(
		"You are %s, the ideation lead. The current preferred theme is %q.\n"+
			"Propose either one product idea or one billable service. Respond with a single JSON object and nothing else:\n"+
			`{"type":"idea","description":"<text>","justification":"<text>"}`+"\n"+
			"or\n"+
			`{"type":"service","name":"<text>","description":"<text>","estimated_effort_hours":<number>,"pricing_model":"fixed_price"|"hourly_rate","price_amount":<number>}`,
		author.Name, m.themes.Preferred())
}

func (m *Manager) workerWithRole(role string) *company.Worker {
	for _, w := range m.state.SortedWorkers() {
		if w.Role == role {
			return w
		}
	}
	return nil
}

func extractObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
