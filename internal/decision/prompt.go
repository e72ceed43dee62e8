package decision

import (
	"fmt"
	"strings"

	"github.com/autocorp/engine/internal/company"
)

// BuildPrompt renders the per-worker decision prompt from a snapshot of
// the worker's context. Caller holds the state lock.
func BuildPrompt(st *company.State, w *company.Worker) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, working as %s.\n", w.Name, w.Role)
	fmt.Fprintf(&b, "Current location: %s.", w.Location)
	if loc, ok := st.Locations[w.Location]; ok {
		if loc.Description != "" {
			fmt.Fprintf(&b, " %s.", loc.Description)
		}
		if len(loc.Inventory) > 0 {
			fmt.Fprintf(&b, " Inventory: %s.", strings.Join(loc.Inventory, ", "))
		}
	}
	b.WriteString("\n")

	if cols := st.Colleagues(w); len(cols) > 0 {
		fmt.Fprintf(&b, "Colleagues here: %s.\n", strings.Join(cols, ", "))
	}
	if w.Objective != "" {
		fmt.Fprintf(&b, "Your current objective: %s.\n", w.Objective)
	}
	fmt.Fprintf(&b, "Your mood is %d on a scale from -5 to 5.\n", w.Mood)

	if len(w.Actions) > 0 {
		fmt.Fprintf(&b, "Your recent actions: %s.\n", strings.Join(w.Actions, "; "))
	}
	if len(w.Interactions) > 0 {
		fmt.Fprintf(&b, "Your recent conversations: %s.\n", strings.Join(w.Interactions, "; "))
	}

	var names []string
	for _, loc := range st.SortedLocations() {
		names = append(names, loc.Name)
	}
	fmt.Fprintf(&b, "Locations you can move to: %s.\n", strings.Join(names, ", "))

	var others []string
	for _, other := range st.SortedWorkers() {
		if other.Name != w.Name {
			others = append(others, fmt.Sprintf("%s (%s)", other.Name, other.Role))
		}
	}
	if len(others) > 0 {
		fmt.Fprintf(&b, "Workers you can message: %s.\n", strings.Join(others, ", "))
	}

	b.WriteString("\nRespond with a single JSON object and nothing else.\n")
	b.WriteString(`Allowed actions: {"action":"stay"} | {"action":"move","location":"<name>"} | {"action":"message","recipient":"<worker>","content":"<text>"}`)
	b.WriteString("\n")

	if w.Role == company.RoleCEO {
		writeCEOExtras(&b, st)
	}
	return b.String()
}

// writeCEOExtras appends the backlog summary and the CEO-only actions.
func writeCEOExtras(b *strings.Builder, st *company.State) {
	todo := st.TodoTasks()
	if len(todo) == 0 {
		b.WriteString("The task backlog is empty.\n")
	} else {
		var descs []string
		for _, t := range todo {
			descs = append(descs, t.Description)
		}
		fmt.Fprintf(b, "Open backlog: %s.\n", strings.Join(descs, "; "))
	}

	var validated []string
	for _, s := range st.Services {
		if s.Status == company.ServiceValidated {
			validated = append(validated, fmt.Sprintf("%s (id %s)", s.Name, s.ID))
		}
	}
	if len(validated) > 0 {
		fmt.Fprintf(b, "Validated services awaiting assignment: %s.\n", strings.Join(validated, "; "))
	}

	b.WriteString(`As CEO you may also use {"action":"propose_task","description":"<text>"} or {"action":"assign_service","service_id":"<id>","worker":"<name>"}.`)
	b.WriteString("\n")
}
