// Package transition validates state-machine edges between templates and
// detects loop and forced-flow patterns over observed transition history.
package transition

import (
	"fmt"
	"strings"
	"sync"

	"github.com/greywatch/driftwatch/pkg/template"
)

// historyCapacity bounds the transition history ring.
const historyCapacity = 100

// defaultLoopWindow is the number of most-recent transitions loop
// detection inspects when no window is given.
const defaultLoopWindow = 5

// Record is one observed transition.
type Record struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	Timestamp float64 `json:"timestamp"`
}

// Checker validates transitions against templates and tracks a bounded
// history used by the loop and forced-flow detectors.
type Checker struct {
	mu      sync.Mutex
	store   *template.Store
	history []Record
}

// NewChecker constructs a Checker backed by store for transition-graph
// lookups.
func NewChecker(store *template.Store) *Checker {
	return &Checker{store: store}
}

// Validate reports whether transitioning from src (a template, possibly
// nil) to targetScreenID is valid, and if not, the expected target list.
// A nil source template, or one with no valid_transitions, imposes no
// restriction.
func Validate(src *template.Template, targetScreenID string) (valid bool, expected []string) {
	if src == nil || len(src.ValidTransitions) == 0 {
		return true, nil
	}
	for _, tr := range src.ValidTransitions {
		if tr == "" {
			continue
		}
		from, to, ok := splitTransition(tr)
		if ok {
			if from == src.ScreenID && to == targetScreenID {
				return true, nil
			}
			continue
		}
		// bare screen_id entry
		if tr == targetScreenID {
			return true, nil
		}
	}
	return false, src.ValidTransitions
}

// ValidateByID looks up srcScreenID in the checker's store and delegates
// to Validate.
func (c *Checker) ValidateByID(srcScreenID, targetScreenID string) (valid bool, expected []string) {
	src, _ := c.store.Get(srcScreenID)
	return Validate(src, targetScreenID)
}

// Record appends an observed transition to the bounded history ring,
// evicting the oldest entry once capacity is reached.
func (c *Checker) Record(from, to string, timestamp float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, Record{From: from, To: to, Timestamp: timestamp})
	if len(c.history) > historyCapacity {
		c.history = c.history[len(c.history)-historyCapacity:]
	}
}

// History returns a snapshot of the recorded transitions.
func (c *Checker) History() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.history))
	copy(out, c.history)
	return out
}

// LoopFinding describes a repeated subsequence found within the
// inspected window.
type LoopFinding struct {
	Sequence []string `json:"sequence"`
	Window   int      `json:"window"`
}

// DetectLoops inspects the last w transitions (default 5) and reports any
// subsequence of screens (length >= 2) that occurs at least twice.
func (c *Checker) DetectLoops(w int) []LoopFinding {
	if w <= 0 {
		w = defaultLoopWindow
	}
	c.mu.Lock()
	hist := c.history
	if len(hist) > w {
		hist = hist[len(hist)-w:]
	}
	screens := make([]string, 0, len(hist)+1)
	for i, r := range hist {
		if i == 0 {
			screens = append(screens, r.From)
		}
		screens = append(screens, r.To)
	}
	c.mu.Unlock()

	seen := map[string]bool{}
	var findings []LoopFinding
	reported := map[string]bool{}
	// A length-n subsequence can repeat, with overlap, as soon as the
	// window holds n+1 screens (e.g. A,A,A repeats "A,A" at offsets 0
	// and 1), so the upper bound is len(screens)-1, not len(screens)/2.
	for length := 2; length <= len(screens)-1; length++ {
		for i := 0; i+length <= len(screens); i++ {
			sub := screens[i : i+length]
			key := strings.Join(sub, ">")
			if seen[key] {
				if !reported[key] {
					findings = append(findings, LoopFinding{Sequence: append([]string(nil), sub...), Window: w})
					reported[key] = true
				}
				continue
			}
			seen[key] = true
		}
	}
	return findings
}

// ForcedFlowFinding describes an observed path in which every traversed
// non-terminal screen had exactly one allowed outgoing transition.
type ForcedFlowFinding struct {
	Flow   []string `json:"flow"`
	Length int      `json:"length"`
}

// DetectForcedFlow inspects history (requires at least 3 entries) and
// reports a forced-flow finding when every non-terminal screen along the
// observed path has exactly one allowed outgoing transition in the
// template store.
func (c *Checker) DetectForcedFlow() (ForcedFlowFinding, bool) {
	c.mu.Lock()
	hist := append([]Record(nil), c.history...)
	c.mu.Unlock()

	if len(hist) < 3 {
		return ForcedFlowFinding{}, false
	}

	flow := make([]string, 0, len(hist)+1)
	flow = append(flow, hist[0].From)
	for _, r := range hist {
		flow = append(flow, r.To)
	}

	for i := 0; i < len(flow)-1; i++ {
		screen := flow[i]
		tmpl, ok := c.store.Get(screen)
		if !ok {
			return ForcedFlowFinding{}, false
		}
		if countNonEmpty(tmpl.ValidTransitions) != 1 {
			return ForcedFlowFinding{}, false
		}
	}
	return ForcedFlowFinding{Flow: flow, Length: len(flow)}, true
}

func countNonEmpty(ss []string) int {
	n := 0
	for _, s := range ss {
		if s != "" {
			n++
		}
	}
	return n
}

// splitTransition parses a "<from> -> <to>" entry.
func splitTransition(s string) (from, to string, ok bool) {
	idx := strings.Index(s, " -> ")
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+len(" -> "):], true
}

// ValidateTransitionGraph scans every loaded template's valid_transitions
// for syntactic errors and references to unknown screen_ids, returning
// diagnostics keyed by the owning screen_id. Malformed entries do not
// abort loading; they are reported here for the operator.
func ValidateTransitionGraph(templates []*template.Template) map[string][]string {
	known := map[string]bool{}
	for _, t := range templates {
		known[t.ScreenID] = true
	}

	diagnostics := map[string][]string{}
	for _, t := range templates {
		for _, tr := range t.ValidTransitions {
			if tr == "" {
				continue
			}
			from, to, ok := splitTransition(tr)
			if !ok {
				// bare screen_id form
				if !known[tr] {
					diagnostics[t.ScreenID] = append(diagnostics[t.ScreenID],
						fmt.Sprintf("transition target %q is not a loaded screen_id", tr))
				}
				continue
			}
			if from != t.ScreenID {
				diagnostics[t.ScreenID] = append(diagnostics[t.ScreenID],
					fmt.Sprintf("transition %q does not originate from its own screen_id %q", tr, t.ScreenID))
			}
			if !known[to] {
				diagnostics[t.ScreenID] = append(diagnostics[t.ScreenID],
					fmt.Sprintf("transition %q references unknown screen_id %q", tr, to))
			}
		}
	}
	return diagnostics
}
