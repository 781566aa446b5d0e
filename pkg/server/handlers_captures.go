package server

import (
	"encoding/json"
	"net/http"

	"github.com/greywatch/driftwatch/pkg/api"
	"github.com/greywatch/driftwatch/pkg/canon"
	"github.com/greywatch/driftwatch/pkg/diff"
	"github.com/greywatch/driftwatch/pkg/drift"
	"github.com/greywatch/driftwatch/pkg/match"
	"github.com/greywatch/driftwatch/pkg/signature"
	"github.com/greywatch/driftwatch/pkg/transition"
)

// captureResponse is the full record of what a single capture produced:
// its signature, the best-matching template (if any), any diff against
// the screen's last accepted tree, and the drift events that were
// appended to the log as a result.
type captureResponse struct {
	ScreenID   string         `json:"screen_id,omitempty"`
	MatchScore float64        `json:"match_score"`
	Matched    bool           `json:"matched"`
	Signature  map[string]any `json:"signature"`
	Diff       *diff.Result   `json:"diff,omitempty"`
	Events     []string       `json:"event_ids"`
}

// handleCapture normalises a raw capture, signs it, matches it against
// the loaded templates, diffs it against the screen's last accepted
// baseline whenever a template matched and a baseline exists (a capture
// that matches no template is not diffed), validates any declared transition,
// runs the pattern-rule engine over the resulting history, and persists
// every drift finding plus a capture-received record to the audit log.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		api.WriteDecodeError(w, err)
		return
	}

	fromScreen, _ := raw["from_screen"].(string)
	timestamp := s.Clock().Unix()
	if ts, ok := raw["timestamp"].(float64); ok {
		timestamp = int64(ts)
	}

	tree := canon.Normalize(raw)
	sig, err := signatureOf(tree)
	if err != nil {
		api.WriteInternal(w, "failed to derive signature: "+err.Error())
		return
	}

	resp := captureResponse{Signature: sig, Events: []string{}}

	best, matched := match.FindBestMatch(tree, s.Templates.All(), MatchThreshold)
	resp.Matched = matched
	if matched {
		resp.ScreenID = best.Template.ScreenID
		resp.MatchScore = best.Score
	}

	var events []*drift.Event

	if matched {
		if baseline, hasBaseline := s.baselineFor(resp.ScreenID); hasBaseline {
			result := diff.Diff(baseline, tree)
			resp.Diff = &result
			if diff.HasSignificantChanges(result, DiffThreshold) {
				events = append(events, drift.NewLayoutDrift(resp.ScreenID, result.Similarity, diffSummary(result), float64(timestamp)))
			}
		}
		s.setBaseline(resp.ScreenID, tree)

		if fromScreen != "" && fromScreen != resp.ScreenID {
			checker := s.checkerFor(fromScreen)
			valid, expected := checker.ValidateByID(fromScreen, resp.ScreenID)
			checker.Record(fromScreen, resp.ScreenID, float64(timestamp))
			if !valid {
				events = append(events, drift.NewSequenceDrift(fromScreen+" -> "+resp.ScreenID, expected, float64(timestamp)))
			}
			events = append(events, s.detectBehaviorPatterns(checker, fromScreen, resp.ScreenID, float64(timestamp))...)
		}
	}

	for _, ev := range events {
		if _, err := s.Log.Append(ev); err != nil {
			api.WriteInternal(w, "failed to append drift event: "+err.Error())
			return
		}
		resp.Events = append(resp.Events, ev.EventID)
	}
	if _, err := s.Log.Append(map[string]any{
		"kind":      "capture",
		"screen_id": resp.ScreenID,
		"matched":   matched,
		"score":     resp.MatchScore,
		"timestamp": timestamp,
	}); err != nil {
		api.WriteInternal(w, "failed to append capture record: "+err.Error())
		return
	}

	api.WriteJSON(w, http.StatusCreated, resp)
}

func signatureOf(tree *canon.Tree) (map[string]any, error) {
	triple, err := signature.Generate(tree)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"full":       triple.Full,
		"structural": triple.Structural,
		"content":    triple.Content,
	}, nil
}

func diffSummary(r diff.Result) map[string]any {
	return map[string]any{
		"added":           len(r.Added),
		"removed":         len(r.Removed),
		"modified":        len(r.Modified),
		"unchanged_count": r.UnchangedCount,
		"similarity":      r.Similarity,
	}
}

// detectBehaviorPatterns feeds the checker's observed history and the
// immediate transition pair through the loop/forced-flow detectors and
// the operator-authored pattern-rule engine, emitting one manipulative
// drift per independent finding.
func (s *Server) detectBehaviorPatterns(checker *transition.Checker, from, to string, timestamp float64) []*drift.Event {
	var events []*drift.Event
	history := checker.History()
	flow := flowOf(history)

	if loops := checker.DetectLoops(0); len(loops) > 0 {
		for _, l := range loops {
			events = append(events, drift.NewManipulativeDrift("loop", "repeated navigation subsequence detected", l.Sequence, timestamp))
		}
	}
	if finding, ok := checker.DetectForcedFlow(); ok {
		events = append(events, drift.NewManipulativeDrift("forced_flow", "every screen in the observed flow offers exactly one exit", finding.Flow, timestamp))
	}
	if s.Rules != nil {
		for _, m := range s.Rules.Evaluate(history, flow) {
			events = append(events, drift.NewManipulativeDrift(m.Rule, m.Description, flow, timestamp))
		}
	}
	return events
}

func flowOf(history []transition.Record) []string {
	if len(history) == 0 {
		return nil
	}
	flow := make([]string, 0, len(history)+1)
	flow = append(flow, history[0].From)
	for _, rec := range history {
		flow = append(flow, rec.To)
	}
	return flow
}
