package server

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/greywatch/driftwatch/pkg/api"
	"github.com/greywatch/driftwatch/pkg/chain"
)

// handleLogs returns a slice of log entries. Query params: start, end
// (half-open range over the in-memory cache; defaults to the whole
// log), and any other query param is treated as an exact-match search
// criterion against entry data.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.Log == nil {
		api.WriteNotFound(w, "no log configured")
		return
	}

	q := r.URL.Query()
	criteria := map[string]any{}
	for key, values := range q {
		if key == "start" || key == "end" {
			continue
		}
		if len(values) > 0 {
			criteria[key] = values[0]
		}
	}

	var entries []chain.Entry
	if len(criteria) > 0 {
		entries = s.Log.Search(criteria)
	} else {
		start, end := 0, s.Log.Len()
		if v, err := strconv.Atoi(q.Get("start")); err == nil {
			start = v
		}
		if v, err := strconv.Atoi(q.Get("end")); err == nil {
			end = v
		}
		entries = s.Log.GetEntries(start, end)
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

// handleLogsExport renders the whole log in a requested format: json
// (default), csv, or ndjson.
func (s *Server) handleLogsExport(w http.ResponseWriter, r *http.Request) {
	if s.Log == nil {
		api.WriteNotFound(w, "no log configured")
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	entries := s.Log.GetEntries(0, s.Log.Len())

	switch format {
	case "json":
		api.WriteJSON(w, http.StatusOK, entries)
	case "ndjson":
		w.Header().Set("Content-Type", "application/x-ndjson")
		enc := json.NewEncoder(w)
		for _, e := range entries {
			_ = enc.Encode(e)
		}
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"entry_hash", "previous_hash", "timestamp", "data"})
		for _, e := range entries {
			dataJSON, _ := json.Marshal(e.Data)
			_ = cw.Write([]string{e.EntryHash, e.PreviousHash, e.Timestamp, string(dataJSON)})
		}
		cw.Flush()
	default:
		api.WriteUnprocessable(w, fmt.Sprintf("unsupported export format %q", format))
	}
}

// recentDriftEvent is the projection of a drift-event log entry shown
// in /status and /dashboard responses.
type recentDriftEvent struct {
	EventID   string  `json:"event_id,omitempty"`
	DriftType string  `json:"drift_type,omitempty"`
	Severity  string  `json:"severity,omitempty"`
	Timestamp float64 `json:"timestamp"`
}

// recentDriftEvents returns the drift events (capture-received records
// excluded) among the log's last window entries, newest first, along
// with how many of them were critical.
func (s *Server) recentDriftEvents(window int) (events []recentDriftEvent, critical, total int) {
	n := s.Log.Len()
	start := n - window
	if start < 0 {
		start = 0
	}
	entries := s.Log.GetEntries(start, n)

	for _, e := range entries {
		data, ok := e.Data.(map[string]any)
		if !ok {
			continue
		}
		sev, ok := data["severity"].(string)
		if !ok {
			continue // capture-received records carry no severity
		}
		total++
		if sev == "critical" {
			critical++
		}
		ts, _ := data["timestamp"].(float64)
		eventID, _ := data["event_id"].(string)
		driftType, _ := data["drift_type"].(string)
		events = append(events, recentDriftEvent{EventID: eventID, DriftType: driftType, Severity: sev, Timestamp: ts})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Timestamp > events[j].Timestamp })
	return events, critical, total
}

// handleDashboard summarizes the most recent drift events and a
// compliance ratio: the fraction of the last N events, by severity,
// that were not critical.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if s.Log == nil {
		api.WriteJSON(w, http.StatusOK, map[string]any{"recent_events": []any{}, "compliance_ratio": 1.0})
		return
	}

	const window = 50
	events, critical, total := s.recentDriftEvents(window)

	ratio := 1.0
	if total > 0 {
		ratio = float64(total-critical) / float64(total)
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"recent_events":    events,
		"compliance_ratio": ratio,
		"window":           window,
	})
}
