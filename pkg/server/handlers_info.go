package server

import (
	"net/http"

	"github.com/greywatch/driftwatch/pkg/api"
)

const serviceName = "driftwatch"

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"service": serviceName,
		"uptime_s": s.Clock().Sub(s.startedAt).Seconds(),
		"endpoints": []string{
			"/health", "/metrics", "/status",
			"/templates", "/templates/{id}",
			"/captures", "/logs", "/logs/export", "/dashboard",
			"/auth/token", "/auth/validate", "/auth/keys",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Health == nil {
		api.WriteNotFound(w, "health checks disabled")
		return
	}
	report := s.Health.Check(r.Context())
	status := http.StatusOK
	if report.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	api.WriteJSON(w, status, report)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.Metrics == nil {
		api.WriteNotFound(w, "metrics disabled")
		return
	}
	api.WriteJSON(w, http.StatusOK, s.Metrics.Snapshot())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"templates_loaded": 0,
	}
	if s.Templates != nil {
		body["templates_loaded"] = s.Templates.Count()
	}
	if s.Log != nil {
		ok, badIndex := s.Log.VerifyIntegrity()
		body["log_length"] = s.Log.Len()
		body["integrity_ok"] = ok
		if !ok {
			body["integrity_bad_index"] = badIndex
		}
		body["load_error"] = s.Log.LoadError()

		const recentWindow = 10
		events, _, _ := s.recentDriftEvents(recentWindow)
		body["recent_events"] = events
	}
	api.WriteJSON(w, http.StatusOK, body)
}
