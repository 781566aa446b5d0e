package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/greywatch/driftwatch/pkg/api"
	"github.com/greywatch/driftwatch/pkg/canon"
	"github.com/greywatch/driftwatch/pkg/signature"
	"github.com/greywatch/driftwatch/pkg/template"
)

func (s *Server) handleTemplateList(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]any{"screen_ids": s.Templates.List()})
}

func (s *Server) handleTemplateGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, ok := s.Templates.Get(id)
	if !ok {
		api.WriteNotFound(w, "no template for screen_id "+id)
		return
	}
	api.WriteJSON(w, http.StatusOK, t)
}

// buildTemplateRequest is the body of POST /templates: a capture to build
// a new baseline from, plus the metadata a pure capture doesn't carry.
type buildTemplateRequest struct {
	ScreenID         string             `json:"screen_id"`
	Capture          map[string]any     `json:"capture"`
	RequiredNodes    []string           `json:"required_nodes,omitempty"`
	ValidTransitions []string           `json:"valid_transitions,omitempty"`
	Metadata         *template.Metadata `json:"metadata,omitempty"`
}

func (s *Server) handleTemplateCreate(w http.ResponseWriter, r *http.Request) {
	var req buildTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteDecodeError(w, err)
		return
	}
	if req.ScreenID == "" {
		api.WriteUnprocessable(w, "screen_id is required")
		return
	}

	tree := canon.Normalize(req.Capture)
	sig, err := signature.Generate(tree)
	if err != nil {
		api.WriteInternal(w, "failed to derive structure signature: "+err.Error())
		return
	}

	t := &template.Template{
		ScreenID:           req.ScreenID,
		RequiredNodes:      req.RequiredNodes,
		StructureSignature: sig.Structural,
		ValidTransitions:   req.ValidTransitions,
		Metadata:           req.Metadata,
	}
	if errs := template.ValidateWithErrors(t); len(errs) > 0 {
		api.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": errs})
		return
	}

	data, err := yaml.Marshal(t)
	if err != nil {
		api.WriteInternal(w, "failed to encode template: "+err.Error())
		return
	}
	path := filepath.Join(s.Templates.Dir(), t.ScreenID+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		api.WriteInternal(w, "failed to persist template: "+err.Error())
		return
	}
	if _, err := s.Templates.Reload(); err != nil {
		api.WriteInternal(w, "template written but reload failed: "+err.Error())
		return
	}
	s.setBaseline(t.ScreenID, tree)

	api.WriteJSON(w, http.StatusCreated, t)
}
