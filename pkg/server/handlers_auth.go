package server

import (
	"encoding/json"
	"net/http"

	"github.com/greywatch/driftwatch/pkg/api"
	"github.com/greywatch/driftwatch/pkg/auth"
)

// issueKeyRequest is the body of POST /auth/token.
type issueKeyRequest struct {
	Name        string    `json:"name"`
	Role        auth.Role `json:"role"`
	Description string    `json:"description,omitempty"`
}

// issueKeyResponse carries the plaintext key exactly once, alongside the
// persisted (redacted) record.
type issueKeyResponse struct {
	Key    string         `json:"key"`
	Record auth.KeyRecord `json:"record"`
}

func (s *Server) handleIssueKey(w http.ResponseWriter, r *http.Request) {
	var req issueKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteDecodeError(w, err)
		return
	}
	if req.Name == "" {
		api.WriteUnprocessable(w, "name is required")
		return
	}
	if !auth.ValidRole(req.Role) {
		api.WriteUnprocessable(w, "role must be one of admin, operator, readonly")
		return
	}

	plaintext, record, err := s.Keys.CreateKey(req.Name, req.Role, req.Description)
	if err != nil {
		api.WriteInternal(w, "failed to create key: "+err.Error())
		return
	}
	api.WriteJSON(w, http.StatusCreated, issueKeyResponse{Key: plaintext, Record: record.Redacted()})
}

// validateKeyResponse reflects the caller's own authenticated identity.
type validateKeyResponse struct {
	Name        string           `json:"name"`
	Role        auth.Role        `json:"role"`
	Permissions []auth.Permission `json:"permissions"`
}

func (s *Server) handleValidateKey(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		api.WriteUnauthorized(w, "missing or invalid API key")
		return
	}
	api.WriteJSON(w, http.StatusOK, validateKeyResponse{
		Name:        p.Name,
		Role:        p.Role,
		Permissions: auth.PermissionsFor(p.Role),
	})
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]any{"keys": s.Keys.List()})
}
