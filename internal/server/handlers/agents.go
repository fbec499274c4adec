package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/commonplacehq/commonplace/internal/memory"
	"github.com/commonplacehq/commonplace/pkg/api"
)

// AgentsHandler handles the agent registry endpoints.
type AgentsHandler struct {
	Store memory.Store
}

// Register handles POST /v1/agents/register.
func (h *AgentsHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if req.Name == "" {
		writeJSON(w, fail("name is required"))
		return
	}

	rec, err := h.Store.RegisterAgent(r.Context(), memory.AgentRecord{
		ID:          uuid.New().String(),
		Name:        req.Name,
		DisplayName: req.DisplayName,
		FactsURL:    req.FactsURL,
		Mode:        req.Mode,
	})
	if errors.Is(err, memory.ErrAgentExists) {
		writeJSON(w, fail("agent "+req.Name+" is already registered"))
		return
	}
	if err != nil {
		writeJSON(w, fail("register failed: "+err.Error()))
		return
	}

	writeJSON(w, api.RegisterAgentResponse{Success: true, Agent: toAPIAgent(rec)})
}

// Deregister handles DELETE /v1/agents/{name}.
func (h *AgentsHandler) Deregister(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	err := h.Store.DeregisterAgent(r.Context(), name)
	if errors.Is(err, memory.ErrNotFound) {
		writeJSON(w, fail("no agent named "+name))
		return
	}
	if err != nil {
		writeJSON(w, fail("deregister failed: "+err.Error()))
		return
	}

	writeJSON(w, api.MessageResponse{Success: true, Message: "deregistered " + name})
}

// List handles GET /v1/agents.
func (h *AgentsHandler) List(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Store.ListAgents(r.Context())
	if err != nil {
		writeJSON(w, fail("list failed: "+err.Error()))
		return
	}

	out := make([]api.AgentRecord, len(agents))
	for i, a := range agents {
		out[i] = toAPIAgent(a)
	}

	writeJSON(w, api.ListAgentsResponse{Success: true, Count: len(out), Agents: out})
}

func toAPIAgent(a memory.AgentRecord) api.AgentRecord {
	return api.AgentRecord{
		ID:            a.ID,
		Name:          a.Name,
		DisplayName:   a.DisplayName,
		FactsURL:      a.FactsURL,
		Mode:          a.Mode,
		RegisteredAt:  a.RegisteredAt,
		Contributions: a.Contributions,
	}
}
