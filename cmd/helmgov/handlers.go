package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/helmward/agentgov/pkg/authz"
	"github.com/helmward/agentgov/pkg/config"
	"github.com/helmward/agentgov/pkg/killswitch"
	"github.com/helmward/agentgov/pkg/model"
	"github.com/helmward/agentgov/pkg/observer"
	"github.com/helmward/agentgov/pkg/ratelimit"
	"github.com/helmward/agentgov/pkg/telemetry"
	"github.com/helmward/agentgov/pkg/trust"
)

// governanceServer holds the wiring runServer builds, exposed over HTTP
// for the few operations a live server needs beyond the CLI subcommands.
type governanceServer struct {
	cfg      *config.Config
	store    agentStore
	obsLog   *observer.Log
	limiter  ratelimit.Limiter
	pipeline *trust.Pipeline
	killSw   *killswitch.Switch
	engine   *authz.Engine
	provider *telemetry.Provider
}

type authorizeRequest struct {
	Intent  model.Intent       `json:"intent"`
	Profile model.TrustProfile `json:"profile"`
}

func (s *governanceServer) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx, finish := s.provider.TrackOperation(r.Context(), "authorize",
		telemetry.AuthorizeOperation(req.Intent.AgentID, string(req.Intent.ActionType), "", 0)...)

	decision := s.engine.Authorize(ctx, req.Intent, req.Profile)
	finish(nil)

	_, _ = s.obsLog.Append("authz", "authorize", model.RiskLow, req.Intent.AgentID, "", map[string]any{
		"intent_id": req.Intent.IntentID,
		"permitted": decision.Permitted,
		"reason":    string(decision.DenialReason),
		"at":        time.Now().UTC(),
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(decision)
}
