package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/dativo-io/claimpilot/internal/invoke"
	"github.com/dativo-io/claimpilot/internal/tenant"
)

const runTimeout = 10 * time.Minute

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	}
	if r.URL.Query().Get("detail") == "true" {
		components := map[string]string{
			"invocation_store": "ok",
		}
		if s.cache == nil {
			components["ai_cache"] = "disabled"
		} else {
			components["ai_cache"] = "ok"
		}
		if s.registry == nil {
			components["org_registry"] = "disabled"
		} else {
			components["org_registry"] = "ok"
		}
		resp["components"] = components
	}
	writeJSON(w, http.StatusOK, resp)
}

type runRequest struct {
	OrgID string `json:"org_id"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	claimID := chi.URLParam(r, "claimID")
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return
	}
	if req.OrgID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "org_id is required")
		return
	}
	if err := s.allow(req.OrgID); err != nil {
		s.writeRateError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), runTimeout)
	defer cancel()

	result := s.engine.Run(ctx, claimID, req.OrgID)
	if !result.Success {
		log.Error().Strs("errors", result.Errors).Str("claim_id", claimID).Msg("automation_run_error")
		writeJSON(w, http.StatusInternalServerError, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if err := s.allow(orgID); err != nil {
		s.writeRateError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), runTimeout)
	defer cancel()

	results, err := s.engine.RunBatch(ctx, orgID)
	if err != nil {
		log.Error().Err(err).Str("org_id", orgID).Msg("scan_error")
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	succeeded, failed := 0, 0
	for _, res := range results {
		if res.Success {
			succeeded++
		} else {
			failed++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"org_id":         orgID,
		"claims_scanned": len(results),
		"claims_failed":  failed,
		"claims_ok":      succeeded,
		"results":        results,
	})
}

func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	daily, err := s.invokes.CostTotal(r.Context(), orgID, dayStart, dayEnd)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	monthly, err := s.invokes.CostTotal(r.Context(), orgID, monthStart, monthEnd)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	byRoute, err := s.invokes.CostByRoute(r.Context(), orgID, monthStart, monthEnd)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	out := map[string]interface{}{
		"org_id":   orgID,
		"daily":    daily,
		"monthly":  monthly,
		"by_route": byRoute,
	}
	if s.registry != nil {
		if remaining, err := s.registry.RemainingBalance(r.Context(), orgID); err == nil {
			out["remaining_balance"] = remaining
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, "not_found", "cache not configured")
		return
	}
	stats := s.cache.Stats(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"hits":     stats.Hits,
		"sets":     stats.Sets,
		"hit_rate": stats.HitRate(),
	})
}

func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, "not_found", "cache not configured")
		return
	}
	route := chi.URLParam(r, "route")
	removed := s.cache.InvalidateByPrefix(r.Context(), invoke.RoutePrefix(route))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"route":   route,
		"removed": removed,
	})
}

// allow checks the org rate limiter when a registry is configured.
func (s *Server) allow(orgID string) error {
	if s.registry == nil {
		return nil
	}
	return s.registry.Allow(orgID)
}

func (s *Server) writeRateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tenant.ErrOrgNotFound):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, tenant.ErrRateLimitExceeded):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate_limited", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
