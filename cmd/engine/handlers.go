package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"vote-escrow-go/internal/api"
	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/store"

	"go.uber.org/zap"
)

// lockViewer serves cached lock views
type lockViewer interface {
	LockView(ctx context.Context, owner string) (models.LockView, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusServiceUnavailable
	if store.IsValidation(err) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusHandler evaluates prerequisites: GET /status?account=&min_power=&require_warmup=
func statusHandler(service *api.LockService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		requireWarmup := true
		if raw := query.Get("require_warmup"); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid require_warmup"})
				return
			}
			requireWarmup = parsed
		}

		status, err := service.Status(r.Context(), api.StatusRequest{
			Account:               query.Get("account"),
			MinimumPower:          query.Get("min_power"),
			RequireWarmupComplete: requireWarmup,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	})
}

// locksHandler serves the refreshed view for GET /locks?owner=
func locksHandler(viewer lockViewer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.URL.Query().Get("owner")
		if owner == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "owner is required"})
			return
		}
		view, err := viewer.LockView(r.Context(), owner)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	})
}

func healthHandler(service *api.LockService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := service.HealthCheck(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
