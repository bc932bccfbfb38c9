package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"scorewatch-backend/lib/dingtalk"
	"scorewatch-backend/services/monitor"
)

// RegisterRoutes mounts the operator API. Accounts are addressed by
// their user hash, never by the raw account number.
func RegisterRoutes(mux *http.ServeMux, svc *monitor.Service) {
	mux.HandleFunc("POST /api/accounts", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Account       string `json:"account"`
			Password      string `json:"password"`
			WebhookUrl    string `json:"webhook_url"`
			WebhookSecret string `json:"webhook_secret"`
		}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		userHash, err := svc.RegisterAccount(r.Context(), monitor.RegisterRequest{
			Account:  req.Account,
			Password: req.Password,
			Webhook: dingtalk.Webhook{
				URL:    req.WebhookUrl,
				Secret: req.WebhookSecret,
			},
		})
		if errors.Is(err, monitor.ErrBadCredentials) ||
			errors.Is(err, monitor.ErrChallengeExhausted) {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, map[string]any{
			"success":   true,
			"user_hash": userHash,
		})
	})

	mux.HandleFunc("GET /api/accounts", func(w http.ResponseWriter, r *http.Request) {
		accounts, err := svc.ListAccounts(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, map[string]any{
			"success":  true,
			"accounts": accounts,
		})
	})

	mux.HandleFunc("POST /api/accounts/{id}/toggle", func(w http.ResponseWriter, r *http.Request) {
		enabled, err := svc.ToggleAccount(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, map[string]any{
			"success": true,
			"enabled": enabled,
		})
	})

	mux.HandleFunc("DELETE /api/accounts/{id}", func(w http.ResponseWriter, r *http.Request) {
		err := svc.DeleteAccount(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, map[string]any{"success": true})
	})

	mux.HandleFunc("POST /api/accounts/{id}/check", func(w http.ResponseWriter, r *http.Request) {
		outcome := svc.RunCycleOne(r.Context(), r.PathValue("id"))
		writeJSON(w, map[string]any{
			"success": true,
			"outcome": outcome,
		})
	})

	mux.HandleFunc("POST /api/check", func(w http.ResponseWriter, r *http.Request) {
		results := svc.RunCycleAll(r.Context())
		writeJSON(w, map[string]any{
			"success": true,
			"results": results,
		})
	})
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Error("could not write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": err.Error(),
	})
}
