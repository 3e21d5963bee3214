package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/danthegoodman1/IAMTheService/config"
	"github.com/danthegoodman1/IAMTheService/internal/credentials"
)

// adminStore is the mutable credential store surface the admin API needs.
// The static env-backed store does not implement it, so the admin routes
// are only registered for the badger store.
type adminStore interface {
	credentials.Store
	Put(ctx context.Context, accessKeyID string, secret string) (credentials.Record, error)
	Delete(ctx context.Context, accessKeyID string) error
	List(ctx context.Context) ([]credentials.Record, error)
}

type adminHandler struct {
	store adminStore
	log   zerolog.Logger
	cfg   config.Config
}

type credentialInput struct {
	AccessKeyID string `json:"access_key_id"`
	Secret      string `json:"secret"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// authorize gates admin access by the configured mode. Hybrid accepts
// either a loopback caller or a matching bearer token.
func (h *adminHandler) authorize(r *http.Request) bool {
	loopback := isLoopbackClient(remoteAddrIPString(r.RemoteAddr))
	token := strings.TrimSpace(h.cfg.AdminToken)
	presented := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	tokenOK := token != "" && presented != "" &&
		subtle.ConstantTimeCompare([]byte(token), []byte(presented)) == 1

	switch h.cfg.AdminAccessMode {
	case config.AdminAccessModeLoopback:
		return loopback
	case config.AdminAccessModeToken:
		return tokenOK
	default:
		return loopback || tokenOK
	}
}

func (h *adminHandler) handleCollection(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(r) {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "admin access denied"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		records, err := h.store.List(r.Context())
		if err != nil {
			h.log.Error().Err(err).Msg("list credentials")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"credentials": records})
	case http.MethodPost, http.MethodPut:
		var input credentialInput
		if err := readJSONBody(r, &input); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		record, err := h.store.Put(r.Context(), input.AccessKeyID, input.Secret)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		h.log.Info().Str("access_key_id", record.AccessKeyID).Msg("credential stored")
		writeJSON(w, http.StatusOK, record)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *adminHandler) handleItem(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(r) {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "admin access denied"})
		return
	}

	accessKeyID := strings.TrimPrefix(r.URL.Path, "/api/admin/credentials/")
	if accessKeyID == "" || strings.Contains(accessKeyID, "/") {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown credential path"})
		return
	}

	switch r.Method {
	case http.MethodDelete:
		if err := h.store.Delete(r.Context(), accessKeyID); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		h.log.Info().Str("access_key_id", accessKeyID).Msg("credential deleted")
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "access_key_id": accessKeyID})
	case http.MethodGet:
		if _, err := h.store.Lookup(r.Context(), accessKeyID); err != nil {
			if errors.Is(err, credentials.ErrUnknownCredential) {
				writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown credential"})
				return
			}
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load credential"})
			return
		}
		// The secret itself is never returned.
		writeJSON(w, http.StatusOK, map[string]any{"access_key_id": accessKeyID})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func readJSONBody(r *http.Request, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errors.New("request body is required")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}
