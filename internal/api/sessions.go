package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/duckmesh/duckchat/internal/auth"
	"github.com/duckmesh/duckchat/internal/chat"
	"github.com/duckmesh/duckchat/internal/session"
)

const defaultMaxQuestionBytes = 16 << 10

type askRequest struct {
	Question string `json:"question"`
}

func handleCreateSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !sessionsConfigured(deps, w, r) || !authorized(w, r) {
		return
	}
	created, err := deps.Sessions.Create(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_CREATE_FAILED", "failed to create session", true, map[string]any{"details": err.Error()})
		return
	}
	w.Header().Set("Location", "/v1/sessions/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func handleGetSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !sessionsConfigured(deps, w, r) || !authorized(w, r) {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	current, err := deps.Sessions.Get(r.Context(), id)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func handleDeleteSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !sessionsConfigured(deps, w, r) || !authorized(w, r) {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := deps.Sessions.Delete(r.Context(), id); err != nil {
		writeSessionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat service is not configured", false, nil)
		return
	}
	if !authorized(w, r) {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	limit := deps.MaxQuestionBytes
	if limit <= 0 {
		limit = defaultMaxQuestionBytes
	}
	var request askRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "QUESTION_TOO_LARGE", "question body is too large", false, map[string]any{"limit_bytes": limit})
			return
		}
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid turn request body", false, map[string]any{"details": err.Error()})
		return
	}

	result, err := deps.Chat.Ask(r.Context(), id, request.Question)
	switch {
	case errors.Is(err, chat.ErrEmptyQuestion):
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	case errors.Is(err, chat.ErrTurnInProgress):
		writeError(r.Context(), w, http.StatusConflict, "TURN_IN_PROGRESS", err.Error(), true, map[string]any{"session_id": id})
		return
	case err != nil:
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func sessionsConfigured(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session store is not configured", false, nil)
		return false
	}
	return true
}

func authorized(w http.ResponseWriter, r *http.Request) bool {
	if err := auth.RequireRole(r.Context(), auth.RoleChatUser); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return false
	}
	return true
}

func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.PathValue("session"))
	id, err := session.NormalizeID(raw)
	if err != nil {
		writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found", false, map[string]any{"session_id": raw})
		return "", false
	}
	return id, true
}

func writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, session.ErrNotFound) {
		writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found", false, map[string]any{"session_id": r.PathValue("session")})
		return
	}
	writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_STORE_FAILED", "session store request failed", true, map[string]any{"details": err.Error()})
}
