package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"support-chat-backend/internal/session"
	"support-chat-backend/internal/types"
)

// GET /api/session
// Returns { sessionId, authenticated, userId?, source?, expiresAt? }
func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	sid := s.getOrCreateSessionID(r, w, "")
	auth, src, err := s.sessions.Lookup(session.WithID(r.Context(), sid))
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sid).Msg("session lookup failed")
		s.writeError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}

	resp := types.SessionStatus{SessionID: sid}
	if auth != nil {
		resp.Authenticated = true
		resp.UserID = auth.UserID
		resp.Source = string(src)
		if !auth.ExpiresAt.IsZero() {
			resp.ExpiresAt = auth.ExpiresAt.UTC().Format(time.RFC3339)
		}
	}
	w.Header().Set("X-Session-Id", sid)
	writeJSON(w, http.StatusOK, resp)
}

// maxSessionLifetime caps the expiresIn a client may request.
const maxSessionLifetime = 30 * 24 * time.Hour

// POST /api/session { userId, accessToken, expiresIn? }
// Binds a signed-in user to the caller's chat session.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req types.SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.AccessToken) == "" {
		s.writeError(w, http.StatusBadRequest, "userId and accessToken are required")
		return
	}
	if req.ExpiresIn < 0 {
		s.writeError(w, http.StatusBadRequest, "expiresIn must not be negative")
		return
	}

	expiresIn := maxSessionLifetime
	if req.ExpiresIn < int(maxSessionLifetime/time.Second) {
		expiresIn = time.Duration(req.ExpiresIn) * time.Second
	}

	sid := s.getOrCreateSessionID(r, w, "")
	auth, err := s.sessions.SignIn(r.Context(), sid, req.UserID, req.AccessToken, expiresIn)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sid).Msg("sign in failed")
		s.writeError(w, http.StatusInternalServerError, "failed to save session")
		return
	}

	resp := types.SessionStatus{SessionID: sid, Authenticated: true, UserID: auth.UserID}
	if !auth.ExpiresAt.IsZero() {
		resp.ExpiresAt = auth.ExpiresAt.UTC().Format(time.RFC3339)
	}
	w.Header().Set("X-Session-Id", sid)
	writeJSON(w, http.StatusOK, resp)
}

// DELETE /api/session
// Signs out and forgets the conversation.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	sid := getSessionID(r)
	if sid == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := s.sessions.SignOut(r.Context(), sid); err != nil {
		s.log.Error().Err(err).Str("session_id", sid).Msg("sign out failed")
		s.writeError(w, http.StatusInternalServerError, "failed to sign out")
		return
	}
	s.memory.Reset(sid)
	ClearSessionCookie(w, r)
	w.WriteHeader(http.StatusNoContent)
}
