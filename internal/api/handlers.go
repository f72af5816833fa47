// Package api provides the session endpoint handlers.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/wayfarer-app/wayfarer/internal/models"
	"github.com/wayfarer-app/wayfarer/internal/session"
)

// createSessionRequest is the body for POST /v1/sessions.
type createSessionRequest struct {
	Token string `json:"token"`
}

// createSessionResponse returns the minted session ID.
type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

// voiceRequest is the body for the voice-step completion event.
type voiceRequest struct {
	Score  int    `json:"score"`
	Reward string `json:"reward,omitempty"`
}

// nicknameRequest is the body for the nickname-step completion event.
type nicknameRequest struct {
	Nickname string `json:"nickname"`
}

// locationRequest is the body for the location permission result.
type locationRequest struct {
	Denied      bool                `json:"denied"`
	Coordinates *models.Coordinates `json:"coordinates,omitempty"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]int{"sessions": s.manager.Count()}))
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Debug("createSessionHandler invalid body", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid request body"))
		return
	}
	sess, err := s.manager.Create(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, models.ErrEmptyToken) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("createSessionHandler failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to create session"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.Success(createSessionResponse{SessionID: sess.ID}))
}

// lookup fetches the session from the path, writing a 404 when missing.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := mux.Vars(r)["id"]
	sess, ok := s.manager.Get(id)
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("session not found"))
		return nil, false
	}
	return sess, true
}

func (s *Server) screenHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess.Screen()))
}

func (s *Server) transitionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess.TransitionState()))
}

func (s *Server) nicknameHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req nicknameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid request body"))
		return
	}
	if err := sess.CompleteNickname(req.Nickname); err != nil {
		writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess.Screen()))
}

func (s *Server) voiceHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req voiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid request body"))
		return
	}
	if err := sess.CompleteVoice(models.VoiceResult{Score: req.Score, Reward: req.Reward}); err != nil {
		writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess.Screen()))
}

func (s *Server) goHomeHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := sess.GoHome(r.Context()); err != nil {
		if errors.Is(err, models.ErrTransitionActive) {
			writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
			return
		}
		if errors.Is(err, models.ErrInvalidTransition) {
			writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
			return
		}
		// Write failures propagate so the client can retry the action; the
		// session lock has already been released by the flow itself.
		slog.Error("goHomeHandler transition failed", "error", err)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("transition failed, please retry"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess.Screen()))
}

func (s *Server) locationHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid request body"))
		return
	}
	if req.Denied || req.Coordinates == nil {
		slog.Info("locationHandler permission denied, session stays global", "sessionID", sess.ID)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("location unavailable, using global map", sess.Screen()))
		return
	}
	sess.SetLocation(req.Coordinates)
	writeJSONResponse(w, http.StatusOK, models.Success(sess.Screen()))
}

func (s *Server) terminateSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.manager.Terminate(id); err != nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("session not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("session terminated", nil))
}
