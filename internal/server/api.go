package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/desertthunder/spotui/internal/playback"
	"github.com/desertthunder/spotui/internal/shared"
)

const maxBody = 1 << 16

type stateResponse struct {
	Node string `json:"node"`
	playback.State
}

type trackRequest struct {
	URI string `json:"uri"`
}

type seekRequest struct {
	PositionMs *int `json:"position_ms"`
}

type volumeRequest struct {
	Volume *float64 `json:"volume"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if s.deps.Library == nil {
		writeError(w, http.StatusNotFound, shared.ErrNotImplemented)
		return
	}
	profile, err := s.deps.Library.CurrentUser(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Library == nil {
		writeError(w, http.StatusNotFound, shared.ErrNotImplemented)
		return
	}

	query := r.URL.Query()
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: limit %q", shared.ErrInvalidArgument, raw))
			return
		}
		limit = n
	}

	tracks, err := s.deps.Library.SearchTracks(r.Context(), query.Get("q"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	state := s.deps.Player.State()
	writeJSON(w, http.StatusOK, stateResponse{Node: state.Node.String(), State: state})
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.deps.Player.Activate(r.Context()))
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r, s.deps.Player.PlayTrack(r.Context(), req.URI))
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.deps.Player.Toggle(r.Context()))
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.PositionMs == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: position_ms", shared.ErrMissingArgument))
		return
	}
	s.respond(w, r, s.deps.Player.Seek(r.Context(), *req.PositionMs))
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Volume == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: volume", shared.ErrMissingArgument))
		return
	}
	s.respond(w, r, s.deps.Player.SetVolume(r.Context(), *req.Volume))
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.deps.Player.Next(r.Context()))
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.deps.Player.Previous(r.Context()))
}

// handleCurrent selects a track; playback follows after the debounce window.
func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.URI == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: uri", shared.ErrMissingArgument))
		return
	}
	s.deps.Player.SetCurrentTrack(req.URI)
	writeJSON(w, http.StatusAccepted, map[string]string{"uri": req.URI})
}

// respond writes the player state after a command, or the mapped error.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.handleState(w, r)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", RequestID(r.Context()))
	}
	writeError(w, status, err)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return false
	}
	return true
}

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, shared.ErrNotSeekable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrDeviceNotReady), errors.Is(err, shared.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrPremiumRequired):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrAuthenticationFailed),
		errors.Is(err, shared.ErrNoRefreshToken):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrDeviceNotFound), errors.Is(err, shared.ErrTrackNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, shared.ErrTransferFailed),
		errors.Is(err, shared.ErrCommandFailed),
		errors.Is(err, shared.ErrAPIRequest):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes v with status and disables caching.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{
		"error":  http.StatusText(status),
		"detail": err.Error(),
	})
}
