package proxy

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/aegis-shield/internal/config"
	"github.com/raaihank/aegis-shield/internal/privacy"
	"github.com/raaihank/aegis-shield/internal/semantic"
	"github.com/raaihank/aegis-shield/internal/shield"
)

// textRequest is the body of every /v1 text endpoint
type textRequest struct {
	Text        string `json:"text"`
	SessionID   string `json:"session_id,omitempty"`
	UseSemantic bool   `json:"use_semantic,omitempty"`
	Ephemeral   bool   `json:"ephemeral,omitempty"`
}

type textResponse struct {
	Text    string `json:"text"`
	Warning string `json:"warning,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// handleDetect returns matches whose startIndex/endIndex are byte offsets into
// the UTF-8 encoding of the returned text, as announced by offsetUnit.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.shield.Detect(r.Context(), req.Text, req.UseSemantic))
}

func (s *Server) handleScrub(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}

	res, err := s.shield.Scrub(r.Context(), shield.ScrubRequest{
		SessionID:   req.SessionID,
		Text:        req.Text,
		UseSemantic: req.UseSemantic,
		Ephemeral:   req.Ephemeral,
		Origin:      "api",
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}

	restored, err := s.shield.Restore(r.Context(), req.SessionID, req.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, textResponse{Text: restored})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary": s.shield.Summary(r.Context(), req.Text),
	})
}

func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}

	res, err := s.shield.Scrub(r.Context(), shield.ScrubRequest{
		Text:        req.Text,
		UseSemantic: req.UseSemantic,
		Ephemeral:   true,
		Origin:      "redact",
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, textResponse{Text: res.Scrubbed, Warning: res.Warning})
}

func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	if err := s.shield.Forget(r.Context(), mux.Vars(r)["session"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePreload loads the semantic backend and returns the progress it reported
func (s *Server) handlePreload(w http.ResponseWriter, r *http.Request) {
	var stages []semantic.Progress
	err := s.shield.PreloadSemantic(r.Context(), func(p semantic.Progress) {
		stages = append(stages, p)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"progress": stages})
}

// decode reads a textRequest, answering 400 itself on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request) (*textRequest, bool) {
	body := http.MaxBytesReader(w, r.Body, s.bodyLimit())
	defer body.Close()

	var req textRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body: "+err.Error())
		return nil, false
	}
	return &req, true
}

// fail maps service errors onto HTTP status codes
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shield.ErrEmptyText):
		writeError(w, http.StatusBadRequest, "empty_text", err.Error())
	case errors.Is(err, privacy.ErrNothingToRestore):
		writeError(w, http.StatusConflict, "nothing_to_restore", err.Error())
	case errors.Is(err, shield.ErrSemanticUnavailable):
		writeError(w, http.StatusNotImplemented, "semantic_unavailable", err.Error())
	case isSemanticError(err):
		writeError(w, http.StatusServiceUnavailable, "semantic_failed", err.Error())
	default:
		s.requestLogger(r).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (s *Server) bodyLimit() int64 {
	if s.config.Server.MaxBodyBytes > 0 {
		return s.config.Server.MaxBodyBytes
	}
	return config.GetDefaults().Server.MaxBodyBytes
}

func isSemanticError(err error) bool {
	var semErr *semantic.Error
	return errors.As(err, &semErr)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: strings.TrimSpace(message), Code: code})
}
