package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dshills/loupe/internal/session"
)

const maxBody = 8 << 20

type handler struct {
	sess   *session.Session
	logger *slog.Logger
}

type reviewRequest struct {
	Prompt    string `json:"prompt"`
	FileName  string `json:"file_name"`
	Document  string `json:"document"`
	Selection string `json:"selection"`
}

type reviewResponse struct {
	Text      string `json:"text"`
	Error     string `json:"error,omitempty"`
	Target    string `json:"target,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type valueRequest struct {
	Value string `json:"value"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *handler) review(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decode(w, r, &req) {
		return
	}
	src := session.Source{FileName: req.FileName, Document: req.Document, Selection: req.Selection}
	if src.Text() == "" {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "document or selection is required"})
		return
	}

	if wantsStream(r) {
		h.reviewStream(w, r, req.Prompt, src)
		return
	}

	start := time.Now()
	res := h.sess.Review(r.Context(), src, req.Prompt, nil)
	resp := reviewResponse{
		Text:      res.Text,
		Target:    res.Selector.String(),
		ElapsedMs: time.Since(start).Milliseconds(),
	}
	status := http.StatusOK
	if !res.OK() {
		resp.Error = res.Err.Error()
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

func (h *handler) reviewStream(w http.ResponseWriter, r *http.Request, prompt string, src session.Source) {
	sse, ok := newEventWriter(w)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "streaming unsupported"})
		return
	}

	start := time.Now()
	res := h.sess.Review(r.Context(), src, prompt, func(fragment string) {
		if err := sse.send("fragment", map[string]string{"text": fragment}); err != nil {
			h.logger.Debug("client went away", "error", err)
		}
	})
	if !res.OK() {
		_ = sse.send("error", messageResponse{Message: res.Text})
	}
	_ = sse.send("done", map[string]any{
		"ok":         res.OK(),
		"target":     res.Selector.String(),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
}

func (h *handler) settings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.Settings().Redacted())
}

func (h *handler) setAPIKey(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if !decode(w, r, &req) {
		return
	}
	h.settingsResult(w, h.sess.SetAPIKey(r.Context(), req.Value), "API Key updated successfully!")
}

func (h *handler) setAssistant(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if !decode(w, r, &req) {
		return
	}
	h.settingsResult(w, h.sess.SetAssistantID(r.Context(), req.Value), "Assistant ID updated successfully!")
}

func (h *handler) setOrganization(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if !decode(w, r, &req) {
		return
	}
	h.sess.SetOrganization(req.Value)
	h.settingsResult(w, nil, "Organization updated successfully!")
}

func (h *handler) setModel(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if !decode(w, r, &req) {
		return
	}
	h.settingsResult(w, h.sess.SetModel(req.Value), "Model updated successfully!")
}

func (h *handler) settingsResult(w http.ResponseWriter, err error, success string) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, messageResponse{Message: success})
	case errors.Is(err, session.ErrEmptyValue):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: err.Error()})
	case errors.Is(err, session.ErrInvalidAPIKey), errors.Is(err, session.ErrInvalidAssistant):
		writeJSON(w, http.StatusUnprocessableEntity, messageResponse{Message: err.Error()})
	default:
		h.logger.Error("settings update failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: err.Error()})
	}
}

// wantsStream reports whether the client asked for server-sent events.
func wantsStream(r *http.Request) bool {
	if v := r.URL.Query().Get("stream"); v == "1" || v == "true" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
