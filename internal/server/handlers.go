// ABOUTME: HTTP handlers for signal ingestion, interaction callbacks, and the pending list
// ABOUTME: Maps workflow errors onto status codes; interaction bodies are verified raw

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/leadmachine/prospector/internal/signal"
	"github.com/leadmachine/prospector/internal/store"
	"github.com/leadmachine/prospector/internal/workflow"
)

// maxBodySize caps inbound request bodies at 1 MiB.
const maxBodySize = 1 << 20

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encoding response failed", "error", err)
	}
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleSignal accepts an inbound signal payload, validates it strictly, and
// runs it through the pipeline.
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload signal.Payload
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&payload); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := payload.Validate(); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.pipeline.HandleSignal(r.Context(), payload)
	if err != nil {
		s.logger.Error("signal processing failed",
			"company", payload.Company, "domain", payload.Domain, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "signal processing failed")
		return
	}

	s.sendJSON(w, http.StatusOK, result)
}

// interactionPayload is the wire shape of an interaction callback's payload
// field. Only the parts the workflow needs are decoded.
type interactionPayload struct {
	Type string `json:"type"`
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
	Message struct {
		TS string `json:"ts"`
	} `json:"message"`
	Actions []struct {
		ActionID string `json:"action_id"`
		Value    string `json:"value"`
	} `json:"actions"`
}

// handleInteraction authenticates and applies a reviewer decision. The
// signature covers the raw body, so the body is read before any parsing and
// verification happens before any state is touched.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "reading body failed")
		return
	}

	timestamp := r.Header.Get("X-Slack-Request-Timestamp")
	sig := r.Header.Get("X-Slack-Signature")
	if err := s.signatures.Verify(timestamp, sig, body); err != nil {
		s.logger.Warn("rejected interaction", "error", err)
		s.sendJSONError(w, http.StatusUnauthorized, "signature verification failed")
		return
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	var payload interactionPayload
	if err := json.Unmarshal([]byte(form.Get("payload")), &payload); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid payload JSON")
		return
	}
	if len(payload.Actions) == 0 {
		s.sendJSONError(w, http.StatusBadRequest, "no actions in payload")
		return
	}
	action := payload.Actions[0]

	err = s.pipeline.HandleInteraction(r.Context(), workflow.Interaction{
		Action:    action.ActionID,
		RequestID: action.Value,
		ChannelID: payload.Channel.ID,
		MessageTS: payload.Message.TS,
		UserID:    payload.User.ID,
		Verified:  true,
	})

	var warn *workflow.EnrollWarning
	switch {
	case err == nil:
		s.sendJSON(w, http.StatusOK, map[string]bool{"ok": true})
	case errors.As(err, &warn):
		// Approval committed; only the enrollment needs attention.
		s.sendJSON(w, http.StatusOK, map[string]string{"warning": warn.Error()})
	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusNotFound, "request not found")
	case errors.Is(err, store.ErrAlreadyProcessed):
		s.sendJSONError(w, http.StatusConflict, "request already processed")
	case errors.Is(err, store.ErrNotPublished):
		s.sendJSONError(w, http.StatusConflict, "approval card not published")
	case errors.Is(err, workflow.ErrNotImplemented):
		s.sendJSONError(w, http.StatusNotImplemented, "action not implemented")
	case errors.Is(err, workflow.ErrUnknownAction):
		s.sendJSONError(w, http.StatusBadRequest, "unknown action")
	default:
		s.logger.Error("interaction processing failed",
			"action", action.ActionID, "request_id", action.Value, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "interaction processing failed")
	}
}

// pendingEntry is the operator API view of a pending approval request.
type pendingEntry struct {
	ID            string `json:"id"`
	Company       string `json:"company"`
	Domain        string `json:"domain"`
	ContactName   string `json:"contact_name"`
	ContactEmail  string `json:"contact_email"`
	Subject       string `json:"subject"`
	SignalSummary string `json:"signal_summary"`
	Published     bool   `json:"published"`
	CreatedAt     string `json:"created_at"`
}

// handlePending lists pending approval requests, newest first. Published is
// false for orphaned records whose card publish failed.
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	requests, err := s.pending.ListPending(r.Context())
	if err != nil {
		s.logger.Error("listing pending requests failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "listing pending requests failed")
		return
	}

	entries := make([]pendingEntry, 0, len(requests))
	for _, req := range requests {
		entries = append(entries, pendingEntry{
			ID:            req.ID,
			Company:       req.Company,
			Domain:        req.Domain,
			ContactName:   req.ContactName,
			ContactEmail:  req.ContactEmail,
			Subject:       req.Subject,
			SignalSummary: req.SignalSummary,
			Published:     req.SlackMessageTS != "",
			CreatedAt:     req.CreatedAt.Format(time.RFC3339),
		})
	}

	s.sendJSON(w, http.StatusOK, map[string]any{
		"pending": entries,
		"count":   len(entries),
	})
}
