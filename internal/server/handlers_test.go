// ABOUTME: Tests for the HTTP handlers using a stub pipeline
// ABOUTME: Covers validation rejection, signature enforcement, and error-to-status mapping

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadmachine/prospector/internal/auth"
	"github.com/leadmachine/prospector/internal/notify"
	"github.com/leadmachine/prospector/internal/signal"
	"github.com/leadmachine/prospector/internal/store"
	"github.com/leadmachine/prospector/internal/workflow"
)

const signingSecret = "test-signing-secret"

type stubPipeline struct {
	result          *workflow.Result
	signalErr       error
	interactionErr  error
	lastSignal      signal.Payload
	lastInteraction workflow.Interaction
}

func (p *stubPipeline) HandleSignal(ctx context.Context, payload signal.Payload) (*workflow.Result, error) {
	p.lastSignal = payload
	return p.result, p.signalErr
}

func (p *stubPipeline) HandleInteraction(ctx context.Context, in workflow.Interaction) error {
	p.lastInteraction = in
	return p.interactionErr
}

type stubLister struct {
	requests []*store.ApprovalRequest
	err      error
}

func (l *stubLister) ListPending(ctx context.Context) ([]*store.ApprovalRequest, error) {
	return l.requests, l.err
}

func newTestServer(pipeline *stubPipeline, lister *stubLister, tokens auth.TokenVerifier) *Server {
	if lister == nil {
		lister = &stubLister{}
	}
	return New("127.0.0.1:0", pipeline, lister, auth.NewSignatureVerifier(signingSecret), tokens)
}

func TestHandleSignal_OK(t *testing.T) {
	pipeline := &stubPipeline{result: &workflow.Result{Outcome: workflow.OutcomePending, RequestID: "req-1"}}
	srv := newTestServer(pipeline, nil, nil)

	body := `{"company":"Acme","domain":"acme.com","signal_type":"NEW_LANG_FILE","signal_summary":"Added fr.json"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/reporadar", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result workflow.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, workflow.OutcomePending, result.Outcome)
	assert.Equal(t, "req-1", result.RequestID)
	assert.Equal(t, "Acme", pipeline.lastSignal.Company)
}

func TestHandleSignal_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{not json`},
		{"missing company", `{"domain":"acme.com","signal_type":"OPEN_PR","signal_summary":"x"}`},
		{"unknown signal type", `{"company":"Acme","domain":"acme.com","signal_type":"MYSTERY","signal_summary":"x"}`},
		{"bad url", `{"company":"Acme","domain":"acme.com","signal_type":"OPEN_PR","signal_summary":"x","url":"ftp://nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline := &stubPipeline{}
			srv := newTestServer(pipeline, nil, nil)

			req := httptest.NewRequest(http.MethodPost, "/webhook/reporadar", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, pipeline.lastSignal.Company, "rejected payload must not reach the pipeline")
		})
	}
}

func TestHandleSignal_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(&stubPipeline{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/webhook/reporadar", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleSignal_PipelineError(t *testing.T) {
	pipeline := &stubPipeline{signalErr: fmt.Errorf("generating draft: backend down")}
	srv := newTestServer(pipeline, nil, nil)

	body := `{"company":"Acme","domain":"acme.com","signal_type":"OPEN_PR","signal_summary":"x"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/reporadar", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// signedInteraction builds a form-encoded interaction callback with a valid
// signature over the exact raw body.
func signedInteraction(t *testing.T, actionID, requestID string) *http.Request {
	t.Helper()

	payload := fmt.Sprintf(`{"type":"block_actions","user":{"id":"U42"},"channel":{"id":"C123"},"message":{"ts":"1700000000.000100"},"actions":[{"action_id":"%s","value":"%s"}]}`, actionID, requestID)
	body := "payload=" + url.QueryEscape(payload)

	ts := fmt.Sprintf("%d", time.Now().Unix())
	sig := auth.Sign([]byte(signingSecret), ts, []byte(body))

	req := httptest.NewRequest(http.MethodPost, "/slack/interactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", sig)
	return req
}

func TestHandleInteraction_OK(t *testing.T) {
	pipeline := &stubPipeline{}
	srv := newTestServer(pipeline, nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, signedInteraction(t, notify.ActionApprove, "req-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, notify.ActionApprove, pipeline.lastInteraction.Action)
	assert.Equal(t, "req-1", pipeline.lastInteraction.RequestID)
	assert.Equal(t, "C123", pipeline.lastInteraction.ChannelID)
	assert.Equal(t, "1700000000.000100", pipeline.lastInteraction.MessageTS)
	assert.Equal(t, "U42", pipeline.lastInteraction.UserID)
	assert.True(t, pipeline.lastInteraction.Verified)
}

func TestHandleInteraction_BadSignature(t *testing.T) {
	pipeline := &stubPipeline{}
	srv := newTestServer(pipeline, nil, nil)

	req := signedInteraction(t, notify.ActionApprove, "req-1")
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, pipeline.lastInteraction.Action, "unauthenticated event must not reach the pipeline")
}

func TestHandleInteraction_StaleTimestamp(t *testing.T) {
	pipeline := &stubPipeline{}
	srv := newTestServer(pipeline, nil, nil)

	body := "payload=" + url.QueryEscape(`{"actions":[{"action_id":"approve_lead","value":"req-1"}]}`)
	ts := fmt.Sprintf("%d", time.Now().Add(-6*time.Minute).Unix())
	sig := auth.Sign([]byte(signingSecret), ts, []byte(body))

	req := httptest.NewRequest(http.MethodPost, "/slack/interactions", strings.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", sig)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code, "correct signature with stale timestamp must be rejected")
}

func TestHandleInteraction_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"already processed", store.ErrAlreadyProcessed, http.StatusConflict},
		{"never published", store.ErrNotPublished, http.StatusConflict},
		{"not implemented", fmt.Errorf("%w: edit_lead", workflow.ErrNotImplemented), http.StatusNotImplemented},
		{"unknown action", fmt.Errorf("%w: \"x\"", workflow.ErrUnknownAction), http.StatusBadRequest},
		{"commit failure", &workflow.CommitError{RequestID: "req-1", Err: fmt.Errorf("api down")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&stubPipeline{interactionErr: tt.err}, nil, nil)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, signedInteraction(t, notify.ActionApprove, "req-1"))

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHandleInteraction_EnrollWarningStillOK(t *testing.T) {
	srv := newTestServer(&stubPipeline{interactionErr: &workflow.EnrollWarning{
		RequestID: "req-1", ContactID: "crm-1", Err: fmt.Errorf("sequence full"),
	}}, nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, signedInteraction(t, notify.ActionApprove, "req-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "warning")
}

func TestHandleInteraction_NoActions(t *testing.T) {
	srv := newTestServer(&stubPipeline{}, nil, nil)

	body := "payload=" + url.QueryEscape(`{"type":"block_actions","actions":[]}`)
	ts := fmt.Sprintf("%d", time.Now().Unix())
	sig := auth.Sign([]byte(signingSecret), ts, []byte(body))

	req := httptest.NewRequest(http.MethodPost, "/slack/interactions", strings.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", sig)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePending(t *testing.T) {
	lister := &stubLister{requests: []*store.ApprovalRequest{
		{
			ID:             "req-2",
			Company:        "Acme",
			Domain:         "acme.com",
			ContactName:    "Maria Santos",
			ContactEmail:   "maria@acme.com",
			Subject:        "Quick question",
			SignalSummary:  "Added fr.json",
			SlackMessageTS: "1700000000.000100",
			Status:         store.StatusPending,
			CreatedAt:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:            "req-1",
			Company:       "Globex",
			Domain:        "globex.com",
			ContactName:   "Jan Novak",
			SignalSummary: "Added locales/",
			Status:        store.StatusPending,
			CreatedAt:     time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC),
		},
	}}
	srv := newTestServer(&stubPipeline{}, lister, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/pending", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Pending []pendingEntry `json:"pending"`
		Count   int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.True(t, resp.Pending[0].Published)
	assert.False(t, resp.Pending[1].Published, "orphaned untokened record must be visible")
}

func TestHandlePending_RequiresToken(t *testing.T) {
	verifier := auth.NewJWTVerifier([]byte("jwt-secret"))
	srv := newTestServer(&stubPipeline{}, &stubLister{}, verifier)

	req := httptest.NewRequest(http.MethodGet, "/api/pending", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := verifier.Generate("operator", time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/pending", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(&stubPipeline{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
