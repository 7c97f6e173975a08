// ABOUTME: Slack Web API client for posting and updating approval cards
// ABOUTME: Builds Block Kit cards with approve/edit/regenerate/skip buttons

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/leadmachine/prospector/internal/store"
)

const slackBaseURL = "https://slack.com/api"

// previewMaxLen caps the email body preview shown on the card.
const previewMaxLen = 500

// SlackNotifier implements Notifier against the Slack Web API.
type SlackNotifier struct {
	baseURL    string
	botToken   string
	channelID  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackNotifier creates a notifier posting to the given channel.
func NewSlackNotifier(botToken, channelID string) *SlackNotifier {
	return &SlackNotifier{
		baseURL:    slackBaseURL,
		botToken:   botToken,
		channelID:  channelID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default().With("component", "notify"),
	}
}

// block is a minimal Block Kit block. Only the fields the cards use.
type block struct {
	Type     string    `json:"type"`
	Text     *text     `json:"text,omitempty"`
	Fields   []text    `json:"fields,omitempty"`
	Elements []element `json:"elements,omitempty"`
}

type text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type element struct {
	Type     string `json:"type"`
	Text     *text  `json:"text,omitempty"`
	Style    string `json:"style,omitempty"`
	ActionID string `json:"action_id,omitempty"`
	Value    string `json:"value,omitempty"`
}

// apiResponse is the common Slack Web API envelope.
type apiResponse struct {
	OK    bool   `json:"ok"`
	TS    string `json:"ts"`
	Error string `json:"error"`
}

// call posts a JSON payload to a Slack Web API method.
func (n *SlackNotifier) call(ctx context.Context, method string, payload any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+n.botToken)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", method, err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("%s failed: %s", method, parsed.Error)
	}
	return &parsed, nil
}

// PostApprovalCard publishes the approval card and returns the message
// timestamp, which serves as the correlation token for later updates.
func (n *SlackNotifier) PostApprovalCard(ctx context.Context, req *store.ApprovalRequest) (string, error) {
	payload := map[string]any{
		"channel": n.channelID,
		"blocks":  buildApprovalBlocks(req),
		"text":    fmt.Sprintf("New lead approval request: %s", req.Company),
	}

	resp, err := n.call(ctx, "chat.postMessage", payload)
	if err != nil {
		n.logger.Error("failed to post approval card", "request_id", req.ID, "error", err)
		return "", err
	}

	n.logger.Info("posted approval card", "request_id", req.ID, "ts", resp.TS)
	return resp.TS, nil
}

// UpdateCardApproved replaces the card with an approved summary.
func (n *SlackNotifier) UpdateCardApproved(ctx context.Context, channel, ts string, req *store.ApprovalRequest) error {
	blocks := []block{
		{
			Type: "section",
			Text: &text{
				Type: "mrkdwn",
				Text: fmt.Sprintf("✅ *APPROVED* - %s\nContact: %s (%s)\n_Added to sequence_",
					req.Company, req.ContactName, req.ContactEmail),
			},
		},
	}
	return n.updateMessage(ctx, channel, ts, blocks)
}

// UpdateCardSkipped replaces the card with a skipped summary.
func (n *SlackNotifier) UpdateCardSkipped(ctx context.Context, channel, ts string, req *store.ApprovalRequest) error {
	blocks := []block{
		{
			Type: "section",
			Text: &text{
				Type: "mrkdwn",
				Text: fmt.Sprintf("❌ *SKIPPED* - %s\nContact: %s", req.Company, req.ContactName),
			},
		},
	}
	return n.updateMessage(ctx, channel, ts, blocks)
}

func (n *SlackNotifier) updateMessage(ctx context.Context, channel, ts string, blocks []block) error {
	_, err := n.call(ctx, "chat.update", map[string]any{
		"channel": channel,
		"ts":      ts,
		"blocks":  blocks,
		"text":    "Updated",
	})
	if err != nil {
		n.logger.Error("failed to update card", "channel", channel, "ts", ts, "error", err)
	}
	return err
}

// buildApprovalBlocks renders the full approval card for a pending request.
func buildApprovalBlocks(req *store.ApprovalRequest) []block {
	title := req.ContactTitle
	if title == "" {
		title = "N/A"
	}
	email := req.ContactEmail
	if email == "" {
		email = "N/A"
	}

	// Truncate on rune boundaries so a multi-byte character at the limit
	// does not leave invalid UTF-8 in the card.
	preview := req.Body
	if utf8.RuneCountInString(preview) > previewMaxLen {
		preview = string([]rune(preview)[:previewMaxLen]) + "..."
	}

	return []block{
		{
			Type: "header",
			Text: &text{Type: "plain_text", Text: fmt.Sprintf("🎯 New Lead: %s", req.Company), Emoji: true},
		},
		{
			Type: "section",
			Fields: []text{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Domain:*\n%s", req.Domain)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Contact:*\n%s", req.ContactName)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Title:*\n%s", title)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Email:*\n%s", email)},
			},
		},
		{
			Type: "section",
			Text: &text{Type: "mrkdwn", Text: fmt.Sprintf("*i18n Signal:*\n%s", req.SignalSummary)},
		},
		{Type: "divider"},
		{
			Type: "section",
			Text: &text{Type: "mrkdwn", Text: fmt.Sprintf("*📧 Email Preview*\n*Subject:* %s", req.Subject)},
		},
		{
			Type: "section",
			Text: &text{Type: "mrkdwn", Text: fmt.Sprintf("```%s```", preview)},
		},
		{
			Type: "actions",
			Elements: []element{
				{
					Type:     "button",
					Text:     &text{Type: "plain_text", Text: "✅ Approve", Emoji: true},
					Style:    "primary",
					ActionID: ActionApprove,
					Value:    req.ID,
				},
				{
					Type:     "button",
					Text:     &text{Type: "plain_text", Text: "✏️ Edit", Emoji: true},
					ActionID: ActionEdit,
					Value:    req.ID,
				},
				{
					Type:     "button",
					Text:     &text{Type: "plain_text", Text: "🔄 Regenerate", Emoji: true},
					ActionID: ActionRegenerate,
					Value:    req.ID,
				},
				{
					Type:     "button",
					Text:     &text{Type: "plain_text", Text: "⏭️ Skip", Emoji: true},
					Style:    "danger",
					ActionID: ActionSkip,
					Value:    req.ID,
				},
			},
		},
	}
}
