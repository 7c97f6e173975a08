// ABOUTME: Notification channel contract and Slack interaction action identifiers
// ABOUTME: Publishing a card yields the correlation token used for later updates

package notify

import (
	"context"

	"github.com/leadmachine/prospector/internal/store"
)

// Interaction action identifiers carried on card buttons. The interaction
// endpoint dispatches on these.
const (
	ActionApprove    = "approve_lead"
	ActionSkip       = "skip_lead"
	ActionEdit       = "edit_lead"
	ActionRegenerate = "regenerate_lead"
)

// Notifier publishes approval cards to the review channel and updates them
// after a decision. PostApprovalCard returns the correlation token
// identifying the published card; updates are best-effort from the
// workflow's point of view.
type Notifier interface {
	PostApprovalCard(ctx context.Context, req *store.ApprovalRequest) (string, error)
	UpdateCardApproved(ctx context.Context, channel, ts string, req *store.ApprovalRequest) error
	UpdateCardSkipped(ctx context.Context, channel, ts string, req *store.ApprovalRequest) error
}
