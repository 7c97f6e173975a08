// Package notify publishes approval cards to the Slack review channel and
// updates them once a decision lands. The message timestamp returned by
// PostApprovalCard is the correlation token stored on the approval request.
package notify
