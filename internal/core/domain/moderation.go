package domain

import "time"

type ModerationStatus string

const (
	ModerationPending      ModerationStatus = "pending"
	ModerationApproved     ModerationStatus = "approved"
	ModerationRejected     ModerationStatus = "rejected"
	ModerationManualReview ModerationStatus = "manual_review"
)

// IsDecided reports whether the automated engine must not evaluate the
// diagram again. manual_review is not decided: an administrator may still
// move it, and a re-enqueued evaluation of a pending diagram is fine.
func (s ModerationStatus) IsDecided() bool {
	return s == ModerationApproved || s == ModerationRejected
}

// ModerationDecision is the verdict returned by the content-analysis
// capability, before threshold mapping.
type ModerationDecision string

const (
	DecisionApprove      ModerationDecision = "approve"
	DecisionReject       ModerationDecision = "reject"
	DecisionManualReview ModerationDecision = "manual_review"
)

type ModerationAnalysis struct {
	Decision   ModerationDecision `json:"decision"`
	Confidence float64            `json:"confidence"`
	Reason     string             `json:"reason"`
}

// Moderation audit actions. The ai_* tags record automated outcomes, the
// manual_* tags record administrator decisions.
const (
	ActionAIApprove      = "ai_approve"
	ActionAIReject       = "ai_reject"
	ActionAIManualReview = "ai_manual_review"
	ActionAIError        = "ai_error"
	ActionManualApprove  = "manual_approve"
	ActionManualReject   = "manual_reject"
)

// ModerationLogEntry is one append-only audit record. Exactly one entry is
// written per evaluation that reaches a decision, in the same transaction as
// the status change.
type ModerationLogEntry struct {
	ID         string    `json:"id"`
	DiagramID  string    `json:"diagram_id"`
	Decision   string    `json:"decision"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason"`
	Action     string    `json:"action"`
	Reviewer   string    `json:"reviewer,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
