package entity

import "time"

// ApprovalStep is one append-only ledger entry. It references its request by
// (RequestType, RequestID) so a single ledger serves every approvable entity.
type ApprovalStep struct {
	ID          int64       `json:"id"`
	RequestType RequestType `json:"requestType"`
	RequestID   int64       `json:"requestId"`

	// Tier slot satisfied by this step, recorded even when a delegate or an
	// override holder acted
	TierIndex int  `json:"tierIndex"`
	TierRole  Role `json:"tierRole"`

	ActorID int64  `json:"actorId"`
	Action  Action `json:"action"`
	Comment string `json:"comment,omitempty"`

	// Audit tags
	OnBehalfOfID *int64 `json:"onBehalfOfId,omitempty"`
	ViaOverride  bool   `json:"viaOverride"`

	ActedAt time.Time `json:"actedAt"`
}
