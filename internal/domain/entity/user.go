package entity

import "time"

// User is a read-only view of the user directory as the approval engine needs it
type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     Role   `json:"role"`
	IsActive bool   `json:"isActive"`

	// Weak references; the referenced users may be inactive or gone
	LineManagerID    *int64 `json:"lineManagerId,omitempty"`
	BackupApproverID *int64 `json:"backupApproverId,omitempty"`

	DelegationStart *time.Time `json:"delegationStart,omitempty"`
	DelegationEnd   *time.Time `json:"delegationEnd,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DelegationActive reports whether the user's backup may act for them at now.
// The window is half-open: start <= now < end.
func (u *User) DelegationActive(now time.Time) bool {
	if u.BackupApproverID == nil || u.DelegationStart == nil || u.DelegationEnd == nil {
		return false
	}
	return !now.Before(*u.DelegationStart) && now.Before(*u.DelegationEnd)
}

// Delegation is a backup approver assignment for a time window
type Delegation struct {
	BackupApproverID int64     `json:"backupApproverId"`
	Start            time.Time `json:"delegationStart"`
	End              time.Time `json:"delegationEnd"`
}
