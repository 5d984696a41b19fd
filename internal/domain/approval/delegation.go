package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
)

// ErrUserNotFound is returned by a Directory when a user id is unknown
var ErrUserNotFound = errors.New("user not found")

// Directory is the read-only view of the user directory the resolver needs
type Directory interface {
	GetUser(ctx context.Context, id int64) (*entity.User, error)
	ListByRole(ctx context.Context, role entity.Role) ([]*entity.User, error)
}

// EffectiveActor is a user allowed to act on a tier. OnBehalfOf is set when
// the user acts as a delegate.
type EffectiveActor struct {
	UserID     int64
	OnBehalfOf *int64
}

// DelegationResolver computes who may act on a tier at a given instant
type DelegationResolver struct {
	directory Directory
}

// NewDelegationResolver creates a resolver over the given directory
func NewDelegationResolver(directory Directory) *DelegationResolver {
	return &DelegationResolver{directory: directory}
}

// EffectiveActors returns the active nominal holders of the tier plus the
// backups of nominal holders whose delegation window contains now.
// ANY_APPROVER tiers have no fixed holders and yield an empty set.
func (r *DelegationResolver) EffectiveActors(ctx context.Context, tier Tier, now time.Time) (map[int64]EffectiveActor, error) {
	actors := make(map[int64]EffectiveActor)
	if tier.Role == entity.RoleAnyApprover {
		return actors, nil
	}

	nominal, err := r.nominalHolders(ctx, tier)
	if err != nil {
		return nil, err
	}

	for _, u := range nominal {
		if u.IsActive {
			actors[u.ID] = EffectiveActor{UserID: u.ID}
		}
	}

	for _, u := range nominal {
		if !u.DelegationActive(now) || *u.BackupApproverID == u.ID {
			continue
		}
		backupID := *u.BackupApproverID
		if _, exists := actors[backupID]; exists {
			continue
		}

		backup, err := r.directory.GetUser(ctx, backupID)
		if errors.Is(err, ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load backup approver %d: %w", backupID, err)
		}
		if !backup.IsActive {
			continue
		}

		nominalID := u.ID
		actors[backupID] = EffectiveActor{UserID: backupID, OnBehalfOf: &nominalID}
	}

	return actors, nil
}

func (r *DelegationResolver) nominalHolders(ctx context.Context, tier Tier) ([]*entity.User, error) {
	if tier.UserID != nil {
		u, err := r.directory.GetUser(ctx, *tier.UserID)
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load tier holder %d: %w", *tier.UserID, err)
		}
		return []*entity.User{u}, nil
	}

	users, err := r.directory.ListByRole(ctx, tier.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s holders: %w", tier.Role, err)
	}
	return users, nil
}
