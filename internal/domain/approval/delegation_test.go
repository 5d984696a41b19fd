package approval

import (
	"context"
	"testing"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelegationResolver_EffectiveActors(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("nominal holders only", func(t *testing.T) {
		dir := newFakeDirectory(user(1, entity.RoleCFO), user(2, entity.RoleCFO), user(3, entity.RoleCEO))
		actors, err := NewDelegationResolver(dir).EffectiveActors(ctx, Tier{Role: entity.RoleCFO}, now)
		require.NoError(t, err)

		assert.Len(t, actors, 2)
		assert.Contains(t, actors, int64(1))
		assert.Contains(t, actors, int64(2))
		assert.Nil(t, actors[1].OnBehalfOf)
	})

	t.Run("inactive holder is skipped", func(t *testing.T) {
		inactive := user(1, entity.RoleCFO)
		inactive.IsActive = false
		dir := newFakeDirectory(inactive)

		actors, err := NewDelegationResolver(dir).EffectiveActors(ctx, Tier{Role: entity.RoleCFO}, now)
		require.NoError(t, err)
		assert.Empty(t, actors)
	})

	t.Run("backup added inside the window", func(t *testing.T) {
		cfo := withDelegation(user(1, entity.RoleCFO), 9, now.Add(-time.Hour), now.Add(time.Hour))
		dir := newFakeDirectory(cfo, user(9, entity.RoleAccountant))

		actors, err := NewDelegationResolver(dir).EffectiveActors(ctx, Tier{Role: entity.RoleCFO}, now)
		require.NoError(t, err)

		require.Contains(t, actors, int64(9))
		require.NotNil(t, actors[9].OnBehalfOf)
		assert.Equal(t, int64(1), *actors[9].OnBehalfOf)
	})

	t.Run("window is half open", func(t *testing.T) {
		atStart := withDelegation(user(1, entity.RoleCFO), 9, now, now.Add(time.Hour))
		actors, err := NewDelegationResolver(newFakeDirectory(atStart, user(9, entity.RoleAccountant))).
			EffectiveActors(ctx, Tier{Role: entity.RoleCFO}, now)
		require.NoError(t, err)
		assert.Contains(t, actors, int64(9), "start is inclusive")

		atEnd := withDelegation(user(1, entity.RoleCFO), 9, now.Add(-time.Hour), now)
		actors, err = NewDelegationResolver(newFakeDirectory(atEnd, user(9, entity.RoleAccountant))).
			EffectiveActors(ctx, Tier{Role: entity.RoleCFO}, now)
		require.NoError(t, err)
		assert.NotContains(t, actors, int64(9), "end is exclusive")
	})

	t.Run("inactive backup is skipped", func(t *testing.T) {
		backup := user(9, entity.RoleAccountant)
		backup.IsActive = false
		cfo := withDelegation(user(1, entity.RoleCFO), 9, now.Add(-time.Hour), now.Add(time.Hour))

		actors, err := NewDelegationResolver(newFakeDirectory(cfo, backup)).
			EffectiveActors(ctx, Tier{Role: entity.RoleCFO}, now)
		require.NoError(t, err)
		assert.NotContains(t, actors, int64(9))
	})

	t.Run("absent primary still delegates", func(t *testing.T) {
		cfo := withDelegation(user(1, entity.RoleCFO), 9, now.Add(-time.Hour), now.Add(time.Hour))
		cfo.IsActive = false

		actors, err := NewDelegationResolver(newFakeDirectory(cfo, user(9, entity.RoleAccountant))).
			EffectiveActors(ctx, Tier{Role: entity.RoleCFO}, now)
		require.NoError(t, err)
		assert.NotContains(t, actors, int64(1))
		assert.Contains(t, actors, int64(9))
	})

	t.Run("pinned line manager tier", func(t *testing.T) {
		dir := newFakeDirectory(user(5, entity.RoleStationManager), user(6, entity.RoleStationManager))
		actors, err := NewDelegationResolver(dir).
			EffectiveActors(ctx, Tier{Role: entity.RoleLineManager, UserID: int64Ptr(5)}, now)
		require.NoError(t, err)

		assert.Len(t, actors, 1)
		assert.Contains(t, actors, int64(5))
	})

	t.Run("missing line manager yields nobody", func(t *testing.T) {
		actors, err := NewDelegationResolver(newFakeDirectory()).
			EffectiveActors(ctx, Tier{Role: entity.RoleLineManager, UserID: int64Ptr(5)}, now)
		require.NoError(t, err)
		assert.Empty(t, actors)
	})

	t.Run("any approver tier has no fixed holders", func(t *testing.T) {
		actors, err := NewDelegationResolver(newFakeDirectory(user(1, entity.RoleCFO))).
			EffectiveActors(ctx, Tier{Role: entity.RoleAnyApprover}, now)
		require.NoError(t, err)
		assert.Empty(t, actors)
	})
}
