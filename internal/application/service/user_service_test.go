package service

import (
	"context"
	"testing"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/apperror"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_Create(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	manager := f.addUser(entity.RoleStationManager, nil)

	user, err := f.userSvc.Create(ctx, CreateUserInput{
		Email:         "  Awa.Diallo@Station.Example ",
		FullName:      "Awa Diallo",
		Role:          entity.RolePumpAttendant,
		LineManagerID: &manager.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "awa.diallo@station.example", user.Email)
	assert.True(t, user.IsActive)

	tests := []struct {
		name  string
		input CreateUserInput
		code  apperror.Code
	}{
		{"bad email", CreateUserInput{Email: "nope", FullName: "X", Role: entity.RoleCFO}, apperror.CodeValidation},
		{"missing name", CreateUserInput{Email: "x@station.example", Role: entity.RoleCFO}, apperror.CodeValidation},
		{"unknown role", CreateUserInput{Email: "x@station.example", FullName: "X", Role: "JANITOR"}, apperror.CodeValidation},
		{"pseudo role", CreateUserInput{Email: "x@station.example", FullName: "X", Role: entity.RoleAnyApprover}, apperror.CodeValidation},
		{"unknown manager", CreateUserInput{Email: "x@station.example", FullName: "X", Role: entity.RoleCFO, LineManagerID: int64Ptr(99)}, apperror.CodeValidation},
		{"duplicate email", CreateUserInput{Email: "awa.diallo@station.example", FullName: "X", Role: entity.RoleCFO}, apperror.CodeDuplicateSubmission},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.userSvc.Create(ctx, tt.input)
			assert.Equal(t, tt.code, apperror.CodeOf(err))
		})
	}
}

func TestUserService_Delegate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	window := func(backup int64) entity.Delegation {
		return entity.Delegation{BackupApproverID: backup, Start: now, End: now.Add(48 * time.Hour)}
	}

	t.Run("user sets their own backup", func(t *testing.T) {
		f := newFixture()
		cfo := f.addUser(entity.RoleCFO, nil)
		fd := f.addUser(entity.RoleFinanceDirector, nil)

		user, err := f.userSvc.Delegate(ctx, cfo.ID, cfo.ID, window(fd.ID))
		require.NoError(t, err)
		require.NotNil(t, user.BackupApproverID)
		assert.Equal(t, fd.ID, *user.BackupApproverID)
		assert.True(t, f.hasEvent(event.TypeDelegationChanged))

		user, err = f.userSvc.ClearDelegation(ctx, cfo.ID, cfo.ID)
		require.NoError(t, err)
		assert.Nil(t, user.BackupApproverID)
	})

	t.Run("super admin manages anyone", func(t *testing.T) {
		f := newFixture()
		admin := f.addUser(entity.RoleSuperAdmin, nil)
		cfo := f.addUser(entity.RoleCFO, nil)
		fd := f.addUser(entity.RoleFinanceDirector, nil)

		_, err := f.userSvc.Delegate(ctx, admin.ID, cfo.ID, window(fd.ID))
		require.NoError(t, err)

		_, err = f.userSvc.Delegate(ctx, fd.ID, cfo.ID, window(fd.ID))
		assert.Equal(t, apperror.CodeForbidden, apperror.CodeOf(err))
	})

	t.Run("rejects invalid windows", func(t *testing.T) {
		f := newFixture()
		cfo := f.addUser(entity.RoleCFO, nil)
		fd := f.addUser(entity.RoleFinanceDirector, nil)
		retired := f.addUser(entity.RoleAccountant, nil)
		f.users.users[retired.ID].IsActive = false

		reversed := window(fd.ID)
		reversed.Start, reversed.End = reversed.End, reversed.Start

		tests := []struct {
			name string
			d    entity.Delegation
		}{
			{"end before start", reversed},
			{"missing bounds", entity.Delegation{BackupApproverID: fd.ID}},
			{"self backup", window(cfo.ID)},
			{"unknown backup", window(999)},
			{"inactive backup", window(retired.ID)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.userSvc.Delegate(ctx, cfo.ID, cfo.ID, tt.d)
				assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
			})
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture()
		fd := f.addUser(entity.RoleFinanceDirector, nil)

		_, err := f.userSvc.Delegate(ctx, 77, 77, window(fd.ID))
		assert.Equal(t, apperror.CodeNotFound, apperror.CodeOf(err))
	})
}
