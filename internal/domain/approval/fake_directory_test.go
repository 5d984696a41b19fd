package approval

import (
	"context"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
)

// fakeDirectory is an in-memory user directory
type fakeDirectory struct {
	users map[int64]*entity.User
}

func newFakeDirectory(users ...*entity.User) *fakeDirectory {
	d := &fakeDirectory{users: make(map[int64]*entity.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *fakeDirectory) GetUser(ctx context.Context, id int64) (*entity.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (d *fakeDirectory) ListByRole(ctx context.Context, role entity.Role) ([]*entity.User, error) {
	var out []*entity.User
	for _, u := range d.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func user(id int64, role entity.Role) *entity.User {
	return &entity.User{ID: id, Role: role, IsActive: true}
}

func withDelegation(u *entity.User, backupID int64, start, end time.Time) *entity.User {
	u.BackupApproverID = &backupID
	u.DelegationStart = &start
	u.DelegationEnd = &end
	return u
}
