package service

import (
	"context"
	"errors"

	"github.com/iliyamo/faultdesk/internal/model"
	"github.com/iliyamo/faultdesk/internal/repository"
)

// Technician is the public view of an assignable user.
type Technician struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// TechnicianRegistry answers who counts as a technician. It is backed by
// the users table: active users with the technician role.
type TechnicianRegistry struct {
	users UserDirectory
}

func NewTechnicianRegistry(users UserDirectory) *TechnicianRegistry {
	return &TechnicianRegistry{users: users}
}

// List returns every assignable technician.
func (t *TechnicianRegistry) List(ctx context.Context) ([]Technician, error) {
	users, err := t.users.ListActiveByRole(ctx, model.RoleTechnician)
	if err != nil {
		return nil, storageErr("list technicians", err)
	}
	out := make([]Technician, 0, len(users))
	for _, u := range users {
		out = append(out, Technician{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName})
	}
	return out, nil
}

// IsTechnician reports whether username belongs to an active technician.
func (t *TechnicianRegistry) IsTechnician(ctx context.Context, username string) (bool, error) {
	u, err := t.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("look up technician", err)
	}
	return u.IsActive && u.Role == model.RoleTechnician, nil
}

// restricted reports whether p only sees the faults assigned to them.
func (t *TechnicianRegistry) restricted(ctx context.Context, p Principal) (bool, error) {
	if p.Role != model.RoleTechnician {
		return false, nil
	}
	return t.IsTechnician(ctx, p.Username)
}

// checkAssigned fails with an AuthorizationError when p is a technician who
// is not among the assignees of fault id. A missing fault is NotFound.
func checkAssigned(ctx context.Context, faults FaultRepository, techs *TechnicianRegistry, p Principal, id int64) error {
	restricted, err := techs.restricted(ctx, p)
	if err != nil || !restricted {
		return err
	}
	ok, err := faults.IsAssigned(ctx, id, p.Username)
	if err != nil {
		return storageErr("check assignment", err)
	}
	if ok {
		return nil
	}
	exists, err := faults.Exists(ctx, id)
	if err != nil {
		return storageErr("check fault", err)
	}
	if !exists {
		return notFound("fault")
	}
	return forbidden("fault is not assigned to you")
}
