package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/faultdesk/internal/model"
	"github.com/iliyamo/faultdesk/internal/repository"
)

// LookupRegistry validates fault fields against the admin-managed
// dictionaries and lets admins append to them.
type LookupRegistry struct {
	repo LookupRepository
}

func NewLookupRegistry(repo LookupRepository) *LookupRegistry {
	return &LookupRegistry{repo: repo}
}

func (l *LookupRegistry) checkSystem(ctx context.Context, code string) error {
	ok, err := l.repo.SystemExists(ctx, code)
	if err != nil {
		return storageErr("check system", err)
	}
	if !ok {
		return validationf("SystemID %q is not a registered system", code)
	}
	return nil
}

func (l *LookupRegistry) checkLocation(ctx context.Context, name string) error {
	ok, err := l.repo.LocationExists(ctx, name)
	if err != nil {
		return storageErr("check fault location", err)
	}
	if !ok {
		return validationf("LocationOfFault %q is not a registered fault location", name)
	}
	return nil
}

func (l *LookupRegistry) checkSection(ctx context.Context, id int64) error {
	ok, err := l.repo.SectionExists(ctx, id)
	if err != nil {
		return storageErr("check section", err)
	}
	if !ok {
		return validationf("SectionID %d is not a registered section", id)
	}
	return nil
}

func (l *LookupRegistry) Systems(ctx context.Context) ([]model.System, error) {
	out, err := l.repo.ListSystems(ctx)
	if err != nil {
		return nil, storageErr("list systems", err)
	}
	return out, nil
}

func (l *LookupRegistry) Locations(ctx context.Context) ([]model.FaultLocation, error) {
	out, err := l.repo.ListLocations(ctx)
	if err != nil {
		return nil, storageErr("list fault locations", err)
	}
	return out, nil
}

func (l *LookupRegistry) Sections(ctx context.Context) ([]model.Section, error) {
	out, err := l.repo.ListSections(ctx)
	if err != nil {
		return nil, storageErr("list sections", err)
	}
	return out, nil
}

// AddSystem registers a new system code. Codes are stored upper case.
func (l *LookupRegistry) AddSystem(ctx context.Context, code, name string) (model.System, error) {
	s := model.System{Code: strings.ToUpper(strings.TrimSpace(code)), Name: strings.TrimSpace(name)}
	if s.Code == "" {
		return model.System{}, validationf("code is required")
	}
	if s.Name == "" {
		s.Name = s.Code
	}
	if err := l.repo.AddSystem(ctx, s); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.System{}, conflict("system already exists")
		}
		return model.System{}, storageErr("add system", err)
	}
	return s, nil
}

func (l *LookupRegistry) AddLocation(ctx context.Context, name string) (model.FaultLocation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.FaultLocation{}, validationf("name is required")
	}
	loc, err := l.repo.AddLocation(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.FaultLocation{}, conflict("fault location already exists")
		}
		return model.FaultLocation{}, storageErr("add fault location", err)
	}
	return loc, nil
}

func (l *LookupRegistry) AddSection(ctx context.Context, name string) (model.Section, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Section{}, validationf("name is required")
	}
	sec, err := l.repo.AddSection(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.Section{}, conflict("section already exists")
		}
		return model.Section{}, storageErr("add section", err)
	}
	return sec, nil
}
