package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/faultdesk/internal/model"
)

// LookupRepo serves the admin-managed dictionaries: systems, fault
// locations and sections. Rows are only ever appended.
type LookupRepo struct {
	db *sql.DB
}

func NewLookupRepo(db *sql.DB) *LookupRepo { return &LookupRepo{db: db} }

func (r *LookupRepo) exists(ctx context.Context, q string, arg any) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, q, arg).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r *LookupRepo) insert(ctx context.Context, q string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	return res.LastInsertId()
}

// ListSystems returns all registered systems ordered by code.
func (r *LookupRepo) ListSystems(ctx context.Context) ([]model.System, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT code, name FROM systems ORDER BY code")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.System{}
	for rows.Next() {
		var s model.System
		if err := rows.Scan(&s.Code, &s.Name); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *LookupRepo) SystemExists(ctx context.Context, code string) (bool, error) {
	return r.exists(ctx, "SELECT 1 FROM systems WHERE code = ?", code)
}

// AddSystem registers a system. It returns ErrConflict when the code exists.
func (r *LookupRepo) AddSystem(ctx context.Context, s model.System) error {
	_, err := r.insert(ctx, "INSERT INTO systems (code, name) VALUES (?, ?)", s.Code, s.Name)
	return err
}

// ListLocations returns all registered fault locations ordered by name.
func (r *LookupRepo) ListLocations(ctx context.Context) ([]model.FaultLocation, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM fault_locations ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.FaultLocation{}
	for rows.Next() {
		var l model.FaultLocation
		if err := rows.Scan(&l.ID, &l.Name); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *LookupRepo) LocationExists(ctx context.Context, name string) (bool, error) {
	return r.exists(ctx, "SELECT 1 FROM fault_locations WHERE name = ?", name)
}

// AddLocation registers a fault location and returns it with its id.
func (r *LookupRepo) AddLocation(ctx context.Context, name string) (model.FaultLocation, error) {
	id, err := r.insert(ctx, "INSERT INTO fault_locations (name) VALUES (?)", name)
	if err != nil {
		return model.FaultLocation{}, err
	}
	return model.FaultLocation{ID: id, Name: name}, nil
}

// ListSections returns all registered sections ordered by name.
func (r *LookupRepo) ListSections(ctx context.Context) ([]model.Section, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM sections ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Section{}
	for rows.Next() {
		var s model.Section
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *LookupRepo) SectionExists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, "SELECT 1 FROM sections WHERE id = ?", id)
}

// AddSection registers a section and returns it with its id.
func (r *LookupRepo) AddSection(ctx context.Context, name string) (model.Section, error) {
	id, err := r.insert(ctx, "INSERT INTO sections (name) VALUES (?)", name)
	if err != nil {
		return model.Section{}, err
	}
	return model.Section{ID: id, Name: name}, nil
}
