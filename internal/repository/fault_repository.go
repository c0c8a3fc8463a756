package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/faultdesk/internal/model"
)

const faultColumns = `id, system_id, section_id, location, location_of_fault, loc_fault_id,
	desc_fault, reported_by, ext_no, assign_to, status, fault_forward_id, date_time`

// faultFieldColumns maps whitelisted update fields to their columns. It is
// the only source of column names interpolated into UPDATE statements.
var faultFieldColumns = map[string]string{
	model.FieldSystemID:        "system_id",
	model.FieldLocation:        "location",
	model.FieldLocationOfFault: "location_of_fault",
	model.FieldLocFaultID:      "loc_fault_id",
	model.FieldDescFault:       "desc_fault",
	model.FieldReportedBy:      "reported_by",
	model.FieldExtNo:           "ext_no",
	model.FieldAssignTo:        "assign_to",
	model.FieldStatus:          "status",
	model.FieldSectionID:       "section_id",
	model.FieldFaultForwardID:  "fault_forward_id",
}

// FaultRepo encapsulates all database queries related to faults and their
// normalized assignee rows.
type FaultRepo struct {
	db *sql.DB
}

func NewFaultRepo(db *sql.DB) *FaultRepo {
	return &FaultRepo{db: db}
}

func scanFault(s rowScanner) (*model.Fault, error) {
	var (
		f                            model.Fault
		section, locFault, forwardID sql.NullInt64
		locationOfFault, extNo       sql.NullString
	)
	if err := s.Scan(&f.ID, &f.SystemID, &section, &f.Location, &locationOfFault, &locFault,
		&f.DescFault, &f.ReportedBy, &extNo, &f.AssignTo, &f.Status, &forwardID, &f.DateTime); err != nil {
		return nil, err
	}
	f.SectionID = intPtr(section)
	f.LocationOfFault = stringPtr(locationOfFault)
	f.LocFaultID = intPtr(locFault)
	f.ExtNo = stringPtr(extNo)
	f.FaultForwardID = intPtr(forwardID)
	return &f, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getFault(ctx context.Context, q queryer, id int64) (*model.Fault, error) {
	f, err := scanFault(q.QueryRowContext(ctx, "SELECT "+faultColumns+" FROM faults WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func listFaults(ctx context.Context, q queryer, where string, args ...any) ([]*model.Fault, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+faultColumns+" FROM faults "+where+" ORDER BY date_time DESC, id DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Fault{}
	for rows.Next() {
		f, err := scanFault(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func replaceAssignees(ctx context.Context, tx *sql.Tx, faultID int64, names []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM fault_assignees WHERE fault_id = ?", faultID); err != nil {
		return err
	}
	for i, name := range names {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO fault_assignees (fault_id, seq, assignee) VALUES (?, ?, ?)",
			faultID, i, name); err != nil {
			return err
		}
	}
	return nil
}

// Create inserts f with its assignee rows and reads the row back in the
// same transaction, so the caller receives exactly what was persisted.
func (r *FaultRepo) Create(ctx context.Context, f *model.Fault, assignees []string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		const q = `INSERT INTO faults (system_id, section_id, location, location_of_fault, loc_fault_id,
			desc_fault, reported_by, ext_no, assign_to, status, fault_forward_id, date_time)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, q, f.SystemID, nullInt(f.SectionID), f.Location,
			nullString(f.LocationOfFault), nullInt(f.LocFaultID), f.DescFault, f.ReportedBy,
			nullString(f.ExtNo), f.AssignTo, f.Status, nullInt(f.FaultForwardID), f.DateTime)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if err := replaceAssignees(ctx, tx, id, assignees); err != nil {
			return err
		}
		stored, err := getFault(ctx, tx, id)
		if err != nil {
			return err
		}
		*f = *stored
		return nil
	})
}

// GetByID fetches a fault by id. It returns ErrNotFound if no row is found.
func (r *FaultRepo) GetByID(ctx context.Context, id int64) (*model.Fault, error) {
	return getFault(ctx, r.db, id)
}

// Exists reports whether a fault row with id exists.
func (r *FaultRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM faults WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// List returns every fault, most recently touched first.
func (r *FaultRepo) List(ctx context.Context) ([]*model.Fault, error) {
	return listFaults(ctx, r.db, "")
}

// ListByAssignee returns the faults on which name is one of the assignees,
// whether the fault is individually or group assigned.
func (r *FaultRepo) ListByAssignee(ctx context.Context, name string) ([]*model.Fault, error) {
	return listFaults(ctx, r.db, "WHERE id IN (SELECT fault_id FROM fault_assignees WHERE assignee = ?)", name)
}

// IsAssigned reports whether name is among the assignees of fault id.
func (r *FaultRepo) IsAssigned(ctx context.Context, id int64, name string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fault_assignees WHERE fault_id = ? AND assignee = ?", id, name).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Update applies the validated changes, stamps date_time, rewrites the
// assignee rows when AssignTo changed and returns the updated row. It
// returns ErrNotFound when no row matches id.
func (r *FaultRepo) Update(ctx context.Context, id int64, upd model.FaultUpdate) (*model.Fault, error) {
	sets := make([]string, 0, len(upd.Changes)+1)
	args := make([]any, 0, len(upd.Changes)+2)
	for _, ch := range upd.Changes {
		col, ok := faultFieldColumns[ch.Field]
		if !ok {
			return nil, fmt.Errorf("fault update: field %q is not updatable", ch.Field)
		}
		sets = append(sets, col+" = ?")
		args = append(args, ch.Value)
	}
	sets = append(sets, "date_time = ?")
	args = append(args, upd.DateTime, id)

	var out *model.Fault
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE faults SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		if upd.Assignees != nil {
			if err := replaceAssignees(ctx, tx, id, upd.Assignees); err != nil {
				return err
			}
		}
		out, err = getFault(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a fault together with its assignee rows, notes and photo
// rows in one transaction. It returns the photo paths that belonged to the
// fault so the caller can remove the files once the rows are gone. If the
// fault does not exist, ErrNotFound is returned.
func (r *FaultRepo) Delete(ctx context.Context, id int64) ([]string, error) {
	var paths []string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var one int
		if err := tx.QueryRowContext(ctx, "SELECT 1 FROM faults WHERE id = ?", id).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		rows, err := tx.QueryContext(ctx, "SELECT photo_path FROM photos WHERE fault_id = ? ORDER BY id", id)
		if err != nil {
			return err
		}
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				rows.Close()
				return err
			}
			paths = append(paths, p)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		if err := rows.Close(); err != nil {
			return err
		}

		// children first so foreign keys hold at every step
		for _, q := range []string{
			"DELETE FROM fault_assignees WHERE fault_id = ?",
			"DELETE FROM notes WHERE fault_id = ?",
			"DELETE FROM photos WHERE fault_id = ?",
			"DELETE FROM faults WHERE id = ?",
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
