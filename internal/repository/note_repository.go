package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/faultdesk/internal/model"
)

// NoteRepo persists fault notes.
type NoteRepo struct {
	db *sql.DB
}

func NewNoteRepo(db *sql.DB) *NoteRepo { return &NoteRepo{db: db} }

const noteColumns = "id, user_id, note_date, fault_id, notes"

func scanNote(s rowScanner) (*model.Note, error) {
	var n model.Note
	if err := s.Scan(&n.ID, &n.UserID, &n.Date, &n.FaultID, &n.Notes); err != nil {
		return nil, err
	}
	return &n, nil
}

// Create inserts n and fills its generated id.
func (r *NoteRepo) Create(ctx context.Context, n *model.Note) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO notes (user_id, fault_id, notes, note_date) VALUES (?, ?, ?, ?)",
		n.UserID, n.FaultID, n.Notes, n.Date)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = id
	return nil
}

// GetByID returns ErrNotFound when the note does not exist.
func (r *NoteRepo) GetByID(ctx context.Context, id int64) (*model.Note, error) {
	n, err := scanNote(r.db.QueryRowContext(ctx, "SELECT "+noteColumns+" FROM notes WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

// ListByFault returns the notes of a fault, newest first.
func (r *NoteRepo) ListByFault(ctx context.Context, faultID int64) ([]*model.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+noteColumns+" FROM notes WHERE fault_id = ? ORDER BY note_date DESC, id DESC", faultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountByFault returns how many notes are attached to a fault.
func (r *NoteRepo) CountByFault(ctx context.Context, faultID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes WHERE fault_id = ?", faultID).Scan(&n)
	return n, err
}

// Update overwrites the text and date of a note. It returns ErrNotFound when
// no row matches id.
func (r *NoteRepo) Update(ctx context.Context, id int64, text string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, "UPDATE notes SET notes = ?, note_date = ? WHERE id = ?", text, at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a note. It returns ErrNotFound when no row matches id.
func (r *NoteRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
