package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/faultdesk/internal/model"
)

// PhotoRepo persists photo attachment rows. The files themselves live in the
// blob store.
type PhotoRepo struct {
	db *sql.DB
}

func NewPhotoRepo(db *sql.DB) *PhotoRepo { return &PhotoRepo{db: db} }

const photoColumns = "id, fault_id, photo_path, uploaded_at, uploaded_by"

func scanPhoto(s rowScanner) (*model.Photo, error) {
	var p model.Photo
	if err := s.Scan(&p.PhotoID, &p.FaultID, &p.PhotoPath, &p.UploadedAt, &p.UploadedBy); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts p and fills its generated id.
func (r *PhotoRepo) Create(ctx context.Context, p *model.Photo) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO photos (fault_id, photo_path, uploaded_at, uploaded_by) VALUES (?, ?, ?, ?)",
		p.FaultID, p.PhotoPath, p.UploadedAt, p.UploadedBy)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.PhotoID = id
	return nil
}

// GetByID returns ErrNotFound when the photo row does not exist.
func (r *PhotoRepo) GetByID(ctx context.Context, id int64) (*model.Photo, error) {
	p, err := scanPhoto(r.db.QueryRowContext(ctx, "SELECT "+photoColumns+" FROM photos WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListByFault returns the photos of a fault in upload order.
func (r *PhotoRepo) ListByFault(ctx context.Context, faultID int64) ([]*model.Photo, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+photoColumns+" FROM photos WHERE fault_id = ? ORDER BY uploaded_at ASC, id ASC", faultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Photo{}
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a photo row. It returns ErrNotFound when no row matches id.
func (r *PhotoRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM photos WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
