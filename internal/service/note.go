package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/faultdesk/internal/logging"
	"github.com/iliyamo/faultdesk/internal/model"
	"github.com/iliyamo/faultdesk/internal/repository"
)

// NoteLedger keeps the timestamped note trail of each fault.
type NoteLedger struct {
	faults FaultRepository
	notes  NoteRepository
	techs  *TechnicianRegistry
	now    func() time.Time
}

func NewNoteLedger(faults FaultRepository, notes NoteRepository, techs *TechnicianRegistry) *NoteLedger {
	return &NoteLedger{faults: faults, notes: notes, techs: techs, now: time.Now}
}

// requireFault checks that fault faultID exists and that p may see it.
func (l *NoteLedger) requireFault(ctx context.Context, p Principal, faultID int64) error {
	ok, err := l.faults.Exists(ctx, faultID)
	if err != nil {
		return storageErr("check fault", err)
	}
	if !ok {
		return notFound("fault")
	}
	return checkAssigned(ctx, l.faults, l.techs, p, faultID)
}

func cleanNote(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", validationf("Notes is required")
	}
	return text, nil
}

// Create appends a note written by p to fault faultID.
func (l *NoteLedger) Create(ctx context.Context, p Principal, faultID int64, text string) (*model.Note, error) {
	if !p.CanWrite() {
		return nil, forbidden("role may not add notes")
	}
	text, err := cleanNote(text)
	if err != nil {
		return nil, err
	}
	if err := l.requireFault(ctx, p, faultID); err != nil {
		return nil, err
	}
	n := &model.Note{UserID: p.ID, FaultID: faultID, Notes: text, Date: stamp(l.now)}
	if err := l.notes.Create(ctx, n); err != nil {
		return nil, storageErr("create note", err)
	}
	logging.Info(ctx, "note created", slog.Int64("note_id", n.ID), slog.Int64("fault_id", faultID))
	return n, nil
}

// List returns the notes of fault faultID, newest first.
func (l *NoteLedger) List(ctx context.Context, p Principal, faultID int64) ([]*model.Note, error) {
	if err := l.requireFault(ctx, p, faultID); err != nil {
		return nil, err
	}
	out, err := l.notes.ListByFault(ctx, faultID)
	if err != nil {
		return nil, storageErr("list notes", err)
	}
	return out, nil
}

// owned loads note id and checks that p wrote it or is an admin.
func (l *NoteLedger) owned(ctx context.Context, p Principal, id int64) (*model.Note, error) {
	n, err := l.notes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("note")
		}
		return nil, storageErr("get note", err)
	}
	if !p.IsAdmin() && n.UserID != p.ID {
		return nil, forbidden("only the author or an admin may change a note")
	}
	return n, nil
}

// Update rewrites the text of note id and stamps it with the current time.
// The previous text is not kept.
func (l *NoteLedger) Update(ctx context.Context, p Principal, id int64, text string) (*model.Note, error) {
	if !p.CanWrite() {
		return nil, forbidden("role may not edit notes")
	}
	text, err := cleanNote(text)
	if err != nil {
		return nil, err
	}
	n, err := l.owned(ctx, p, id)
	if err != nil {
		return nil, err
	}
	at := stamp(l.now)
	if err := l.notes.Update(ctx, id, text, at); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("note")
		}
		return nil, storageErr("update note", err)
	}
	n.Notes = text
	n.Date = at
	return n, nil
}

func (l *NoteLedger) Delete(ctx context.Context, p Principal, id int64) error {
	if !p.CanWrite() {
		return forbidden("role may not delete notes")
	}
	if _, err := l.owned(ctx, p, id); err != nil {
		return err
	}
	if err := l.notes.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("note")
		}
		return storageErr("delete note", err)
	}
	logging.Info(ctx, "note deleted", slog.Int64("note_id", id))
	return nil
}
