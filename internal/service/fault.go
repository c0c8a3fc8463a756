package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/iliyamo/faultdesk/internal/logging"
	"github.com/iliyamo/faultdesk/internal/model"
	"github.com/iliyamo/faultdesk/internal/queue"
	"github.com/iliyamo/faultdesk/internal/repository"
)

// FaultStore owns the fault lifecycle: creation with defaults, the update
// whitelist, the status rules, visibility for technicians and cascading
// deletion.
type FaultStore struct {
	faults  FaultRepository
	notes   NoteRepository
	lookups *LookupRegistry
	techs   *TechnicianRegistry
	assign  *AssignmentResolver
	blobs   BlobStore
	events  EventPublisher
	now     func() time.Time
}

func NewFaultStore(faults FaultRepository, notes NoteRepository, lookups *LookupRegistry,
	techs *TechnicianRegistry, blobs BlobStore, events EventPublisher) *FaultStore {
	if events == nil {
		events = NopPublisher{}
	}
	return &FaultStore{
		faults:  faults,
		notes:   notes,
		lookups: lookups,
		techs:   techs,
		assign:  NewAssignmentResolver(techs),
		blobs:   blobs,
		events:  events,
		now:     time.Now,
	}
}

// stamp is the storage precision of every timestamp column.
func stamp(now func() time.Time) time.Time {
	return now().UTC().Truncate(time.Microsecond)
}

// Create validates fields and persists a new fault with Status Open unless
// another non-closed status is given. Nothing is written when validation
// fails.
func (s *FaultStore) Create(ctx context.Context, p Principal, fields Fields) (*model.Fault, error) {
	if !p.CanWrite() {
		return nil, forbidden("role may not create faults")
	}
	f, assignees, err := s.buildFault(ctx, fields)
	if err != nil {
		return nil, err
	}
	f.DateTime = stamp(s.now)

	if err := s.faults.Create(ctx, f, assignees); err != nil {
		return nil, storageErr("create fault", err)
	}
	f.Assignees = DecodeAssignees(f.AssignTo)

	logging.Info(ctx, "fault created", slog.Int64("fault_id", f.ID), slog.String("assign_to", f.AssignTo))
	s.publish(ctx, p, queue.FaultEvent{Type: queue.FaultCreated, FaultID: f.ID,
		SystemID: f.SystemID, Status: f.Status, AssignTo: f.AssignTo})
	return f, nil
}

func (s *FaultStore) buildFault(ctx context.Context, fields Fields) (*model.Fault, []string, error) {
	var (
		f   = &model.Fault{Status: model.StatusOpen}
		err error
	)
	if f.SystemID, err = fields.requiredText(model.FieldSystemID); err != nil {
		return nil, nil, err
	}
	if f.Location, err = fields.requiredText(model.FieldLocation); err != nil {
		return nil, nil, err
	}
	if f.DescFault, err = fields.requiredText(model.FieldDescFault); err != nil {
		return nil, nil, err
	}
	if f.ReportedBy, err = fields.requiredText(model.FieldReportedBy); err != nil {
		return nil, nil, err
	}
	if f.LocationOfFault, err = fields.optionalText(model.FieldLocationOfFault); err != nil {
		return nil, nil, err
	}
	if f.ExtNo, err = fields.optionalText(model.FieldExtNo); err != nil {
		return nil, nil, err
	}
	if f.LocFaultID, err = fields.optionalInt(model.FieldLocFaultID); err != nil {
		return nil, nil, err
	}
	if f.SectionID, err = fields.optionalInt(model.FieldSectionID); err != nil {
		return nil, nil, err
	}
	if f.FaultForwardID, err = fields.optionalInt(model.FieldFaultForwardID); err != nil {
		return nil, nil, err
	}
	status, err := fields.optionalText(model.FieldStatus)
	if err != nil {
		return nil, nil, err
	}
	if status != nil {
		if !model.ValidStatus(*status) {
			return nil, nil, validationf("Status must be one of Open, In Progress, Pending, Closed")
		}
		if *status == model.StatusClosed {
			return nil, nil, validationf("a new fault cannot be created Closed")
		}
		f.Status = *status
	}

	assignTo, assignees, err := s.assign.Resolve(ctx, fields[model.FieldAssignTo])
	if err != nil {
		return nil, nil, err
	}
	f.AssignTo = assignTo

	if err := s.lookups.checkSystem(ctx, f.SystemID); err != nil {
		return nil, nil, err
	}
	if f.LocationOfFault != nil {
		if err := s.lookups.checkLocation(ctx, *f.LocationOfFault); err != nil {
			return nil, nil, err
		}
	}
	if f.SectionID != nil {
		if err := s.lookups.checkSection(ctx, *f.SectionID); err != nil {
			return nil, nil, err
		}
	}
	return f, assignees, nil
}

// List returns the faults visible to p, newest first. Technicians see the
// faults they are assigned to, alone or as part of a group.
func (s *FaultStore) List(ctx context.Context, p Principal) ([]*model.Fault, error) {
	restricted, err := s.techs.restricted(ctx, p)
	if err != nil {
		return nil, err
	}
	var out []*model.Fault
	if restricted {
		out, err = s.faults.ListByAssignee(ctx, p.Username)
	} else {
		out, err = s.faults.List(ctx)
	}
	if err != nil {
		return nil, storageErr("list faults", err)
	}
	for _, f := range out {
		f.Assignees = DecodeAssignees(f.AssignTo)
	}
	return out, nil
}

// Get returns one fault. A technician may only read faults they are
// assigned to.
func (s *FaultStore) Get(ctx context.Context, p Principal, id int64) (*model.Fault, error) {
	f, err := s.faults.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("fault")
		}
		return nil, storageErr("get fault", err)
	}
	if err := checkAssigned(ctx, s.faults, s.techs, p, id); err != nil {
		return nil, err
	}
	f.Assignees = DecodeAssignees(f.AssignTo)
	return f, nil
}

// Update applies the whitelisted keys of fields to fault id and refreshes
// its DateTime. Unknown keys are ignored. Moving a fault to Closed needs at
// least one note on it.
func (s *FaultStore) Update(ctx context.Context, p Principal, id int64, fields Fields) (*model.Fault, error) {
	if !p.CanWrite() {
		return nil, forbidden("role may not update faults")
	}
	if err := checkAssigned(ctx, s.faults, s.techs, p, id); err != nil {
		return nil, err
	}
	upd, closing, err := s.buildUpdate(ctx, fields)
	if err != nil {
		return nil, err
	}
	if closing {
		if err := s.checkClosable(ctx, id); err != nil {
			return nil, err
		}
	}
	upd.DateTime = stamp(s.now)

	f, err := s.faults.Update(ctx, id, upd)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("fault")
		}
		return nil, storageErr("update fault", err)
	}
	f.Assignees = DecodeAssignees(f.AssignTo)

	changed := make([]string, 0, len(upd.Changes))
	for _, ch := range upd.Changes {
		changed = append(changed, ch.Field)
	}
	evType := queue.FaultUpdated
	if closing {
		evType = queue.FaultClosed
	}
	logging.Info(ctx, "fault updated", slog.Int64("fault_id", id), slog.Any("changed", changed))
	s.publish(ctx, p, queue.FaultEvent{Type: evType, FaultID: f.ID, SystemID: f.SystemID,
		Status: f.Status, AssignTo: f.AssignTo, Changed: changed})
	return f, nil
}

// buildUpdate validates every whitelisted key present in fields. closing
// reports whether the update sets Status to Closed.
func (s *FaultStore) buildUpdate(ctx context.Context, fields Fields) (model.FaultUpdate, bool, error) {
	var (
		upd     model.FaultUpdate
		closing bool
	)
	for _, key := range model.UpdatableFields {
		if !fields.has(key) {
			continue
		}
		var value any
		switch key {
		case model.FieldSystemID:
			code, err := fields.requiredText(key)
			if err != nil {
				return upd, false, err
			}
			if err := s.lookups.checkSystem(ctx, code); err != nil {
				return upd, false, err
			}
			value = code
		case model.FieldLocation, model.FieldDescFault, model.FieldReportedBy:
			v, err := fields.requiredText(key)
			if err != nil {
				return upd, false, err
			}
			value = v
		case model.FieldLocationOfFault:
			v, err := fields.optionalText(key)
			if err != nil {
				return upd, false, err
			}
			if v != nil {
				if err := s.lookups.checkLocation(ctx, *v); err != nil {
					return upd, false, err
				}
				value = *v
			}
		case model.FieldExtNo:
			v, err := fields.optionalText(key)
			if err != nil {
				return upd, false, err
			}
			if v != nil {
				value = *v
			}
		case model.FieldLocFaultID, model.FieldFaultForwardID:
			v, err := fields.optionalInt(key)
			if err != nil {
				return upd, false, err
			}
			if v != nil {
				value = *v
			}
		case model.FieldSectionID:
			v, err := fields.optionalInt(key)
			if err != nil {
				return upd, false, err
			}
			if v != nil {
				if err := s.lookups.checkSection(ctx, *v); err != nil {
					return upd, false, err
				}
				value = *v
			}
		case model.FieldStatus:
			v, err := fields.requiredText(key)
			if err != nil {
				return upd, false, err
			}
			if !model.ValidStatus(v) {
				return upd, false, validationf("Status must be one of Open, In Progress, Pending, Closed")
			}
			closing = v == model.StatusClosed
			value = v
		case model.FieldAssignTo:
			assignTo, names, err := s.assign.Resolve(ctx, fields[key])
			if err != nil {
				return upd, false, err
			}
			upd.Assignees = names
			value = assignTo
		}
		upd.Changes = append(upd.Changes, model.FieldChange{Field: key, Value: value})
	}
	return upd, closing, nil
}

// checkClosable enforces that a fault gets at least one note before it is
// closed. A fault that is already Closed is not re-checked.
func (s *FaultStore) checkClosable(ctx context.Context, id int64) error {
	cur, err := s.faults.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("fault")
		}
		return storageErr("get fault", err)
	}
	if cur.Status == model.StatusClosed {
		return nil
	}
	n, err := s.notes.CountByFault(ctx, id)
	if err != nil {
		return storageErr("count notes", err)
	}
	if n == 0 {
		return validationf("a fault needs at least one note before it can be closed")
	}
	return nil
}

// Delete removes fault id with its assignees, notes and photo rows in one
// transaction, then removes the photo files. A missing file is logged and
// skipped.
func (s *FaultStore) Delete(ctx context.Context, p Principal, id int64) error {
	if !p.IsAdmin() {
		return forbidden("only admins may delete faults")
	}
	paths, err := s.faults.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("fault")
		}
		return storageErr("delete fault", err)
	}
	for _, path := range paths {
		removeBlob(ctx, s.blobs, path)
	}
	logging.Info(ctx, "fault deleted", slog.Int64("fault_id", id), slog.Int("photos", len(paths)))
	s.publish(ctx, p, queue.FaultEvent{Type: queue.FaultDeleted, FaultID: id})
	return nil
}

// removeBlob deletes a stored photo file. Failures are logged only; a
// missing file is expected after a partial cleanup.
func removeBlob(ctx context.Context, blobs BlobStore, path string) {
	if blobs == nil {
		return
	}
	if err := blobs.Remove(ctx, path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Warn(ctx, "photo file already missing", slog.String("path", path))
			return
		}
		logging.Error(ctx, "remove photo file", slog.String("path", path), logging.Err(err))
	}
}

func (s *FaultStore) publish(ctx context.Context, p Principal, ev queue.FaultEvent) {
	publishEvent(ctx, s.events, p, ev, s.now)
}

// publishEvent fills the actor and time of ev and sends it. Failures are
// logged only.
func publishEvent(ctx context.Context, pub EventPublisher, p Principal, ev queue.FaultEvent, now func() time.Time) {
	ev.ActorID = p.ID
	ev.Actor = p.Username
	ev.OccurredAt = now().UTC().Format(time.RFC3339)
	if err := pub.PublishFaultEvent(ctx, ev); err != nil {
		logging.Warn(ctx, "publish fault event", slog.String("type", ev.Type),
			slog.Int64("fault_id", ev.FaultID), logging.Err(err))
	}
}
