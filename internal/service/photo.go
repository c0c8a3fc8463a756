package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/iliyamo/faultdesk/internal/logging"
	"github.com/iliyamo/faultdesk/internal/model"
	"github.com/iliyamo/faultdesk/internal/queue"
	"github.com/iliyamo/faultdesk/internal/repository"
	"github.com/iliyamo/faultdesk/internal/saga"
)

// sniffLen is how much of an upload is inspected to detect its type.
const sniffLen = 3072

// Upload is one file of a multipart request.
type Upload struct {
	Name string
	Body io.Reader
}

// PhotoManager binds uploaded image files to faults.
type PhotoManager struct {
	faults FaultRepository
	photos PhotoRepository
	blobs  BlobStore
	store  *FaultStore
	now    func() time.Time
}

func NewPhotoManager(faults FaultRepository, photos PhotoRepository, blobs BlobStore, store *FaultStore) *PhotoManager {
	return &PhotoManager{faults: faults, photos: photos, blobs: blobs, store: store, now: time.Now}
}

// prepare rejects empty and non-image uploads. The returned reader yields
// the complete content again.
func prepare(u Upload) (Upload, error) {
	if u.Body == nil {
		return u, validationf("photo is required")
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(u.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return u, validationf("photo could not be read")
	}
	if n == 0 {
		return u, validationf("photo is empty")
	}
	mt := mimetype.Detect(head[:n])
	if !strings.HasPrefix(mt.String(), "image/") {
		return u, validationf("photo must be an image, got %s", mt.String())
	}
	u.Body = io.MultiReader(bytes.NewReader(head[:n]), u.Body)
	return u, nil
}

func uploader(p Principal) string {
	if p.Username == "" {
		return model.UnknownUploader
	}
	return p.Username
}

// attach adds the steps that store u and insert its row for faultID.
func (m *PhotoManager) attach(s *saga.Saga, p Principal, faultID func() int64, u Upload, out *model.Photo) {
	s.Add("store file "+u.Name, func(ctx context.Context) error {
		rel, err := m.blobs.Save(ctx, u.Name, u.Body)
		if err != nil {
			return storageErr("store photo", err)
		}
		out.PhotoPath = rel
		return nil
	}, func(ctx context.Context) error {
		return m.blobs.Remove(ctx, out.PhotoPath)
	})
	s.Add("insert photo row", func(ctx context.Context) error {
		out.FaultID = faultID()
		out.UploadedAt = stamp(m.now)
		out.UploadedBy = uploader(p)
		if err := m.photos.Create(ctx, out); err != nil {
			return storageErr("record photo", err)
		}
		return nil
	}, nil)
}

// Upload stores one image for fault faultID. The fault must exist. If the
// row insert fails the stored file is removed again.
func (m *PhotoManager) Upload(ctx context.Context, p Principal, faultID int64, u Upload) (*model.Photo, error) {
	if !p.CanWrite() {
		return nil, forbidden("role may not upload photos")
	}
	ok, err := m.faults.Exists(ctx, faultID)
	if err != nil {
		return nil, storageErr("check fault", err)
	}
	if !ok {
		return nil, notFound("fault")
	}
	if err := checkAssigned(ctx, m.faults, m.store.techs, p, faultID); err != nil {
		return nil, err
	}
	if u, err = prepare(u); err != nil {
		return nil, err
	}

	photo := &model.Photo{}
	s := saga.New("photo upload")
	m.attach(s, p, func() int64 { return faultID }, u, photo)
	if err := s.Run(ctx); err != nil {
		logging.Error(ctx, "photo upload failed", slog.Int64("fault_id", faultID), logging.Err(err))
		return nil, err
	}
	logging.Info(ctx, "photo uploaded", slog.Int64("photo_id", photo.PhotoID),
		slog.Int64("fault_id", faultID), slog.String("path", photo.PhotoPath))
	return photo, nil
}

// SubmitFault creates a fault and attaches every upload to it as one
// saga. On failure the stored files and the fault are removed again.
func (m *PhotoManager) SubmitFault(ctx context.Context, p Principal, fields Fields, uploads []Upload) (*model.Fault, []*model.Photo, error) {
	if !p.CanWrite() {
		return nil, nil, forbidden("role may not create faults")
	}
	prepared := make([]Upload, 0, len(uploads))
	for _, u := range uploads {
		pu, err := prepare(u)
		if err != nil {
			return nil, nil, err
		}
		prepared = append(prepared, pu)
	}

	var fault *model.Fault
	s := saga.New("submit fault")
	s.Add("create fault", func(ctx context.Context) error {
		f, err := m.store.Create(ctx, p, fields)
		if err != nil {
			return err
		}
		fault = f
		return nil
	}, func(ctx context.Context) error {
		paths, err := m.faults.Delete(ctx, fault.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		for _, path := range paths {
			removeBlob(ctx, m.blobs, path)
		}
		m.store.publish(ctx, p, queue.FaultEvent{Type: queue.FaultDeleted, FaultID: fault.ID})
		return nil
	})

	photos := make([]*model.Photo, len(prepared))
	for i, u := range prepared {
		photos[i] = &model.Photo{}
		m.attach(s, p, func() int64 { return fault.ID }, u, photos[i])
	}

	if err := s.Run(ctx); err != nil {
		logging.Error(ctx, "fault submission rolled back", logging.Err(err))
		return nil, nil, err
	}
	fault.Assignees = DecodeAssignees(fault.AssignTo)
	return fault, photos, nil
}

// ListByFault returns the photos of a fault in upload order.
func (m *PhotoManager) ListByFault(ctx context.Context, p Principal, faultID int64) ([]*model.Photo, error) {
	if err := checkAssigned(ctx, m.faults, m.store.techs, p, faultID); err != nil {
		return nil, err
	}
	out, err := m.photos.ListByFault(ctx, faultID)
	if err != nil {
		return nil, storageErr("list photos", err)
	}
	return out, nil
}

// Get returns photo id. Technicians only see photos of their own faults.
func (m *PhotoManager) Get(ctx context.Context, p Principal, id int64) (*model.Photo, error) {
	ph, err := m.photos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("photo")
		}
		return nil, storageErr("get photo", err)
	}
	if err := checkAssigned(ctx, m.faults, m.store.techs, p, ph.FaultID); err != nil {
		return nil, err
	}
	return ph, nil
}

// Delete removes the file of photo id, then its row. A file that cannot
// be removed is logged and does not stop the row deletion.
func (m *PhotoManager) Delete(ctx context.Context, p Principal, id int64) error {
	if !p.CanWrite() {
		return forbidden("role may not delete photos")
	}
	ph, err := m.Get(ctx, p, id)
	if err != nil {
		return err
	}
	removeBlob(ctx, m.blobs, ph.PhotoPath)
	if err := m.photos.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("photo")
		}
		return storageErr("delete photo", err)
	}
	logging.Info(ctx, "photo deleted", slog.Int64("photo_id", id), slog.Int64("fault_id", ph.FaultID))
	return nil
}
