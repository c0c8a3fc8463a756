package service

import (
	"context"
	"io"
	"time"

	"github.com/iliyamo/faultdesk/internal/model"
	"github.com/iliyamo/faultdesk/internal/queue"
)

// The interfaces below are what the core needs from storage and the other
// collaborators. The repository package satisfies the store interfaces;
// tests substitute in-memory fakes.

type FaultRepository interface {
	Create(ctx context.Context, f *model.Fault, assignees []string) error
	GetByID(ctx context.Context, id int64) (*model.Fault, error)
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context) ([]*model.Fault, error)
	ListByAssignee(ctx context.Context, name string) ([]*model.Fault, error)
	IsAssigned(ctx context.Context, id int64, name string) (bool, error)
	Update(ctx context.Context, id int64, upd model.FaultUpdate) (*model.Fault, error)
	Delete(ctx context.Context, id int64) ([]string, error)
}

type NoteRepository interface {
	Create(ctx context.Context, n *model.Note) error
	GetByID(ctx context.Context, id int64) (*model.Note, error)
	ListByFault(ctx context.Context, faultID int64) ([]*model.Note, error)
	CountByFault(ctx context.Context, faultID int64) (int, error)
	Update(ctx context.Context, id int64, text string, at time.Time) error
	Delete(ctx context.Context, id int64) error
}

type PhotoRepository interface {
	Create(ctx context.Context, p *model.Photo) error
	GetByID(ctx context.Context, id int64) (*model.Photo, error)
	ListByFault(ctx context.Context, faultID int64) ([]*model.Photo, error)
	Delete(ctx context.Context, id int64) error
}

type LookupRepository interface {
	ListSystems(ctx context.Context) ([]model.System, error)
	SystemExists(ctx context.Context, code string) (bool, error)
	AddSystem(ctx context.Context, s model.System) error
	ListLocations(ctx context.Context) ([]model.FaultLocation, error)
	LocationExists(ctx context.Context, name string) (bool, error)
	AddLocation(ctx context.Context, name string) (model.FaultLocation, error)
	ListSections(ctx context.Context) ([]model.Section, error)
	SectionExists(ctx context.Context, id int64) (bool, error)
	AddSection(ctx context.Context, name string) (model.Section, error)
}

// UserDirectory is the read side of the credential store.
type UserDirectory interface {
	GetByID(ctx context.Context, id int64) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	ListActiveByRole(ctx context.Context, role string) ([]model.User, error)
}

// BlobStore persists uploaded file bytes and hands back a relative path.
type BlobStore interface {
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
	Remove(ctx context.Context, relPath string) error
}

// EventPublisher delivers fault lifecycle events. Failures never fail the
// operation that produced the event.
type EventPublisher interface {
	PublishFaultEvent(ctx context.Context, ev queue.FaultEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishFaultEvent(context.Context, queue.FaultEvent) error { return nil }
