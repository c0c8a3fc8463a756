package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/faultdesk/internal/model"
	"github.com/iliyamo/faultdesk/internal/queue"
	"github.com/iliyamo/faultdesk/internal/repository"
)

// memDB is an in-memory stand-in for the relational store shared by the
// fake repositories, so cascades behave like the SQL implementation.
type memDB struct {
	mu        sync.Mutex
	faults    map[int64]*model.Fault
	assignees map[int64][]string
	notes     map[int64]*model.Note
	photos    map[int64]*model.Photo
	nextID    int64
	writes    int
}

func newMemDB() *memDB {
	return &memDB{
		faults:    map[int64]*model.Fault{},
		assignees: map[int64][]string{},
		notes:     map[int64]*model.Note{},
		photos:    map[int64]*model.Photo{},
	}
}

func (m *memDB) id() int64 { m.nextID++; return m.nextID }

type fakeFaults struct{ db *memDB }

func (r fakeFaults) Create(_ context.Context, f *model.Fault, assignees []string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.writes++
	cp := *f
	cp.ID = r.db.id()
	cp.Assignees = nil
	r.db.faults[cp.ID] = &cp
	r.db.assignees[cp.ID] = append([]string(nil), assignees...)
	*f = cp
	return nil
}

func (r fakeFaults) GetByID(_ context.Context, id int64) (*model.Fault, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	f, ok := r.db.faults[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r fakeFaults) Exists(_ context.Context, id int64) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	_, ok := r.db.faults[id]
	return ok, nil
}

func (r fakeFaults) list(keep func(id int64) bool) []*model.Fault {
	out := []*model.Fault{}
	for id, f := range r.db.faults {
		if keep(id) {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateTime.Equal(out[j].DateTime) {
			return out[i].DateTime.After(out[j].DateTime)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r fakeFaults) List(context.Context) ([]*model.Fault, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.list(func(int64) bool { return true }), nil
}

func (r fakeFaults) ListByAssignee(_ context.Context, name string) ([]*model.Fault, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.list(func(id int64) bool { return contains(r.db.assignees[id], name) }), nil
}

func (r fakeFaults) IsAssigned(_ context.Context, id int64, name string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return contains(r.db.assignees[id], name), nil
}

func (r fakeFaults) Update(_ context.Context, id int64, upd model.FaultUpdate) (*model.Fault, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	f, ok := r.db.faults[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r.db.writes++
	for _, ch := range upd.Changes {
		applyChange(f, ch)
	}
	f.DateTime = upd.DateTime
	if upd.Assignees != nil {
		r.db.assignees[id] = append([]string(nil), upd.Assignees...)
	}
	cp := *f
	return &cp, nil
}

func (r fakeFaults) Delete(_ context.Context, id int64) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.faults[id]; !ok {
		return nil, repository.ErrNotFound
	}
	r.db.writes++
	var paths []string
	for pid, p := range r.db.photos {
		if p.FaultID == id {
			paths = append(paths, p.PhotoPath)
			delete(r.db.photos, pid)
		}
	}
	for nid, n := range r.db.notes {
		if n.FaultID == id {
			delete(r.db.notes, nid)
		}
	}
	delete(r.db.assignees, id)
	delete(r.db.faults, id)
	sort.Strings(paths)
	return paths, nil
}

func applyChange(f *model.Fault, ch model.FieldChange) {
	str := func() *string {
		if ch.Value == nil {
			return nil
		}
		s := ch.Value.(string)
		return &s
	}
	num := func() *int64 {
		if ch.Value == nil {
			return nil
		}
		n := ch.Value.(int64)
		return &n
	}
	switch ch.Field {
	case model.FieldSystemID:
		f.SystemID = ch.Value.(string)
	case model.FieldLocation:
		f.Location = ch.Value.(string)
	case model.FieldLocationOfFault:
		f.LocationOfFault = str()
	case model.FieldLocFaultID:
		f.LocFaultID = num()
	case model.FieldDescFault:
		f.DescFault = ch.Value.(string)
	case model.FieldReportedBy:
		f.ReportedBy = ch.Value.(string)
	case model.FieldExtNo:
		f.ExtNo = str()
	case model.FieldAssignTo:
		f.AssignTo = ch.Value.(string)
	case model.FieldStatus:
		f.Status = ch.Value.(string)
	case model.FieldSectionID:
		f.SectionID = num()
	case model.FieldFaultForwardID:
		f.FaultForwardID = num()
	default:
		panic("unexpected field " + ch.Field)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type fakeNotes struct{ db *memDB }

func (r fakeNotes) Create(_ context.Context, n *model.Note) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.writes++
	n.ID = r.db.id()
	cp := *n
	r.db.notes[n.ID] = &cp
	return nil
}

func (r fakeNotes) GetByID(_ context.Context, id int64) (*model.Note, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n, ok := r.db.notes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (r fakeNotes) ListByFault(_ context.Context, faultID int64) ([]*model.Note, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*model.Note{}
	for _, n := range r.db.notes {
		if n.FaultID == faultID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r fakeNotes) CountByFault(ctx context.Context, faultID int64) (int, error) {
	list, err := r.ListByFault(ctx, faultID)
	return len(list), err
}

func (r fakeNotes) Update(_ context.Context, id int64, text string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n, ok := r.db.notes[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.db.writes++
	n.Notes, n.Date = text, at
	return nil
}

func (r fakeNotes) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.notes[id]; !ok {
		return repository.ErrNotFound
	}
	r.db.writes++
	delete(r.db.notes, id)
	return nil
}

type fakePhotos struct {
	db      *memDB
	failErr error
}

func (r *fakePhotos) Create(_ context.Context, p *model.Photo) error {
	if r.failErr != nil {
		return r.failErr
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.writes++
	p.PhotoID = r.db.id()
	cp := *p
	r.db.photos[p.PhotoID] = &cp
	return nil
}

func (r *fakePhotos) GetByID(_ context.Context, id int64) (*model.Photo, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.photos[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePhotos) ListByFault(_ context.Context, faultID int64) ([]*model.Photo, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*model.Photo{}
	for _, p := range r.db.photos {
		if p.FaultID == faultID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PhotoID < out[j].PhotoID })
	return out, nil
}

func (r *fakePhotos) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.photos[id]; !ok {
		return repository.ErrNotFound
	}
	r.db.writes++
	delete(r.db.photos, id)
	return nil
}

type fakeLookups struct {
	systems   []model.System
	locations []model.FaultLocation
	sections  []model.Section
}

func (l *fakeLookups) ListSystems(context.Context) ([]model.System, error) { return l.systems, nil }

func (l *fakeLookups) SystemExists(_ context.Context, code string) (bool, error) {
	for _, s := range l.systems {
		if s.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (l *fakeLookups) AddSystem(ctx context.Context, s model.System) error {
	if ok, _ := l.SystemExists(ctx, s.Code); ok {
		return repository.ErrConflict
	}
	l.systems = append(l.systems, s)
	return nil
}

func (l *fakeLookups) ListLocations(context.Context) ([]model.FaultLocation, error) {
	return l.locations, nil
}

func (l *fakeLookups) LocationExists(_ context.Context, name string) (bool, error) {
	for _, loc := range l.locations {
		if loc.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (l *fakeLookups) AddLocation(ctx context.Context, name string) (model.FaultLocation, error) {
	if ok, _ := l.LocationExists(ctx, name); ok {
		return model.FaultLocation{}, repository.ErrConflict
	}
	loc := model.FaultLocation{ID: int64(len(l.locations) + 1), Name: name}
	l.locations = append(l.locations, loc)
	return loc, nil
}

func (l *fakeLookups) ListSections(context.Context) ([]model.Section, error) { return l.sections, nil }

func (l *fakeLookups) SectionExists(_ context.Context, id int64) (bool, error) {
	for _, s := range l.sections {
		if s.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (l *fakeLookups) AddSection(_ context.Context, name string) (model.Section, error) {
	for _, s := range l.sections {
		if s.Name == name {
			return model.Section{}, repository.ErrConflict
		}
	}
	s := model.Section{ID: int64(len(l.sections) + 1), Name: name}
	l.sections = append(l.sections, s)
	return s, nil
}

type fakeUsers struct{ users []model.User }

func (u *fakeUsers) GetByID(_ context.Context, id int64) (model.User, error) {
	for _, x := range u.users {
		if x.ID == id {
			return x, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (u *fakeUsers) GetByUsername(_ context.Context, name string) (model.User, error) {
	for _, x := range u.users {
		if x.Username == name {
			return x, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (u *fakeUsers) ListActiveByRole(_ context.Context, role string) ([]model.User, error) {
	var out []model.User
	for _, x := range u.users {
		if x.Role == role && x.IsActive {
			out = append(out, x)
		}
	}
	return out, nil
}

type memBlobs struct {
	mu      sync.Mutex
	files   map[string][]byte
	n       int
	failErr error
}

func newMemBlobs() *memBlobs { return &memBlobs{files: map[string][]byte{}} }

func (b *memBlobs) Save(_ context.Context, name string, r io.Reader) (string, error) {
	if b.failErr != nil {
		return "", b.failErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n++
	path := fmt.Sprintf("p/%d_%s", b.n, name)
	b.files[path] = data
	return path, nil
}

func (b *memBlobs) Remove(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.files[path]; !ok {
		return fmt.Errorf("remove %s: %w", path, os.ErrNotExist)
	}
	delete(b.files, path)
	return nil
}

func (b *memBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.files)
}

type recPublisher struct {
	mu     sync.Mutex
	events []queue.FaultEvent
	err    error
}

func (p *recPublisher) PublishFaultEvent(_ context.Context, ev queue.FaultEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// Principals used across the tests.
var (
	admin    = Principal{ID: 1, Username: "admin", Role: model.RoleAdmin}
	john     = Principal{ID: 2, Username: "John Doe", Role: model.RoleTechnician}
	jane     = Principal{ID: 3, Username: "Jane Smith", Role: model.RoleTechnician}
	watcher  = Principal{ID: 4, Username: "viewer", Role: model.RoleViewer}
	baseTime = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
)

type harness struct {
	db      *memDB
	lookups *fakeLookups
	users   *fakeUsers
	photos  *fakePhotos
	blobs   *memBlobs
	events  *recPublisher
	store   *FaultStore
	notes   *NoteLedger
	pm      *PhotoManager
	techs   *TechnicianRegistry
}

// newHarness wires the core against in-memory fakes. The clock advances
// one second per reading so timestamps strictly increase.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{db: newMemDB(), blobs: newMemBlobs(), events: &recPublisher{}}
	h.lookups = &fakeLookups{
		systems:   []model.System{{Code: "NETWORK", Name: "Network"}, {Code: "POWER", Name: "Power"}},
		locations: []model.FaultLocation{{ID: 1, Name: "Server Room"}},
		sections:  []model.Section{{ID: 1, Name: "IT"}},
	}
	h.users = &fakeUsers{users: []model.User{
		{ID: 1, Username: "admin", Role: model.RoleAdmin, IsActive: true},
		{ID: 2, Username: "John Doe", Role: model.RoleTechnician, IsActive: true},
		{ID: 3, Username: "Jane Smith", Role: model.RoleTechnician, IsActive: true},
		{ID: 4, Username: "viewer", Role: model.RoleViewer, IsActive: true},
		{ID: 5, Username: "Old Tech", Role: model.RoleTechnician, IsActive: false},
	}}
	h.photos = &fakePhotos{db: h.db}

	tick := baseTime
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Second)
		return tick
	}

	faults := fakeFaults{db: h.db}
	notes := fakeNotes{db: h.db}
	h.techs = NewTechnicianRegistry(h.users)
	h.store = NewFaultStore(faults, notes, NewLookupRegistry(h.lookups), h.techs, h.blobs, h.events)
	h.store.now = clock
	h.notes = NewNoteLedger(faults, notes, h.techs)
	h.notes.now = clock
	h.pm = NewPhotoManager(faults, h.photos, h.blobs, h.store)
	h.pm.now = clock
	return h
}

func scenarioA() Fields {
	return Fields{
		"SystemID":   "NETWORK",
		"Location":   "BIA",
		"DescFault":  "Switch down",
		"ReportedBy": "Alice",
		"AssignTo":   "John Doe",
	}
}

func (h *harness) mustCreate(t *testing.T, fields Fields) *model.Fault {
	t.Helper()
	f, err := h.store.Create(context.Background(), admin, fields)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return f
}

func wantKind(t *testing.T, err error, k Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("err = nil, want %s", k)
	}
	if got := KindOf(err); got != k {
		t.Fatalf("kind = %s (%v), want %s", got, err, k)
	}
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 32)...)

var errBoom = errors.New("boom")
