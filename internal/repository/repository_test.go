package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/iliyamo/faultdesk/internal/database"
	"github.com/iliyamo/faultdesk/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "faultdesk.sqlite"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db, "sqlite"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newFault(system, assignTo string, at time.Time) *model.Fault {
	return &model.Fault{
		SystemID:   system,
		Location:   "Block A",
		DescFault:  "Printer jam",
		ReportedBy: "Reception",
		AssignTo:   assignTo,
		Status:     model.StatusOpen,
		DateTime:   at,
	}
}

func TestFaultCreateReadsBackRow(t *testing.T) {
	ctx := context.Background()
	repo := NewFaultRepo(openTestDB(t))

	ext := "4411"
	f := newFault("IT", "John Doe", t0)
	f.ExtNo = &ext
	if err := repo.Create(ctx, f, []string{"John Doe"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if f.ID == 0 {
		t.Fatal("expected generated id")
	}
	if f.ExtNo == nil || *f.ExtNo != "4411" {
		t.Fatalf("ExtNo = %v", f.ExtNo)
	}
	if f.SectionID != nil || f.LocationOfFault != nil || f.FaultForwardID != nil {
		t.Fatalf("nullable fields should stay null: %+v", f)
	}
	if !f.DateTime.Equal(t0) {
		t.Fatalf("DateTime = %v, want %v", f.DateTime, t0)
	}

	got, err := repo.GetByID(ctx, f.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AssignTo != "John Doe" || got.Status != model.StatusOpen {
		t.Fatalf("unexpected row %+v", got)
	}
	if _, err := repo.GetByID(ctx, f.ID+100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing fault: err = %v, want ErrNotFound", err)
	}
}

func TestFaultListByAssigneeMatchesGroups(t *testing.T) {
	ctx := context.Background()
	repo := NewFaultRepo(openTestDB(t))

	solo := newFault("IT", "John Doe", t0)
	group := newFault("IT", "John Doe, Jane Smith", t0.Add(time.Hour))
	other := newFault("HVAC", "Jane Smith", t0.Add(2*time.Hour))
	for _, c := range []struct {
		f     *model.Fault
		names []string
	}{
		{solo, []string{"John Doe"}},
		{group, []string{"John Doe", "Jane Smith"}},
		{other, []string{"Jane Smith"}},
	} {
		if err := repo.Create(ctx, c.f, c.names); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != other.ID || all[2].ID != solo.ID {
		t.Fatalf("list should be newest first, got %d rows", len(all))
	}

	john, err := repo.ListByAssignee(ctx, "John Doe")
	if err != nil {
		t.Fatalf("list by assignee: %v", err)
	}
	if len(john) != 2 || john[0].ID != group.ID || john[1].ID != solo.ID {
		t.Fatalf("John Doe should see group then solo fault, got %+v", john)
	}

	ok, err := repo.IsAssigned(ctx, group.ID, "Jane Smith")
	if err != nil || !ok {
		t.Fatalf("IsAssigned(group, Jane) = %v, %v", ok, err)
	}
	ok, err = repo.IsAssigned(ctx, solo.ID, "Jane Smith")
	if err != nil || ok {
		t.Fatalf("IsAssigned(solo, Jane) = %v, %v", ok, err)
	}
}

func TestFaultUpdateRewritesAssignees(t *testing.T) {
	ctx := context.Background()
	repo := NewFaultRepo(openTestDB(t))

	f := newFault("IT", "John Doe", t0)
	if err := repo.Create(ctx, f, []string{"John Doe"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	later := t0.Add(time.Hour)
	got, err := repo.Update(ctx, f.ID, model.FaultUpdate{
		Changes: []model.FieldChange{
			{Field: model.FieldAssignTo, Value: "Jane Smith"},
			{Field: model.FieldStatus, Value: model.StatusPending},
			{Field: model.FieldSectionID, Value: int64(3)},
		},
		Assignees: []string{"Jane Smith"},
		DateTime:  later,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.AssignTo != "Jane Smith" || got.Status != model.StatusPending {
		t.Fatalf("unexpected row %+v", got)
	}
	if got.SectionID == nil || *got.SectionID != 3 {
		t.Fatalf("SectionID = %v", got.SectionID)
	}
	if !got.DateTime.Equal(later) {
		t.Fatalf("DateTime = %v, want %v", got.DateTime, later)
	}

	if ok, _ := repo.IsAssigned(ctx, f.ID, "John Doe"); ok {
		t.Fatal("old assignee row should be gone")
	}
	if ok, _ := repo.IsAssigned(ctx, f.ID, "Jane Smith"); !ok {
		t.Fatal("new assignee row missing")
	}

	// clearing a nullable column
	got, err = repo.Update(ctx, f.ID, model.FaultUpdate{
		Changes:  []model.FieldChange{{Field: model.FieldSectionID, Value: nil}},
		DateTime: later.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("clear section: %v", err)
	}
	if got.SectionID != nil {
		t.Fatalf("SectionID = %v, want nil", *got.SectionID)
	}
}

func TestFaultUpdateErrors(t *testing.T) {
	ctx := context.Background()
	repo := NewFaultRepo(openTestDB(t))

	_, err := repo.Update(ctx, 99, model.FaultUpdate{DateTime: t0})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing fault: err = %v, want ErrNotFound", err)
	}
	_, err = repo.Update(ctx, 1, model.FaultUpdate{
		Changes:  []model.FieldChange{{Field: "id", Value: int64(7)}},
		DateTime: t0,
	})
	if err == nil {
		t.Fatal("non whitelisted field must be refused")
	}
}

func TestFaultDeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	faults, notes, photos := NewFaultRepo(db), NewNoteRepo(db), NewPhotoRepo(db)

	f := newFault("IT", "John Doe", t0)
	if err := faults.Create(ctx, f, []string{"John Doe"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	keep := newFault("IT", "John Doe", t0)
	if err := faults.Create(ctx, keep, []string{"John Doe"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := notes.Create(ctx, &model.Note{UserID: 1, FaultID: f.ID, Notes: "checked", Date: t0}); err != nil {
		t.Fatalf("note: %v", err)
	}
	for _, p := range []string{"2024/03/a.png", "2024/03/b.png"} {
		if err := photos.Create(ctx, &model.Photo{FaultID: f.ID, PhotoPath: p, UploadedAt: t0, UploadedBy: "john"}); err != nil {
			t.Fatalf("photo: %v", err)
		}
	}
	if err := photos.Create(ctx, &model.Photo{FaultID: keep.ID, PhotoPath: "2024/03/c.png", UploadedAt: t0, UploadedBy: "john"}); err != nil {
		t.Fatalf("photo: %v", err)
	}

	paths, err := faults.Delete(ctx, f.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(paths) != 2 || paths[0] != "2024/03/a.png" || paths[1] != "2024/03/b.png" {
		t.Fatalf("paths = %v", paths)
	}
	if ok, _ := faults.Exists(ctx, f.ID); ok {
		t.Fatal("fault still exists")
	}
	if n, _ := notes.CountByFault(ctx, f.ID); n != 0 {
		t.Fatalf("%d notes left", n)
	}
	if left, _ := photos.ListByFault(ctx, f.ID); len(left) != 0 {
		t.Fatalf("%d photos left", len(left))
	}
	if left, _ := photos.ListByFault(ctx, keep.ID); len(left) != 1 {
		t.Fatalf("other fault lost its photo")
	}
	if ok, _ := faults.IsAssigned(ctx, f.ID, "John Doe"); ok {
		t.Fatal("assignee row still exists")
	}

	if _, err := faults.Delete(ctx, f.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestNoteRepoLifecycle(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	faults, notes := NewFaultRepo(db), NewNoteRepo(db)

	f := newFault("IT", "John Doe", t0)
	if err := faults.Create(ctx, f, []string{"John Doe"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	first := &model.Note{UserID: 2, FaultID: f.ID, Notes: "first", Date: t0}
	second := &model.Note{UserID: 2, FaultID: f.ID, Notes: "second", Date: t0.Add(time.Minute)}
	for _, n := range []*model.Note{first, second} {
		if err := notes.Create(ctx, n); err != nil {
			t.Fatalf("note: %v", err)
		}
	}

	list, err := notes.ListByFault(ctx, f.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("notes should be newest first: %+v", list)
	}

	edited := t0.Add(time.Hour)
	if err := notes.Update(ctx, first.ID, "first, edited", edited); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := notes.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Notes != "first, edited" || !got.Date.Equal(edited) {
		t.Fatalf("unexpected note %+v", got)
	}

	if err := notes.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := notes.Delete(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: err = %v", err)
	}
	if err := notes.Update(ctx, first.ID, "x", edited); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update deleted: err = %v", err)
	}
	if _, err := notes.GetByID(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted: err = %v", err)
	}
}

func TestPhotoRepoOrdersByUpload(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	faults, photos := NewFaultRepo(db), NewPhotoRepo(db)

	f := newFault("IT", "John Doe", t0)
	if err := faults.Create(ctx, f, []string{"John Doe"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	late := &model.Photo{FaultID: f.ID, PhotoPath: "late.png", UploadedAt: t0.Add(time.Hour), UploadedBy: "john"}
	early := &model.Photo{FaultID: f.ID, PhotoPath: "early.png", UploadedAt: t0, UploadedBy: model.UnknownUploader}
	for _, p := range []*model.Photo{late, early} {
		if err := photos.Create(ctx, p); err != nil {
			t.Fatalf("photo: %v", err)
		}
	}

	list, err := photos.ListByFault(ctx, f.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].PhotoPath != "early.png" || list[1].PhotoPath != "late.png" {
		t.Fatalf("photos should be in upload order: %+v", list)
	}
	got, err := photos.GetByID(ctx, early.PhotoID)
	if err != nil || got.UploadedBy != model.UnknownUploader {
		t.Fatalf("get = %+v, %v", got, err)
	}
	if err := photos.Delete(ctx, early.PhotoID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := photos.GetByID(ctx, early.PhotoID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted: err = %v", err)
	}
}

func TestLookupRepoRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewLookupRepo(openTestDB(t))

	if err := repo.AddSystem(ctx, model.System{Code: "IT", Name: "Information Technology"}); err != nil {
		t.Fatalf("add system: %v", err)
	}
	if err := repo.AddSystem(ctx, model.System{Code: "IT", Name: "again"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate system: err = %v, want ErrConflict", err)
	}
	if ok, err := repo.SystemExists(ctx, "IT"); err != nil || !ok {
		t.Fatalf("SystemExists = %v, %v", ok, err)
	}
	if ok, _ := repo.SystemExists(ctx, "XX"); ok {
		t.Fatal("unknown system reported as existing")
	}

	loc, err := repo.AddLocation(ctx, "Server Room")
	if err != nil || loc.ID == 0 {
		t.Fatalf("add location = %+v, %v", loc, err)
	}
	if _, err := repo.AddLocation(ctx, "Server Room"); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate location: err = %v", err)
	}

	for _, name := range []string{"Radiology", "Admissions"} {
		if _, err := repo.AddSection(ctx, name); err != nil {
			t.Fatalf("add section: %v", err)
		}
	}
	secs, err := repo.ListSections(ctx)
	if err != nil {
		t.Fatalf("list sections: %v", err)
	}
	if len(secs) != 2 || secs[0].Name != "Admissions" {
		t.Fatalf("sections should be ordered by name: %+v", secs)
	}
	if ok, _ := repo.SectionExists(ctx, secs[0].ID); !ok {
		t.Fatal("section should exist")
	}
}

func TestUserAndTokenRepos(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users, tokens := NewUserRepo(db), NewTokenRepo(db)

	u, err := users.Create(ctx, "john", "John Doe", "s3cret-pass", model.RoleTechnician, 4)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := users.Create(ctx, "john", "", "other-pass", model.RoleViewer, 4); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate username: err = %v, want ErrConflict", err)
	}
	if n, _ := users.Count(ctx); n != 1 {
		t.Fatalf("Count = %d", n)
	}

	got, err := users.GetByUsername(ctx, "john")
	if err != nil || got.ID != u.ID || !got.IsActive || got.DisplayName != "John Doe" {
		t.Fatalf("GetByUsername = %+v, %v", got, err)
	}
	if _, err := users.GetByID(ctx, u.ID+1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID missing: err = %v", err)
	}
	techs, err := users.ListActiveByRole(ctx, model.RoleTechnician)
	if err != nil || len(techs) != 1 {
		t.Fatalf("ListActiveByRole = %v, %v", techs, err)
	}

	exp := time.Now().UTC().Add(time.Hour)
	if err := tokens.StoreRefresh(ctx, u.ID, "hash-1", exp); err != nil {
		t.Fatalf("store refresh: %v", err)
	}
	if id, err := tokens.ValidateRefresh(ctx, "hash-1"); err != nil || id != u.ID {
		t.Fatalf("ValidateRefresh = %d, %v", id, err)
	}
	if err := tokens.RevokeByHash(ctx, "hash-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := tokens.ValidateRefresh(ctx, "hash-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("revoked token: err = %v", err)
	}
	if err := tokens.RevokeByHash(ctx, "hash-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second revoke: err = %v", err)
	}

	if err := tokens.StoreRefresh(ctx, u.ID, "hash-old", time.Now().UTC().Add(-time.Minute)); err != nil {
		t.Fatalf("store expired: %v", err)
	}
	if _, err := tokens.ValidateRefresh(ctx, "hash-old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired token: err = %v", err)
	}
}
