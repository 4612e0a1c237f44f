package store

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"aeria-sms/config"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := &config.AppConfig{
		DBDriver: "sqlite",
		DBPath:   filepath.Join(t.TempDir(), "test.db"),
	}
	db, err := NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := ApplyMigrations(context.Background(), db, "sqlite", logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestIncidentRegNoSequence(t *testing.T) {
	db := testDB(t)
	s := NewIncidentsStore(db)
	ctx := context.Background()

	occurred := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	first := &Incident{Title: "first", Type: "equipment", Severity: "minor", Status: "reported", OccurredAt: occurred, ReportedDate: occurred}
	if _, err := s.CreateIncident(ctx, first, "INC-{year}-{seq:04}"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.RegNo != "INC-2026-0001" {
		t.Fatalf("reg_no = %q, want INC-2026-0001", first.RegNo)
	}

	second := &Incident{Title: "second", Type: "equipment", Severity: "minor", Status: "reported", OccurredAt: occurred, ReportedDate: occurred}
	if _, err := s.CreateIncident(ctx, second, "INC-{year}-{seq:04}"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if second.RegNo != "INC-2026-0002" {
		t.Fatalf("reg_no = %q, want INC-2026-0002", second.RegNo)
	}

	// A different year starts its own sequence.
	other := &Incident{Title: "other year", Type: "equipment", Severity: "minor", Status: "reported",
		OccurredAt: occurred.AddDate(1, 0, 0), ReportedDate: occurred.AddDate(1, 0, 0)}
	if _, err := s.CreateIncident(ctx, other, "INC-{year}-{seq:04}"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if other.RegNo != "INC-2027-0001" {
		t.Fatalf("reg_no = %q, want INC-2027-0001", other.RegNo)
	}
}

func TestIncidentSequenceNotReusedAfterDelete(t *testing.T) {
	db := testDB(t)
	s := NewIncidentsStore(db)
	ctx := context.Background()

	occurred := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	first := &Incident{Title: "gone", Type: "injury", Severity: "minor", Status: "reported", OccurredAt: occurred, ReportedDate: occurred}
	id, err := s.CreateIncident(ctx, first, "INC-{year}-{seq:04}")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.DeleteIncident(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}

	next := &Incident{Title: "next", Type: "injury", Severity: "minor", Status: "reported", OccurredAt: occurred, ReportedDate: occurred}
	if _, err := s.CreateIncident(ctx, next, "INC-{year}-{seq:04}"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if next.RegNo != "INC-2026-0002" {
		t.Fatalf("reg_no = %q, deleted sequence numbers must not be reused", next.RegNo)
	}
}

func TestIncidentRoundTrip(t *testing.T) {
	db := testDB(t)
	s := NewIncidentsStore(db)
	ctx := context.Background()

	lat, lng := 49.2827, -123.1207
	occurred := time.Date(2026, 2, 14, 15, 30, 0, 0, time.UTC)
	inc := &Incident{
		Title:        "battery fire on landing",
		Description:  "pack swelled and ignited after hard landing",
		Type:         "fire",
		RPASType:     "loss_of_control",
		Severity:     "serious",
		Status:       "reported",
		OccurredAt:   occurred,
		ReportedDate: occurred.Add(2 * time.Hour),
		ReportedBy:   "jordan",
		Location:     "Site 12",
		GPSLat:       &lat,
		GPSLng:       &lng,
		InvolvedPersons: []InvolvedPerson{
			{Name: "Sam", Role: "pilot", InjuryClassification: "first_aid", Hospitalized: true},
		},
		EquipmentDamage: []EquipmentDamageItem{{Description: "airframe", Cost: 4200, Repairable: false}},
		Notifications: IncidentNotifications{
			TSB:   NotificationRecord{Required: true},
			Aeria: NotificationRecord{Required: true},
		},
	}
	id, err := s.CreateIncident(ctx, inc, "INC-{year}-{seq:04}")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetIncident(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != inc.Title || got.Type != "fire" || got.Severity != "serious" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.GPSLat == nil || *got.GPSLat != lat {
		t.Fatalf("gps_lat lost: %+v", got.GPSLat)
	}
	if len(got.InvolvedPersons) != 1 || !got.InvolvedPersons[0].Hospitalized {
		t.Fatalf("involved persons lost: %+v", got.InvolvedPersons)
	}
	if !got.Notifications.TSB.Required {
		t.Fatalf("notifications lost: %+v", got.Notifications)
	}
	if got.Version != 1 {
		t.Fatalf("version = %d, want 1", got.Version)
	}

	byReg, err := s.GetIncidentByRegNo(ctx, got.RegNo)
	if err != nil {
		t.Fatalf("get by reg_no: %v", err)
	}
	if byReg.ID != id {
		t.Fatalf("get by reg_no returned id %d, want %d", byReg.ID, id)
	}
}

func TestIncidentUpdateVersionConflict(t *testing.T) {
	db := testDB(t)
	s := NewIncidentsStore(db)
	ctx := context.Background()

	occurred := time.Now().UTC()
	inc := &Incident{Title: "t", Type: "other", Severity: "minor", Status: "reported", OccurredAt: occurred, ReportedDate: occurred}
	if _, err := s.CreateIncident(ctx, inc, "INC-{year}-{seq:04}"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.UpdateIncident(ctx, inc, 1); err != nil {
		t.Fatalf("update: %v", err)
	}
	if inc.Version != 2 {
		t.Fatalf("version = %d, want 2", inc.Version)
	}
	if err := s.UpdateIncident(ctx, inc, 1); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale update err = %v, want ErrConflict", err)
	}
}

func TestGetIncidentNotFound(t *testing.T) {
	db := testDB(t)
	s := NewIncidentsStore(db)
	if _, err := s.GetIncident(context.Background(), 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCAPARegNoPrefixIndependent(t *testing.T) {
	db := testDB(t)
	incidentsS := NewIncidentsStore(db)
	capasS := NewCAPAsStore(db)
	ctx := context.Background()

	occurred := time.Now().UTC()
	inc := &Incident{Title: "t", Type: "other", Severity: "minor", Status: "reported", OccurredAt: occurred, ReportedDate: occurred}
	if _, err := incidentsS.CreateIncident(ctx, inc, "INC-{year}-{seq:04}"); err != nil {
		t.Fatalf("create incident: %v", err)
	}

	c := &CAPA{SourceType: "incident", Type: "corrective", Priority: "medium", Status: "open"}
	if _, err := capasS.CreateCAPA(ctx, c, "CAPA-{year}-{seq:04}"); err != nil {
		t.Fatalf("create capa: %v", err)
	}
	year := time.Now().UTC().Year()
	want := BuildRegNo("CAPA-{year}-{seq:04}", year, 1)
	if c.RegNo != want {
		t.Fatalf("capa reg_no = %q, want %q (sequences are per prefix)", c.RegNo, want)
	}
}

func TestCAPAStatusHistoryAndComments(t *testing.T) {
	db := testDB(t)
	s := NewCAPAsStore(db)
	ctx := context.Background()

	c := &CAPA{SourceType: "audit", Type: "preventive", Priority: "high", Status: "open"}
	id, err := s.CreateCAPA(ctx, c, "CAPA-{year}-{seq:04}")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.AddStatusHistory(ctx, &StatusHistoryEntry{CAPAID: id, ToStatus: "open", Actor: "amy", Reason: "created"}); err != nil {
		t.Fatalf("add history: %v", err)
	}
	if _, err := s.AddStatusHistory(ctx, &StatusHistoryEntry{CAPAID: id, FromStatus: "open", ToStatus: "in_progress", Actor: "amy"}); err != nil {
		t.Fatalf("add history: %v", err)
	}
	entries, err := s.ListStatusHistory(ctx, id)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(entries) != 2 || entries[0].ToStatus != "open" || entries[1].ToStatus != "in_progress" {
		t.Fatalf("history = %+v", entries)
	}

	if _, err := s.AddComment(ctx, &CAPAComment{CAPAID: id, Author: "amy", Body: "waiting on parts"}); err != nil {
		t.Fatalf("add comment: %v", err)
	}
	comments, err := s.ListComments(ctx, id)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 1 || comments[0].Body != "waiting on parts" {
		t.Fatalf("comments = %+v", comments)
	}
}

func TestCAPAListFilters(t *testing.T) {
	db := testDB(t)
	s := NewCAPAsStore(db)
	ctx := context.Background()

	incID := int64(7)
	items := []*CAPA{
		{SourceType: "incident", Type: "corrective", Priority: "high", Status: "open", IncidentID: &incID, AssignedTo: "amy"},
		{SourceType: "audit", Type: "preventive", Priority: "low", Status: "closed", AssignedTo: "bo"},
	}
	for _, c := range items {
		if _, err := s.CreateCAPA(ctx, c, "CAPA-{year}-{seq:04}"); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := s.ListCAPAs(ctx, CAPAFilter{Status: "open"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Status != "open" {
		t.Fatalf("status filter = %+v", got)
	}

	got, err = s.ListCAPAs(ctx, CAPAFilter{IncidentID: incID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].IncidentID == nil || *got[0].IncidentID != incID {
		t.Fatalf("incident filter = %+v", got)
	}
}

func TestAuditAndSnapshots(t *testing.T) {
	db := testDB(t)
	audits := NewAuditStore(db)
	snaps := NewSnapshotsStore(db)
	ctx := context.Background()

	if err := audits.Append(ctx, "amy", "incident.create", "INC-2026-0001"); err != nil {
		t.Fatalf("append: %v", err)
	}
	entries, err := audits.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "incident.create" {
		t.Fatalf("audit entries = %+v", entries)
	}

	if err := snaps.UpsertSnapshot(ctx, "2026-09-01", `{"a":1}`); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := snaps.UpsertSnapshot(ctx, "2026-09-01", `{"a":2}`); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got, err := snaps.ListSnapshots(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Payload != `{"a":2}` {
		t.Fatalf("snapshots = %+v", got)
	}
}
