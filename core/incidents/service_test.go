package incidents

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"aeria-sms/config"
	"aeria-sms/core/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := &config.AppConfig{
		DBDriver:  "sqlite",
		DBPath:    filepath.Join(t.TempDir(), "test.db"),
		Incidents: config.IncidentsConfig{RegNoFormat: "INC-{year}-{seq:04}"},
	}
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, "sqlite", logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewService(cfg, store.NewIncidentsStore(db), store.NewAuditStore(db), logger)
}

func TestCreateIncidentSeedsEverything(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	occurred := time.Now().UTC().Add(-50 * time.Hour)
	inc, err := svc.Create(ctx, &store.Incident{
		Title:      "prop strike during survey",
		Type:       TypeFirstAid,
		Severity:   SeverityMinor,
		OccurredAt: occurred,
	}, "amy")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inc.Status != StatusReported {
		t.Fatalf("status = %q, want reported", inc.Status)
	}
	if !strings.HasPrefix(inc.RegNo, "INC-") {
		t.Fatalf("reg_no = %q", inc.RegNo)
	}
	// 50h late report rounds up to 3 whole days.
	if inc.ReportingDelayDays != 3 {
		t.Fatalf("reporting_delay_days = %d, want 3", inc.ReportingDelayDays)
	}
	if !inc.Notifications.Aeria.Required {
		t.Fatal("internal notification requirement missing")
	}

	entries, err := svc.Timeline(ctx, inc.ID)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "Incident reported" {
		t.Fatalf("timeline = %+v", entries)
	}
}

func TestChangeStatusGuardsAndTimeline(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	inc, err := svc.Create(ctx, &store.Incident{
		Title: "t", Type: TypePropertyDamage, Severity: SeverityMinor, OccurredAt: time.Now().UTC(),
	}, "amy")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.ChangeStatus(ctx, inc.ID, StatusUnderInvestigation, "amy", "assigned"); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := svc.ChangeStatus(ctx, inc.ID, StatusReported, "amy", ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("backward err = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.ChangeStatus(ctx, inc.ID, StatusClosed, "amy", ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("close via status err = %v, want ErrInvalidTransition", err)
	}

	entries, err := svc.Timeline(ctx, inc.ID)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("timeline entries = %d, want 2", len(entries))
	}
	if entries[1].Action != "Status changed from reported to under_investigation" {
		t.Fatalf("timeline action = %q", entries[1].Action)
	}
}

func TestCloseIncident(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	inc, err := svc.Create(ctx, &store.Incident{
		Title: "t", Type: TypeNearMiss, Severity: SeverityNearMiss, OccurredAt: time.Now().UTC(),
	}, "amy")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	closed, err := svc.Close(ctx, inc.ID, "amy", "reviewed, no action")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != StatusClosed {
		t.Fatalf("status = %q, want closed", closed.Status)
	}
	if closed.ClosedAt == nil || closed.ClosedBy != "amy" {
		t.Fatalf("closure stamps missing: %+v", closed)
	}
	if closed.ResolutionDays == nil {
		t.Fatal("resolution_days not computed")
	}

	if _, err := svc.Close(ctx, inc.ID, "amy", ""); !errors.Is(err, ErrTerminalStatus) {
		t.Fatalf("double close err = %v, want ErrTerminalStatus", err)
	}
}

func TestMarkNotified(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	inc, err := svc.Create(ctx, &store.Incident{
		Title: "t", Type: TypeAircraft, Severity: SeverityModerate, RPASType: RPASNearMissAircraft, OccurredAt: time.Now().UTC(),
	}, "amy")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !inc.Notifications.TSB.Required {
		t.Fatal("expected TSB requirement")
	}

	got, err := svc.MarkNotified(ctx, inc.ID, BodyTSB, time.Time{}, "TSB-REF-99", "amy")
	if err != nil {
		t.Fatalf("mark notified: %v", err)
	}
	if !got.Notifications.TSB.Notified || got.Notifications.TSB.NotifiedDate == nil {
		t.Fatalf("tsb record = %+v", got.Notifications.TSB)
	}
	if got.Notifications.TSB.Reference != "TSB-REF-99" {
		t.Fatalf("reference = %q", got.Notifications.TSB.Reference)
	}

	if _, err := svc.MarkNotified(ctx, inc.ID, "faa", time.Time{}, "", "amy"); !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("unknown body err = %v, want ErrUnknownBody", err)
	}
}

func TestLinkCAPAIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	inc, err := svc.Create(ctx, &store.Incident{
		Title: "t", Type: TypeLostTime, Severity: SeverityModerate, OccurredAt: time.Now().UTC(),
	}, "amy")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.LinkCAPA(ctx, inc.ID, 41); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := svc.LinkCAPA(ctx, inc.ID, 41); err != nil {
		t.Fatalf("re-link: %v", err)
	}
	if err := svc.LinkCAPA(ctx, inc.ID, 42); err != nil {
		t.Fatalf("link second: %v", err)
	}

	got, err := svc.Get(ctx, inc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.LinkedCAPAIDs) != 2 || got.LinkedCAPAIDs[0] != 41 || got.LinkedCAPAIDs[1] != 42 {
		t.Fatalf("linked ids = %v", got.LinkedCAPAIDs)
	}
}

func TestCeilDays(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{-3 * time.Hour, 0},
		{time.Hour, 1},
		{24 * time.Hour, 1},
		{25 * time.Hour, 2},
		{50 * time.Hour, 3},
	}
	for _, tc := range cases {
		if got := ceilDays(tc.d); got != tc.want {
			t.Errorf("ceilDays(%s) = %d, want %d", tc.d, got, tc.want)
		}
	}
}
