package safety

import (
	"testing"
	"time"

	"aeria-sms/core/capas"
	"aeria-sms/core/incidents"
	"aeria-sms/core/store"
)

func incident(incType, severity string) store.Incident {
	return store.Incident{Type: incType, Severity: severity, OccurredAt: time.Now().UTC()}
}

func TestComputeIncidentStats(t *testing.T) {
	items := []store.Incident{
		incident(incidents.TypeNearMiss, incidents.SeverityNearMiss),
		incident(incidents.TypeFirstAid, incidents.SeverityMinor),
		incident(incidents.TypeMedicalAid, incidents.SeverityModerate),
		incident(incidents.TypeLostTime, incidents.SeveritySerious),
	}
	items[3].InvolvedPersons = []store.InvolvedPerson{{Name: "Sam", DaysLost: 5}, {Name: "Lee", DaysLost: 2}}

	stats := ComputeIncidentStats(items)
	if stats.Total != 4 {
		t.Fatalf("total = %d", stats.Total)
	}
	if stats.TotalRecordable != 2 {
		t.Fatalf("recordable = %d, want 2 (moderate and above)", stats.TotalRecordable)
	}
	if stats.TotalNearMiss != 1 {
		t.Fatalf("near miss = %d", stats.TotalNearMiss)
	}
	if stats.TotalLostDays != 7 {
		t.Fatalf("lost days = %d, want 7", stats.TotalLostDays)
	}
	if stats.BySeverity[incidents.SeverityModerate] != 1 || stats.ByType[incidents.TypeLostTime] != 1 {
		t.Fatalf("breakdowns = %+v", stats)
	}
}

func TestTRIR(t *testing.T) {
	items := []store.Incident{
		incident(incidents.TypeMedicalAid, incidents.SeverityModerate),
		incident(incidents.TypeLostTime, incidents.SeveritySerious),
		incident(incidents.TypeFirstAid, incidents.SeverityMinor),
	}
	rate := TRIR(items, 100000)
	if !rate.Valid {
		t.Fatalf("rate = %+v", rate)
	}
	// 2 recordable * 200000 / 100000 = 4.0
	if rate.Value != 4.0 {
		t.Fatalf("trir = %v, want 4.0", rate.Value)
	}
}

func TestTRIRWithoutHours(t *testing.T) {
	rate := TRIR([]store.Incident{incident(incidents.TypeLostTime, incidents.SeveritySerious)}, 0)
	if rate.Valid {
		t.Fatal("zero hours must not produce a valid rate")
	}
	if rate.Message == "" {
		t.Fatal("missing-hours rate must explain itself")
	}
}

func TestLTIFR(t *testing.T) {
	items := []store.Incident{
		incident(incidents.TypeLostTime, incidents.SeveritySerious),
		incident(incidents.TypeMedicalAid, incidents.SeverityModerate),
	}
	rate := LTIFR(items, 500000)
	if !rate.Valid {
		t.Fatalf("rate = %+v", rate)
	}
	// 1 lost-time * 1000000 / 500000 = 2.0
	if rate.Value != 2.0 {
		t.Fatalf("ltifr = %v, want 2.0", rate.Value)
	}
}

func TestNearMissRatio(t *testing.T) {
	var items []store.Incident
	for i := 0; i < 20; i++ {
		items = append(items, incident(incidents.TypeNearMiss, incidents.SeverityNearMiss))
	}
	items = append(items,
		incident(incidents.TypeFirstAid, incidents.SeverityMinor),
		incident(incidents.TypeMedicalAid, incidents.SeverityModerate),
	)
	got := NearMissRatio(items)
	if got.Ratio == nil || *got.Ratio != 10.0 {
		t.Fatalf("ratio = %v, want 10.0", got.Ratio)
	}
	if got.Assessment != "Excellent" {
		t.Fatalf("assessment = %q", got.Assessment)
	}
}

func TestNearMissRatioBands(t *testing.T) {
	cases := []struct {
		ratio float64
		want  string
	}{
		{12, "Excellent"},
		{10, "Excellent"},
		{7, "Good"},
		{5, "Good"},
		{3, "Fair"},
		{2, "Fair"},
		{1, "Needs improvement"},
		{0, "Needs improvement"},
	}
	for _, tc := range cases {
		if got := assessRatio(tc.ratio); got != tc.want {
			t.Errorf("assessRatio(%v) = %q, want %q", tc.ratio, got, tc.want)
		}
	}
}

func TestNearMissRatioDegenerate(t *testing.T) {
	onlyNearMisses := []store.Incident{incident(incidents.TypeNearMiss, incidents.SeverityNearMiss)}
	got := NearMissRatio(onlyNearMisses)
	if got.Ratio != nil || got.Assessment != "Excellent" {
		t.Fatalf("all near misses = %+v", got)
	}

	got = NearMissRatio(nil)
	if got.Ratio != nil || got.Assessment != "N/A" {
		t.Fatalf("empty set = %+v", got)
	}
}

func boolp(v bool) *bool { return &v }
func intp(v int) *int    { return &v }

func TestComputeCAPAStats(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -5)
	future := now.AddDate(0, 0, 5)
	created := now.AddDate(0, 0, -10)

	items := []store.CAPA{
		{Status: capas.StatusOpen, Type: capas.TypeCorrective, Priority: capas.PriorityHigh, TargetDate: &past},
		{Status: capas.StatusInProgress, Type: capas.TypeCorrective, Priority: capas.PriorityMedium, TargetDate: &future},
		{Status: capas.StatusClosed, Type: capas.TypePreventive, Priority: capas.PriorityLow,
			OnTime: boolp(true), EffectivenessScore: intp(100), ClosedAt: &now, CreatedAt: created},
		{Status: capas.StatusVerifiedIneffective, Type: capas.TypeCorrective, Priority: capas.PriorityHigh,
			OnTime: boolp(false), EffectivenessScore: intp(0)},
	}

	stats := ComputeCAPAStats(items, now)
	if stats.Total != 4 {
		t.Fatalf("total = %d", stats.Total)
	}
	if stats.TotalOverdue != 1 {
		t.Fatalf("overdue = %d, want 1 (only active past target)", stats.TotalOverdue)
	}
	if stats.OnTimeRate == nil || *stats.OnTimeRate != 50.0 {
		t.Fatalf("on-time rate = %v, want 50", stats.OnTimeRate)
	}
	if stats.EffectivenessRate == nil || *stats.EffectivenessRate != 50.0 {
		t.Fatalf("effectiveness rate = %v, want 50", stats.EffectivenessRate)
	}
	if stats.AverageDaysToClose == nil || *stats.AverageDaysToClose != 10.0 {
		t.Fatalf("avg days to close = %v, want 10", stats.AverageDaysToClose)
	}
}

func TestComputeCAPAStatsNilRates(t *testing.T) {
	stats := ComputeCAPAStats([]store.CAPA{{Status: capas.StatusOpen, Type: capas.TypeCorrective, Priority: capas.PriorityLow}}, time.Now().UTC())
	if stats.OnTimeRate != nil || stats.EffectivenessRate != nil || stats.AverageDaysToClose != nil {
		t.Fatalf("rates must be nil with no data: %+v", stats)
	}
}

func TestOverdueRespectsRevisedTarget(t *testing.T) {
	now := time.Now().UTC()
	past := now.AddDate(0, 0, -5)
	future := now.AddDate(0, 0, 5)
	items := []store.CAPA{
		{Status: capas.StatusInProgress, Type: capas.TypeCorrective, Priority: capas.PriorityHigh,
			TargetDate: &past, RevisedTargetDate: &future},
	}
	stats := ComputeCAPAStats(items, now)
	if stats.TotalOverdue != 0 {
		t.Fatalf("overdue = %d, revised target should govern", stats.TotalOverdue)
	}
}

func TestDaysSinceLastIncident(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	items := []store.Incident{
		{Type: incidents.TypeFirstAid, Severity: incidents.SeverityMinor, OccurredAt: now.AddDate(0, 0, -12)},
		{Type: incidents.TypeNearMiss, Severity: incidents.SeverityNearMiss, OccurredAt: now.AddDate(0, 0, -1)},
	}
	got := DaysSinceLastIncident(items, true, now)
	if got == nil || *got != 12 {
		t.Fatalf("days = %v, want 12 (near miss excluded)", got)
	}
	got = DaysSinceLastIncident(items, false, now)
	if got == nil || *got != 1 {
		t.Fatalf("days = %v, want 1 (near miss counted)", got)
	}
	if got := DaysSinceLastIncident(nil, true, now); got != nil {
		t.Fatalf("empty set = %v, want nil", got)
	}
}

func TestSafetyScore(t *testing.T) {
	// Full marks across all metrics.
	full := map[string]float64{}
	for key := range safetyScoreWeights {
		full[key] = 100
	}
	got := SafetyScore(full)
	if got == nil || *got != 100 {
		t.Fatalf("score = %v, want 100", got)
	}

	// Partial inputs re-normalize over the supplied weights.
	partial := map[string]float64{
		"capaOnTime":    100,
		"actionClosure": 50,
	}
	got = SafetyScore(partial)
	// (1.0*0.15 + 0.5*0.10) / 0.25 = 0.80
	if got == nil || *got != 80 {
		t.Fatalf("score = %v, want 80", got)
	}

	// Fractional inputs are accepted as-is.
	got = SafetyScore(map[string]float64{"capaOnTime": 0.5})
	if got == nil || *got != 50 {
		t.Fatalf("score = %v, want 50", got)
	}

	if got := SafetyScore(map[string]float64{"unknown": 100}); got != nil {
		t.Fatalf("unknown-only metrics = %v, want nil", got)
	}
	if got := SafetyScore(nil); got != nil {
		t.Fatalf("nil metrics = %v, want nil", got)
	}
}
