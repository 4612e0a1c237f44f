package safety

import (
	"math"
	"time"

	"aeria-sms/core/capas"
	"aeria-sms/core/incidents"
	"aeria-sms/core/store"
)

// IncidentStats aggregates an incident collection for a reporting window.
type IncidentStats struct {
	Total           int            `json:"total"`
	ByType          map[string]int `json:"by_type"`
	BySeverity      map[string]int `json:"by_severity"`
	ByStatus        map[string]int `json:"by_status"`
	ByRPASType      map[string]int `json:"by_rpas_type"`
	TotalRecordable int            `json:"total_recordable"`
	TotalNearMiss   int            `json:"total_near_miss"`
	TotalLostDays   int            `json:"total_lost_days"`
}

func ComputeIncidentStats(items []store.Incident) IncidentStats {
	stats := IncidentStats{
		ByType:     map[string]int{},
		BySeverity: map[string]int{},
		ByStatus:   map[string]int{},
		ByRPASType: map[string]int{},
	}
	for _, inc := range items {
		stats.Total++
		stats.ByType[inc.Type]++
		stats.BySeverity[inc.Severity]++
		stats.ByStatus[inc.Status]++
		if inc.RPASType != "" {
			stats.ByRPASType[inc.RPASType]++
		}
		if incidents.Recordable(inc.Severity) {
			stats.TotalRecordable++
		}
		if inc.Type == incidents.TypeNearMiss || inc.Severity == incidents.SeverityNearMiss {
			stats.TotalNearMiss++
		}
		for _, p := range inc.InvolvedPersons {
			stats.TotalLostDays += p.DaysLost
		}
	}
	return stats
}

// Rate is a normalized frequency indicator. Valid is false when the hours
// denominator was missing, in which case Message explains the zero value.
type Rate struct {
	Value   float64 `json:"value"`
	Valid   bool    `json:"valid"`
	Message string  `json:"message,omitempty"`
}

const (
	trirReferenceHours  = 200000
	ltifrReferenceHours = 1000000
)

// TRIR is the total recordable incident rate per 200,000 hours worked.
func TRIR(items []store.Incident, hoursWorked float64) Rate {
	if hoursWorked <= 0 {
		return Rate{Message: "hours worked not provided"}
	}
	recordable := ComputeIncidentStats(items).TotalRecordable
	return Rate{Value: round2(float64(recordable) * trirReferenceHours / hoursWorked), Valid: true}
}

// LTIFR is the lost-time injury frequency rate per 1,000,000 hours worked.
func LTIFR(items []store.Incident, hoursWorked float64) Rate {
	if hoursWorked <= 0 {
		return Rate{Message: "hours worked not provided"}
	}
	lostTime := 0
	for _, inc := range items {
		if inc.Type == incidents.TypeLostTime {
			lostTime++
		}
	}
	return Rate{Value: round2(float64(lostTime) * ltifrReferenceHours / hoursWorked), Valid: true}
}

// NearMissRatioResult carries the ratio of near misses to other incidents
// plus a qualitative assessment band.
type NearMissRatioResult struct {
	Ratio      *float64 `json:"ratio,omitempty"`
	Assessment string   `json:"assessment"`
}

func NearMissRatio(items []store.Incident) NearMissRatioResult {
	stats := ComputeIncidentStats(items)
	denominator := stats.Total - stats.TotalNearMiss
	if denominator == 0 {
		if stats.TotalNearMiss > 0 {
			return NearMissRatioResult{Assessment: "Excellent"}
		}
		return NearMissRatioResult{Assessment: "N/A"}
	}
	ratio := round2(float64(stats.TotalNearMiss) / float64(denominator))
	return NearMissRatioResult{Ratio: &ratio, Assessment: assessRatio(ratio)}
}

func assessRatio(ratio float64) string {
	switch {
	case ratio >= 10:
		return "Excellent"
	case ratio >= 5:
		return "Good"
	case ratio >= 2:
		return "Fair"
	default:
		return "Needs improvement"
	}
}

// CAPAStats aggregates a CAPA collection.
type CAPAStats struct {
	Total              int            `json:"total"`
	ByStatus           map[string]int `json:"by_status"`
	ByType             map[string]int `json:"by_type"`
	ByPriority         map[string]int `json:"by_priority"`
	TotalOverdue       int            `json:"total_overdue"`
	OnTimeRate         *float64       `json:"on_time_rate,omitempty"`
	EffectivenessRate  *float64       `json:"effectiveness_rate,omitempty"`
	AverageDaysToClose *float64       `json:"average_days_to_close,omitempty"`
}

func ComputeCAPAStats(items []store.CAPA, now time.Time) CAPAStats {
	stats := CAPAStats{
		ByStatus:   map[string]int{},
		ByType:     map[string]int{},
		ByPriority: map[string]int{},
	}
	onTimeCount, lateCount := 0, 0
	effectiveCount, ineffectiveCount := 0, 0
	closedDays, closedCount := 0, 0
	for i := range items {
		c := &items[i]
		stats.Total++
		stats.ByStatus[c.Status]++
		stats.ByType[c.Type]++
		stats.ByPriority[c.Priority]++
		if c.Status == capas.StatusOpen || c.Status == capas.StatusInProgress {
			if target := c.EffectiveTargetDate(); target != nil && target.Before(now) {
				stats.TotalOverdue++
			}
		}
		if c.OnTime != nil {
			if *c.OnTime {
				onTimeCount++
			} else {
				lateCount++
			}
		}
		if c.EffectivenessScore != nil {
			if *c.EffectivenessScore >= 100 {
				effectiveCount++
			} else {
				ineffectiveCount++
			}
		}
		if c.Status == capas.StatusClosed && c.ClosedAt != nil {
			closedDays += int(c.ClosedAt.Sub(c.CreatedAt).Hours() / 24)
			closedCount++
		}
	}
	if onTimeCount+lateCount > 0 {
		rate := round2(float64(onTimeCount) / float64(onTimeCount+lateCount) * 100)
		stats.OnTimeRate = &rate
	}
	if effectiveCount+ineffectiveCount > 0 {
		rate := round2(float64(effectiveCount) / float64(effectiveCount+ineffectiveCount) * 100)
		stats.EffectivenessRate = &rate
	}
	if closedCount > 0 {
		avg := round2(float64(closedDays) / float64(closedCount))
		stats.AverageDaysToClose = &avg
	}
	return stats
}

// DaysSinceLastIncident returns whole days since the most recent occurrence,
// optionally ignoring near-miss severity events. A nil result means there is
// nothing on record.
func DaysSinceLastIncident(items []store.Incident, excludeNearMiss bool, now time.Time) *int {
	var latest *time.Time
	for i := range items {
		inc := &items[i]
		if excludeNearMiss && inc.Severity == incidents.SeverityNearMiss {
			continue
		}
		if latest == nil || inc.OccurredAt.After(*latest) {
			t := inc.OccurredAt
			latest = &t
		}
	}
	if latest == nil {
		return nil
	}
	days := int(now.Sub(*latest).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &days
}

// safetyScoreWeights drives the composite safety score. The result is
// re-normalized over whichever metrics were actually supplied.
var safetyScoreWeights = map[string]float64{
	"flhaCompletion":       0.15,
	"trainingCompliance":   0.15,
	"inspectionCompliance": 0.10,
	"capaOnTime":           0.15,
	"actionClosure":        0.10,
	"nearMissReporting":    0.10,
	"meetingAttendance":    0.10,
	"equipmentAirworthy":   0.15,
}

// SafetyScore computes the weighted composite score over the supplied
// metrics. Inputs above 1 are treated as percentages. Returns nil when no
// known metric was supplied.
func SafetyScore(metrics map[string]float64) *int {
	weightedSum := 0.0
	weightTotal := 0.0
	for key, value := range metrics {
		weight, ok := safetyScoreWeights[key]
		if !ok {
			continue
		}
		if value > 1 {
			value /= 100
		}
		weightedSum += value * weight
		weightTotal += weight
	}
	if weightTotal == 0 {
		return nil
	}
	score := int(math.Round(weightedSum / weightTotal * 100))
	return &score
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
