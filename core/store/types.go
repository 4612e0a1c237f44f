package store

import "time"

// Incident is a persisted RPAS safety occurrence. Structured blocks
// (persons, equipment, notifications, investigation) are stored as JSON
// columns; the timeline lives in its own append-only table.
type Incident struct {
	ID          int64  `json:"id"`
	RegNo       string `json:"reg_no"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Type     string `json:"type"`
	RPASType string `json:"rpas_type,omitempty"`
	Severity string `json:"severity"`
	Status   string `json:"status"`

	OccurredAt   time.Time `json:"occurred_at"`
	ReportedDate time.Time `json:"reported_date"`
	ReportedBy   string    `json:"reported_by,omitempty"`
	Location     string    `json:"location,omitempty"`
	GPSLat       *float64  `json:"gps_lat,omitempty"`
	GPSLng       *float64  `json:"gps_lng,omitempty"`
	ProjectRef   string    `json:"project_ref,omitempty"`
	AircraftRef  string    `json:"aircraft_ref,omitempty"`

	InvolvedPersons []InvolvedPerson      `json:"involved_persons,omitempty"`
	EquipmentDamage []EquipmentDamageItem `json:"equipment_damage,omitempty"`
	Notifications   IncidentNotifications `json:"notifications"`
	Investigation   Investigation         `json:"investigation"`
	LinkedCAPAIDs   []int64               `json:"linked_capa_ids,omitempty"`

	ReportingDelayDays int        `json:"reporting_delay_days"`
	ResolutionDays     *int       `json:"resolution_days,omitempty"`
	ClosedAt           *time.Time `json:"closed_at,omitempty"`
	ClosedBy           string     `json:"closed_by,omitempty"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

type InvolvedPerson struct {
	Name                 string `json:"name"`
	Role                 string `json:"role,omitempty"`
	InjuryClassification string `json:"injury_classification,omitempty"`
	DaysLost             int    `json:"days_lost,omitempty"`
	Hospitalized         bool   `json:"hospitalized,omitempty"`
}

type EquipmentDamageItem struct {
	Description string  `json:"description"`
	Cost        float64 `json:"cost,omitempty"`
	Repairable  bool    `json:"repairable,omitempty"`
}

// IncidentNotifications tracks the four regulatory notification channels.
// Aeria is the internal channel: always applicable, never "required" in the
// regulatory sense.
type IncidentNotifications struct {
	TSB             NotificationRecord `json:"tsb"`
	TransportCanada NotificationRecord `json:"transport_canada"`
	WorkSafeBC      NotificationRecord `json:"worksafebc"`
	Aeria           NotificationRecord `json:"aeria"`
}

type NotificationRecord struct {
	Required     bool       `json:"required"`
	Notified     bool       `json:"notified"`
	NotifiedDate *time.Time `json:"notified_date,omitempty"`
	Reference    string     `json:"reference,omitempty"`
}

type Investigation struct {
	AssignedTo            string   `json:"assigned_to,omitempty"`
	SubstandardActs       []string `json:"substandard_acts,omitempty"`
	SubstandardConditions []string `json:"substandard_conditions,omitempty"`
	PersonalFactors       []string `json:"personal_factors,omitempty"`
	JobFactors            []string `json:"job_factors,omitempty"`
	FiveWhys              []string `json:"five_whys,omitempty"`
	Findings              string   `json:"findings,omitempty"`
	Recommendations       string   `json:"recommendations,omitempty"`
}

type TimelineEntry struct {
	ID         int64     `json:"id"`
	IncidentID int64     `json:"incident_id"`
	EntryAt    time.Time `json:"entry_at"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor,omitempty"`
	Notes      string    `json:"notes,omitempty"`
}

// CAPA is a corrective/preventive action record.
type CAPA struct {
	ID    int64  `json:"id"`
	RegNo string `json:"reg_no"`

	SourceType  string `json:"source_type"`
	SourceID    *int64 `json:"source_id,omitempty"`
	SourceLabel string `json:"source_label,omitempty"`

	Type     string `json:"type"`
	Priority string `json:"priority"`
	Category string `json:"category,omitempty"`

	AssignedTo        string     `json:"assigned_to,omitempty"`
	AssignedBy        string     `json:"assigned_by,omitempty"`
	AssignedDate      *time.Time `json:"assigned_date,omitempty"`
	TargetDate        *time.Time `json:"target_date,omitempty"`
	RevisedTargetDate *time.Time `json:"revised_target_date,omitempty"`
	RevisionReason    string     `json:"revision_reason,omitempty"`
	CompletedDate     *time.Time `json:"completed_date,omitempty"`

	Action         CAPAAction         `json:"action"`
	Implementation CAPAImplementation `json:"implementation"`
	Verification   CAPAVerification   `json:"verification"`

	Status         string  `json:"status"`
	IncidentID     *int64  `json:"incident_id,omitempty"`
	RelatedCAPAIDs []int64 `json:"related_capa_ids,omitempty"`

	OnTime             *bool `json:"on_time,omitempty"`
	EffectivenessScore *int  `json:"effectiveness_score,omitempty"`

	// Read-time metrics, recomputed on every load; never persisted.
	DaysOpen    int `json:"days_open"`
	DaysOverdue int `json:"days_overdue"`

	ClosedAt *time.Time `json:"closed_at,omitempty"`
	ClosedBy string     `json:"closed_by,omitempty"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

type CAPAAction struct {
	Description   string   `json:"description,omitempty"`
	Methodology   string   `json:"methodology,omitempty"`
	Resources     []string `json:"resources,omitempty"`
	EstimatedCost float64  `json:"estimated_cost,omitempty"`
	ActualCost    float64  `json:"actual_cost,omitempty"`
}

type CAPAImplementation struct {
	Status          string         `json:"status,omitempty"`
	ActionsTaken    string         `json:"actions_taken,omitempty"`
	Evidence        []EvidenceItem `json:"evidence,omitempty"`
	CompletionNotes string         `json:"completion_notes,omitempty"`
}

type CAPAVerification struct {
	Required        bool            `json:"required"`
	Method          string          `json:"method,omitempty"`
	SuccessCriteria string          `json:"success_criteria,omitempty"`
	VerifiedBy      string          `json:"verified_by,omitempty"`
	VerifiedDate    *time.Time      `json:"verified_date,omitempty"`
	Effective       *bool           `json:"effective,omitempty"`
	Evidence        []EvidenceItem  `json:"evidence,omitempty"`
	Findings        string          `json:"findings,omitempty"`
	RecurrenceCheck RecurrenceCheck `json:"recurrence_check"`
}

type RecurrenceCheck struct {
	Required  bool       `json:"required"`
	CheckDate *time.Time `json:"check_date,omitempty"`
	CheckedBy string     `json:"checked_by,omitempty"`
	Recurred  *bool      `json:"recurred,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

type EvidenceItem struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	AddedBy     string    `json:"added_by,omitempty"`
	AddedAt     time.Time `json:"added_at"`
}

type StatusHistoryEntry struct {
	ID         int64     `json:"id"`
	CAPAID     int64     `json:"capa_id"`
	ChangedAt  time.Time `json:"changed_at"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Actor      string    `json:"actor,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

type CAPAComment struct {
	ID          int64     `json:"id"`
	CAPAID      int64     `json:"capa_id"`
	CommentedAt time.Time `json:"commented_at"`
	Author      string    `json:"author"`
	Body        string    `json:"body"`
}

// EffectiveTargetDate prefers the revised date when one was recorded.
func (c *CAPA) EffectiveTargetDate() *time.Time {
	if c.RevisedTargetDate != nil {
		return c.RevisedTargetDate
	}
	return c.TargetDate
}
