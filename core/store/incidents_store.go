package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type IncidentFilter struct {
	Search   string
	Status   string
	Severity string
	Type     string
	RPASType string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

type IncidentsStore interface {
	CreateIncident(ctx context.Context, inc *Incident, regFormat string) (int64, error)
	UpdateIncident(ctx context.Context, inc *Incident, expectedVersion int) error
	GetIncident(ctx context.Context, id int64) (*Incident, error)
	GetIncidentByRegNo(ctx context.Context, regNo string) (*Incident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error)
	DeleteIncident(ctx context.Context, id int64) error

	AddTimelineEntry(ctx context.Context, entry *TimelineEntry) (int64, error)
	ListTimeline(ctx context.Context, incidentID int64) ([]TimelineEntry, error)
}

type incidentsStore struct {
	db *sql.DB
}

func NewIncidentsStore(db *sql.DB) IncidentsStore {
	return &incidentsStore{db: db}
}

const incidentColumns = `id, reg_no, title, description, incident_type, rpas_type, severity, status,
	occurred_at, reported_date, reported_by, location, gps_lat, gps_lng, project_ref, aircraft_ref,
	involved_persons, equipment_damage, notifications, investigation, linked_capa_ids,
	reporting_delay_days, resolution_days, closed_at, closed_by, created_by, created_at, updated_at, version`

func (s *incidentsStore) CreateIncident(ctx context.Context, inc *Incident, regFormat string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(inc.RegNo) == "" {
		year := inc.OccurredAt.UTC().Year()
		if inc.OccurredAt.IsZero() {
			year = time.Now().UTC().Year()
		}
		seq, err := nextSeqTx(ctx, tx, "INC", year)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		inc.RegNo = BuildRegNo(regFormat, year, seq)
	}
	if inc.Version <= 0 {
		inc.Version = 1
	}
	now := time.Now().UTC()
	inc.CreatedAt = now
	inc.UpdatedAt = now
	res, err := tx.ExecContext(ctx, `
		INSERT INTO incidents(reg_no, title, description, incident_type, rpas_type, severity, status,
			occurred_at, reported_date, reported_by, location, gps_lat, gps_lng, project_ref, aircraft_ref,
			involved_persons, equipment_damage, notifications, investigation, linked_capa_ids,
			reporting_delay_days, resolution_days, closed_at, closed_by, created_by, created_at, updated_at, version)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		inc.RegNo, inc.Title, inc.Description, inc.Type, inc.RPASType, inc.Severity, inc.Status,
		inc.OccurredAt.UTC(), inc.ReportedDate.UTC(), inc.ReportedBy, inc.Location,
		nullableFloat(inc.GPSLat), nullableFloat(inc.GPSLng), inc.ProjectRef, inc.AircraftRef,
		toJSON(personsOrEmpty(inc.InvolvedPersons)), toJSON(damageOrEmpty(inc.EquipmentDamage)),
		toJSON(inc.Notifications), toJSON(inc.Investigation), toJSON(idsOrEmpty(inc.LinkedCAPAIDs)),
		inc.ReportingDelayDays, nullableInt(inc.ResolutionDays), nullableTime(inc.ClosedAt), inc.ClosedBy,
		inc.CreatedBy, now, now, inc.Version)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	id, _ := res.LastInsertId()
	inc.ID = id
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *incidentsStore) UpdateIncident(ctx context.Context, inc *Incident, expectedVersion int) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE incidents SET title=?, description=?, incident_type=?, rpas_type=?, severity=?, status=?,
			occurred_at=?, reported_date=?, reported_by=?, location=?, gps_lat=?, gps_lng=?, project_ref=?, aircraft_ref=?,
			involved_persons=?, equipment_damage=?, notifications=?, investigation=?, linked_capa_ids=?,
			reporting_delay_days=?, resolution_days=?, closed_at=?, closed_by=?, updated_at=?, version=version+1
		WHERE id=? AND version=?`,
		inc.Title, inc.Description, inc.Type, inc.RPASType, inc.Severity, inc.Status,
		inc.OccurredAt.UTC(), inc.ReportedDate.UTC(), inc.ReportedBy, inc.Location,
		nullableFloat(inc.GPSLat), nullableFloat(inc.GPSLng), inc.ProjectRef, inc.AircraftRef,
		toJSON(personsOrEmpty(inc.InvolvedPersons)), toJSON(damageOrEmpty(inc.EquipmentDamage)),
		toJSON(inc.Notifications), toJSON(inc.Investigation), toJSON(idsOrEmpty(inc.LinkedCAPAIDs)),
		inc.ReportingDelayDays, nullableInt(inc.ResolutionDays), nullableTime(inc.ClosedAt), inc.ClosedBy,
		now, inc.ID, expectedVersion)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrConflict
	}
	inc.Version = expectedVersion + 1
	inc.UpdatedAt = now
	return nil
}

func (s *incidentsStore) GetIncident(ctx context.Context, id int64) (*Incident, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id=?`, id)
	return scanIncident(row)
}

func (s *incidentsStore) GetIncidentByRegNo(ctx context.Context, regNo string) (*Incident, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE reg_no=?`, regNo)
	return scanIncident(row)
}

func (s *incidentsStore) ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error) {
	var clauses []string
	var args []any
	if filter.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, filter.Status)
	}
	if filter.Severity != "" {
		clauses = append(clauses, "severity=?")
		args = append(args, filter.Severity)
	}
	if filter.Type != "" {
		clauses = append(clauses, "incident_type=?")
		args = append(args, filter.Type)
	}
	if filter.RPASType != "" {
		clauses = append(clauses, "rpas_type=?")
		args = append(args, filter.RPASType)
	}
	if filter.From != nil {
		clauses = append(clauses, "occurred_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		clauses = append(clauses, "occurred_at <= ?")
		args = append(args, filter.To.UTC())
	}
	if filter.Search != "" {
		clauses = append(clauses, "(title LIKE ? OR description LIKE ? OR reg_no LIKE ?)")
		q := "%" + filter.Search + "%"
		args = append(args, q, q, q)
	}
	query := `SELECT ` + incidentColumns + ` FROM incidents`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY occurred_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Incident
	for rows.Next() {
		inc, err := scanIncidentRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, inc)
	}
	return res, rows.Err()
}

func (s *incidentsStore) DeleteIncident(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM incidents WHERE id=?`, id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	// Timeline rows go with the parent; nothing else cascades.
	_, err = s.db.ExecContext(ctx, `DELETE FROM incident_timeline WHERE incident_id=?`, id)
	return err
}

func (s *incidentsStore) AddTimelineEntry(ctx context.Context, entry *TimelineEntry) (int64, error) {
	now := time.Now().UTC()
	if entry.EntryAt.IsZero() {
		entry.EntryAt = now
	} else {
		entry.EntryAt = entry.EntryAt.UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO incident_timeline(incident_id, entry_at, action, actor, notes)
		VALUES(?,?,?,?,?)`,
		entry.IncidentID, entry.EntryAt, strings.TrimSpace(entry.Action), entry.Actor, entry.Notes)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	entry.ID = id
	return id, nil
}

func (s *incidentsStore) ListTimeline(ctx context.Context, incidentID int64) ([]TimelineEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, incident_id, entry_at, action, actor, notes
		FROM incident_timeline WHERE incident_id=? ORDER BY entry_at ASC, id ASC`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []TimelineEntry
	for rows.Next() {
		var e TimelineEntry
		if err := rows.Scan(&e.ID, &e.IncidentID, &e.EntryAt, &e.Action, &e.Actor, &e.Notes); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncidentInto(sc rowScanner, inc *Incident) error {
	var gpsLat, gpsLng sql.NullFloat64
	var resolution sql.NullInt64
	var closedAt sql.NullTime
	var personsRaw, damageRaw, notifRaw, invRaw, linkedRaw string
	if err := sc.Scan(&inc.ID, &inc.RegNo, &inc.Title, &inc.Description, &inc.Type, &inc.RPASType,
		&inc.Severity, &inc.Status, &inc.OccurredAt, &inc.ReportedDate, &inc.ReportedBy, &inc.Location,
		&gpsLat, &gpsLng, &inc.ProjectRef, &inc.AircraftRef,
		&personsRaw, &damageRaw, &notifRaw, &invRaw, &linkedRaw,
		&inc.ReportingDelayDays, &resolution, &closedAt, &inc.ClosedBy,
		&inc.CreatedBy, &inc.CreatedAt, &inc.UpdatedAt, &inc.Version); err != nil {
		return err
	}
	inc.GPSLat = floatPtr(gpsLat)
	inc.GPSLng = floatPtr(gpsLng)
	inc.ResolutionDays = intPtr(resolution)
	inc.ClosedAt = timePtr(closedAt)
	fromJSON(personsRaw, &inc.InvolvedPersons)
	fromJSON(damageRaw, &inc.EquipmentDamage)
	fromJSON(notifRaw, &inc.Notifications)
	fromJSON(invRaw, &inc.Investigation)
	fromJSON(linkedRaw, &inc.LinkedCAPAIDs)
	return nil
}

func scanIncident(row *sql.Row) (*Incident, error) {
	var inc Incident
	if err := scanIncidentInto(row, &inc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inc, nil
}

func scanIncidentRow(rows *sql.Rows) (Incident, error) {
	var inc Incident
	err := scanIncidentInto(rows, &inc)
	return inc, err
}

func personsOrEmpty(p []InvolvedPerson) []InvolvedPerson {
	if p == nil {
		return []InvolvedPerson{}
	}
	return p
}

func damageOrEmpty(d []EquipmentDamageItem) []EquipmentDamageItem {
	if d == nil {
		return []EquipmentDamageItem{}
	}
	return d
}

func idsOrEmpty(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
