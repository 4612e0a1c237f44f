package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type CAPAFilter struct {
	Status     string
	Type       string
	Priority   string
	SourceType string
	IncidentID int64
	AssignedTo string
	Search     string
	Limit      int
	Offset     int
}

type CAPAsStore interface {
	CreateCAPA(ctx context.Context, c *CAPA, regFormat string) (int64, error)
	UpdateCAPA(ctx context.Context, c *CAPA, expectedVersion int) error
	GetCAPA(ctx context.Context, id int64) (*CAPA, error)
	GetCAPAByRegNo(ctx context.Context, regNo string) (*CAPA, error)
	ListCAPAs(ctx context.Context, filter CAPAFilter) ([]CAPA, error)
	DeleteCAPA(ctx context.Context, id int64) error

	AddStatusHistory(ctx context.Context, entry *StatusHistoryEntry) (int64, error)
	ListStatusHistory(ctx context.Context, capaID int64) ([]StatusHistoryEntry, error)
	AddComment(ctx context.Context, comment *CAPAComment) (int64, error)
	ListComments(ctx context.Context, capaID int64) ([]CAPAComment, error)
}

type capasStore struct {
	db *sql.DB
}

func NewCAPAsStore(db *sql.DB) CAPAsStore {
	return &capasStore{db: db}
}

const capaColumns = `id, reg_no, source_type, source_id, source_label, capa_type, priority, category,
	assigned_to, assigned_by, assigned_date, target_date, revised_target_date, revision_reason, completed_date,
	action, implementation, verification, status, incident_id, related_capa_ids,
	on_time, effectiveness_score, closed_at, closed_by, created_by, created_at, updated_at, version`

func (s *capasStore) CreateCAPA(ctx context.Context, c *CAPA, regFormat string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(c.RegNo) == "" {
		year := time.Now().UTC().Year()
		seq, err := nextSeqTx(ctx, tx, "CAPA", year)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		c.RegNo = BuildRegNo(regFormat, year, seq)
	}
	if c.Version <= 0 {
		c.Version = 1
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	res, err := tx.ExecContext(ctx, `
		INSERT INTO capas(reg_no, source_type, source_id, source_label, capa_type, priority, category,
			assigned_to, assigned_by, assigned_date, target_date, revised_target_date, revision_reason, completed_date,
			action, implementation, verification, status, incident_id, related_capa_ids,
			on_time, effectiveness_score, closed_at, closed_by, created_by, created_at, updated_at, version)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.RegNo, c.SourceType, nullableID(c.SourceID), c.SourceLabel, c.Type, c.Priority, c.Category,
		c.AssignedTo, c.AssignedBy, nullableTime(c.AssignedDate), nullableTime(c.TargetDate),
		nullableTime(c.RevisedTargetDate), c.RevisionReason, nullableTime(c.CompletedDate),
		toJSON(c.Action), toJSON(c.Implementation), toJSON(c.Verification), c.Status,
		nullableID(c.IncidentID), toJSON(idsOrEmpty(c.RelatedCAPAIDs)),
		nullableBool(c.OnTime), nullableInt(c.EffectivenessScore), nullableTime(c.ClosedAt), c.ClosedBy,
		c.CreatedBy, now, now, c.Version)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	id, _ := res.LastInsertId()
	c.ID = id
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *capasStore) UpdateCAPA(ctx context.Context, c *CAPA, expectedVersion int) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE capas SET source_type=?, source_id=?, source_label=?, capa_type=?, priority=?, category=?,
			assigned_to=?, assigned_by=?, assigned_date=?, target_date=?, revised_target_date=?, revision_reason=?, completed_date=?,
			action=?, implementation=?, verification=?, status=?, incident_id=?, related_capa_ids=?,
			on_time=?, effectiveness_score=?, closed_at=?, closed_by=?, updated_at=?, version=version+1
		WHERE id=? AND version=?`,
		c.SourceType, nullableID(c.SourceID), c.SourceLabel, c.Type, c.Priority, c.Category,
		c.AssignedTo, c.AssignedBy, nullableTime(c.AssignedDate), nullableTime(c.TargetDate),
		nullableTime(c.RevisedTargetDate), c.RevisionReason, nullableTime(c.CompletedDate),
		toJSON(c.Action), toJSON(c.Implementation), toJSON(c.Verification), c.Status,
		nullableID(c.IncidentID), toJSON(idsOrEmpty(c.RelatedCAPAIDs)),
		nullableBool(c.OnTime), nullableInt(c.EffectivenessScore), nullableTime(c.ClosedAt), c.ClosedBy,
		now, c.ID, expectedVersion)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrConflict
	}
	c.Version = expectedVersion + 1
	c.UpdatedAt = now
	return nil
}

func (s *capasStore) GetCAPA(ctx context.Context, id int64) (*CAPA, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+capaColumns+` FROM capas WHERE id=?`, id)
	return scanCAPA(row)
}

func (s *capasStore) GetCAPAByRegNo(ctx context.Context, regNo string) (*CAPA, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+capaColumns+` FROM capas WHERE reg_no=?`, regNo)
	return scanCAPA(row)
}

func (s *capasStore) ListCAPAs(ctx context.Context, filter CAPAFilter) ([]CAPA, error) {
	var clauses []string
	var args []any
	if filter.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		clauses = append(clauses, "capa_type=?")
		args = append(args, filter.Type)
	}
	if filter.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, filter.Priority)
	}
	if filter.SourceType != "" {
		clauses = append(clauses, "source_type=?")
		args = append(args, filter.SourceType)
	}
	if filter.IncidentID > 0 {
		clauses = append(clauses, "incident_id=?")
		args = append(args, filter.IncidentID)
	}
	if filter.AssignedTo != "" {
		clauses = append(clauses, "assigned_to=?")
		args = append(args, filter.AssignedTo)
	}
	if filter.Search != "" {
		clauses = append(clauses, "(reg_no LIKE ? OR source_label LIKE ? OR category LIKE ?)")
		q := "%" + filter.Search + "%"
		args = append(args, q, q, q)
	}
	query := `SELECT ` + capaColumns + ` FROM capas`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
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
	var res []CAPA
	for rows.Next() {
		c, err := scanCAPARow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (s *capasStore) DeleteCAPA(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM capas WHERE id=?`, id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM capa_status_history WHERE capa_id=?`, id); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM capa_comments WHERE capa_id=?`, id)
	return err
}

func (s *capasStore) AddStatusHistory(ctx context.Context, entry *StatusHistoryEntry) (int64, error) {
	now := time.Now().UTC()
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = now
	} else {
		entry.ChangedAt = entry.ChangedAt.UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO capa_status_history(capa_id, changed_at, from_status, to_status, actor, reason)
		VALUES(?,?,?,?,?,?)`,
		entry.CAPAID, entry.ChangedAt, entry.FromStatus, entry.ToStatus, entry.Actor, entry.Reason)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	entry.ID = id
	return id, nil
}

func (s *capasStore) ListStatusHistory(ctx context.Context, capaID int64) ([]StatusHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, capa_id, changed_at, from_status, to_status, actor, reason
		FROM capa_status_history WHERE capa_id=? ORDER BY changed_at ASC, id ASC`, capaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []StatusHistoryEntry
	for rows.Next() {
		var e StatusHistoryEntry
		if err := rows.Scan(&e.ID, &e.CAPAID, &e.ChangedAt, &e.FromStatus, &e.ToStatus, &e.Actor, &e.Reason); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (s *capasStore) AddComment(ctx context.Context, comment *CAPAComment) (int64, error) {
	now := time.Now().UTC()
	if comment.CommentedAt.IsZero() {
		comment.CommentedAt = now
	} else {
		comment.CommentedAt = comment.CommentedAt.UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO capa_comments(capa_id, commented_at, author, body)
		VALUES(?,?,?,?)`,
		comment.CAPAID, comment.CommentedAt, comment.Author, comment.Body)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	comment.ID = id
	return id, nil
}

func (s *capasStore) ListComments(ctx context.Context, capaID int64) ([]CAPAComment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, capa_id, commented_at, author, body
		FROM capa_comments WHERE capa_id=? ORDER BY commented_at ASC, id ASC`, capaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []CAPAComment
	for rows.Next() {
		var c CAPAComment
		if err := rows.Scan(&c.ID, &c.CAPAID, &c.CommentedAt, &c.Author, &c.Body); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func scanCAPAInto(sc rowScanner, c *CAPA) error {
	var sourceID, incidentID sql.NullInt64
	var assignedDate, targetDate, revisedDate, completedDate, closedAt sql.NullTime
	var onTime, score sql.NullInt64
	var actionRaw, implRaw, verifRaw, relatedRaw string
	if err := sc.Scan(&c.ID, &c.RegNo, &c.SourceType, &sourceID, &c.SourceLabel, &c.Type, &c.Priority, &c.Category,
		&c.AssignedTo, &c.AssignedBy, &assignedDate, &targetDate, &revisedDate, &c.RevisionReason, &completedDate,
		&actionRaw, &implRaw, &verifRaw, &c.Status, &incidentID, &relatedRaw,
		&onTime, &score, &closedAt, &c.ClosedBy, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt, &c.Version); err != nil {
		return err
	}
	c.SourceID = idPtr(sourceID)
	c.IncidentID = idPtr(incidentID)
	c.AssignedDate = timePtr(assignedDate)
	c.TargetDate = timePtr(targetDate)
	c.RevisedTargetDate = timePtr(revisedDate)
	c.CompletedDate = timePtr(completedDate)
	c.ClosedAt = timePtr(closedAt)
	c.OnTime = boolPtr(onTime)
	c.EffectivenessScore = intPtr(score)
	fromJSON(actionRaw, &c.Action)
	fromJSON(implRaw, &c.Implementation)
	fromJSON(verifRaw, &c.Verification)
	fromJSON(relatedRaw, &c.RelatedCAPAIDs)
	return nil
}

func scanCAPA(row *sql.Row) (*CAPA, error) {
	var c CAPA
	if err := scanCAPAInto(row, &c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func scanCAPARow(rows *sql.Rows) (CAPA, error) {
	var c CAPA
	err := scanCAPAInto(rows, &c)
	return c, err
}
