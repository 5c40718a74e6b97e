package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kozaktomas/sightmatch/internal/database"
)

const caseColumns = "id, case_id, name, contact_phone, status, created_at"

// CreateCase stores a new open case with its photos and optional feature description.
func (s *Store) CreateCase(ctx context.Context, intake database.CaseIntake) (*database.Case, error) {
	name := strings.TrimSpace(intake.Name)
	if name == "" {
		return nil, errors.New("case name is required")
	}

	c := &database.Case{
		CaseID:       uuid.NewString(),
		Name:         name,
		ContactPhone: strings.TrimSpace(intake.ContactPhone),
		Status:       database.CaseOpen,
		CreatedAt:    s.now(),
	}
	created := c.CreatedAt.UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO cases (case_id, name, contact_phone, status, created_at) VALUES (?, ?, ?, ?, ?)",
		c.CaseID, c.Name, nullString(c.ContactPhone), string(c.Status), created)
	if err != nil {
		return nil, fmt.Errorf("insert case: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("case id: %w", err)
	}

	for _, p := range intake.Photos {
		if len(p.Data) == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO case_photos (case_id, filename, data, created_at) VALUES (?, ?, ?, ?)",
			c.CaseID, p.Filename, p.Data, created); err != nil {
			return nil, fmt.Errorf("insert photo %s: %w", p.Filename, err)
		}
	}

	if features := strings.TrimSpace(intake.Features); features != "" {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO descriptive_features (case_id, description, created_at) VALUES (?, ?, ?)",
			c.CaseID, features, created); err != nil {
			return nil, fmt.Errorf("insert descriptive feature: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit case: %w", err)
	}
	return c, nil
}

// CloseCase marks an open case closed.
func (s *Store) CloseCase(ctx context.Context, caseID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE cases SET status = ? WHERE case_id = ? AND status = ?",
		string(database.CaseClosed), caseID, string(database.CaseOpen))
	if err != nil {
		return false, fmt.Errorf("close case: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close case: %w", err)
	}
	return n > 0, nil
}

// ListCases returns cases with the given status, or all cases when status is empty, newest first.
func (s *Store) ListCases(ctx context.Context, status database.CaseStatus) ([]database.Case, error) {
	query := "SELECT " + caseColumns + " FROM cases"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	var cases []database.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return cases, nil
}

// CaseByName returns the earliest open case registered under name, nil if none.
func (s *Store) CaseByName(ctx context.Context, name string) (*database.Case, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+caseColumns+" FROM cases WHERE name = ? AND status = ? ORDER BY created_at, id LIMIT 1",
		name, string(database.CaseOpen))
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Contact returns the first contact phone registered for an open case under name.
func (s *Store) Contact(ctx context.Context, name string) (string, error) {
	var phone string
	err := s.db.QueryRowContext(ctx,
		`SELECT contact_phone FROM cases
		 WHERE name = ? AND status = ? AND contact_phone IS NOT NULL AND contact_phone <> ''
		 ORDER BY created_at, id LIMIT 1`,
		name, string(database.CaseOpen)).Scan(&phone)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query contact: %w", err)
	}
	return phone, nil
}

// Description returns the first feature description of an open case under name.
func (s *Store) Description(ctx context.Context, name string) (string, error) {
	var description string
	err := s.db.QueryRowContext(ctx,
		`SELECT f.description FROM descriptive_features f
		 JOIN cases c ON c.case_id = f.case_id
		 WHERE c.name = ? AND c.status = ?
		 ORDER BY c.created_at, c.id, f.id LIMIT 1`,
		name, string(database.CaseOpen)).Scan(&description)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query description: %w", err)
	}
	return description, nil
}

// DescriptiveFeatures returns the feature descriptions of all open cases, oldest case first.
func (s *Store) DescriptiveFeatures(ctx context.Context) ([]database.DescriptiveFeature, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.name, f.description, c.case_id FROM descriptive_features f
		 JOIN cases c ON c.case_id = f.case_id
		 WHERE c.status = ?
		 ORDER BY c.created_at, c.id, f.id`,
		string(database.CaseOpen))
	if err != nil {
		return nil, fmt.Errorf("query descriptive features: %w", err)
	}
	defer rows.Close()

	var features []database.DescriptiveFeature
	for rows.Next() {
		var f database.DescriptiveFeature
		if err := rows.Scan(&f.Name, &f.Description, &f.CaseID); err != nil {
			return nil, fmt.Errorf("scan descriptive feature: %w", err)
		}
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate descriptive features: %w", err)
	}
	return features, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*database.Case, error) {
	var (
		c       database.Case
		phone   sql.NullString
		status  string
		created int64
	)
	if err := row.Scan(&c.ID, &c.CaseID, &c.Name, &phone, &status, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan case: %w", err)
	}
	c.ContactPhone = phone.String
	c.Status = database.CaseStatus(status)
	c.CreatedAt = fromUnixNano(created)
	return &c, nil
}
