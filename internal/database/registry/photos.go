package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/sightmatch/internal/database"
)

// OpenCasePhotos calls fn for every reference photo of every open case, ordered
// by identity name. Photo IDs are collected first and blobs loaded one at a
// time, so no cursor stays open while fn runs.
func (s *Store) OpenCasePhotos(ctx context.Context, fn func(database.CasePhoto) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id FROM case_photos p
		 JOIN cases c ON c.case_id = p.case_id
		 WHERE c.status = ?
		 ORDER BY c.name, p.id`,
		string(database.CaseOpen))
	if err != nil {
		return fmt.Errorf("query case photos: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan case photo id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate case photos: %w", err)
	}
	rows.Close()

	for _, id := range ids {
		photo, err := s.photo(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			// Deleted since the listing.
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(*photo); err != nil {
			return err
		}
	}
	return nil
}

// CountOpenCasePhotos returns the number of reference photos of open cases.
func (s *Store) CountOpenCasePhotos(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM case_photos p
		 JOIN cases c ON c.case_id = p.case_id
		 WHERE c.status = ?`,
		string(database.CaseOpen)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count case photos: %w", err)
	}
	return n, nil
}

func (s *Store) photo(ctx context.Context, id int64) (*database.CasePhoto, error) {
	var (
		p       database.CasePhoto
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT p.id, p.case_id, c.name, p.filename, p.data, p.created_at
		 FROM case_photos p JOIN cases c ON c.case_id = p.case_id
		 WHERE p.id = ?`, id).
		Scan(&p.ID, &p.CaseID, &p.Name, &p.Filename, &p.Data, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("load case photo %d: %w", id, err)
	}
	p.CreatedAt = fromUnixNano(created)
	return &p, nil
}
