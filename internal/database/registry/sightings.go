package registry

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/sightmatch/internal/database"
)

// recentSightingsLimit bounds RecentSightingLocations.
const recentSightingsLimit = 10

// RecordSighting stores a sighting report. A zero CreatedAt is set to now.
func (s *Store) RecordSighting(ctx context.Context, sighting database.Sighting) error {
	created := sighting.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sightings (name, location, reporter_name, reporter_phone, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		nullString(sighting.Name), sighting.Location, sighting.ReporterName, sighting.ReporterPhone,
		sighting.Details, created.UnixNano())
	if err != nil {
		return fmt.Errorf("insert sighting: %w", err)
	}
	return nil
}

// RecentSightingLocations returns the locations reported for name, newest first.
func (s *Store) RecentSightingLocations(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT location FROM sightings WHERE name = ? ORDER BY created_at DESC, id DESC LIMIT ?",
		name, recentSightingsLimit)
	if err != nil {
		return nil, fmt.Errorf("query sightings: %w", err)
	}
	defer rows.Close()

	var locations []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, fmt.Errorf("scan sighting: %w", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sightings: %w", err)
	}
	return locations, nil
}

// ListSightings returns the most recent sightings across all identities, newest first.
func (s *Store) ListSightings(ctx context.Context, limit int) ([]database.Sighting, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, location, reporter_name, reporter_phone, details, created_at
		 FROM sightings ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sightings: %w", err)
	}
	defer rows.Close()

	var out []database.Sighting
	for rows.Next() {
		var (
			sg      database.Sighting
			name    sql.NullString
			created int64
		)
		if err := rows.Scan(&sg.ID, &name, &sg.Location, &sg.ReporterName, &sg.ReporterPhone, &sg.Details, &created); err != nil {
			return nil, fmt.Errorf("scan sighting: %w", err)
		}
		sg.Name = name.String
		sg.CreatedAt = fromUnixNano(created)
		out = append(out, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sightings: %w", err)
	}
	return out, nil
}
