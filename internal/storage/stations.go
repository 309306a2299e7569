package storage

import (
	"context"
	"fmt"
)

// EnsureStation registers stationID if it is not already known.
func (s *Store) EnsureStation(ctx context.Context, stationID string) error {
	q := fmt.Sprintf(`INSERT INTO weather_stations (station_id) VALUES (%s)
ON CONFLICT (station_id) DO NOTHING`, s.ph(1))
	if _, err := s.db.ExecContext(ctx, q, stationID); err != nil {
		return fmt.Errorf("ensure station %s: %w", stationID, err)
	}
	return nil
}

// StationExists reports whether stationID is registered.
func (s *Store) StationExists(ctx context.Context, stationID string) (bool, error) {
	var n int64
	q := fmt.Sprintf(`SELECT COUNT(*) FROM weather_stations WHERE station_id = %s`, s.ph(1))
	if err := s.db.QueryRowContext(ctx, q, stationID).Scan(&n); err != nil {
		return false, fmt.Errorf("lookup station %s: %w", stationID, err)
	}
	return n > 0, nil
}
