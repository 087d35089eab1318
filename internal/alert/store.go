package alert

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/driftwatch/pkg/detect"
)

// ErrNotFound is returned when the requested alert does not exist.
var ErrNotFound = errors.New("alert not found")

// Alert is a stored alert: a named detector configuration evaluated on
// demand against submitted series.
type Alert struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Label     string             `json:"label"`
	Enabled   bool               `json:"enabled"`
	Config    detect.AlertConfig `json:"config"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Breach is one recorded breaching evaluation of an alert.
type Breach struct {
	ID         string     `json:"id"`
	AlertID    string     `json:"alert_id"`
	Value      *float64   `json:"value"`
	Message    string     `json:"message"`
	Indices    []int      `json:"indices"`
	DetectedAt time.Time  `json:"detected_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Store provides database access for the Alert module.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// -- Alerts --

// InsertAlert stores a new alert.
func (s *Store) InsertAlert(ctx context.Context, a *Alert) error {
	cfg, err := json.Marshal(a.Config)
	if err != nil {
		return fmt.Errorf("marshal alert config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, name, label, enabled, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Label, boolToInt(a.Enabled), string(cfg), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// GetAlert returns one alert by ID. Returns ErrNotFound when missing.
func (s *Store) GetAlert(ctx context.Context, id string) (*Alert, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, label, enabled, config, created_at, updated_at
		FROM alerts WHERE id = ?`, id,
	)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

// ListAlerts returns all alerts ordered by creation time.
func (s *Store) ListAlerts(ctx context.Context) ([]Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, label, enabled, config, created_at, updated_at
		FROM alerts ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

// UpdateAlert replaces the mutable fields of an existing alert.
func (s *Store) UpdateAlert(ctx context.Context, a *Alert) error {
	cfg, err := json.Marshal(a.Config)
	if err != nil {
		return fmt.Errorf("marshal alert config: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET name = ?, label = ?, enabled = ?, config = ?, updated_at = ?
		WHERE id = ?`,
		a.Name, a.Label, boolToInt(a.Enabled), string(cfg), a.UpdatedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAlert removes an alert and, via cascade, its breaches.
func (s *Store) DeleteAlert(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// -- Breaches --

// InsertBreach records a breaching evaluation.
func (s *Store) InsertBreach(ctx context.Context, b *Breach) error {
	indices, err := json.Marshal(b.Indices)
	if err != nil {
		return fmt.Errorf("marshal breach indices: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alert_breaches (id, alert_id, value, message, indices, detected_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.AlertID, b.Value, b.Message, string(indices), b.DetectedAt, b.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert breach: %w", err)
	}
	return nil
}

// ListBreaches returns breaches, optionally filtered by alert. Pass empty
// alertID to list all. Results are ordered by detected_at descending.
func (s *Store) ListBreaches(ctx context.Context, alertID string, limit int) ([]Breach, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if alertID == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, alert_id, value, message, indices, detected_at, resolved_at
			FROM alert_breaches ORDER BY detected_at DESC LIMIT ?`,
			limit,
		)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, alert_id, value, message, indices, detected_at, resolved_at
			FROM alert_breaches WHERE alert_id = ? ORDER BY detected_at DESC LIMIT ?`,
			alertID, limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list breaches: %w", err)
	}
	defer rows.Close()

	var breaches []Breach
	for rows.Next() {
		var b Breach
		var value sql.NullFloat64
		var indicesJSON string
		var resolvedAt sql.NullTime
		if err := rows.Scan(
			&b.ID, &b.AlertID, &value, &b.Message, &indicesJSON,
			&b.DetectedAt, &resolvedAt,
		); err != nil {
			return nil, fmt.Errorf("scan breach row: %w", err)
		}
		if value.Valid {
			b.Value = &value.Float64
		}
		if resolvedAt.Valid {
			b.ResolvedAt = &resolvedAt.Time
		}
		if err := json.Unmarshal([]byte(indicesJSON), &b.Indices); err != nil {
			return nil, fmt.Errorf("unmarshal breach indices: %w", err)
		}
		breaches = append(breaches, b)
	}
	return breaches, rows.Err()
}

// DeleteOldBreaches deletes breaches detected before the given time.
// Returns the number of rows deleted.
func (s *Store) DeleteOldBreaches(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM alert_breaches WHERE detected_at < ?`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("delete old breaches: %w", err)
	}
	return result.RowsAffected()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAlert(row scanner) (*Alert, error) {
	var a Alert
	var enabled int
	var cfgJSON string
	if err := row.Scan(
		&a.ID, &a.Name, &a.Label, &enabled, &cfgJSON, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Enabled = enabled != 0
	if err := json.Unmarshal([]byte(cfgJSON), &a.Config); err != nil {
		return nil, fmt.Errorf("unmarshal alert config: %w", err)
	}
	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
