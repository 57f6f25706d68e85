// Package pgstore provides a PostgreSQL implementation of alert.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/orrery/internal/alert"
	"github.com/linnemanlabs/orrery/internal/transit"
)

var tracer = otel.Tracer("github.com/linnemanlabs/orrery/internal/alert/pgstore")

//go:embed schema.sql
var schema string

// Store persists alerts in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on pool and returns a ready Store. The caller owns
// the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply alert schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const alertColumns = `id, user_id, alert_type, title, message, severity, metadata, expires_at, created_at`

// Create inserts a new alert row.
func (s *Store) Create(ctx context.Context, a *alert.Alert) error {
	ctx, span := tracer.Start(ctx, "pgstore.Create", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO alerts (`+alertColumns+`, fallback)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.UserID, a.AlertType, a.Title, a.Message, string(a.Severity),
		metadata, a.ExpiresAt, a.CreatedAt, a.Metadata.Fallback,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// List returns the user's alerts of alertType, newest first. An empty
// alertType matches every type.
func (s *Store) List(ctx context.Context, userID, alertType string) ([]*alert.Alert, error) {
	ctx, span := tracer.Start(ctx, "pgstore.List", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT `+alertColumns+` FROM alerts
		 WHERE user_id = $1 AND ($2 = '' OR alert_type = $2)
		 ORDER BY created_at DESC`,
		userID, alertType,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []*alert.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	span.SetAttributes(attribute.Int("db.rows", len(out)))
	return out, nil
}

func scanAlert(row pgx.Row) (*alert.Alert, error) {
	var (
		a        alert.Alert
		severity string
		metadata []byte
	)
	err := row.Scan(
		&a.ID, &a.UserID, &a.AlertType, &a.Title, &a.Message, &severity,
		&metadata, &a.ExpiresAt, &a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}
	a.Severity = transit.Significance(severity)
	if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata for %s: %w", a.ID, err)
	}
	return &a, nil
}
