package natal

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/orrery/internal/alert"
	"github.com/linnemanlabs/orrery/internal/astro"
)

var tracer = otel.Tracer("github.com/linnemanlabs/orrery/internal/natal")

//go:embed schema.sql
var schema string

// PGStore persists natal records in PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore applies the schema on pool and returns a ready store. The
// caller owns the pool.
func NewPGStore(ctx context.Context, pool *pgxpool.Pool) (*PGStore, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply natal schema: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Put validates and upserts r.
func (s *PGStore) Put(ctx context.Context, r *Record) error {
	ctx, span := startSpan(ctx, "natal.Put", "UPSERT")
	defer span.End()

	if err := r.Validate(); err != nil {
		return fail(span, err)
	}
	n := r.normalize()
	positions, err := json.Marshal(n.Chart.Planets)
	if err != nil {
		return fail(span, fmt.Errorf("marshal positions: %w", err))
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO natal_charts (user_id, positions, ascendant_degree, full_name, birth_location, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (user_id) DO UPDATE SET
			positions        = EXCLUDED.positions,
			ascendant_degree = EXCLUDED.ascendant_degree,
			full_name        = EXCLUDED.full_name,
			birth_location   = EXCLUDED.birth_location,
			updated_at       = EXCLUDED.updated_at`,
		n.Chart.UserID, positions, n.Chart.AscendantDegree, n.Profile.FullName, n.Profile.BirthLocation,
	)
	if err != nil {
		return fail(span, fmt.Errorf("upsert natal chart: %w", err))
	}
	return nil
}

// NatalChart returns the user's chart.
func (s *PGStore) NatalChart(ctx context.Context, userID string) (*astro.NatalChart, bool, error) {
	ctx, span := startSpan(ctx, "natal.NatalChart", "SELECT")
	defer span.End()

	var (
		positions []byte
		asc       float64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT positions, ascendant_degree FROM natal_charts WHERE user_id = $1`, userID,
	).Scan(&positions, &asc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fail(span, fmt.Errorf("query natal chart: %w", err))
	}

	c := &astro.NatalChart{UserID: userID, AscendantDegree: asc}
	if err := json.Unmarshal(positions, &c.Planets); err != nil {
		return nil, false, fail(span, fmt.Errorf("unmarshal positions for %s: %w", userID, err))
	}
	return c, true, nil
}

// Profile returns the user's profile fields, absent when both are empty.
func (s *PGStore) Profile(ctx context.Context, userID string) (*alert.Profile, bool, error) {
	ctx, span := startSpan(ctx, "natal.Profile", "SELECT")
	defer span.End()

	var p alert.Profile
	err := s.pool.QueryRow(ctx,
		`SELECT full_name, birth_location FROM natal_charts WHERE user_id = $1`, userID,
	).Scan(&p.FullName, &p.BirthLocation)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fail(span, fmt.Errorf("query profile: %w", err))
	}
	if p == (alert.Profile{}) {
		return nil, false, nil
	}
	return &p, true, nil
}

// ListUserIDs returns every user with a stored chart, sorted.
func (s *PGStore) ListUserIDs(ctx context.Context) ([]string, error) {
	ctx, span := startSpan(ctx, "natal.ListUserIDs", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT user_id FROM natal_charts ORDER BY user_id`)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query users: %w", err))
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fail(span, fmt.Errorf("collect users: %w", err))
	}
	return ids, nil
}
