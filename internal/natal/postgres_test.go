package natal_test

import (
	"context"
	"os"
	"slices"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/orrery/internal/alert"
	"github.com/linnemanlabs/orrery/internal/astro"
	"github.com/linnemanlabs/orrery/internal/natal"
)

func openStore(t *testing.T) *natal.PGStore {
	t.Helper()
	dsn := os.Getenv("ORRERY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ORRERY_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)
	s, err := natal.NewPGStore(ctx, pool)
	if err != nil {
		t.Fatalf("NewPGStore: %v", err)
	}
	return s
}

func TestPGStore_PutAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	user := "natal-" + ulid.Make().String()

	r := &natal.Record{
		Chart: astro.NatalChart{
			UserID:          user,
			Planets:         map[astro.Body]astro.Position{astro.Sun: {Degree: 10}, astro.Moon: {Degree: 362}},
			AscendantDegree: 270,
		},
		Profile: alert.Profile{FullName: "Ada"},
	}
	if err := s.Put(ctx, r); err != nil {
		t.Fatalf("Put: %v", err)
	}

	c, ok, err := s.NatalChart(ctx, user)
	if err != nil || !ok {
		t.Fatalf("NatalChart: ok=%v err=%v", ok, err)
	}
	if c.Planets[astro.Moon].Degree != 2 {
		t.Errorf("Moon = %v, want normalised 2", c.Planets[astro.Moon].Degree)
	}

	p, ok, err := s.Profile(ctx, user)
	if err != nil || !ok {
		t.Fatalf("Profile: ok=%v err=%v", ok, err)
	}
	if p.FullName != "Ada" || p.BirthLocation != "" {
		t.Errorf("profile = %+v", p)
	}

	ids, err := s.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListUserIDs: %v", err)
	}
	if !slices.Contains(ids, user) {
		t.Errorf("ListUserIDs missing %s", user)
	}
}

func TestPGStore_Missing(t *testing.T) {
	s := openStore(t)
	if _, ok, err := s.NatalChart(context.Background(), "missing-"+ulid.Make().String()); ok || err != nil {
		t.Errorf("NatalChart: ok=%v err=%v", ok, err)
	}
}
