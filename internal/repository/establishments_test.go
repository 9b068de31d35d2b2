package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gastromap/discovery-api/internal/dto"
	"github.com/gastromap/discovery-api/internal/entity"
	"github.com/gastromap/discovery-api/internal/service/ranking"
)

// fillRankedRow populates the scan destinations of one list-view row.
func fillRankedRow(id uuid.UUID, score float64) func(dest ...any) error {
	return func(dest ...any) error {
		now := time.Now()
		*dest[0].(*uuid.UUID) = id
		*dest[1].(*string) = "Кафе Центральное"
		*dest[3].(*string) = "пр. Независимости 1"
		*dest[9].(*[]string) = []string{"Кафе"}
		*dest[16].(*string) = "premium"
		*dest[17].(*string) = "active"
		*dest[18].(*time.Time) = now
		*dest[19].(*time.Time) = now
		*dest[20].(*float64) = 350.0
		*dest[21].(*float64) = score
		return nil
	}
}

func TestPGXEstablishmentsRepository_SearchRadius_Query(t *testing.T) {
	var capturedSQL string
	var capturedArgs []any

	repo := &PGXEstablishmentsRepository{pool: &stubPool{
		queryFunc: func(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
			capturedSQL = query
			capturedArgs = args
			return &stubRows{}, nil
		},
	}}

	filter := dto.SearchFilter{
		Latitude:     53.9045,
		Longitude:    27.5615,
		RadiusMeters: 5000,
		Categories:   []string{"Кафе"},
		PriceTiers:   []string{"$", "$$"},
		PageSize:     20,
	}

	if _, err := repo.SearchRadius(context.Background(), filter); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)",
		"status = 'active'",
		"categories && $4::text[]",
		"price_tier = ANY($5::text[])",
		"ORDER BY score DESC, id ASC",
		"LIMIT $6",
	} {
		if !strings.Contains(capturedSQL, want) {
			t.Fatalf("query missing %q:\n%s", want, capturedSQL)
		}
	}

	if capturedArgs[0] != 27.5615 || capturedArgs[1] != 53.9045 {
		t.Fatalf("expected lon/lat argument order, got %v", capturedArgs[:2])
	}
	if capturedArgs[len(capturedArgs)-1] != 21 {
		t.Fatalf("limit must fetch page size plus one, got %v", capturedArgs[len(capturedArgs)-1])
	}
}

func TestPGXEstablishmentsRepository_SearchRadius_Keyset(t *testing.T) {
	var capturedSQL string
	var capturedArgs []any

	repo := &PGXEstablishmentsRepository{pool: &stubPool{
		queryFunc: func(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
			capturedSQL = query
			capturedArgs = args
			return &stubRows{}, nil
		},
	}}

	after := ranking.Cursor{Score: 0.7312, ID: uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")}
	filter := dto.SearchFilter{
		Latitude:     53.9045,
		Longitude:    27.5615,
		RadiusMeters: 5000,
		PageSize:     20,
		After:        &after,
	}

	if _, err := repo.SearchRadius(context.Background(), filter); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(capturedSQL, "(score < $4 OR (score = $4 AND id > $5))") {
		t.Fatalf("expected keyset predicate:\n%s", capturedSQL)
	}
	if capturedArgs[3] != after.Score || capturedArgs[4] != after.ID {
		t.Fatalf("expected cursor key arguments, got %v", capturedArgs)
	}
}

func TestPGXEstablishmentsRepository_SearchRadius_Scan(t *testing.T) {
	first := uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	second := uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")

	repo := &PGXEstablishmentsRepository{pool: &stubPool{
		queryFunc: func(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
			return &stubRows{scans: []func(dest ...any) error{
				fillRankedRow(first, 0.84),
				fillRankedRow(second, 0.71),
			}}, nil
		},
	}}

	rows, err := repo.SearchRadius(context.Background(), dto.SearchFilter{PageSize: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].ID != first || rows[0].Score != 0.84 || rows[0].DistanceMeters != 350.0 {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[0].SubscriptionTier != entity.TierPremium || rows[0].Status != entity.StatusActive {
		t.Fatalf("unexpected enums: %+v", rows[0])
	}
}

func TestPGXEstablishmentsRepository_SearchBounds_Query(t *testing.T) {
	var capturedSQL string
	var capturedArgs []any

	repo := &PGXEstablishmentsRepository{pool: &stubPool{
		queryFunc: func(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
			capturedSQL = query
			capturedArgs = args
			return &stubRows{}, nil
		},
	}}

	filter := dto.BoundsFilter{North: 54.0, South: 53.8, East: 27.7, West: 27.4, Limit: 200}
	if _, err := repo.SearchBounds(context.Background(), filter, 12500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"ST_Intersects(location, ST_MakeEnvelope($1, $2, $3, $4, 4326)::geography)",
		"status = 'active'",
		"ORDER BY score DESC, id ASC",
	} {
		if !strings.Contains(capturedSQL, want) {
			t.Fatalf("query missing %q:\n%s", want, capturedSQL)
		}
	}

	// Envelope edges ride west, south, east, north; then the midpoint center
	// and the normalizer.
	if capturedArgs[0] != 27.4 || capturedArgs[1] != 53.8 || capturedArgs[2] != 27.7 || capturedArgs[3] != 54.0 {
		t.Fatalf("unexpected envelope arguments: %v", capturedArgs[:4])
	}
	if capturedArgs[4] != filter.CenterLon() || capturedArgs[5] != filter.CenterLat() {
		t.Fatalf("expected midpoint center, got %v", capturedArgs[4:6])
	}
	if capturedArgs[6] != 12500.0 {
		t.Fatalf("expected normalizer argument, got %v", capturedArgs[6])
	}
}

func TestPGXEstablishmentsRepository_SearchBounds_Scan(t *testing.T) {
	id := uuid.MustParse("cccccccc-cccc-cccc-cccc-cccccccccccc")
	repo := &PGXEstablishmentsRepository{pool: &stubPool{
		queryFunc: func(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
			return &stubRows{scans: []func(dest ...any) error{
				func(dest ...any) error {
					*dest[0].(*uuid.UUID) = id
					*dest[1].(*string) = "Бар Гараж"
					*dest[2].(*float64) = 27.5615
					*dest[3].(*float64) = 53.9045
					*dest[4].(*float64) = 0.66
					return nil
				},
			}}, nil
		},
	}}

	points, err := repo.SearchBounds(context.Background(), dto.BoundsFilter{Limit: 200}, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 || points[0].ID != id || points[0].Longitude != 27.5615 || points[0].Score != 0.66 {
		t.Fatalf("unexpected points: %+v", points)
	}
}

func TestPGXEstablishmentsRepository_GetByID_NotFound(t *testing.T) {
	repo := &PGXEstablishmentsRepository{pool: &stubPool{
		queryRowFunc: func(ctx context.Context, query string, args ...any) pgx.Row {
			return &stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}}

	if _, err := repo.GetByID(context.Background(), uuid.New()); !errors.Is(err, ErrEstablishmentNotFound) {
		t.Fatalf("expected ErrEstablishmentNotFound, got %v", err)
	}
}

func TestPGXEstablishmentsRepository_UpdateStatus(t *testing.T) {
	var capturedArgs []any
	repo := &PGXEstablishmentsRepository{pool: &stubPool{
		execFunc: func(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
			capturedArgs = args
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}}

	id := uuid.New()
	if err := repo.UpdateStatus(context.Background(), id, entity.StatusActive); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if capturedArgs[0] != "active" || capturedArgs[1] != id {
		t.Fatalf("unexpected arguments: %v", capturedArgs)
	}

	repo.pool = &stubPool{
		execFunc: func(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		},
	}
	if err := repo.UpdateStatus(context.Background(), uuid.New(), entity.StatusActive); !errors.Is(err, ErrEstablishmentNotFound) {
		t.Fatalf("expected ErrEstablishmentNotFound, got %v", err)
	}
}

func TestPGXEstablishmentsRepository_ListByStatus_Filter(t *testing.T) {
	var capturedSQL string
	var capturedArgs []any
	repo := &PGXEstablishmentsRepository{pool: &stubPool{
		queryFunc: func(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
			capturedSQL = query
			capturedArgs = args
			return &stubRows{}, nil
		},
	}}

	pending := entity.StatusPending
	if _, err := repo.ListByStatus(context.Background(), &pending, 20, 40); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(capturedSQL, "WHERE status = $1") {
		t.Fatalf("expected status predicate:\n%s", capturedSQL)
	}
	if capturedArgs[0] != "pending" || capturedArgs[1] != 20 || capturedArgs[2] != 40 {
		t.Fatalf("unexpected arguments: %v", capturedArgs)
	}

	if _, err := repo.ListByStatus(context.Background(), nil, 20, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(capturedSQL, "WHERE") {
		t.Fatalf("nil status must list every row:\n%s", capturedSQL)
	}
}
