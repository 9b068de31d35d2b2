package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gastromap/discovery-api/internal/dto"
	"github.com/gastromap/discovery-api/internal/entity"
	"github.com/gastromap/discovery-api/internal/service/ranking"
)

// ErrEstablishmentNotFound indicates no row matched the lookup.
var ErrEstablishmentNotFound = errors.New("establishment not found")

// EstablishmentsRepository describes persistence operations for the
// catalogue and the two search shapes.
type EstablishmentsRepository interface {
	SearchRadius(ctx context.Context, filter dto.SearchFilter) ([]entity.RankedEstablishment, error)
	SearchBounds(ctx context.Context, filter dto.BoundsFilter, normalizerMeters float64) ([]entity.MapPoint, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Establishment, error)
	Upsert(ctx context.Context, est *entity.Establishment) (*entity.Establishment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.Status) error
	ListByStatus(ctx context.Context, status *entity.Status, limit, offset int) ([]entity.Establishment, error)
	BulkUpsert(ctx context.Context, records []BulkUpsertEstablishmentInput) (BulkUpsertResult, error)
}

// BulkUpsertEstablishmentInput carries the minimal fields for CSV ingestion.
type BulkUpsertEstablishmentInput struct {
	Name       string
	Address    string
	City       *string
	Phone      *string
	Website    *string
	Latitude   float64
	Longitude  float64
	Categories []string
	PriceTier  *string
}

// BulkUpsertResult summarises the number of rows inserted or updated.
type BulkUpsertResult struct {
	Inserted int
	Updated  int
	Total    int
}

// pgxPool is the subset of pgxpool.Pool the repositories rely on, kept
// narrow so tests can substitute a capturing fake.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

var _ pgxPool = (*pgxpool.Pool)(nil)

// PGXEstablishmentsRepository implements EstablishmentsRepository using pgx.
type PGXEstablishmentsRepository struct {
	pool pgxPool
}

// NewPGXEstablishmentsRepository wires a pgx backed repository.
func NewPGXEstablishmentsRepository(pool *pgxpool.Pool) *PGXEstablishmentsRepository {
	return &PGXEstablishmentsRepository{pool: pool}
}

const establishmentColumns = `
            id,
            name,
            description,
            address,
            city,
            phone,
            website,
            ST_X(location::geometry) AS longitude,
            ST_Y(location::geometry) AS latitude,
            categories,
            cuisines,
            price_tier,
            features,
            hours_windows,
            rating,
            review_count,
            subscription_tier,
            status,
            created_at,
            updated_at`

// SearchRadius runs the list-view query: an indexed ST_DWithin predicate
// around the requested center with the composite score computed per row.
// Keyset pagination resumes strictly after the cursor's (score, id) key.
func (r *PGXEstablishmentsRepository) SearchRadius(ctx context.Context, filter dto.SearchFilter) ([]entity.RankedEstablishment, error) {
	center := "ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography"
	distance := fmt.Sprintf("ST_Distance(location, %s)", center)
	score := ranking.SQLExpression(distance, "$3")

	query := strings.Builder{}
	query.WriteString("SELECT * FROM (SELECT")
	query.WriteString(establishmentColumns)
	query.WriteString(",\n            ")
	query.WriteString(distance)
	query.WriteString(" AS distance_m,\n            ")
	query.WriteString(score)
	query.WriteString(" AS score\n        FROM establishments\n        WHERE status = 'active'")
	query.WriteString(fmt.Sprintf("\n          AND ST_DWithin(location, %s, $3)", center))

	args := []any{filter.Longitude, filter.Latitude, filter.RadiusMeters}
	idx := 4

	clauses, args, idx := taxonomyClauses(taxonomySelection{
		Categories:   filter.Categories,
		Cuisines:     filter.Cuisines,
		PriceTiers:   filter.PriceTiers,
		Features:     filter.Features,
		HoursWindows: filter.HoursWindows,
	}, args, idx)
	for _, clause := range clauses {
		query.WriteString("\n          AND ")
		query.WriteString(clause)
	}

	query.WriteString("\n    ) ranked")

	if filter.After != nil {
		query.WriteString(fmt.Sprintf("\n    WHERE (score < $%d OR (score = $%d AND id > $%d))", idx, idx, idx+1))
		args = append(args, filter.After.Score, filter.After.ID)
		idx += 2
	}

	query.WriteString("\n    ORDER BY score DESC, id ASC")
	query.WriteString(fmt.Sprintf("\n    LIMIT $%d", idx))
	args = append(args, filter.PageSize+1)

	rows, err := r.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search by radius: %w", err)
	}
	defer rows.Close()

	return scanRanked(rows)
}

// SearchBounds runs the map-view query: an indexed intersects predicate over
// the requested envelope, returning the compact coordinate payload. The
// score uses the box midpoint as center and the half-diagonal as normalizer
// so both search shapes order identically.
func (r *PGXEstablishmentsRepository) SearchBounds(ctx context.Context, filter dto.BoundsFilter, normalizerMeters float64) ([]entity.MapPoint, error) {
	center := "ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography"
	distance := fmt.Sprintf("ST_Distance(location, %s)", center)
	score := ranking.SQLExpression(distance, "$7")

	query := strings.Builder{}
	query.WriteString(`SELECT
            id,
            name,
            ST_X(location::geometry) AS longitude,
            ST_Y(location::geometry) AS latitude,
            `)
	query.WriteString(score)
	query.WriteString(` AS score
        FROM establishments
        WHERE status = 'active'
          AND ST_Intersects(location, ST_MakeEnvelope($1, $2, $3, $4, 4326)::geography)`)

	args := []any{filter.West, filter.South, filter.East, filter.North, filter.CenterLon(), filter.CenterLat(), normalizerMeters}
	idx := 8

	clauses, args, idx := taxonomyClauses(taxonomySelection{
		Categories:   filter.Categories,
		Cuisines:     filter.Cuisines,
		PriceTiers:   filter.PriceTiers,
		Features:     filter.Features,
		HoursWindows: filter.HoursWindows,
	}, args, idx)
	for _, clause := range clauses {
		query.WriteString("\n          AND ")
		query.WriteString(clause)
	}

	query.WriteString("\n        ORDER BY score DESC, id ASC")
	query.WriteString(fmt.Sprintf("\n        LIMIT $%d", idx))
	args = append(args, filter.Limit)

	rows, err := r.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search by bounds: %w", err)
	}
	defer rows.Close()

	return scanMapPoints(rows)
}

type taxonomySelection struct {
	Categories   []string
	Cuisines     []string
	PriceTiers   []string
	Features     []string
	HoursWindows []string
}

// taxonomyClauses renders the categorical filters as array-overlap and
// membership predicates. Multi-value filters match any of the values.
func taxonomyClauses(sel taxonomySelection, args []any, idx int) ([]string, []any, int) {
	var clauses []string

	appendOverlap := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		clauses = append(clauses, fmt.Sprintf("%s && $%d::text[]", column, idx))
		args = append(args, values)
		idx++
	}

	appendOverlap("categories", sel.Categories)
	appendOverlap("cuisines", sel.Cuisines)
	if len(sel.PriceTiers) > 0 {
		clauses = append(clauses, fmt.Sprintf("price_tier = ANY($%d::text[])", idx))
		args = append(args, sel.PriceTiers)
		idx++
	}
	appendOverlap("features", sel.Features)
	appendOverlap("hours_windows", sel.HoursWindows)

	return clauses, args, idx
}

// GetByID returns the full establishment detail regardless of status.
func (r *PGXEstablishmentsRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Establishment, error) {
	query := "SELECT" + establishmentColumns + "\n        FROM establishments WHERE id = $1"

	row := r.pool.QueryRow(ctx, query, id)
	est, err := scanEstablishment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEstablishmentNotFound
		}
		return nil, fmt.Errorf("fetch establishment: %w", err)
	}
	return est, nil
}

// Upsert inserts a new establishment or updates an existing one keyed by
// (name, address). New rows start in draft status.
func (r *PGXEstablishmentsRepository) Upsert(ctx context.Context, est *entity.Establishment) (*entity.Establishment, error) {
	if est == nil {
		return nil, fmt.Errorf("establishment payload is nil")
	}

	query := `
        INSERT INTO establishments (
            name,
            description,
            address,
            city,
            phone,
            website,
            location,
            categories,
            cuisines,
            price_tier,
            features,
            hours_windows,
            subscription_tier,
            status,
            updated_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6,
            ST_SetSRID(ST_MakePoint($7::float8, $8::float8), 4326)::geography,
            $9, $10, $11, $12, $13, $14, 'draft', NOW()
        )
        ON CONFLICT (name, address) DO UPDATE SET
            description = EXCLUDED.description,
            city = EXCLUDED.city,
            phone = EXCLUDED.phone,
            website = EXCLUDED.website,
            location = EXCLUDED.location,
            categories = EXCLUDED.categories,
            cuisines = EXCLUDED.cuisines,
            price_tier = EXCLUDED.price_tier,
            features = EXCLUDED.features,
            hours_windows = EXCLUDED.hours_windows,
            subscription_tier = EXCLUDED.subscription_tier,
            updated_at = NOW()
        RETURNING` + establishmentColumns

	row := r.pool.QueryRow(ctx, query,
		est.Name,
		est.Description,
		est.Address,
		est.City,
		est.Phone,
		est.Website,
		est.Longitude,
		est.Latitude,
		stringSliceOrEmpty(est.Categories),
		stringSliceOrEmpty(est.Cuisines),
		est.PriceTier,
		stringSliceOrEmpty(est.Features),
		stringSliceOrEmpty(est.HoursWindows),
		string(est.SubscriptionTier),
	)

	stored, err := scanEstablishment(row)
	if err != nil {
		return nil, fmt.Errorf("upsert establishment: %w", err)
	}
	return stored, nil
}

// UpdateStatus moves an establishment to a new lifecycle state. Transition
// legality is enforced by the service layer.
func (r *PGXEstablishmentsRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.Status) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE establishments SET status = $1, updated_at = NOW() WHERE id = $2",
		string(status), id)
	if err != nil {
		return fmt.Errorf("update establishment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEstablishmentNotFound
	}
	return nil
}

// ListByStatus returns catalogue rows for the admin surface, newest first.
func (r *PGXEstablishmentsRepository) ListByStatus(ctx context.Context, status *entity.Status, limit, offset int) ([]entity.Establishment, error) {
	query := strings.Builder{}
	query.WriteString("SELECT" + establishmentColumns + "\n        FROM establishments")

	var args []any
	if status != nil {
		query.WriteString(" WHERE status = $1")
		args = append(args, string(*status))
	}
	query.WriteString(fmt.Sprintf(" ORDER BY updated_at DESC, id ASC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2))
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list establishments: %w", err)
	}
	defer rows.Close()

	var out []entity.Establishment
	for rows.Next() {
		est, err := scanEstablishment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan establishment: %w", err)
		}
		out = append(out, *est)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate establishments: %w", err)
	}
	return out, nil
}

const bulkUpsertSQL = `
        INSERT INTO establishments (name, address, city, phone, website, location, categories, price_tier, status, updated_at)
        VALUES ($1, $2, $3, $4, $5,
            ST_SetSRID(ST_MakePoint($6::float8, $7::float8), 4326)::geography,
            $8, $9, 'draft', NOW())
        ON CONFLICT (name, address) DO UPDATE SET
            city = EXCLUDED.city,
            phone = EXCLUDED.phone,
            website = EXCLUDED.website,
            location = EXCLUDED.location,
            categories = EXCLUDED.categories,
            price_tier = EXCLUDED.price_tier,
            updated_at = NOW()
        RETURNING xmax = 0;
    `

// BulkUpsert persists a batch of imported establishments with idempotent
// semantics inside one transaction.
func (r *PGXEstablishmentsRepository) BulkUpsert(ctx context.Context, records []BulkUpsertEstablishmentInput) (BulkUpsertResult, error) {
	var result BulkUpsertResult
	if len(records) == 0 {
		return result, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return result, fmt.Errorf("start bulk upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, record := range records {
		var inserted bool
		err := tx.QueryRow(ctx, bulkUpsertSQL,
			record.Name,
			record.Address,
			record.City,
			record.Phone,
			record.Website,
			record.Longitude,
			record.Latitude,
			stringSliceOrEmpty(record.Categories),
			record.PriceTier,
		).Scan(&inserted)
		if err != nil {
			return result, fmt.Errorf("bulk upsert establishment %q: %w", record.Name, err)
		}

		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
		result.Total++
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit bulk upsert tx: %w", err)
	}

	return result, nil
}

// scanEstablishment reads one row laid out as establishmentColumns.
func scanEstablishment(row pgx.Row) (*entity.Establishment, error) {
	var (
		est         entity.Establishment
		description sql.NullString
		city        sql.NullString
		phone       sql.NullString
		website     sql.NullString
		longitude   sql.NullFloat64
		latitude    sql.NullFloat64
		priceTier   sql.NullString
		rating      sql.NullFloat64
		reviews     sql.NullInt64
		tier        string
		status      string
	)

	err := row.Scan(
		&est.ID,
		&est.Name,
		&description,
		&est.Address,
		&city,
		&phone,
		&website,
		&longitude,
		&latitude,
		&est.Categories,
		&est.Cuisines,
		&priceTier,
		&est.Features,
		&est.HoursWindows,
		&rating,
		&reviews,
		&tier,
		&status,
		&est.CreatedAt,
		&est.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	est.Description = nullStringToPtr(description)
	est.City = nullStringToPtr(city)
	est.Phone = nullStringToPtr(phone)
	est.Website = nullStringToPtr(website)
	est.PriceTier = nullStringToPtr(priceTier)
	if longitude.Valid {
		est.Longitude = longitude.Float64
	}
	if latitude.Valid {
		est.Latitude = latitude.Float64
	}
	if rating.Valid {
		val := rating.Float64
		est.Rating = &val
	}
	if reviews.Valid {
		cast := int(reviews.Int64)
		est.ReviewCount = &cast
	}
	est.SubscriptionTier = entity.SubscriptionTier(tier)
	est.Status = entity.Status(status)

	return &est, nil
}

// scanRanked reads list-view rows: establishmentColumns plus distance_m and
// score.
func scanRanked(rows pgx.Rows) ([]entity.RankedEstablishment, error) {
	var results []entity.RankedEstablishment
	for rows.Next() {
		var (
			ranked      entity.RankedEstablishment
			description sql.NullString
			city        sql.NullString
			phone       sql.NullString
			website     sql.NullString
			longitude   sql.NullFloat64
			latitude    sql.NullFloat64
			priceTier   sql.NullString
			rating      sql.NullFloat64
			reviews     sql.NullInt64
			tier        string
			status      string
		)

		err := rows.Scan(
			&ranked.ID,
			&ranked.Name,
			&description,
			&ranked.Address,
			&city,
			&phone,
			&website,
			&longitude,
			&latitude,
			&ranked.Categories,
			&ranked.Cuisines,
			&priceTier,
			&ranked.Features,
			&ranked.HoursWindows,
			&rating,
			&reviews,
			&tier,
			&status,
			&ranked.CreatedAt,
			&ranked.UpdatedAt,
			&ranked.DistanceMeters,
			&ranked.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ranked establishment: %w", err)
		}

		ranked.Description = nullStringToPtr(description)
		ranked.City = nullStringToPtr(city)
		ranked.Phone = nullStringToPtr(phone)
		ranked.Website = nullStringToPtr(website)
		ranked.PriceTier = nullStringToPtr(priceTier)
		if longitude.Valid {
			ranked.Longitude = longitude.Float64
		}
		if latitude.Valid {
			ranked.Latitude = latitude.Float64
		}
		if rating.Valid {
			val := rating.Float64
			ranked.Rating = &val
		}
		if reviews.Valid {
			cast := int(reviews.Int64)
			ranked.ReviewCount = &cast
		}
		ranked.SubscriptionTier = entity.SubscriptionTier(tier)
		ranked.Status = entity.Status(status)

		results = append(results, ranked)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ranked establishments: %w", err)
	}
	return results, nil
}

// scanMapPoints reads map-view rows: id, name, longitude, latitude, score.
func scanMapPoints(rows pgx.Rows) ([]entity.MapPoint, error) {
	var points []entity.MapPoint
	for rows.Next() {
		var point entity.MapPoint
		if err := rows.Scan(&point.ID, &point.Name, &point.Longitude, &point.Latitude, &point.Score); err != nil {
			return nil, fmt.Errorf("scan map point: %w", err)
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate map points: %w", err)
	}
	return points, nil
}

func stringSliceOrEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nullStringToPtr(value sql.NullString) *string {
	if value.Valid {
		val := value.String
		return &val
	}
	return nil
}
