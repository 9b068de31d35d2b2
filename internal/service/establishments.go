package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"

	"github.com/gastromap/discovery-api/internal/dto"
	"github.com/gastromap/discovery-api/internal/entity"
	"github.com/gastromap/discovery-api/internal/repository"
)

// defaultPhoneRegion is the region used to parse national-format numbers.
const defaultPhoneRegion = "BY"

const trackingPrefix = "utm_"

// EstablishmentsService exposes catalogue reads and the administrative
// write surface (ingest, CSV import, moderation lifecycle).
type EstablishmentsService struct {
	repo        repository.EstablishmentsRepository
	phoneRegion string
}

// NewEstablishmentsService creates a service with the default phone region.
func NewEstablishmentsService(repo repository.EstablishmentsRepository) *EstablishmentsService {
	return &EstablishmentsService{repo: repo, phoneRegion: defaultPhoneRegion}
}

// TransitionError reports a lifecycle move the moderation rules forbid.
type TransitionError struct {
	From entity.Status
	To   entity.Status
}

// Error implements the error interface.
func (e TransitionError) Error() string {
	return fmt.Sprintf("cannot transition establishment from %s to %s", e.From, e.To)
}

// CSVValidationError indicates that the provided CSV payload is invalid.
type CSVValidationError struct {
	Message string
}

// Error implements the error interface.
func (e CSVValidationError) Error() string {
	return e.Message
}

// ImportSummary reports how many rows were inserted or updated during import.
type ImportSummary struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Total    int `json:"total"`
}

// Get returns the full establishment detail. The public surface only sees
// active rows; everything else reads as absent.
func (s *EstablishmentsService) Get(ctx context.Context, id uuid.UUID) (*entity.Establishment, error) {
	est, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if est.Status != entity.StatusActive {
		return nil, repository.ErrEstablishmentNotFound
	}
	return est, nil
}

// ListAdmin returns catalogue rows for the moderation panel.
func (s *EstablishmentsService) ListAdmin(ctx context.Context, statusValue string, page, perPage int) ([]entity.Establishment, error) {
	var status *entity.Status
	if statusValue != "" {
		if !entity.ValidStatus(statusValue) {
			verr := &ValidationError{}
			verr.add("status", fmt.Sprintf("unknown value(s): %s", statusValue))
			return nil, verr
		}
		st := entity.Status(statusValue)
		status = &st
	}

	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	return s.repo.ListByStatus(ctx, status, perPage, (page-1)*perPage)
}

// Upsert validates and normalizes an administrator-submitted establishment
// and persists it. New rows enter the lifecycle in draft.
func (s *EstablishmentsService) Upsert(ctx context.Context, req dto.UpsertEstablishmentRequest) (*entity.Establishment, error) {
	verr := &ValidationError{}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		verr.add("name", "is required")
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		verr.add("address", "is required")
	}
	if req.Latitude < -90 || req.Latitude > 90 {
		verr.add("latitude", "must be between -90 and 90")
	}
	if req.Longitude < -180 || req.Longitude > 180 {
		verr.add("longitude", "must be between -180 and 180")
	}

	checkEnum(verr, "categories", req.Categories, entity.Categories)
	if len(req.Categories) == 0 {
		verr.add("categories", "at least one category is required")
	}
	checkEnum(verr, "cuisines", req.Cuisines, entity.Cuisines)
	checkEnum(verr, "features", req.Features, entity.Features)
	checkEnum(verr, "hours_windows", req.HoursWindows, entity.HoursWindows)
	if req.PriceTier != nil && !entity.PriceTiers.Contains(*req.PriceTier) {
		verr.add("price_tier", fmt.Sprintf("unknown value(s): %s", *req.PriceTier))
	}

	tier := entity.TierFree
	if trimmed := strings.TrimSpace(req.SubscriptionTier); trimmed != "" {
		if !entity.ValidTier(trimmed) {
			verr.add("subscription_tier", fmt.Sprintf("unknown value(s): %s", trimmed))
		} else {
			tier = entity.SubscriptionTier(trimmed)
		}
	}

	var phone *string
	if req.Phone != nil && strings.TrimSpace(*req.Phone) != "" {
		normalized := normalizePhone(*req.Phone, s.phoneRegion)
		if normalized == "" {
			verr.add("phone", "is not a valid phone number")
		} else {
			phone = &normalized
		}
	}

	var website *string
	if req.Website != nil && strings.TrimSpace(*req.Website) != "" {
		sanitized, err := sanitizeWebsite(*req.Website)
		if err != nil {
			verr.add("website", "is not a valid URL")
		} else {
			website = &sanitized
		}
	}

	if err := verr.orNil(); err != nil {
		return nil, err
	}

	est := &entity.Establishment{
		Name:             name,
		Description:      normalizeOptional(req.Description),
		Address:          address,
		City:             normalizeOptional(req.City),
		Phone:            phone,
		Website:          website,
		Latitude:         req.Latitude,
		Longitude:        req.Longitude,
		Categories:       req.Categories,
		Cuisines:         req.Cuisines,
		PriceTier:        req.PriceTier,
		Features:         req.Features,
		HoursWindows:     req.HoursWindows,
		SubscriptionTier: tier,
	}

	return s.repo.Upsert(ctx, est)
}

// ChangeStatus moves an establishment through the moderation lifecycle,
// rejecting transitions the state machine does not allow.
func (s *EstablishmentsService) ChangeStatus(ctx context.Context, id uuid.UUID, statusValue string) (*entity.Establishment, error) {
	if !entity.ValidStatus(statusValue) {
		verr := &ValidationError{}
		verr.add("status", fmt.Sprintf("unknown value(s): %s", statusValue))
		return nil, verr
	}
	target := entity.Status(statusValue)

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !current.Status.CanTransition(target) {
		return nil, TransitionError{From: current.Status, To: target}
	}

	if err := s.repo.UpdateStatus(ctx, id, target); err != nil {
		return nil, err
	}

	current.Status = target
	return current, nil
}

var requiredCSVHeaders = []string{"name", "address", "city", "phone", "website", "latitude", "longitude", "categories", "price_tier"}

// ImportCSV ingests establishments from a CSV reader. Multi-value cells
// (categories) are separated with ';' inside the cell.
func (s *EstablishmentsService) ImportCSV(ctx context.Context, r io.Reader) (ImportSummary, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ImportSummary{}, CSVValidationError{Message: "csv file is empty"}
		}
		return ImportSummary{}, fmt.Errorf("read csv header: %w", err)
	}

	indexMap, valErr := buildHeaderIndex(header)
	if valErr != nil {
		return ImportSummary{}, valErr
	}

	var (
		records []repository.BulkUpsertEstablishmentInput
		rowNum  = 1
	)

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ImportSummary{}, fmt.Errorf("read csv row: %w", err)
		}

		rowNum++

		name := strings.TrimSpace(row[indexMap["name"]])
		address := strings.TrimSpace(row[indexMap["address"]])
		if name == "" || address == "" {
			continue
		}

		lat, latErr := strconv.ParseFloat(strings.TrimSpace(row[indexMap["latitude"]]), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(row[indexMap["longitude"]]), 64)
		if latErr != nil || lonErr != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return ImportSummary{}, CSVValidationError{Message: fmt.Sprintf("invalid coordinates on row %d", rowNum)}
		}

		categories := splitMultiCell(row[indexMap["categories"]])
		for _, category := range categories {
			if !entity.Categories.Contains(category) {
				return ImportSummary{}, CSVValidationError{Message: fmt.Sprintf("unknown category %q on row %d", category, rowNum)}
			}
		}

		priceTier := normalizeString(row[indexMap["price_tier"]])
		if priceTier != nil && !entity.PriceTiers.Contains(*priceTier) {
			return ImportSummary{}, CSVValidationError{Message: fmt.Sprintf("unknown price tier %q on row %d", *priceTier, rowNum)}
		}

		var phone *string
		if raw := strings.TrimSpace(row[indexMap["phone"]]); raw != "" {
			if normalized := normalizePhone(raw, s.phoneRegion); normalized != "" {
				phone = &normalized
			}
		}

		var website *string
		if raw := strings.TrimSpace(row[indexMap["website"]]); raw != "" {
			if sanitized, err := sanitizeWebsite(raw); err == nil {
				website = &sanitized
			}
		}

		records = append(records, repository.BulkUpsertEstablishmentInput{
			Name:       name,
			Address:    address,
			City:       normalizeString(row[indexMap["city"]]),
			Phone:      phone,
			Website:    website,
			Latitude:   lat,
			Longitude:  lon,
			Categories: categories,
			PriceTier:  priceTier,
		})
	}

	result, err := s.repo.BulkUpsert(ctx, records)
	if err != nil {
		return ImportSummary{}, err
	}

	return ImportSummary{
		Inserted: result.Inserted,
		Updated:  result.Updated,
		Total:    result.Total,
	}, nil
}

func buildHeaderIndex(header []string) (map[string]int, error) {
	index := make(map[string]int)
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}

	missing := make([]string, 0)
	for _, required := range requiredCSVHeaders {
		if _, ok := index[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, CSVValidationError{Message: fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", "))}
	}
	return index, nil
}

func checkEnum(verr *ValidationError, field string, values []string, enum entity.Enum) {
	var invalid []string
	for _, value := range values {
		if !enum.Contains(value) {
			invalid = append(invalid, value)
		}
	}
	if len(invalid) > 0 {
		verr.add(field, fmt.Sprintf("unknown value(s): %s", strings.Join(invalid, ", ")))
	}
}

// normalizePhone parses national or international input and renders E.164.
// Returns "" for anything that is not a possible, valid number.
func normalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	number, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return ""
	}
	if !phonenumbers.IsPossibleNumber(number) || !phonenumbers.IsValidNumber(number) {
		return ""
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

// sanitizeWebsite forces https, validates the host and strips utm tracking
// parameters.
func sanitizeWebsite(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", errors.New("invalid url")
	}
	u.Scheme = "https"

	query := u.Query()
	changed := false
	for key := range query {
		if strings.HasPrefix(strings.ToLower(key), trackingPrefix) {
			query.Del(key)
			changed = true
		}
	}
	if changed {
		u.RawQuery = query.Encode()
	}

	return u.String(), nil
}

func splitMultiCell(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ";") {
		if value := strings.TrimSpace(part); value != "" {
			out = append(out, value)
		}
	}
	return out
}

func normalizeString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	return normalizeString(*value)
}
