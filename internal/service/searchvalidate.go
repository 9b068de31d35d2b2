package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gastromap/discovery-api/internal/dto"
	"github.com/gastromap/discovery-api/internal/entity"
	"github.com/gastromap/discovery-api/internal/service/ranking"
)

// Validation bounds for the search surface. Radii are meters.
const (
	MinRadiusMeters     = 100.0
	MaxRadiusMeters     = 50000.0
	DefaultRadiusMeters = 5000.0

	MaxBoxSpanDegrees = 10.0

	DefaultListPageSize = 20
	MaxListPageSize     = 100
	DefaultMapLimit     = 200
	MaxMapLimit         = 500
)

// FieldError names one failing request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every failing field of a request in one value, so
// clients see the full list instead of only the first problem.
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ListSearchParams are the raw query parameters of the list-view endpoint.
type ListSearchParams struct {
	Lat      string
	Lon      string
	Radius   string
	Category string
	Cuisine  string
	Price    string
	Feature  string
	Hours    string
	Cursor   string
	PageSize string
}

// MapSearchParams are the raw query parameters of the map-view endpoint.
type MapSearchParams struct {
	North    string
	South    string
	East     string
	West     string
	Category string
	Cuisine  string
	Price    string
	Feature  string
	Hours    string
	Limit    string
}

// ValidateListSearch checks and normalizes list-view parameters. It is pure:
// no query executes until every field has passed.
func ValidateListSearch(p ListSearchParams) (dto.SearchFilter, error) {
	verr := &ValidationError{}
	filter := dto.SearchFilter{RadiusMeters: DefaultRadiusMeters, PageSize: DefaultListPageSize}

	filter.Latitude = parseBoundedFloat(verr, "lat", p.Lat, -90, 90, true)
	filter.Longitude = parseBoundedFloat(verr, "lon", p.Lon, -180, 180, true)

	if strings.TrimSpace(p.Radius) != "" {
		radius, err := strconv.ParseFloat(strings.TrimSpace(p.Radius), 64)
		switch {
		case err != nil:
			verr.add("radius", "must be a number of meters")
		case radius < MinRadiusMeters || radius > MaxRadiusMeters:
			verr.add("radius", fmt.Sprintf("must be between %.0f and %.0f meters", MinRadiusMeters, MaxRadiusMeters))
		default:
			filter.RadiusMeters = radius
		}
	}

	filter.Categories = parseEnumList(verr, "category", p.Category, entity.Categories)
	filter.Cuisines = parseEnumList(verr, "cuisine", p.Cuisine, entity.Cuisines)
	filter.PriceTiers = parseEnumList(verr, "price", p.Price, entity.PriceTiers)
	filter.Features = parseEnumList(verr, "feature", p.Feature, entity.Features)
	filter.HoursWindows = parseEnumList(verr, "hours", p.Hours, entity.HoursWindows)

	if size := parsePageSize(verr, "page_size", p.PageSize, MaxListPageSize); size > 0 {
		filter.PageSize = size
	}

	if strings.TrimSpace(p.Cursor) != "" {
		cursor, err := ranking.DecodeCursor(strings.TrimSpace(p.Cursor))
		if err != nil {
			verr.add("cursor", "malformed pagination cursor")
		} else {
			filter.After = &cursor
		}
	}

	if err := verr.orNil(); err != nil {
		return dto.SearchFilter{}, err
	}
	return filter, nil
}

// ValidateMapSearch checks and normalizes map-view parameters.
func ValidateMapSearch(p MapSearchParams) (dto.BoundsFilter, error) {
	verr := &ValidationError{}
	filter := dto.BoundsFilter{Limit: DefaultMapLimit}

	filter.North = parseBoundedFloat(verr, "north", p.North, -90, 90, true)
	filter.South = parseBoundedFloat(verr, "south", p.South, -90, 90, true)
	filter.East = parseBoundedFloat(verr, "east", p.East, -180, 180, true)
	filter.West = parseBoundedFloat(verr, "west", p.West, -180, 180, true)

	// Span checks only make sense once the edges themselves parsed.
	if len(verr.Fields) == 0 {
		if filter.North <= filter.South {
			verr.add("north", "must be greater than south")
		} else if filter.North-filter.South > MaxBoxSpanDegrees {
			verr.add("north", fmt.Sprintf("bounding box too large: latitude span exceeds %.0f degrees", MaxBoxSpanDegrees))
		}
		if filter.East <= filter.West {
			verr.add("east", "must be greater than west")
		} else if filter.East-filter.West > MaxBoxSpanDegrees {
			verr.add("east", fmt.Sprintf("bounding box too large: longitude span exceeds %.0f degrees", MaxBoxSpanDegrees))
		}
	}

	filter.Categories = parseEnumList(verr, "category", p.Category, entity.Categories)
	filter.Cuisines = parseEnumList(verr, "cuisine", p.Cuisine, entity.Cuisines)
	filter.PriceTiers = parseEnumList(verr, "price", p.Price, entity.PriceTiers)
	filter.Features = parseEnumList(verr, "feature", p.Feature, entity.Features)
	filter.HoursWindows = parseEnumList(verr, "hours", p.Hours, entity.HoursWindows)

	if limit := parsePageSize(verr, "limit", p.Limit, MaxMapLimit); limit > 0 {
		filter.Limit = limit
	}

	if err := verr.orNil(); err != nil {
		return dto.BoundsFilter{}, err
	}
	return filter, nil
}

// parseBoundedFloat parses a required coordinate-like field and records a
// field error when missing, unparseable or out of range.
func parseBoundedFloat(verr *ValidationError, field, raw string, min, max float64, required bool) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			verr.add(field, "is required")
		}
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		verr.add(field, "must be a number")
		return 0
	}
	if value < min || value > max {
		verr.add(field, fmt.Sprintf("must be between %.0f and %.0f", min, max))
		return 0
	}
	return value
}

// parseEnumList splits a comma-separated filter and checks every value
// against its closed enumeration. The error names exactly the values that
// failed, never the valid ones riding in the same list.
func parseEnumList(verr *ValidationError, field, raw string, enum entity.Enum) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var valid, invalid []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		if enum.Contains(value) {
			valid = append(valid, value)
		} else {
			invalid = append(invalid, value)
		}
	}

	if len(invalid) > 0 {
		verr.add(field, fmt.Sprintf("unknown value(s): %s", strings.Join(invalid, ", ")))
		return nil
	}
	return valid
}

func parsePageSize(verr *ValidationError, field, raw string, max int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		verr.add(field, "must be a positive integer")
		return 0
	}
	if value > max {
		verr.add(field, fmt.Sprintf("must not exceed %d", max))
		return 0
	}
	return value
}
