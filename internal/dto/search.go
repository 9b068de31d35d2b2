package dto

import "github.com/gastromap/discovery-api/internal/service/ranking"

// SearchFilter is the validated, request-scoped parameter set for the radius
// ("list view") search. It is constructed by the boundary validator and
// discarded after the query executes.
type SearchFilter struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64

	Categories   []string
	Cuisines     []string
	PriceTiers   []string
	Features     []string
	HoursWindows []string

	PageSize int
	After    *ranking.Cursor
}

// BoundsFilter is the validated parameter set for the bounding-box
// ("map view") search. Map view is a single bounded fetch and carries no
// cursor.
type BoundsFilter struct {
	North float64
	South float64
	East  float64
	West  float64

	Categories   []string
	Cuisines     []string
	PriceTiers   []string
	Features     []string
	HoursWindows []string

	Limit int
}

// CenterLat returns the latitude of the box midpoint, the ranking center
// for map view.
func (f BoundsFilter) CenterLat() float64 { return (f.North + f.South) / 2 }

// CenterLon returns the longitude of the box midpoint.
func (f BoundsFilter) CenterLon() float64 { return (f.East + f.West) / 2 }

// SearchPage is the list-view response payload. NextCursor is empty when no
// further pages exist.
type SearchPage struct {
	Items      any    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}
