package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gastromap/discovery-api/internal/dto"
	"github.com/gastromap/discovery-api/internal/service"
)

// SearchHandler exposes the public search surface: ranked list view and
// map view over the active catalogue.
type SearchHandler struct {
	search *service.SearchService
}

// NewSearchHandler constructs a SearchHandler.
func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// List handles GET /establishments/search requests.
func (h *SearchHandler) List(c echo.Context) error {
	params := service.ListSearchParams{
		Lat:      c.QueryParam("lat"),
		Lon:      c.QueryParam("lon"),
		Radius:   c.QueryParam("radius"),
		Category: c.QueryParam("category"),
		Cuisine:  c.QueryParam("cuisine"),
		Price:    c.QueryParam("price"),
		Feature:  c.QueryParam("feature"),
		Hours:    c.QueryParam("hours"),
		Cursor:   c.QueryParam("cursor"),
		PageSize: c.QueryParam("page_size"),
	}

	filter, err := service.ValidateListSearch(params)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return ValidationFailed(c, verr)
		}
		return Error(c, http.StatusBadRequest, "invalid request")
	}

	page, err := h.search.List(c.Request().Context(), filter)
	if err != nil {
		if errors.Is(err, service.ErrSearchUnavailable) {
			return Error(c, http.StatusServiceUnavailable, "search temporarily unavailable")
		}
		return Error(c, http.StatusInternalServerError, "search failed")
	}

	return Success(c, http.StatusOK, "establishments retrieved", dto.SearchPage{
		Items:      page.Items,
		NextCursor: page.NextCursor,
	})
}

// Map handles GET /establishments/map requests.
func (h *SearchHandler) Map(c echo.Context) error {
	params := service.MapSearchParams{
		North:    c.QueryParam("north"),
		South:    c.QueryParam("south"),
		East:     c.QueryParam("east"),
		West:     c.QueryParam("west"),
		Category: c.QueryParam("category"),
		Cuisine:  c.QueryParam("cuisine"),
		Price:    c.QueryParam("price"),
		Feature:  c.QueryParam("feature"),
		Hours:    c.QueryParam("hours"),
		Limit:    c.QueryParam("limit"),
	}

	filter, err := service.ValidateMapSearch(params)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return ValidationFailed(c, verr)
		}
		return Error(c, http.StatusBadRequest, "invalid request")
	}

	points, err := h.search.Map(c.Request().Context(), filter)
	if err != nil {
		if errors.Is(err, service.ErrSearchUnavailable) {
			return Error(c, http.StatusServiceUnavailable, "search temporarily unavailable")
		}
		return Error(c, http.StatusInternalServerError, "search failed")
	}

	return Success(c, http.StatusOK, "map points retrieved", points)
}
