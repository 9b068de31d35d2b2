package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/gastromap/discovery-api/internal/dto"
	"github.com/gastromap/discovery-api/internal/repository"
	"github.com/gastromap/discovery-api/internal/service"
)

// EstablishmentsHandler exposes the public detail endpoint and the
// administrative catalogue surface.
type EstablishmentsHandler struct {
	establishments *service.EstablishmentsService
}

// NewEstablishmentsHandler constructs an EstablishmentsHandler.
func NewEstablishmentsHandler(establishments *service.EstablishmentsService) *EstablishmentsHandler {
	return &EstablishmentsHandler{establishments: establishments}
}

// Get handles GET /establishments/:id requests.
func (h *EstablishmentsHandler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid establishment id")
	}

	est, err := h.establishments.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrEstablishmentNotFound) {
			return Error(c, http.StatusNotFound, "establishment not found")
		}
		return Error(c, http.StatusInternalServerError, "failed to load establishment")
	}

	return Success(c, http.StatusOK, "establishment retrieved", est)
}

// Upsert handles POST /admin/establishments requests.
func (h *EstablishmentsHandler) Upsert(c echo.Context) error {
	var req dto.UpsertEstablishmentRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	est, err := h.establishments.Upsert(c.Request().Context(), req)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return ValidationFailed(c, verr)
		}
		return Error(c, http.StatusInternalServerError, "failed to save establishment")
	}

	return Success(c, http.StatusCreated, "establishment saved", est)
}

// ChangeStatus handles PATCH /admin/establishments/:id/status requests.
func (h *EstablishmentsHandler) ChangeStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid establishment id")
	}

	var req dto.StatusChangeRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	est, err := h.establishments.ChangeStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return ValidationFailed(c, verr)
		}
		var terr service.TransitionError
		if errors.As(err, &terr) {
			return Error(c, http.StatusBadRequest, terr.Error())
		}
		if errors.Is(err, repository.ErrEstablishmentNotFound) {
			return Error(c, http.StatusNotFound, "establishment not found")
		}
		return Error(c, http.StatusInternalServerError, "failed to change status")
	}

	return Success(c, http.StatusOK, "status updated", est)
}

// List handles GET /admin/establishments requests for the moderation panel.
func (h *EstablishmentsHandler) List(c echo.Context) error {
	page := parsePositiveInt(c.QueryParam("page"), 1)
	perPage := parsePositiveInt(c.QueryParam("per_page"), 20)

	records, err := h.establishments.ListAdmin(c.Request().Context(), c.QueryParam("status"), page, perPage)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return ValidationFailed(c, verr)
		}
		return Error(c, http.StatusInternalServerError, "failed to list establishments")
	}

	return Success(c, http.StatusOK, "establishments retrieved", records)
}

// UploadCSV handles POST /admin/upload-csv requests. The file rides in the
// multipart field "file".
func (h *EstablishmentsHandler) UploadCSV(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return Error(c, http.StatusBadRequest, "csv file is required")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return Error(c, http.StatusBadRequest, "unable to read uploaded file")
	}
	defer src.Close()

	summary, err := h.establishments.ImportCSV(c.Request().Context(), src)
	if err != nil {
		var cerr service.CSVValidationError
		if errors.As(err, &cerr) {
			return Error(c, http.StatusBadRequest, cerr.Message)
		}
		return Error(c, http.StatusInternalServerError, "csv import failed")
	}

	return Success(c, http.StatusOK, "csv imported", summary)
}

func parsePositiveInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
