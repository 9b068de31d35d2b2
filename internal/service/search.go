package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gastromap/discovery-api/internal/dto"
	"github.com/gastromap/discovery-api/internal/entity"
	"github.com/gastromap/discovery-api/internal/repository"
	"github.com/gastromap/discovery-api/internal/service/ranking"
)

// ErrSearchUnavailable hides store-level failures (timeout, pool exhaustion,
// transient network errors) behind one retryable condition. The module never
// retries internally and never serves partial results.
var ErrSearchUnavailable = errors.New("search temporarily unavailable")

// SearchService runs the validate → compose → execute pipeline for both
// search shapes. Requests share nothing but the connection pool.
type SearchService struct {
	repo repository.EstablishmentsRepository
}

// NewSearchService wires the service to its repository.
func NewSearchService(repo repository.EstablishmentsRepository) *SearchService {
	return &SearchService{repo: repo}
}

// ListPage is the assembled list-view result.
type ListPage struct {
	Items      []entity.RankedEstablishment
	NextCursor string
}

// List executes the radius search and assembles a stable page. The
// repository is asked for one row beyond the page size; its presence is the
// only signal that another page exists.
func (s *SearchService) List(ctx context.Context, filter dto.SearchFilter) (ListPage, error) {
	// A structurally valid cursor whose key cannot exist anymore resumes
	// from the first page; relevance search does not owe the client strict
	// consistency across requests.
	if filter.After != nil && filter.After.Stale() {
		filter.After = nil
	}

	rows, err := s.repo.SearchRadius(ctx, filter)
	if err != nil {
		return ListPage{}, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}

	page := ListPage{Items: rows}
	if len(rows) > filter.PageSize {
		page.Items = rows[:filter.PageSize]
		last := page.Items[len(page.Items)-1]
		cursor := ranking.Cursor{Score: last.Score, ID: last.ID}
		page.NextCursor = cursor.Encode()
	}
	if page.Items == nil {
		page.Items = []entity.RankedEstablishment{}
	}

	return page, nil
}

// Map executes the bounding-box search. The ranking center is the box
// midpoint and the distance normalizer half the box diagonal, keeping the
// ordering formula identical to the list path.
func (s *SearchService) Map(ctx context.Context, filter dto.BoundsFilter) ([]entity.MapPoint, error) {
	normalizer := ranking.HaversineMeters(filter.South, filter.West, filter.North, filter.East) / 2

	points, err := s.repo.SearchBounds(ctx, filter, normalizer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}
	if points == nil {
		points = []entity.MapPoint{}
	}
	return points, nil
}
