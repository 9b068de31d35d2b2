package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/gastromap/discovery-api/internal/dto"
	"github.com/gastromap/discovery-api/internal/entity"
	"github.com/gastromap/discovery-api/internal/repository"
)

func validUpsertRequest() dto.UpsertEstablishmentRequest {
	return dto.UpsertEstablishmentRequest{
		Name:       "Кафе Центральное",
		Address:    "пр. Независимости 1",
		Latitude:   53.9045,
		Longitude:  27.5615,
		Categories: []string{"Кафе"},
	}
}

func TestEstablishmentsService_Upsert_Normalization(t *testing.T) {
	var captured *entity.Establishment
	repo := &fakeEstablishmentsRepo{
		upsert: func(ctx context.Context, est *entity.Establishment) (*entity.Establishment, error) {
			captured = est
			return est, nil
		},
	}
	svc := NewEstablishmentsService(repo)

	req := validUpsertRequest()
	phone := "8 (029) 123-45-67"
	website := "http://cafe.by/menu?utm_source=ads&table=5"
	req.Phone = &phone
	req.Website = &website

	if _, err := svc.Upsert(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.Phone == nil || *captured.Phone != "+375291234567" {
		t.Fatalf("expected E.164 phone, got %v", captured.Phone)
	}
	if captured.Website == nil {
		t.Fatalf("expected website to survive sanitization")
	}
	if !strings.HasPrefix(*captured.Website, "https://") {
		t.Fatalf("website must be forced to https: %s", *captured.Website)
	}
	if strings.Contains(*captured.Website, "utm_") {
		t.Fatalf("tracking parameters must be stripped: %s", *captured.Website)
	}
	if !strings.Contains(*captured.Website, "table=5") {
		t.Fatalf("non-tracking parameters must survive: %s", *captured.Website)
	}
	if captured.SubscriptionTier != entity.TierFree {
		t.Fatalf("missing tier must default to free, got %s", captured.SubscriptionTier)
	}
}

func TestEstablishmentsService_Upsert_AccumulatesErrors(t *testing.T) {
	svc := NewEstablishmentsService(&fakeEstablishmentsRepo{})

	badPhone := "not-a-phone"
	req := dto.UpsertEstablishmentRequest{
		Name:       " ",
		Latitude:   99,
		Longitude:  27.5,
		Categories: []string{"Закусочная"},
		Phone:      &badPhone,
	}

	_, err := svc.Upsert(context.Background(), req)
	msgs := fieldMessages(t, err)
	for _, field := range []string{"name", "address", "latitude", "categories", "phone"} {
		if msgs[field] == "" {
			t.Fatalf("expected error for %s, got %v", field, msgs)
		}
	}
	if !strings.Contains(msgs["categories"], "Закусочная") {
		t.Fatalf("error must name the unknown category: %s", msgs["categories"])
	}
}

func TestEstablishmentsService_ChangeStatus(t *testing.T) {
	id := uuid.New()
	current := entity.StatusPending
	var updatedTo entity.Status

	repo := &fakeEstablishmentsRepo{
		getByID: func(ctx context.Context, got uuid.UUID) (*entity.Establishment, error) {
			return &entity.Establishment{ID: id, Status: current}, nil
		},
		updateStatus: func(ctx context.Context, got uuid.UUID, status entity.Status) error {
			updatedTo = status
			return nil
		},
	}
	svc := NewEstablishmentsService(repo)

	est, err := svc.ChangeStatus(context.Background(), id, "active")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.Status != entity.StatusActive || updatedTo != entity.StatusActive {
		t.Fatalf("expected transition to active, got %s", est.Status)
	}

	t.Run("forbidden transition", func(t *testing.T) {
		current = entity.StatusArchived
		_, err := svc.ChangeStatus(context.Background(), id, "active")
		var terr TransitionError
		if !errors.As(err, &terr) {
			t.Fatalf("expected TransitionError, got %v", err)
		}
		if !strings.Contains(terr.Error(), "archived") || !strings.Contains(terr.Error(), "active") {
			t.Fatalf("error must name both states: %s", terr.Error())
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := svc.ChangeStatus(context.Background(), id, "published")
		if msgs := fieldMessages(t, err); msgs["status"] == "" {
			t.Fatalf("expected status field error, got %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		repo.getByID = func(ctx context.Context, got uuid.UUID) (*entity.Establishment, error) {
			return nil, repository.ErrEstablishmentNotFound
		}
		if _, err := svc.ChangeStatus(context.Background(), id, "active"); !errors.Is(err, repository.ErrEstablishmentNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestEstablishmentsService_ImportCSV(t *testing.T) {
	var captured []repository.BulkUpsertEstablishmentInput
	repo := &fakeEstablishmentsRepo{
		bulkUpsert: func(ctx context.Context, records []repository.BulkUpsertEstablishmentInput) (repository.BulkUpsertResult, error) {
			captured = records
			return repository.BulkUpsertResult{Inserted: len(records), Total: len(records)}, nil
		},
	}
	svc := NewEstablishmentsService(repo)

	csv := "name,address,city,phone,website,latitude,longitude,categories,price_tier\n" +
		"Кафе Центральное,пр. Независимости 1,Минск,+375291234567,cafe.by,53.9045,27.5615,Кафе;Кофейня,$$\n" +
		",missing name skipped,,,,53.9,27.5,,\n"

	summary, err := svc.ImportCSV(context.Background(), strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Inserted != 1 || summary.Total != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(captured) != 1 {
		t.Fatalf("expected one record, got %d", len(captured))
	}

	record := captured[0]
	if record.Name != "Кафе Центральное" || len(record.Categories) != 2 {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.Website == nil || !strings.HasPrefix(*record.Website, "https://") {
		t.Fatalf("expected sanitized website, got %v", record.Website)
	}
}

func TestEstablishmentsService_ImportCSV_Rejections(t *testing.T) {
	svc := NewEstablishmentsService(&fakeEstablishmentsRepo{})

	cases := map[string]struct {
		payload string
		want    string
	}{
		"empty file": {
			payload: "",
			want:    "empty",
		},
		"missing columns": {
			payload: "name,address\nКафе,Минск\n",
			want:    "missing required columns",
		},
		"bad coordinates": {
			payload: "name,address,city,phone,website,latitude,longitude,categories,price_tier\n" +
				"Кафе,Минск,,,,91.5,27.5,Кафе,\n",
			want: "invalid coordinates",
		},
		"unknown category": {
			payload: "name,address,city,phone,website,latitude,longitude,categories,price_tier\n" +
				"Кафе,Минск,,,,53.9,27.5,Закусочная,\n",
			want: "unknown category",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ImportCSV(context.Background(), strings.NewReader(tc.payload))
			var cerr CSVValidationError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected CSVValidationError, got %v", err)
			}
			if !strings.Contains(cerr.Message, tc.want) {
				t.Fatalf("expected message containing %q, got %q", tc.want, cerr.Message)
			}
		})
	}
}

func TestEstablishmentsService_Get_HidesInactive(t *testing.T) {
	id := uuid.New()
	status := entity.StatusActive
	repo := &fakeEstablishmentsRepo{
		getByID: func(ctx context.Context, got uuid.UUID) (*entity.Establishment, error) {
			return &entity.Establishment{ID: got, Status: status}, nil
		},
	}
	svc := NewEstablishmentsService(repo)

	if _, err := svc.Get(context.Background(), id); err != nil {
		t.Fatalf("active row must be visible: %v", err)
	}

	status = entity.StatusSuspended
	if _, err := svc.Get(context.Background(), id); !errors.Is(err, repository.ErrEstablishmentNotFound) {
		t.Fatalf("suspended row must read as absent, got %v", err)
	}
}

func TestEstablishmentsService_ListAdmin(t *testing.T) {
	var gotStatus *entity.Status
	var gotLimit, gotOffset int
	repo := &fakeEstablishmentsRepo{
		listByStatus: func(ctx context.Context, status *entity.Status, limit, offset int) ([]entity.Establishment, error) {
			gotStatus, gotLimit, gotOffset = status, limit, offset
			return nil, nil
		},
	}
	svc := NewEstablishmentsService(repo)

	if _, err := svc.ListAdmin(context.Background(), "pending", 3, 25); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotStatus == nil || *gotStatus != entity.StatusPending {
		t.Fatalf("expected pending filter, got %v", gotStatus)
	}
	if gotLimit != 25 || gotOffset != 50 {
		t.Fatalf("unexpected paging: limit=%d offset=%d", gotLimit, gotOffset)
	}

	if _, err := svc.ListAdmin(context.Background(), "published", 1, 20); err == nil {
		t.Fatalf("expected error for unknown status filter")
	}
}
