package activity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	sessionModel "github.com/zhouzirui/huddle/backend/internal/model/session"
	"github.com/zhouzirui/huddle/backend/internal/service/analytics"
	sessionService "github.com/zhouzirui/huddle/backend/internal/service/session"
)

func setupRouter() (*chi.Mux, *sessionService.Service) {
	svc := sessionService.NewService(sessionModel.NewMemoryStore(), time.Minute)
	handler := New(svc)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, svc
}

func TestActivityEndpoint(t *testing.T) {
	r, svc := setupRouter()
	ctx := context.Background()

	rec, _ := svc.StartSession(ctx, "alice")
	svc.CloseSession(ctx, rec.ID, nil)

	req := httptest.NewRequest(http.MethodGet, "/users/alice/activity", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var record analytics.ActivityRecord
	if err := json.Unmarshal(resp.Body.Bytes(), &record); err != nil {
		t.Fatalf("invalid activity response: %v", err)
	}
	if record.StreakDays != 1 {
		t.Fatalf("expected streak 1, got %d", record.StreakDays)
	}
	if len(record.DailyBuckets) != 7 {
		t.Fatalf("expected default 7-day window, got %d buckets", len(record.DailyBuckets))
	}
	if len(record.Badges) == 0 {
		t.Fatal("expected badge states")
	}
}

func TestActivityEndpointInvalidDays(t *testing.T) {
	r, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/users/alice/activity?days=bogus", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestActivityEndpointCustomWindow(t *testing.T) {
	r, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/users/alice/activity?days=30", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var record analytics.ActivityRecord
	json.Unmarshal(resp.Body.Bytes(), &record)
	if len(record.DailyBuckets) != 30 {
		t.Fatalf("expected 30 buckets, got %d", len(record.DailyBuckets))
	}
}
