package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newMockDB(t *testing.T) (*HealthChecker, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewHealthChecker(db, nil, "test"), mock
}

func TestHealthChecker_Liveness(t *testing.T) {
	checker := NewHealthChecker(nil, nil, "1.2.3")

	rec := httptest.NewRecorder()
	checker.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if status.Status != StatusHealthy {
		t.Errorf("Expected status=%s, got %s", StatusHealthy, status.Status)
	}
	if status.Version != "1.2.3" {
		t.Errorf("Expected version=1.2.3, got %s", status.Version)
	}
}

func TestHealthChecker_Check(t *testing.T) {
	t.Run("healthy database", func(t *testing.T) {
		checker, mock := newMockDB(t)
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

		status := checker.Check(context.Background())
		if status.Status != StatusHealthy {
			t.Errorf("Expected status=%s, got %s", StatusHealthy, status.Status)
		}
		if status.Dependencies["database"].Status != StatusHealthy {
			t.Errorf("Expected database healthy, got %+v", status.Dependencies["database"])
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unfulfilled expectations: %v", err)
		}
	})

	t.Run("database query failure is unhealthy", func(t *testing.T) {
		checker, mock := newMockDB(t)
		mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("connection refused"))

		status := checker.Check(context.Background())
		if status.Status != StatusUnhealthy {
			t.Errorf("Expected status=%s, got %s", StatusUnhealthy, status.Status)
		}
		if status.Dependencies["database"].Message != "connection refused" {
			t.Errorf("Expected error message, got %q", status.Dependencies["database"].Message)
		}
	})

	t.Run("redis down degrades", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("Failed to create mock db: %v", err)
		}
		defer db.Close()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("Failed to start miniredis: %v", err)
		}
		client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		defer client.Close()
		mr.Close()

		status := NewHealthChecker(db, client, "test").Check(context.Background())
		if status.Status != StatusDegraded {
			t.Errorf("Expected status=%s, got %s", StatusDegraded, status.Status)
		}
		if status.Dependencies["redis"].Status != StatusUnhealthy {
			t.Errorf("Expected redis unhealthy, got %+v", status.Dependencies["redis"])
		}
	})

	t.Run("redis up", func(t *testing.T) {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("Failed to start miniredis: %v", err)
		}
		defer mr.Close()
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()

		status := NewHealthChecker(nil, client, "test").Check(context.Background())
		if status.Status != StatusHealthy {
			t.Errorf("Expected status=%s, got %s", StatusHealthy, status.Status)
		}
	})
}

func TestHealthChecker_Readiness(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(sqlmock.Sqlmock)
		wantCode int
	}{
		{
			name: "ready",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
			},
			wantCode: http.StatusOK,
		},
		{
			name: "not ready",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("SELECT 1").WillReturnError(errors.New("down"))
			},
			wantCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker, mock := newMockDB(t)
			tt.setup(mock)

			rec := httptest.NewRecorder()
			checker.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected JSON content type, got %s", ct)
			}
		})
	}
}
