package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestParseRecordID(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		pathValue  string
		wantOK     bool
		wantStatus int
		wantError  string
	}{
		{
			name:      "valid UUID",
			pathValue: "550e8400-e29b-41d4-a716-446655440000",
			wantOK:    true,
		},
		{
			name:       "invalid UUID",
			pathValue:  "not-a-uuid",
			wantOK:     false,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_record_id",
		},
		{
			name:       "empty UUID",
			pathValue:  "",
			wantOK:     false,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_record_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.SetPathValue("rid", tt.pathValue)
			rec := httptest.NewRecorder()

			id, ok := ParseRecordID(rec, req, logger)

			if ok != tt.wantOK {
				t.Errorf("ParseRecordID() ok = %v, want %v", ok, tt.wantOK)
			}

			if tt.wantOK {
				if id == uuid.Nil {
					t.Error("ParseRecordID() returned nil UUID for valid input")
				}
				return
			}

			if id != uuid.Nil {
				t.Errorf("ParseRecordID() id = %v, want uuid.Nil", id)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if body["error"] != tt.wantError {
				t.Errorf("error = %q, want %q", body["error"], tt.wantError)
			}
		})
	}
}

func TestParseGrantID(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid UUID", func(t *testing.T) {
		want := uuid.New()
		req := httptest.NewRequest(http.MethodDelete, "/test", nil)
		req.SetPathValue("gid", want.String())
		rec := httptest.NewRecorder()

		id, ok := ParseGrantID(rec, req, logger)
		if !ok {
			t.Fatal("ParseGrantID() ok = false, want true")
		}
		if id != want {
			t.Errorf("ParseGrantID() id = %v, want %v", id, want)
		}
	})

	t.Run("invalid UUID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/test", nil)
		req.SetPathValue("gid", "garbage")
		rec := httptest.NewRecorder()

		_, ok := ParseGrantID(rec, req, logger)
		if ok {
			t.Fatal("ParseGrantID() ok = true, want false")
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}

		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode error response: %v", err)
		}
		if body["error"] != "invalid_grant_id" {
			t.Errorf("error = %q, want %q", body["error"], "invalid_grant_id")
		}
	})
}
