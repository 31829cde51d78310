package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v4"
	"github.com/trafficgate/postback-gateway/internal/model"
)

type fakeOperators struct {
	ops map[string]*model.Operator
}

func (f *fakeOperators) GetByAPIKey(_ context.Context, key string) (*model.Operator, error) {
	return f.ops[key], nil
}

func TestAPIKeyMiddleware(t *testing.T) {
	rps := 5
	repo := &fakeOperators{ops: map[string]*model.Operator{
		"good-key": {ID: 7, Status: "active", RateLimitRPS: &rps},
		"cold-key": {ID: 8, Status: "suspended"},
	}}
	mw := APIKeyMiddleware(repo)

	tests := []struct {
		name     string
		key      string
		wantCode int
		wantID   int64
	}{
		{"missing key", "", http.StatusUnauthorized, 0},
		{"unknown key", "nope", http.StatusUnauthorized, 0},
		{"suspended operator", "cold-key", http.StatusUnauthorized, 0},
		{"active operator", "good-key", http.StatusOK, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var gotID int64
			next := func(c echo.Context) error {
				id, ok := OperatorIDFromCtx(c)
				if !ok {
					t.Error("operator_id missing after auth")
				}
				gotID = id
				return c.NoContent(http.StatusOK)
			}

			if err := mw(next)(c); err != nil {
				t.Fatalf("middleware: %v", err)
			}
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantID != 0 && gotID != tt.wantID {
				t.Errorf("operator id = %d, want %d", gotID, tt.wantID)
			}
		})
	}
}
