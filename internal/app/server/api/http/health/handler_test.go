package health

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"assessync/internal/utils/logger"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
)

type stubChecker struct {
	err error
}

func (s stubChecker) Ping(context.Context) error { return s.err }
func (s stubChecker) Kind() string              { return "memory" }

func TestHandler_healthCheck(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "storage available",
			wantStatus: http.StatusOK,
			wantBody:   `"status":"OK"`,
		},
		{
			name:       "storage unavailable",
			pingErr:    errors.New("connection refused"),
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "storage unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, api := humatest.New(t)
			NewHandler(stubChecker{err: tt.pingErr}, logger.Discard(), huma.Middlewares{}).SetupRoutes(api)

			resp := api.Get("/api/v1/health")

			assert.Equal(t, tt.wantStatus, resp.Code)
			assert.Contains(t, resp.Body.String(), tt.wantBody)
		})
	}
}

func TestHandler_healthCheck_Direct(t *testing.T) {
	handler := NewHandler(stubChecker{}, logger.Discard(), nil)

	output, err := handler.healthCheck(context.Background(), &Input{})

	assert.NoError(t, err)
	assert.Equal(t, "OK", output.Body.Status)
	assert.Equal(t, "memory", output.Body.Storage)
}
