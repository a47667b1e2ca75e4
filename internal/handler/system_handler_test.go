package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/medsurvey/internal/service"
	"github.com/stretchr/testify/assert"
)

type stubDeliveryService struct {
	summary *service.DeliverySummary
	err     error
}

func (s *stubDeliveryService) Summary(_ context.Context, variant string) (*service.DeliverySummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := *s.summary
	out.Variant = variant
	return &out, nil
}

func TestSystemHandler_Health(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]HealthCheck
		status int
		body   string
	}{
		{
			name:   "all up",
			checks: map[string]HealthCheck{"redis": func(context.Context) error { return nil }},
			status: http.StatusOK,
			body:   `"redis":"ok"`,
		},
		{
			name: "postgres down",
			checks: map[string]HealthCheck{
				"redis":    func(context.Context) error { return nil },
				"postgres": func(context.Context) error { return errors.New("refused") },
			},
			status: http.StatusServiceUnavailable,
			body:   `"postgres":"down"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSystemHandler(tt.checks, nil, nil, "medical-survey", zerolog.Nop())
			r := gin.New()
			r.GET("/health", h.Health)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestSystemHandler_Stats(t *testing.T) {
	queueLen := func(context.Context) (int64, error) { return 3, nil }
	deliveries := &stubDeliveryService{summary: &service.DeliverySummary{Delivered: 7, Rejected: 1}}
	h := NewSystemHandler(nil, queueLen, deliveries, "medical-survey", zerolog.Nop())

	r := gin.New()
	r.GET("/stats", h.Stats)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"queue_deliveries":3`)
	assert.Contains(t, body, `"variant":"medical-survey"`)
	assert.Contains(t, body, `"delivered":7`)
}

func TestSystemHandler_StatsWithoutAudit(t *testing.T) {
	h := NewSystemHandler(nil, nil, nil, "medical-survey", zerolog.Nop())
	r := gin.New()
	r.GET("/stats", h.Stats)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "deliveries\":{")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "2m 5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h 0m 1s", formatDuration(time.Hour+time.Second))
	assert.Equal(t, "1d 2h 0m 0s", formatDuration(26*time.Hour))
}
