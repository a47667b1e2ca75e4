package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/medsurvey/internal/response"
	"github.com/stemsi/medsurvey/internal/service"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// QueueLength reports the backlog of the delivery queue.
type QueueLength func(ctx context.Context) (int64, error)

// SystemHandler serves liveness and runtime statistics.
type SystemHandler struct {
	checks     map[string]HealthCheck
	queueLen   QueueLength
	deliveries service.DeliveryService
	variant    string
	startTime  time.Time
	log        zerolog.Logger
}

// NewSystemHandler creates a SystemHandler. deliveries may be nil when the
// audit database is disabled.
func NewSystemHandler(checks map[string]HealthCheck, queueLen QueueLength, deliveries service.DeliveryService, variant string, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		checks:     checks,
		queueLen:   queueLen,
		deliveries: deliveries,
		variant:    variant,
		startTime:  time.Now(),
		log:        log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Warn().Err(err).Str("dependency", name).Msg("Health check failed")
			deps[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	response.Success(c, status, gin.H{"status": state, "dependencies": deps})
}

type systemStats struct {
	Uptime        string                   `json:"uptime"`
	GoVersion     string                   `json:"go_version"`
	Goroutines    int                      `json:"goroutines"`
	HeapAlloc     uint64                   `json:"heap_alloc"`
	NumGC         uint32                   `json:"num_gc"`
	QueueDelivery int64                    `json:"queue_deliveries"`
	Deliveries    *service.DeliverySummary `json:"deliveries,omitempty"`
}

// Stats godoc
// GET /api/v1/system/stats
// Runtime counters, delivery queue backlog and, with the audit database
// enabled, submission outcomes of the active variant.
func (h *SystemHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := systemStats{
		Uptime:     formatDuration(time.Since(h.startTime)),
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		NumGC:      ms.NumGC,
	}

	if h.queueLen != nil {
		n, err := h.queueLen(ctx)
		if err != nil {
			h.log.Warn().Err(err).Msg("Read delivery queue length failed")
		}
		stats.QueueDelivery = n
	}

	if h.deliveries != nil {
		summary, err := h.deliveries.Summary(ctx, h.variant)
		if err != nil {
			h.log.Error().Err(err).Msg("Delivery summary failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		stats.Deliveries = summary
	}

	response.Success(c, http.StatusOK, stats)
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
