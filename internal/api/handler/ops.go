// Package handler provides HTTP handlers for the Airwaycast API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/airwaycast/airwaycast/internal/api/models"
	"github.com/airwaycast/airwaycast/internal/api/response"
	"github.com/airwaycast/airwaycast/internal/database"
	"github.com/airwaycast/airwaycast/internal/provider/resilience"
)

// readinessTimeout bounds each dependency check.
const readinessTimeout = 2 * time.Second

// ProviderHealthSource reports live forecast provider health.
type ProviderHealthSource interface {
	GetAllHealth() []*resilience.ProviderHealth
}

// OpsConfig configures an OpsHandler.
type OpsConfig struct {
	Version   string
	BuildTime string
	// Database is required for readiness.
	Database database.Pinger
	// Cache is the optional Redis prediction tier.
	Cache     database.Pinger
	Providers ProviderHealthSource
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. The service is ready when the
// database answers.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	db := ping(r.Context(), "database", h.cfg.Database)
	if db.Status != models.HealthStatusOK {
		response.JSON(w, r, http.StatusServiceUnavailable, models.Health{
			Status:  models.HealthStatusFail,
			Time:    models.Timestamp(time.Now()),
			Details: map[string]interface{}{"database": db.Detail},
		})
		return
	}
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	})
}

// SystemStatus handles GET /v1/ops/status - subsystem and provider status.
// Provider outages degrade but never fail the service.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{ping(r.Context(), "database", h.cfg.Database)},
		Providers:  []models.ProviderStatus{},
	}
	if h.cfg.Cache != nil {
		status.Subsystems = append(status.Subsystems, ping(r.Context(), "redis", h.cfg.Cache))
	}

	for _, s := range status.Subsystems {
		if s.Status != models.HealthStatusOK {
			status.Status = models.HealthStatusDegraded
		}
	}

	if h.cfg.Providers != nil {
		for _, p := range h.cfg.Providers.GetAllHealth() {
			ps := models.ProviderStatus{
				Provider:     p.Name,
				Status:       models.HealthStatusOK,
				CircuitState: p.CircuitState.String(),
				Message:      p.LastError,
			}
			if p.LastSuccessAt != nil {
				ts := models.Timestamp(*p.LastSuccessAt)
				ps.LastSuccessAt = &ts
			}
			if p.LastFailureAt != nil {
				ts := models.Timestamp(*p.LastFailureAt)
				ps.LastFailureAt = &ts
			}
			if !p.IsHealthy() {
				ps.Status = models.HealthStatusDegraded
				status.Status = models.HealthStatusDegraded
			}
			status.Providers = append(status.Providers, ps)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func ping(ctx context.Context, name string, p database.Pinger) models.SubsystemStatus {
	if p == nil {
		return models.SubsystemStatus{Name: name, Status: models.HealthStatusFail, Detail: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return models.SubsystemStatus{Name: name, Status: models.HealthStatusFail, Detail: err.Error()}
	}
	return models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
}
