package prober

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"esg-sync/internal/external"
	"esg-sync/internal/models"
	"esg-sync/internal/platform"
	"esg-sync/internal/registry"
	"esg-sync/internal/repository"
	"esg-sync/pkg/log"
)

// Outcome is what a probe reports back. Probes never return an error across
// the boundary; every failure cause lands in ErrorDetails.
type Outcome struct {
	Success       bool
	Message       string
	CorrelationID string
	DurationMs    int64
	ErrorDetails  string
}

// Prober performs a non-mutating authentication and permission check against
// a connector's endpoint.
type Prober struct {
	registry   *registry.Registry
	connection external.Connection
	logs       repository.IntegrationLogRepository
	audit      platform.AuditSink
	logger     zerolog.Logger
}

func NewProber(
	reg *registry.Registry,
	connection external.Connection,
	logs repository.IntegrationLogRepository,
	audit platform.AuditSink,
) *Prober {
	return &Prober{
		registry:   reg,
		connection: connection,
		logs:       logs,
		audit:      audit,
		logger:     log.Logger.With().Str("component", "connection_prober").Logger(),
	}
}

func (p *Prober) Probe(ctx context.Context, connectorID int64, initiatingUser string) *Outcome {
	correlationID := uuid.NewString()
	startedAt := time.Now()
	outcome := &Outcome{CorrelationID: correlationID}

	logger := p.logger.With().
		Int64("connector_id", connectorID).
		Str("correlation_id", correlationID).
		Logger()

	connector, err := p.registry.Get(connectorID)
	if errors.Is(err, repository.ErrConnectorNotFound) {
		return p.finish(outcome, startedAt, "connector not found", err)
	} else if err != nil {
		return p.finish(outcome, startedAt, "failed to load connector", err)
	}

	// A disabled connector is rejected before any outbound call is made.
	if !connector.Enabled() {
		return p.finish(outcome, startedAt, "connector is disabled", registry.ErrConnectorDisabled)
	}

	result, err := p.connection.Probe(ctx, connector)
	finishedAt := time.Now()

	if err != nil {
		p.appendLog(connector, correlationID, initiatingUser, startedAt, finishedAt, err)
		logger.Warn().Err(err).Msg("Probe failed")
		return p.finish(outcome, startedAt, "probe failed", err)
	}

	if missing := missingCapabilities(connector, result); len(missing) > 0 {
		capErr := fmt.Errorf("endpoint does not grant required capabilities: %v", missing)
		p.appendLog(connector, correlationID, initiatingUser, startedAt, finishedAt, capErr)
		logger.Warn().Strs("missing_capabilities", missing).Msg("Probe found missing capability grants")
		return p.finish(outcome, startedAt, "missing capability grants", capErr)
	}

	p.appendLog(connector, correlationID, initiatingUser, startedAt, finishedAt, nil)

	outcome.Success = true
	outcome.Message = "connection verified"
	outcome.DurationMs = time.Since(startedAt).Milliseconds()
	logger.Info().Int64("duration_ms", outcome.DurationMs).Msg("Probe succeeded")
	return outcome
}

func (p *Prober) finish(outcome *Outcome, startedAt time.Time, message string, err error) *Outcome {
	outcome.Success = false
	outcome.Message = message
	outcome.DurationMs = time.Since(startedAt).Milliseconds()
	if err != nil {
		outcome.ErrorDetails = err.Error()
	}
	return outcome
}

func (p *Prober) appendLog(
	connector *models.Connector,
	correlationID, initiatingUser string,
	startedAt, finishedAt time.Time,
	probeErr error,
) {
	method := http.MethodGet
	endpoint := connector.Endpoint
	status := models.LogStatusSuccess
	var errorDetail *string
	var httpStatus *int

	if probeErr != nil {
		status = models.LogStatusFailure
		detail := probeErr.Error()
		errorDetail = &detail
		if code := external.StatusCodeOf(probeErr); code > 0 {
			httpStatus = &code
		}
	}

	entry := &models.IntegrationLog{
		ConnectorID:   connector.ID,
		CorrelationID: correlationID,
		Operation:     models.OperationProbe,
		Status:        status,
		HTTPMethod:    &method,
		Endpoint:      &endpoint,
		HTTPStatus:    httpStatus,
		Attempt:       1,
		ErrorDetail:   errorDetail,
		DurationMs:    finishedAt.Sub(startedAt).Milliseconds(),
		StartedAt:     startedAt,
		FinishedAt:    finishedAt,
		InitiatedBy:   initiatingUser,
	}

	if err := p.logs.Append(entry); err != nil {
		p.logger.Error().Err(err).Str("correlation_id", correlationID).Msg("Failed to append probe log entry")
	}
	if err := p.audit.Record(context.Background(), entry); err != nil {
		p.logger.Error().Err(err).Str("correlation_id", correlationID).Msg("Failed to record probe entry in audit sink")
	}
}

func missingCapabilities(connector *models.Connector, result *external.ProbeResult) []string {
	granted := make(map[string]struct{}, len(result.Capabilities))
	for _, capability := range result.Capabilities {
		granted[capability] = struct{}{}
	}

	var missing []string
	for _, required := range connector.Capabilities {
		if _, ok := granted[required]; !ok {
			missing = append(missing, required)
		}
	}
	return missing
}
