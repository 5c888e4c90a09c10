package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/ent/alert"
	"github.com/opsrelay/opsrelay/pkg/ingest"
	"github.com/opsrelay/opsrelay/pkg/mlgateway"
	"github.com/opsrelay/opsrelay/pkg/retrieval"
)

// Fallback classification applied when the ML gateway is unavailable.
const (
	fallbackSeverity             = alert.SeverityWarning
	fallbackTeam                 = "backend"
	classificationSourceML       = "ml"
	classificationSourceFallback = "fallback_rule"
)

// LifecycleNotifier receives grouping outcomes for real-time delivery.
// Implementations must be non-blocking best-effort; processing never fails on
// a notification.
type LifecycleNotifier interface {
	IncidentCreated(ctx context.Context, inc *ent.Incident, a *ent.Alert)
	AlertAdded(ctx context.Context, inc *ent.Incident, a *ent.Alert)
}

/// AlertProcessor is the enrichment pipeline for claimed alerts: classify,
// extract entities, group into an incident, refresh the incident embedding,
// and write the audit trail.
type AlertProcessor struct {
	client   *ent.Client
	gateway  *mlgateway.Client
	grouper  *Grouper
	notifier LifecycleNotifier
	logger   *slog.Logger
}

// NewAlertProcessor creates the processor. notifier may be nil.
func NewAlertProcessor(client *ent.Client, gateway *mlgateway.Client, grouper *Grouper, notifier LifecycleNotifier, logger *slog.Logger) *AlertProcessor {
	return &AlertProcessor{
		client:   client,
		gateway:  gateway,
		grouper:  grouper,
		notifier: notifier,
		logger:   logger,
	}
}

// Process implements Processor.
func (p *AlertProcessor) Process(ctx context.Context, a *ent.Alert) error {
	log := p.logger.With("alert_id", a.ID)
	text := strings.TrimSpace(a.Title + " " + a.Message)

	enriched, err := p.enrich(ctx, a, text, log)
	if err != nil {
		return err
	}

	result, err := p.grouper.Group(ctx, enriched)
	if err != nil {
		return fmt.Errorf("grouping failed: %w", err)
	}

	if err := retrieval.UpdateIncidentEmbedding(ctx, p.client, result.Incident.ID); err != nil {
		// The embedding is a retrieval optimization; similarity search falls
		// back to token overlap when it is missing.
		log.Warn("Failed to refresh incident embedding",
			"incident_id", result.Incident.ID,
			"error", err)
	}

	p.notify(ctx, result, enriched)

	log.Info("Alert enrichment complete",
		"incident_id", result.Incident.ID,
		"incident_created", result.Created,
		"severity", enriched.Severity,
		"classification_source", enriched.ClassificationSource)
	return nil
}

// enrich writes classification and entity fields onto the alert. Gateway
// failures substitute fallback values; only database failures propagate.
func (p *AlertProcessor) enrich(ctx context.Context, a *ent.Alert, text string, log *slog.Logger) (*ent.Alert, error) {
	update := p.client.Alert.UpdateOneID(a.ID)

	cls := p.classify(ctx, text, log)
	update = update.
		SetSeverity(cls.severity).
		SetPredictedTeam(cls.team).
		SetConfidenceScore(cls.confidence).
		SetClassificationSource(cls.source)

	entities, provenance := p.extractEntities(ctx, a, text, log)
	if entities.ServiceName != nil {
		update = update.SetServiceName(*entities.ServiceName)
	}
	if entities.Environment != nil {
		update = update.SetEnvironment(*entities.Environment)
	}
	if entities.Region != nil {
		update = update.SetRegion(*entities.Region)
	}
	if entities.ErrorCode != nil {
		update = update.SetErrorCode(*entities.ErrorCode)
	}
	update = update.
		SetEntitySources(provenance).
		SetEntitySource(ingest.EntitySource(provenance))

	enriched, err := update.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to persist enrichment: %w", err)
	}
	return enriched, nil
}

type classification struct {
	severity   alert.Severity
	team       string
	confidence float64
	source     string
}

func (p *AlertProcessor) classify(ctx context.Context, text string, log *slog.Logger) classification {
	fallback := classification{
		severity:   fallbackSeverity,
		team:       fallbackTeam,
		confidence: 0.0,
		source:     classificationSourceFallback,
	}

	if p.gateway == nil || !p.gateway.Enabled() {
		return fallback
	}

	result, err := p.gateway.Classify(ctx, text)
	if err != nil {
		log.Warn("Classification failed, using fallback", "error", err)
		return fallback
	}

	severity := alert.Severity(strings.ToLower(result.Severity))
	if err := alert.SeverityValidator(severity); err != nil {
		log.Warn("Classifier returned unknown severity, using fallback",
			"severity", result.Severity)
		return fallback
	}

	return classification{
		severity:   severity,
		team:       result.Team,
		confidence: result.Confidence,
		source:     classificationSourceML,
	}
}

func (p *AlertProcessor) extractEntities(ctx context.Context, a *ent.Alert, text string, log *slog.Logger) (*ingest.EntitySet, map[string]string) {
	entities := &ingest.EntitySet{}
	provenance := map[string]string{}

	gatewayOK := false
	if p.gateway != nil && p.gateway.Enabled() {
		result, err := p.gateway.ExtractEntities(ctx, text)
		if err != nil {
			log.Warn("Entity extraction failed, using fallback", "error", err)
		} else {
			gatewayOK = true
			if result.ServiceName != nil {
				entities.ServiceName = result.ServiceName
				provenance["service_name"] = ingest.ProvenanceML
			}
			if result.Environment != nil {
				entities.Environment = result.Environment
				provenance["environment"] = ingest.ProvenanceML
			}
			if result.Region != nil {
				entities.Region = result.Region
				provenance["region"] = ingest.ProvenanceML
			}
			if result.ErrorCode != nil {
				entities.ErrorCode = result.ErrorCode
				provenance["error_code"] = ingest.ProvenanceML
			}
		}
	}

	if !gatewayOK {
		ingest.ApplyFallback(a.RawPayload, a.Title, entities, provenance)
	}

	return entities, provenance
}

func (p *AlertProcessor) notify(ctx context.Context, result *GroupResult, a *ent.Alert) {
	if p.notifier == nil {
		return
	}
	if result.Created {
		p.notifier.IncidentCreated(ctx, result.Incident, a)
	} else {
		p.notifier.AlertAdded(ctx, result.Incident, a)
	}
}
