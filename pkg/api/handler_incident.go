package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/opsrelay/opsrelay/ent"
	"github.com/opsrelay/opsrelay/pkg/models"
	"github.com/opsrelay/opsrelay/pkg/retrieval"
	"github.com/opsrelay/opsrelay/pkg/services"
)

// listIncidentsHandler handles GET /incidents.
func (s *Server) listIncidentsHandler(c *echo.Context) error {
	filter := models.IncidentFilter{
		Status:   c.QueryParam("status"),
		Severity: c.QueryParam("severity"),
		Service:  c.QueryParam("service"),
		Team:     c.QueryParam("team"),
		Source:   c.QueryParam("source"),
		Limit:    models.DefaultListLimit,
	}

	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit: must be an integer")
		}
		filter.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid offset: must be a non-negative integer")
		}
		filter.Offset = n
	}

	var err error
	if filter.CreatedFrom, err = parseTimeParam(c, "created_from"); err != nil {
		return err
	}
	if filter.CreatedTo, err = parseTimeParam(c, "created_to"); err != nil {
		return err
	}
	if filter.UpdatedFrom, err = parseTimeParam(c, "updated_from"); err != nil {
		return err
	}
	if filter.UpdatedTo, err = parseTimeParam(c, "updated_to"); err != nil {
		return err
	}

	items, total, err := s.incidents.ListIncidents(c.Request().Context(), filter)
	if err != nil {
		return mapServiceError(err)
	}

	results := make([]IncidentResponse, 0, len(items))
	for _, item := range items {
		results = append(results, serializeIncident(item))
	}

	return c.JSON(http.StatusOK, &ListResponse[IncidentResponse]{
		Items:  results,
		Total:  total,
		Limit:  models.ClampLimit(filter.Limit),
		Offset: filter.Offset,
	})
}

// getIncidentHandler handles GET /incidents/:id.
func (s *Server) getIncidentHandler(c *echo.Context) error {
	incidentID, err := incidentIDParam(c)
	if err != nil {
		return err
	}

	detail, err := s.incidents.GetIncident(c.Request().Context(), incidentID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Incident not found")
		}
		return mapServiceError(err)
	}

	actions := make([]ActionResponse, 0, len(detail.Actions))
	for _, action := range detail.Actions {
		actions = append(actions, serializeAction(action))
	}

	return c.JSON(http.StatusOK, &IncidentDetailResponse{
		Incident: serializeIncident(detail.IncidentListItem),
		Alerts:   serializeAlerts(detail.Alerts),
		Actions:  actions,
	})
}

// updateIncidentStatusHandler handles PATCH /incidents/:id/status.
func (s *Server) updateIncidentStatusHandler(c *echo.Context) error {
	incidentID, err := incidentIDParam(c)
	if err != nil {
		return err
	}

	newStatus := c.QueryParam("status")
	if newStatus == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status query parameter is required")
	}
	user := c.QueryParam("user")

	update, err := s.incidents.UpdateStatus(c.Request().Context(), incidentID, newStatus, user)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Incident not found")
		}
		return mapServiceError(err)
	}

	if update.NoChange {
		return c.JSON(http.StatusOK, &StatusUpdateResponse{
			Status:     "no_change",
			IncidentID: update.IncidentID,
		})
	}
	return c.JSON(http.StatusOK, &StatusUpdateResponse{
		Status:     "updated",
		IncidentID: update.IncidentID,
		NewStatus:  update.NewStatus,
	})
}

// similarIncidentsHandler handles GET /incidents/:id/similar.
func (s *Server) similarIncidentsHandler(c *echo.Context) error {
	incidentID, err := incidentIDParam(c)
	if err != nil {
		return err
	}

	limit, err := boundedIntParam(c, "limit", 5, 1, 20)
	if err != nil {
		return err
	}
	minScore := 0.0
	if v := c.QueryParam("min_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid min_score: must be between 0 and 1")
		}
		minScore = f
	}

	ctx := c.Request().Context()
	subject, err := s.dbClient.Client.Incident.Get(ctx, incidentID)
	if err != nil {
		if ent.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "Incident not found")
		}
		return mapServiceError(err)
	}

	alerts, err := retrieval.IncidentAlerts(ctx, s.dbClient.Client, incidentID)
	if err != nil {
		return mapServiceError(err)
	}

	matches, err := s.finder.FindSimilar(ctx, subject, alerts, limit)
	if err != nil {
		return mapServiceError(err)
	}

	results := make([]SimilarIncidentResponse, 0, len(matches))
	for _, match := range matches {
		if match.Score < minScore {
			continue
		}
		results = append(results, serializeSimilar(match))
	}
	return c.JSON(http.StatusOK, results)
}

// summarizeIncidentHandler handles POST /incidents/:id/summarize.
func (s *Server) summarizeIncidentHandler(c *echo.Context) error {
	incidentID, err := incidentIDParam(c)
	if err != nil {
		return err
	}

	limitSimilar, err := boundedIntParam(c, "limit_similar", 5, 1, 20)
	if err != nil {
		return err
	}
	limitRunbook, err := boundedIntParam(c, "limit_runbook", 5, 1, 20)
	if err != nil {
		return err
	}
	force := false
	if v := c.QueryParam("force"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid force: must be a boolean")
		}
		force = b
	}

	result, err := s.summarizer.SummarizeWithLimits(c.Request().Context(), incidentID, limitSimilar, limitRunbook, force)
	if err != nil {
		if ent.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "Incident not found")
		}
		return mapServiceError(err)
	}

	citations := result.Citations
	if citations == nil {
		citations = []models.Citation{}
	}
	return c.JSON(http.StatusOK, &SummarizeResponse{
		IncidentID: incidentID,
		Summary:    result.Summary,
		Citations:  citations,
		NextSteps:  result.NextSteps,
		Cached:     result.Cached,
	})
}

// incidentIDParam parses the :id path parameter.
func incidentIDParam(c *echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "incident id must be a positive integer")
	}
	return id, nil
}

// boundedIntParam parses an optional integer query parameter within [min, max].
func boundedIntParam(c *echo.Context, name string, fallback, min, max int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return 0, echo.NewHTTPError(http.StatusBadRequest,
			"invalid "+name+": must be between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
	}
	return n, nil
}

// parseTimeParam parses an optional RFC3339 query parameter.
func parseTimeParam(c *echo.Context, name string) (*time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+": must be RFC3339")
	}
	return &t, nil
}
