package api

import (
	"errors"
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/opsrelay/opsrelay/pkg/models"
	"github.com/opsrelay/opsrelay/pkg/services"
)

// listAlertsHandler handles GET /alerts.
func (s *Server) listAlertsHandler(c *echo.Context) error {
	filter := models.AlertFilter{
		Source:      c.QueryParam("source"),
		Severity:    c.QueryParam("severity"),
		Service:     c.QueryParam("service"),
		Environment: c.QueryParam("environment"),
		Limit:       models.DefaultListLimit,
	}

	if v := c.QueryParam("incident_id"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid incident_id: must be a positive integer")
		}
		filter.IncidentID = &n
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

	alerts, total, err := s.alerts.ListAlerts(c.Request().Context(), filter)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &ListResponse[AlertResponse]{
		Items:  serializeAlerts(alerts),
		Total:  total,
		Limit:  models.ClampLimit(filter.Limit),
		Offset: filter.Offset,
	})
}

// getAlertHandler handles GET /alerts/:id.
func (s *Server) getAlertHandler(c *echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "alert id must be a positive integer")
	}

	alert, err := s.alerts.GetAlert(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Alert not found")
		}
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, serializeAlert(alert))
}
