package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// dashboardMetricsHandler handles GET /dashboard/metrics.
func (s *Server) dashboardMetricsHandler(c *echo.Context) error {
	metrics, err := s.dashboard.Metrics(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, metrics)
}
