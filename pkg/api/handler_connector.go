package api

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/opsrelay/opsrelay/pkg/services"
)

// listConnectorsHandler handles GET /connectors.
func (s *Server) listConnectorsHandler(c *echo.Context) error {
	connectors, err := s.connectors.ListConnectors(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}

	results := make([]ConnectorResponse, 0, len(connectors))
	for _, connector := range connectors {
		results = append(results, serializeConnector(connector))
	}
	return c.JSON(http.StatusOK, results)
}

// connectConnectorHandler handles POST /connectors/:id/connect. Connecting an
// already connected connector is a no-op success.
func (s *Server) connectConnectorHandler(c *echo.Context) error {
	connectorID := c.Param("id")
	if connectorID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "connector id is required")
	}

	connector, err := s.connectors.Connect(c.Request().Context(), connectorID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Connector not found")
		}
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, serializeConnector(connector))
}
