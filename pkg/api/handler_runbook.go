package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/opsrelay/opsrelay/pkg/models"
)

// listRunbooksHandler handles GET /runbooks.
func (s *Server) listRunbooksHandler(c *echo.Context) error {
	limit := models.DefaultListLimit
	offset := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit: must be an integer")
		}
		limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid offset: must be a non-negative integer")
		}
		offset = n
	}

	items, total, err := s.runbooks.ListRunbooks(c.Request().Context(), models.ClampLimit(limit), offset)
	if err != nil {
		return mapServiceError(err)
	}
	if items == nil {
		items = []models.RunbookIndexItem{}
	}

	return c.JSON(http.StatusOK, &ListResponse[models.RunbookIndexItem]{
		Items:  items,
		Total:  total,
		Limit:  models.ClampLimit(limit),
		Offset: offset,
	})
}

// searchRunbooksHandler handles GET /runbooks/search.
func (s *Server) searchRunbooksHandler(c *echo.Context) error {
	query := c.QueryParam("q")

	limit, err := boundedIntParam(c, "limit", 5, 1, 20)
	if err != nil {
		return err
	}

	matches, err := s.runbooks.SearchRunbooks(c.Request().Context(), query, limit)
	if err != nil {
		return mapServiceError(err)
	}

	results := make([]RunbookMatchResponse, 0, len(matches))
	for _, match := range matches {
		results = append(results, serializeRunbookMatch(match))
	}
	return c.JSON(http.StatusOK, &RunbookSearchResponse{
		Query:   query,
		Results: results,
	})
}
