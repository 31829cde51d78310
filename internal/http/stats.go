package http

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v4"
	"github.com/trafficgate/postback-gateway/internal/repository"
)

// statsHandler serves derived per-profile aggregates:
// GET /v1/profiles/:id/stats
func statsHandler(attempts repository.AttemptsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		profileID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || profileID <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad profile id"})
		}

		stats, err := attempts.Stats(c.Request().Context(), profileID)
		if err != nil {
			c.Logger().Errorf("stats query failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, stats)
	}
}
