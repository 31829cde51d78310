package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/trafficgate/postback-gateway/internal/model"
	"github.com/trafficgate/postback-gateway/internal/repository"
)

// listAttemptsHandler serves the operator log view from the ClickHouse
// read side: GET /v1/profiles/:id/attempts?outcome=&from=&to=&limit=&offset=
func listAttemptsHandler(chRepo repository.CHAttemptsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		profileID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || profileID <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad profile id"})
		}

		f := repository.AttemptsFilter{ProfileID: profileID, Limit: 50}
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				f.Limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				f.Offset = n
			}
		}
		if raw := strings.TrimSpace(c.QueryParam("outcome")); raw != "" {
			o := model.Outcome(raw)
			if !o.Valid() {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid outcome"})
			}
			f.Outcome = o
		}
		if v := c.QueryParam("from"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				f.From = t
			}
		}
		if v := c.QueryParam("to"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				f.To = t
			}
		}

		attempts, err := chRepo.ListByProfile(c.Request().Context(), f)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   f.Limit,
			"offset":  f.Offset,
			"count":   len(attempts),
			"results": attempts,
		})
	}
}
