package http

import (
	"errors"
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/trafficgate/postback-gateway/internal/engine"
	"github.com/trafficgate/postback-gateway/internal/request"
)

// testInvokeHandler fires a synthetic event through the profile once and
// returns the rendered (redacted) request plus the attempt outcome:
// POST /v1/profiles/:id/test
func testInvokeHandler(eng *engine.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		profileID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || profileID <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad profile id"})
		}

		var ov engine.TestOverrides
		if err := c.Bind(&ov); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		result, err := eng.Test(c.Request().Context(), profileID, ov)
		if err != nil {
			switch {
			case errors.Is(err, engine.ErrProfileNotFound):
				return c.JSON(http.StatusNotFound, map[string]string{"error": "profile not found"})
			case errors.Is(err, request.ErrMissingEndpoint):
				return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			}

			log.Errorf("test invoke failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "test failed"})
		}

		return c.JSON(http.StatusOK, result)
	}
}
