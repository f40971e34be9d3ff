package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
)

// Recover turns a handler panic into a 500 and keeps the server alive.
func Recover() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if v := recover(); v != nil {
					err = panicResponse(c, v)
				}
			}()
			return next(c)
		}
	}
}

func panicResponse(c echo.Context, v interface{}) error {
	req := c.Request()
	log.Printf("PANIC %s %s: %v\n%s", req.Method, req.RequestURI, v, debug.Stack())
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"status":  http.StatusInternalServerError,
		"message": "Internal Server Error",
	})
}
