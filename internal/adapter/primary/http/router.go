package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// DefaultBodyLimit caps webhook payloads
const DefaultBodyLimit = "1M"

// NewServer builds the echo instance with middleware and routes
func NewServer(h *ConfirmationHandler, logger *zap.Logger, bodyLimit string) *echo.Echo {
	if bodyLimit == "" {
		bodyLimit = DefaultBodyLimit
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				logger.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api := e.Group("/api/v1")
	api.POST("/webhooks/:gateway", h.ReceiveWebhook, middleware.BodyLimit(bodyLimit))
	api.GET("/webhooks/events", h.RecentEvents)
	api.GET("/payments/status", h.GetStatus)
	api.GET("/payments/confirmations", h.ListConfirmations)
	api.POST("/payments/:gateway/invoices", h.CreateInvoice)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return e
}

// Instrument wraps the server handler with OpenTelemetry tracing
func Instrument(e *echo.Echo, service string) http.Handler {
	return otelhttp.NewHandler(e, service)
}
