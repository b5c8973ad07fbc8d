package api

import (
	"net"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/natours/tours-api/docs"
	"github.com/natours/tours-api/internal/api/handler"
	"github.com/natours/tours-api/internal/api/middleware"
	"github.com/natours/tours-api/internal/core/domain"
	"github.com/natours/tours-api/internal/core/ports"
)

const bodyLimit = "10K"

// Dependencies is everything the router wires into handlers and middleware.
type Dependencies struct {
	Accounts     ports.AccountService
	RateCounter  middleware.HitCounter
	RateLimitMax int64
	// TrustedProxies may set X-Forwarded-For; with none the socket peer is the client.
	TrustedProxies []*net.IPNet
	CookieTTL      time.Duration
	Health         map[string]handler.Pinger
	Registerer     prometheus.Registerer
	Gatherer       prometheus.Gatherer
	Log            zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)
	e.IPExtractor = clientIP(deps.TrustedProxies)

	registerer, gatherer := deps.Registerer, deps.Gatherer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: func() string { return ulid.Make().String() },
	}))
	e.Use(echomiddleware.Secure())
	e.Use(echomiddleware.BodyLimit(bodyLimit))
	e.Use(requestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "natours",
		Subsystem:  "http",
		Registerer: registerer,
	}))

	// --- Handlers ---
	auth := handler.NewAuthHandler(deps.Accounts, deps.CookieTTL)
	users := handler.NewUserHandler(deps.Accounts)
	health := handler.NewHealthHandler(deps.Health)

	authenticate := middleware.Authenticate(deps.Accounts)

	// --- API routes ---
	v1 := e.Group("/api/v1")
	if deps.RateCounter != nil {
		v1.Use(middleware.RateLimit(deps.RateCounter, deps.RateLimitMax, deps.Log))
	}

	v1.GET("/session", auth.Session, middleware.SoftAuthenticate(deps.Accounts, deps.Log))

	u := v1.Group("/users")
	u.POST("/signup", auth.Signup)
	u.POST("/login", auth.Login)
	u.GET("/logout", auth.Logout)
	u.POST("/forgotPassword", auth.ForgotPassword)
	u.PATCH("/resetPassword/:token", auth.ResetPassword)

	u.PATCH("/updatePassword", auth.UpdatePassword, authenticate)
	u.GET("/me", users.Me, authenticate)
	u.PATCH("/updateMe", users.UpdateMe, authenticate)
	u.DELETE("/deleteMe", users.DeleteMe, authenticate)

	u.GET("", users.List, authenticate, middleware.Authorize(deps.Log, domain.RoleAdmin))
	u.GET("/:id", users.Get, authenticate, middleware.Authorize(deps.Log, domain.RoleAdmin, domain.RoleLeadGuide))

	// --- Operational routes ---
	e.GET("/health", health.Liveness)
	e.GET("/health/ready", health.Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// clientIP decides which address RealIP reports, and with it the rate-limit
// key. Forwarding headers are honoured only when they arrive from a trusted
// proxy range.
func clientIP(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, r := range trusted {
		opts = append(opts, echo.TrustIPRange(r))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

// requestLogger writes one zerolog event per request. It logs the route
// template, not the raw path, so reset tokens never reach the log.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil {
				event = log.Warn().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("route", v.RoutePath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
