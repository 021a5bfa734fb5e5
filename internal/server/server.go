package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shinyyama/goodfinds-backend/internal/ai"
	"github.com/shinyyama/goodfinds-backend/internal/cache"
	"github.com/shinyyama/goodfinds-backend/internal/handler"
	"github.com/shinyyama/goodfinds-backend/internal/lock"
	"github.com/shinyyama/goodfinds-backend/internal/logging"
	appmw "github.com/shinyyama/goodfinds-backend/internal/middleware"
	"github.com/shinyyama/goodfinds-backend/internal/repository"
	"github.com/shinyyama/goodfinds-backend/internal/service"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Options carries the collaborators built by cmd/api. Only DB is required.
type Options struct {
	DB             *gorm.DB
	AllowedOrigins []string
	Verifier       appmw.TokenVerifier
	Directory      handler.UserDirectory
	Locker         lock.Locker
	Cache          cache.ReputationCache
	Suggester      ai.CategorySuggester
	SHA            string
	BuildTime      string
}

type Server struct {
	e *echo.Echo
}

func New(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc:  originChecker(opts.AllowedOrigins),
	}))
	e.Use(appmw.RequestContext)

	store := repository.NewStore(opts.DB)
	reputationSvc := service.NewReputationService(store, opts.Cache)
	listingSvc := service.NewListingService(store, reputationSvc, opts.Locker)

	listingHandler := handler.NewListingHandler(listingSvc)
	reputationHandler := handler.NewReputationHandler(reputationSvc)
	userHandler := handler.NewUserHandler(opts.Directory, reputationSvc)
	categoryHandler := handler.NewCategoryHandler(store.Categories())
	aiHandler := handler.NewAIHandler(opts.Suggester, store.Categories())
	authMw := appmw.NewAuthMiddleware(opts.Verifier)

	e.GET("/healthz", func(c echo.Context) error {
		status := http.StatusOK
		dbOK := "true"
		if sqlDB, err := opts.DB.DB(); err != nil || sqlDB.PingContext(c.Request().Context()) != nil {
			status = http.StatusServiceUnavailable
			dbOK = "false"
		}
		return c.JSON(status, map[string]string{
			"ok":         dbOK,
			"git_sha":    opts.SHA,
			"build_time": opts.BuildTime,
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.GET("/listings", listingHandler.List, authMw.OptionalAuth)
	api.GET("/listings/:id", listingHandler.Get)
	api.GET("/categories", categoryHandler.List)
	api.GET("/users/:uid", userHandler.GetPublic)
	api.GET("/users/:uid/reputation", reputationHandler.Get)
	api.GET("/users/:uid/reviews", reputationHandler.ListReviews)

	api.POST("/listings", listingHandler.Create, authMw.RequireAuth)
	api.POST("/listings/suggest-category", aiHandler.SuggestCategory, authMw.RequireAuth)
	api.PUT("/listings/:id", listingHandler.Update, authMw.RequireAuth)
	api.DELETE("/listings/:id", listingHandler.Delete, authMw.RequireAuth)
	api.POST("/listings/:id/claim", listingHandler.Claim, authMw.RequireAuth)
	api.POST("/listings/:id/report-missing", listingHandler.ReportMissing, authMw.RequireAuth)
	api.POST("/listings/:id/pickup", listingHandler.ConfirmPickup, authMw.RequireAuth)
	api.GET("/me/listings", listingHandler.ListMine, authMw.RequireAuth)
	api.GET("/me/claims", listingHandler.ListClaims, authMw.RequireAuth)

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := logging.Logger().WithFields(logrus.Fields{
				"rid":       v.RequestID,
				"method":    v.Method,
				"uri":       v.URI,
				"status":    v.Status,
				"latencyMs": v.Latency.Milliseconds(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	})
}

// originChecker allows local development hosts plus the configured origins.
func originChecker(allowed []string) func(string) (bool, error) {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
		if o != "" {
			set[o] = struct{}{}
		}
	}
	return func(origin string) (bool, error) {
		low := strings.ToLower(origin)
		if _, ok := set[low]; ok {
			return true, nil
		}
		u, err := url.Parse(low)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return false, nil
		}
		host := u.Hostname()
		return host == "localhost" || host == "127.0.0.1", nil
	}
}
