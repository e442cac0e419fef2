package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"shokucho.jp/portal/internal/ratelimit"
)

// accessLog adapts zerolog to chi's request logger.
type accessLog struct {
	logger zerolog.Logger
}

func (a accessLog) Print(v ...any) {
	a.logger.Info().Msg(fmt.Sprint(v...))
}

// NewRouter wires every route. limiter throttles forum writes per client IP,
// as resolved by clientIPs.
func NewRouter(apiHandler *APIHandler, limiter *ratelimit.KeyedRateLimiter, clientIPs *ClientIPResolver, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  accessLog{logger: apiHandler.logger},
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{
			"Content-Disposition",
			"X-Job-ID",
			"X-Skipped-Lines",
			"X-Radius-Defaulted",
			"X-Converted-Count",
			"X-Skipped-Count",
		},
		MaxAge: int((5 * time.Minute).Seconds()),
	}))

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", apiHandler.HealthHandler)
		r.Get("/nav", apiHandler.NavHandler)
		r.Get("/pages/{page}", apiHandler.PageHandler)

		// Tools
		r.Get("/units", apiHandler.UnitsHandler)
		r.Post("/convert", apiHandler.ConvertHandler)
		r.Post("/dxf", apiHandler.DXFHandler)
		r.Post("/images", apiHandler.ImagesHandler)

		// Forum
		r.Route("/forum/articles", func(r chi.Router) {
			r.Get("/", apiHandler.ListArticlesHandler)
			r.Get("/{articleID}", apiHandler.GetArticleHandler)

			r.Group(func(r chi.Router) {
				r.Use(RateLimitMiddleware(limiter, clientIPs, apiHandler.logger))
				r.Post("/", apiHandler.PostArticleHandler)
				r.Post("/{articleID}/comments", apiHandler.PostCommentHandler)
			})
		})
	})

	return r
}
