package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/zhouzirui/career-fairy/backend/internal/handler/chat"
	"github.com/zhouzirui/career-fairy/backend/internal/handler/live"
	"github.com/zhouzirui/career-fairy/backend/internal/handler/persona"
	"github.com/zhouzirui/career-fairy/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/career-fairy/backend/internal/middleware"
	personaModel "github.com/zhouzirui/career-fairy/backend/internal/model/persona"
	chatService "github.com/zhouzirui/career-fairy/backend/internal/service/chat"
	"github.com/zhouzirui/career-fairy/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. A nil bus leaves the live
// channels unmounted.
func NewRouter(personas personaModel.Store, chatSvc *chatService.Service, bus live.Subscriber, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:       []string{"*"},
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:       []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:       []string{"X-Request-Id"},
		MaxAge:               300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	personaHandler := persona.New(personas)
	chatHandler := chat.New(chatSvc, logger.Named("chat"))

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)

		if bus != nil {
			live.New(chatSvc, bus, logger.Named("live")).RegisterRoutes(api)
			stream.New(chatSvc, bus, logger.Named("stream")).RegisterRoutes(api)
		}
	})

	return r
}
