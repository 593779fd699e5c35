package server

import (
	"log/slog"
	"net/http"

	"restaurant-insights/internal/handlers"
	"restaurant-insights/internal/services"
	"restaurant-insights/internal/session"
)

type Server struct {
	analytics   *services.Analytics
	state       *session.State
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(analytics *services.Analytics, state *session.State, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		analytics:   analytics,
		state:       state,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(analytics, state, logger),
		sseHandlers: handlers.NewSSEHandlers(analytics, state, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// REST API endpoints
	s.mux.HandleFunc("GET /api/locations", s.apiHandlers.HandleLocations)
	s.mux.HandleFunc("GET /api/locations/summary", s.apiHandlers.HandleLocationSummaries)
	s.mux.HandleFunc("GET /api/performance", s.apiHandlers.HandlePerformance)
	s.mux.HandleFunc("GET /api/drilldown/{metric}", s.apiHandlers.HandleDrilldown)
	s.mux.HandleFunc("GET /api/customers", s.apiHandlers.HandleCustomers)
	s.mux.HandleFunc("GET /api/customers/{id}", s.apiHandlers.HandleCustomer)
	s.mux.HandleFunc("GET /api/conversation", s.apiHandlers.HandleConversation)
	s.mux.HandleFunc("POST /api/query", s.apiHandlers.HandleQuery)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/performance", s.sseHandlers.HandlePerformance)
	s.mux.HandleFunc("GET /sse/drilldown/{metric}", s.sseHandlers.HandleDrilldown)
	s.mux.HandleFunc("GET /sse/customers", s.sseHandlers.HandleCustomers)
	s.mux.HandleFunc("GET /sse/customers/{id}", s.sseHandlers.HandleCustomer)
	s.mux.HandleFunc("GET /sse/tab/{tab}", s.sseHandlers.HandleTab)
	s.mux.HandleFunc("POST /sse/query", s.sseHandlers.HandleQuery)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
