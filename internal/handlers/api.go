package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"restaurant-insights/internal/assistant"
	"restaurant-insights/internal/errors"
	"restaurant-insights/internal/observability"
	"restaurant-insights/internal/services"
	"restaurant-insights/internal/session"
	"restaurant-insights/internal/store"
)

const (
	cacheMaxAge     = "public, max-age=60"
	maxQuestionBody = 8 << 10
)

type APIHandlers struct {
	analytics *services.Analytics
	state     *session.State
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, state *session.State, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		state:     state,
		logger:    logger,
	}
}

// scopeParam reads ?location=, defaulting to all locations. Unknown ids are
// passed through and yield empty metrics.
func scopeParam(r *http.Request) string {
	if loc := r.URL.Query().Get("location"); loc != "" {
		return loc
	}
	return store.AllLocations
}

// rangeParam reads ?range=, defaulting to all dates.
func rangeParam(r *http.Request) (services.DateRange, error) {
	rng, err := services.ParseDateRange(r.URL.Query().Get("range"))
	if err != nil {
		return "", errors.ValidationWrap(err, "Unknown date range")
	}
	return rng, nil
}

func (h *APIHandlers) HandleLocations(w http.ResponseWriter, r *http.Request) {
	headers := map[string]string{
		"Cache-Control": cacheMaxAge,
	}
	errors.WriteSuccessWithHeaders(w, h.analytics.Locations(), headers)
}

func (h *APIHandlers) HandlePerformance(w http.ResponseWriter, r *http.Request) {
	rng, err := rangeParam(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}
	data := h.analytics.Performance(r.Context(), scopeParam(r), rng)

	headers := map[string]string{
		"Cache-Control": cacheMaxAge,
	}
	errors.WriteSuccessWithHeaders(w, data, headers)
}

func (h *APIHandlers) HandleLocationSummaries(w http.ResponseWriter, r *http.Request) {
	data, err := h.analytics.LocationSummaries(r.Context())
	if err != nil {
		errors.WriteError(w, h.logger, errors.InternalWrap(err, "Failed to compute location summaries"), observability.GetRequestID(r.Context()))
		return
	}
	errors.WriteSuccess(w, data)
}

func (h *APIHandlers) HandleDrilldown(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	card, err := services.ParseMetricCard(r.PathValue("metric"))
	if err != nil {
		errors.WriteError(w, h.logger, errors.ValidationWrap(err, "Unknown metric card"), requestID)
		return
	}

	rng, err := rangeParam(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	view, err := h.analytics.Drilldown(r.Context(), scopeParam(r), rng, card)
	if err != nil {
		errors.WriteError(w, h.logger, errors.ValidationWrap(err, "Unknown metric card"), requestID)
		return
	}
	errors.WriteSuccess(w, view)
}

func (h *APIHandlers) HandleCustomers(w http.ResponseWriter, r *http.Request) {
	data := h.analytics.Customers(scopeParam(r), r.URL.Query().Get("q"))
	errors.WriteSuccess(w, data)
}

func (h *APIHandlers) HandleCustomer(w http.ResponseWriter, r *http.Request) {
	m, err := h.analytics.CustomerProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		requestID := observability.GetRequestID(r.Context())
		if stderrors.Is(err, store.ErrCustomerNotFound) {
			errors.WriteError(w, h.logger, errors.NotFoundWrap(err, "Customer not found"), requestID)
			return
		}
		errors.WriteError(w, h.logger, err, requestID)
		return
	}
	errors.WriteSuccess(w, m)
}

type conversationResponse struct {
	Messages []assistant.Message `json:"messages"`
	Pending  bool                `json:"pending"`
}

func (h *APIHandlers) HandleConversation(w http.ResponseWriter, r *http.Request) {
	conv := h.state.Conversation
	errors.WriteSuccess(w, conversationResponse{
		Messages: conv.Messages(),
		Pending:  conv.Pending(),
	})
}

type queryRequest struct {
	Question string `json:"question"`
	Location string `json:"location"`
	Range    string `json:"range"`
}

// HandleQuery answers one question against the requested scope, or the
// session's scope when none is given. A remote failure still returns 200
// with the fallback message.
func (h *APIHandlers) HandleQuery(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	var req queryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxQuestionBody)).Decode(&req); err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "Invalid JSON body"), requestID)
		return
	}

	scope := req.Location
	if scope == "" {
		scope = h.state.Scope()
	}
	rng := h.state.DateRange()
	if req.Range != "" {
		parsed, err := services.ParseDateRange(req.Range)
		if err != nil {
			errors.WriteError(w, h.logger, errors.ValidationWrap(err, "Unknown date range"), requestID)
			return
		}
		rng = parsed
	}

	reply, err := askQuestion(r, h.analytics, h.state.Conversation, scope, rng, req.Question)
	switch {
	case stderrors.Is(err, assistant.ErrEmptyQuestion):
		errors.WriteError(w, h.logger, errors.Validation("Question is required"), requestID)
	case stderrors.Is(err, assistant.ErrBusy):
		errors.WriteError(w, h.logger, errors.Conflict("A question is already being answered"), requestID)
	case err != nil:
		errors.WriteError(w, h.logger, err, requestID)
	default:
		errors.WriteSuccess(w, reply)
	}
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.analytics.Stats()
	stats["session"] = h.state.Snapshot()
	stats["conversation_messages"] = h.state.Conversation.Len()

	errors.WriteSuccess(w, stats)
}

// askQuestion builds the system prompt for scope and rng at call time and
// asks it.
func askQuestion(r *http.Request, analytics *services.Analytics, conv *assistant.Conversation, scope string, rng services.DateRange, question string) (assistant.Message, error) {
	if strings.TrimSpace(question) == "" {
		return assistant.Message{}, assistant.ErrEmptyQuestion
	}
	dataContext, err := analytics.Context(r.Context(), scope, rng)
	if err != nil {
		return assistant.Message{}, errors.InternalWrap(err, "Failed to build assistant context")
	}
	return conv.Ask(r.Context(), question, assistant.SystemPrompt(dataContext))
}
