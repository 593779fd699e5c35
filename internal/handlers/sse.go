package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"restaurant-insights/internal/assistant"
	"restaurant-insights/internal/errors"
	"restaurant-insights/internal/models"
	"restaurant-insights/internal/observability"
	"restaurant-insights/internal/services"
	"restaurant-insights/internal/session"
	"restaurant-insights/internal/ui/templates"
)

type SSEHandlers struct {
	analytics *services.Analytics
	state     *session.State
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, state *session.State, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		state:     state,
		logger:    logger,
	}
}

// dashboardSignals mirrors the client signals the handlers read.
type dashboardSignals struct {
	Location string `json:"location"`
	Range    string `json:"range"`
	Search   string `json:"search"`
	Question string `json:"question"`
}

func (h *SSEHandlers) readSignals(r *http.Request) dashboardSignals {
	var sig dashboardSignals
	if err := datastar.ReadSignals(r, &sig); err != nil {
		h.logger.DebugContext(r.Context(), "no datastar signals", "error", err)
	}
	return sig
}

// scope resolves the location from ?location=, then the location signal,
// then the session.
func (h *SSEHandlers) scope(r *http.Request, sig dashboardSignals) string {
	if loc := r.URL.Query().Get("location"); loc != "" {
		return loc
	}
	if sig.Location != "" {
		return sig.Location
	}
	return h.state.Scope()
}

// dateRange resolves the preset from ?range=, then the range signal, then
// the session.
func (h *SSEHandlers) dateRange(r *http.Request, sig dashboardSignals) (services.DateRange, error) {
	name := r.URL.Query().Get("range")
	if name == "" {
		name = sig.Range
	}
	if name == "" {
		return h.state.DateRange(), nil
	}
	rng, err := services.ParseDateRange(name)
	if err != nil {
		return "", errors.ValidationWrap(err, "Unknown date range")
	}
	return rng, nil
}

type chartSignal struct {
	Labels  []string  `json:"labels"`
	Revenue []float64 `json:"revenue"`
}

func revenueChart(perf models.PerformanceMetrics) chartSignal {
	c := chartSignal{
		Labels:  make([]string, len(perf.RevenueByDate)),
		Revenue: make([]float64, len(perf.RevenueByDate)),
	}
	for i, d := range perf.RevenueByDate {
		c.Labels[i] = d.Label
		c.Revenue[i] = d.Revenue
	}
	return c
}

func (h *SSEHandlers) patch(ctx context.Context, sse *datastar.ServerSentEventGenerator, components ...templ.Component) error {
	for _, c := range components {
		html, err := templates.RenderString(ctx, c)
		if err != nil {
			return err
		}
		if err := sse.PatchElements(html); err != nil {
			return err
		}
	}
	return nil
}

func (h *SSEHandlers) patchSignals(sse *datastar.ServerSentEventGenerator, signals map[string]any) error {
	data, err := json.Marshal(signals)
	if err != nil {
		return err
	}
	return sse.PatchSignals(data)
}

// HandlePerformance switches the session scope and date range and
// re-renders everything that depends on them.
func (h *SSEHandlers) HandlePerformance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sig := h.readSignals(r)
	rng, err := h.dateRange(r, sig)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(ctx))
		return
	}
	scope := h.scope(r, sig)
	h.state.SetScope(scope)
	h.state.SetDateRange(rng)

	view := overview(ctx, h.analytics, scope, rng)
	customers := h.analytics.Customers(scope, "")

	sse := datastar.NewSSE(w, r)
	if err := h.patch(ctx, sse,
		templates.PerformanceSection(view),
		templates.EmptyDrilldown(),
		templates.CustomerList(customers, ""),
		templates.EmptyProfile(),
	); err != nil {
		h.logger.ErrorContext(ctx, "patch performance", "error", err)
		return
	}

	if err := h.patchSignals(sse, map[string]any{
		"location":         scope,
		"range":            string(rng),
		"selectedCustomer": "",
		"search":           "",
		"revenueChart":     revenueChart(view.Metrics),
	}); err != nil {
		h.logger.ErrorContext(ctx, "patch performance signals", "error", err)
	}
}

func (h *SSEHandlers) HandleDrilldown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	card, err := services.ParseMetricCard(r.PathValue("metric"))
	if err != nil {
		errors.WriteError(w, h.logger, errors.ValidationWrap(err, "Unknown metric card"), observability.GetRequestID(ctx))
		return
	}

	sig := h.readSignals(r)
	rng, err := h.dateRange(r, sig)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(ctx))
		return
	}
	view, err := h.analytics.Drilldown(ctx, h.scope(r, sig), rng, card)
	if err != nil {
		errors.WriteError(w, h.logger, errors.ValidationWrap(err, "Unknown metric card"), observability.GetRequestID(ctx))
		return
	}
	customerNames, locationNames := nameIndex(h.analytics)

	sse := datastar.NewSSE(w, r)
	if err := h.patch(ctx, sse, templates.Drilldown(view, customerNames, locationNames)); err != nil {
		h.logger.ErrorContext(ctx, "patch drilldown", "error", err, "metric", card)
	}
}

func (h *SSEHandlers) HandleCustomers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sig := h.readSignals(r)

	query := r.URL.Query().Get("q")
	if query == "" {
		query = sig.Search
	}
	customers := h.analytics.Customers(h.scope(r, sig), query)

	sse := datastar.NewSSE(w, r)
	if err := h.patch(ctx, sse, templates.CustomerList(customers, h.state.SelectedCustomer())); err != nil {
		h.logger.ErrorContext(ctx, "patch customers", "error", err)
	}
}

// HandleCustomer opens a customer profile. The profile spans all locations
// regardless of scope.
func (h *SSEHandlers) HandleCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	m, err := h.analytics.CustomerProfile(ctx, id)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "customer profile unavailable", "customer_id", id, "error", err)
		if perr := h.patch(ctx, sse, templates.ProfileNotFound(id)); perr != nil {
			h.logger.ErrorContext(ctx, "patch profile", "error", perr)
		}
		return
	}

	h.state.SelectCustomer(id)
	_, locationNames := nameIndex(h.analytics)
	customers := h.analytics.Customers(h.state.Scope(), "")

	if err := h.patch(ctx, sse,
		templates.CustomerProfile(m, locationNames),
		templates.CustomerList(customers, id),
	); err != nil {
		h.logger.ErrorContext(ctx, "patch profile", "error", err)
		return
	}
	if err := h.patchSignals(sse, map[string]any{
		"selectedCustomer": id,
		"activeTab":        string(h.state.ActiveTab()),
	}); err != nil {
		h.logger.ErrorContext(ctx, "patch profile signals", "error", err)
	}
}

func (h *SSEHandlers) HandleTab(w http.ResponseWriter, r *http.Request) {
	tab, err := session.ParseTab(r.PathValue("tab"))
	if err != nil {
		errors.WriteError(w, h.logger, errors.ValidationWrap(err, "Unknown tab"), observability.GetRequestID(r.Context()))
		return
	}
	h.state.SetActiveTab(tab)

	sse := datastar.NewSSE(w, r)
	if err := h.patchSignals(sse, map[string]any{"activeTab": string(tab)}); err != nil {
		h.logger.ErrorContext(r.Context(), "patch tab signal", "error", err)
	}
}

// HandleQuery shows the question immediately with a pending indicator, then
// blocks on the assistant and patches the final log. The querying signal
// disables the form in between.
func (h *SSEHandlers) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sig := h.readSignals(r)
	conv := h.state.Conversation

	sse := datastar.NewSSE(w, r)

	if strings.TrimSpace(sig.Question) == "" {
		if err := h.patchSignals(sse, map[string]any{"querying": false}); err != nil {
			h.logger.ErrorContext(ctx, "patch query signals", "error", err)
		}
		return
	}
	if conv.Pending() {
		h.patchConversation(ctx, sse, conv.Messages(), true)
		return
	}

	provisional := append(conv.Messages(), assistant.Message{
		ID:      "pending",
		Role:    assistant.RoleUser,
		Content: sig.Question,
	})
	if err := h.patchSignals(sse, map[string]any{"querying": true, "question": ""}); err != nil {
		h.logger.ErrorContext(ctx, "patch query signals", "error", err)
		return
	}
	h.patchConversation(ctx, sse, provisional, true)

	rng, err := h.dateRange(r, sig)
	if err != nil {
		rng = h.state.DateRange()
	}
	_, err = askQuestion(r, h.analytics, conv, h.scope(r, sig), rng, sig.Question)
	switch {
	case stderrors.Is(err, assistant.ErrBusy):
		h.logger.InfoContext(ctx, "question rejected while another is pending")
	case err != nil:
		h.logger.ErrorContext(ctx, "ask question", "error", err)
	}

	h.patchConversation(ctx, sse, conv.Messages(), conv.Pending())
	if err := h.patchSignals(sse, map[string]any{"querying": conv.Pending()}); err != nil {
		h.logger.ErrorContext(ctx, "patch query signals", "error", err)
	}
}

func (h *SSEHandlers) patchConversation(ctx context.Context, sse *datastar.ServerSentEventGenerator, msgs []assistant.Message, pending bool) {
	if err := h.patch(ctx, sse, templates.Conversation(msgs, pending)); err != nil {
		h.logger.ErrorContext(ctx, "patch conversation", "error", err)
	}
}
