// Package session holds the dashboard's per-process view state.
package session

import (
	"fmt"
	"sync"

	"restaurant-insights/internal/assistant"
	"restaurant-insights/internal/services"
)

type Tab string

const (
	TabOverview  Tab = "overview"
	TabCustomers Tab = "customers"
	TabAssistant Tab = "assistant"
)

func ParseTab(s string) (Tab, error) {
	switch t := Tab(s); t {
	case TabOverview, TabCustomers, TabAssistant:
		return t, nil
	}
	return "", fmt.Errorf("unknown tab %q", s)
}

// Snapshot is a point-in-time copy of State.
type Snapshot struct {
	Scope            string             `json:"scope"`
	Range            services.DateRange `json:"range"`
	SelectedCustomer string             `json:"selected_customer"`
	ActiveTab        Tab                `json:"active_tab"`
}

// State is the selected scope, date range, customer and tab plus the
// conversation log. It is created once and handed to every handler.
type State struct {
	mu               sync.RWMutex
	scope            string
	dateRange        services.DateRange
	selectedCustomer string
	activeTab        Tab

	Conversation *assistant.Conversation
}

func New(defaultScope string, conv *assistant.Conversation) *State {
	return &State{
		scope:        defaultScope,
		dateRange:    services.RangeAll,
		activeTab:    TabOverview,
		Conversation: conv,
	}
}

func (s *State) Scope() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scope
}

// SetScope changes the scope and clears the selected customer, which may
// not belong to the new scope.
func (s *State) SetScope(scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scope != scope {
		s.selectedCustomer = ""
	}
	s.scope = scope
}

func (s *State) DateRange() services.DateRange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dateRange
}

// SetDateRange narrows the orders behind every metric. The selected
// customer is kept: profiles are not range bound.
func (s *State) SetDateRange(r services.DateRange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dateRange = r
}

func (s *State) SelectedCustomer() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedCustomer
}

func (s *State) SelectCustomer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedCustomer = id
	if id != "" {
		s.activeTab = TabCustomers
	}
}

func (s *State) ActiveTab() Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeTab
}

func (s *State) SetActiveTab(t Tab) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeTab = t
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Scope:            s.scope,
		Range:            s.dateRange,
		SelectedCustomer: s.selectedCustomer,
		ActiveTab:        s.activeTab,
	}
}
