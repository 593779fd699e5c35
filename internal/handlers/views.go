package handlers

import (
	"context"

	"restaurant-insights/internal/services"
	"restaurant-insights/internal/session"
	"restaurant-insights/internal/store"
	"restaurant-insights/internal/ui/templates"
)

// nameIndex maps every customer and location id to its display name.
// Rows in a location scope can reference customers homed elsewhere.
func nameIndex(analytics *services.Analytics) (customers, locations map[string]string) {
	all := analytics.Customers(store.AllLocations, "")
	customers = make(map[string]string, len(all))
	for _, c := range all {
		customers[c.ID] = c.FullName()
	}

	locs := analytics.Locations()
	locations = make(map[string]string, len(locs))
	for _, l := range locs {
		locations[l.ID] = l.Name
	}
	return customers, locations
}

func overview(ctx context.Context, analytics *services.Analytics, scope string, rng services.DateRange) templates.Overview {
	customerNames, locationNames := nameIndex(analytics)
	return templates.Overview{
		Scope:         scope,
		Range:         rng,
		Metrics:       analytics.Performance(ctx, scope, rng),
		CustomerNames: customerNames,
		LocationNames: locationNames,
	}
}

// DashboardPage assembles the first render of the dashboard from the
// current session.
func DashboardPage(ctx context.Context, analytics *services.Analytics, state *session.State) templates.Page {
	snap := state.Snapshot()
	conv := state.Conversation
	return templates.Page{
		Session:   snap,
		Locations: analytics.Locations(),
		Overview:  overview(ctx, analytics, snap.Scope, snap.Range),
		Customers: analytics.Customers(snap.Scope, ""),
		Messages:  conv.Messages(),
		Pending:   conv.Pending(),
	}
}
