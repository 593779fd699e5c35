// Package store holds the immutable record fixture: locations, customers
// and orders. It is loaded once at startup and never written afterwards.
package store

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"restaurant-insights/internal/models"
)

// AllLocations selects the whole dataset.
const AllLocations = "all"

const dateLayout = "2006-01-02"

//go:embed fixture.yaml
var embeddedFixture []byte

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrLocationNotFound = errors.New("location not found")
)

type fixtureFile struct {
	Locations []models.Location `yaml:"locations"`
	Customers []models.Customer `yaml:"customers"`
	Orders    []fixtureOrder    `yaml:"orders"`
}

type fixtureOrder struct {
	ID         string   `yaml:"id"`
	CustomerID string   `yaml:"customerId"`
	Amount     float64  `yaml:"amount"`
	Tip        float64  `yaml:"tip"`
	TipPercent int      `yaml:"tipPercent"`
	Server     string   `yaml:"server"`
	Date       string   `yaml:"date"`
	Type       string   `yaml:"type"`
	Items      []string `yaml:"items"`
	Location   string   `yaml:"location"`
}

type Store struct {
	locations []models.Location
	customers []models.Customer
	orders    []models.Order

	locationIdx map[string]int
	customerIdx map[string]int
}

// Load reads the fixture at path, or the embedded fixture when path is
// empty.
func Load(path string, logger *slog.Logger) (*Store, error) {
	data := embeddedFixture
	source := "embedded"
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read fixture: %w", err)
		}
		data = b
		source = path
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load fixture %s: %w", source, err)
	}

	logger.Info("record store loaded",
		"source", source,
		"locations", len(s.locations),
		"customers", len(s.customers),
		"orders", len(s.orders),
	)
	return s, nil
}

// Default returns the store built from the embedded fixture.
func Default() (*Store, error) {
	return Parse(embeddedFixture)
}

// Parse decodes and validates a YAML fixture.
func Parse(data []byte) (*Store, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	orders := make([]models.Order, 0, len(f.Orders))
	for _, fo := range f.Orders {
		date, err := time.Parse(dateLayout, strings.TrimSpace(fo.Date))
		if err != nil {
			return nil, fmt.Errorf("order %s: parse date %q: %w", fo.ID, fo.Date, err)
		}
		orders = append(orders, models.Order{
			ID:         fo.ID,
			CustomerID: fo.CustomerID,
			Amount:     fo.Amount,
			Tip:        fo.Tip,
			TipPercent: fo.TipPercent,
			Server:     fo.Server,
			Date:       date,
			Type:       fo.Type,
			Items:      fo.Items,
			Location:   fo.Location,
		})
	}

	return New(f.Locations, f.Customers, orders)
}

// New builds a store from already decoded relations and validates their
// keys and foreign keys.
func New(locations []models.Location, customers []models.Customer, orders []models.Order) (*Store, error) {
	s := &Store{
		locations:   slices.Clone(locations),
		customers:   slices.Clone(customers),
		orders:      slices.Clone(orders),
		locationIdx: make(map[string]int, len(locations)),
		customerIdx: make(map[string]int, len(customers)),
	}

	for i, l := range s.locations {
		if l.ID == "" {
			return nil, fmt.Errorf("location %d: empty id", i)
		}
		if l.ID == AllLocations {
			return nil, fmt.Errorf("location id %q is reserved", AllLocations)
		}
		if _, dup := s.locationIdx[l.ID]; dup {
			return nil, fmt.Errorf("duplicate location id %q", l.ID)
		}
		s.locationIdx[l.ID] = i
	}

	for i, c := range s.customers {
		if c.ID == "" {
			return nil, fmt.Errorf("customer %d: empty id", i)
		}
		if _, dup := s.customerIdx[c.ID]; dup {
			return nil, fmt.Errorf("duplicate customer id %q", c.ID)
		}
		if _, ok := s.locationIdx[c.Location]; !ok {
			return nil, fmt.Errorf("customer %s: %w: %q", c.ID, ErrLocationNotFound, c.Location)
		}
		if c.LoyaltyStatus != models.LoyaltyActive && c.LoyaltyStatus != models.LoyaltyInactive {
			return nil, fmt.Errorf("customer %s: invalid loyalty status %q", c.ID, c.LoyaltyStatus)
		}
		if c.LoyaltyPoints < 0 {
			return nil, fmt.Errorf("customer %s: negative loyalty points", c.ID)
		}
		s.customerIdx[c.ID] = i
	}

	seen := make(map[string]struct{}, len(s.orders))
	for i, o := range s.orders {
		if o.ID == "" {
			return nil, fmt.Errorf("order %d: empty id", i)
		}
		if _, dup := seen[o.ID]; dup {
			return nil, fmt.Errorf("duplicate order id %q", o.ID)
		}
		seen[o.ID] = struct{}{}
		if _, ok := s.customerIdx[o.CustomerID]; !ok {
			return nil, fmt.Errorf("order %s: %w: %q", o.ID, ErrCustomerNotFound, o.CustomerID)
		}
		if _, ok := s.locationIdx[o.Location]; !ok {
			return nil, fmt.Errorf("order %s: %w: %q", o.ID, ErrLocationNotFound, o.Location)
		}
		if o.Amount <= 0 {
			return nil, fmt.Errorf("order %s: amount must be positive", o.ID)
		}
		if o.Tip < 0 {
			return nil, fmt.Errorf("order %s: tip must not be negative", o.ID)
		}
	}

	return s, nil
}

// Locations returns every location in fixture order.
func (s *Store) Locations() []models.Location {
	return slices.Clone(s.locations)
}

// Customers returns every customer in fixture order.
func (s *Store) Customers() []models.Customer {
	return slices.Clone(s.customers)
}

// Orders returns every order in fixture order.
func (s *Store) Orders() []models.Order {
	return slices.Clone(s.orders)
}

func (s *Store) Location(id string) (models.Location, bool) {
	i, ok := s.locationIdx[id]
	if !ok {
		return models.Location{}, false
	}
	return s.locations[i], true
}

func (s *Store) Customer(id string) (models.Customer, bool) {
	i, ok := s.customerIdx[id]
	if !ok {
		return models.Customer{}, false
	}
	return s.customers[i], true
}

// LocationName resolves a location id to its display name.
func (s *Store) LocationName(id string) (string, bool) {
	l, ok := s.Location(id)
	return l.Name, ok
}

// Scope narrows customers and orders to one location, or returns everything
// for AllLocations. An unknown id yields empty results, not an error.
func (s *Store) Scope(locationID string) ([]models.Customer, []models.Order) {
	if locationID == AllLocations {
		return s.Customers(), s.Orders()
	}

	customers := make([]models.Customer, 0)
	for _, c := range s.customers {
		if c.Location == locationID {
			customers = append(customers, c)
		}
	}
	orders := make([]models.Order, 0)
	for _, o := range s.orders {
		if o.Location == locationID {
			orders = append(orders, o)
		}
	}
	return customers, orders
}

// Search filters customers by a case-insensitive substring of their full
// name, email or phone. An empty query matches everyone.
func Search(customers []models.Customer, query string) []models.Customer {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return customers
	}

	matches := make([]models.Customer, 0)
	for _, c := range customers {
		if strings.Contains(strings.ToLower(c.FullName()), q) ||
			strings.Contains(strings.ToLower(c.Email), q) ||
			strings.Contains(c.Phone, q) {
			matches = append(matches, c)
		}
	}
	return matches
}
