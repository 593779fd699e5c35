package models

import "time"

type LoyaltyStatus string

const (
	LoyaltyActive   LoyaltyStatus = "active"
	LoyaltyInactive LoyaltyStatus = "inactive"
)

type Location struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Address string `json:"address" yaml:"address"`
}

type Customer struct {
	ID            string        `json:"id" yaml:"id"`
	FirstName     string        `json:"first_name" yaml:"firstName"`
	LastName      string        `json:"last_name" yaml:"lastName"`
	Email         string        `json:"email" yaml:"email"`
	Phone         string        `json:"phone" yaml:"phone"`
	LoyaltyStatus LoyaltyStatus `json:"loyalty_status" yaml:"loyaltyStatus"`
	LoyaltyPoints int           `json:"loyalty_points" yaml:"loyaltyPoints"`
	MemberNumber  string        `json:"member_number" yaml:"memberNumber"`
	Location      string        `json:"location" yaml:"location"`
}

// FullName joins first and last name with a single space.
func (c Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

type Order struct {
	ID         string    `json:"id" yaml:"id"`
	CustomerID string    `json:"customer_id" yaml:"customerId"`
	Amount     float64   `json:"amount" yaml:"amount"`
	Tip        float64   `json:"tip" yaml:"tip"`
	TipPercent int       `json:"tip_percent" yaml:"tipPercent"`
	Server     string    `json:"server" yaml:"server"`
	Date       time.Time `json:"date" yaml:"date"`
	Type       string    `json:"type" yaml:"type"`
	Items      []string  `json:"items" yaml:"items"`
	Location   string    `json:"location" yaml:"location"`
}
