package catalog

import (
	"time"

	"github.com/google/uuid"
)

var validRentPeriods = map[string]bool{
	"day":   true,
	"week":  true,
	"month": true,
}

// Product is an item sold, and optionally rented out, by a merchant.
type Product struct {
	ID                 uuid.UUID `json:"id"`
	MerchantID         string    `json:"merchant_id"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	Category           string    `json:"category,omitempty"`
	Price              float64   `json:"price"`
	Stock              int       `json:"stock"`
	ImageURL           string    `json:"image_url,omitempty"`
	Rentable           bool      `json:"rentable"`
	RentPricePerPeriod float64   `json:"rent_price_per_period,omitempty"`
	RentPeriod         string    `json:"rent_period,omitempty"`
	SecurityDeposit    float64   `json:"security_deposit,omitempty"`
	Active             bool      `json:"active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ProductFilter narrows ListProducts. Zero values match everything.
type ProductFilter struct {
	MerchantID string
	Category   string
	Rentable   *bool
	ActiveOnly bool
	// OrderByStock sorts by stock descending instead of newest first.
	OrderByStock bool
}

// MedicalService is a bookable medical service.
type MedicalService struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Category        string    `json:"category,omitempty"`
	Price           float64   `json:"price"`
	DurationMinutes int       `json:"duration_minutes"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
