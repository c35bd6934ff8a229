package order

import (
	"time"

	"github.com/google/uuid"

	"github.com/healthhub/healthhub/pkg/money"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

// Pricing constants, in rupees.
const (
	TaxPercent            = 18
	FreeShippingThreshold = 500
	ShippingFee           = 50
)

var validStatuses = map[string]bool{
	StatusPending:    true,
	StatusProcessing: true,
	StatusShipped:    true,
	StatusDelivered:  true,
	StatusCancelled:  true,
}

var statusTransitions = map[string]map[string]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true, StatusCancelled: true},
}

var paymentMethods = map[string]bool{
	"online": true,
	"cod":    true,
}

func CanTransition(from, to string) bool {
	return statusTransitions[from][to]
}

func IsTerminal(status string) bool {
	return validStatuses[status] && len(statusTransitions[status]) == 0
}

// LineItem is frozen at order time.
type LineItem struct {
	ProductID  uuid.UUID `json:"product_id"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	Quantity   int       `json:"quantity"`
	MerchantID string    `json:"merchant_id"`
}

func (li LineItem) Amount() float64 {
	return money.Round2(li.Price * float64(li.Quantity))
}

type Address struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

type Summary struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Shipping float64 `json:"shipping"`
	Total    float64 `json:"total"`
}

// Summarize prices a set of line items.
func Summarize(items []LineItem) Summary {
	var subtotal float64
	for _, li := range items {
		subtotal += li.Amount()
	}
	subtotal = money.Round2(subtotal)
	s := Summary{Subtotal: subtotal, Tax: money.Percent(subtotal, TaxPercent)}
	if subtotal < FreeShippingThreshold {
		s.Shipping = ShippingFee
	}
	s.Total = money.Round2(s.Subtotal + s.Tax + s.Shipping)
	return s
}

type Order struct {
	ID              uuid.UUID  `json:"id"`
	OrderNumber     string     `json:"order_number"`
	BuyerID         uuid.UUID  `json:"buyer_id"`
	BuyerEmail      string     `json:"buyer_email"`
	Items           []LineItem `json:"items"`
	MerchantIDs     []string   `json:"merchant_ids"`
	ShippingAddress Address    `json:"shipping_address"`
	PaymentMethod   string     `json:"payment_method"`
	Summary
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	PaymentRef    string    `json:"payment_ref,omitempty"`
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasMerchant reports whether any line item belongs to merchantID.
func (o *Order) HasMerchant(merchantID string) bool {
	for _, id := range o.MerchantIDs {
		if id == merchantID {
			return true
		}
	}
	return false
}

type ItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CreateRequest struct {
	Items           []ItemRequest `json:"items"`
	ShippingAddress Address       `json:"shipping_address"`
	PaymentMethod   string        `json:"payment_method"`
}

type TopProduct struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Stock     int       `json:"stock"`
	Price     float64   `json:"price"`
}

// Analytics summarises a merchant's sales.
type Analytics struct {
	MerchantID        string         `json:"merchant_id"`
	OrderCount        int            `json:"order_count"`
	Revenue           float64        `json:"revenue"`
	AverageOrderValue float64        `json:"average_order_value"`
	ByStatus          map[string]int `json:"by_status"`
	TopProducts       []TopProduct   `json:"top_products"`
}
