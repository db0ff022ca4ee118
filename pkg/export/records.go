package export

import (
	"strings"
	"time"
)

// Address is a postal address with contact details.
type Address struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Company   string `json:"company,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address1  string `json:"address_1,omitempty"`
	Address2  string `json:"address_2,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	StateCode string `json:"state_code,omitempty"`
	Postcode  string `json:"postcode,omitempty"`
	Country   string `json:"country,omitempty"`
}

// FullName joins first and last name.
func (a Address) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// MetaEntry is one key/value pair in an ordered metadata list.
type MetaEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ItemTax is one tax rate applied to a line.
type ItemTax struct {
	RateID   string  `json:"rate_id"`
	Total    float64 `json:"total"`
	Subtotal float64 `json:"subtotal"`
}

// LineItem is one purchased product line.
type LineItem struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	ProductID   string      `json:"product_id,omitempty"`
	VariationID string      `json:"variation_id,omitempty"`
	SKU         string      `json:"sku,omitempty"`
	Quantity    float64     `json:"quantity"`
	Subtotal    float64     `json:"subtotal"`
	SubtotalTax float64     `json:"subtotal_tax"`
	Total       float64     `json:"total"`
	TotalTax    float64     `json:"total_tax"`
	Refunded    float64     `json:"refunded"`
	RefundedQty float64     `json:"refunded_qty"`
	Taxes       []ItemTax   `json:"taxes,omitempty"`
	Variation   []MetaEntry `json:"variation,omitempty"`
	Meta        []MetaEntry `json:"meta,omitempty"`
}

// ShippingLine is one shipping charge.
type ShippingLine struct {
	ID       string    `json:"id"`
	MethodID string    `json:"method_id"`
	Title    string    `json:"title"`
	Total    float64   `json:"total"`
	TotalTax float64   `json:"total_tax"`
	Taxes    []ItemTax `json:"taxes,omitempty"`
}

// FeeLine is one additional fee.
type FeeLine struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Total    float64   `json:"total"`
	TotalTax float64   `json:"total_tax"`
	Taxable  bool      `json:"taxable"`
	Taxes    []ItemTax `json:"taxes,omitempty"`
}

// TaxLine summarizes one tax rate across the order.
type TaxLine struct {
	ID               string  `json:"id"`
	RateID           string  `json:"rate_id"`
	Code             string  `json:"code"`
	Title            string  `json:"title"`
	Total            float64 `json:"total"`
	ShippingTaxTotal float64 `json:"shipping_tax_total"`
}

// CouponLine is one applied coupon.
type CouponLine struct {
	ID          string  `json:"id"`
	Code        string  `json:"code"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
}

// Refund is one refund issued against the order.
type Refund struct {
	ID     string    `json:"id"`
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
	Reason string    `json:"reason,omitempty"`
}

// OrderRecord is the typed view of one order.
type OrderRecord struct {
	ID              string    `json:"id"`
	Number          string    `json:"number"`
	Date            time.Time `json:"date"`
	Status          string    `json:"status"`
	Currency        string    `json:"currency"`
	ShippingTotal   float64   `json:"shipping_total"`
	ShippingTax     float64   `json:"shipping_tax"`
	FeeTotal        float64   `json:"fee_total"`
	FeeTax          float64   `json:"fee_tax"`
	TaxTotal        float64   `json:"tax_total"`
	CartDiscount    float64   `json:"cart_discount"`
	OrderDiscount   float64   `json:"order_discount"`
	DiscountTotal   float64   `json:"discount_total"`
	Total           float64   `json:"total"`
	RefundedTotal   float64   `json:"refunded_total"`
	PaymentMethod   string    `json:"payment_method"`
	PaymentTitle    string    `json:"payment_title,omitempty"`
	ShippingMethod  string    `json:"shipping_method,omitempty"`
	CustomerID      string    `json:"customer_id,omitempty"`
	CustomerNote    string    `json:"customer_note,omitempty"`
	Notes           []string  `json:"notes,omitempty"`
	DownloadsGrants bool      `json:"download_permissions,omitempty"`
	Billing         Address   `json:"billing"`
	Shipping        Address   `json:"shipping"`

	LineItems     []LineItem     `json:"line_items,omitempty"`
	ShippingLines []ShippingLine `json:"shipping_lines,omitempty"`
	FeeLines      []FeeLine      `json:"fee_lines,omitempty"`
	TaxLines      []TaxLine      `json:"tax_lines,omitempty"`
	CouponLines   []CouponLine   `json:"coupon_lines,omitempty"`
	Refunds       []Refund       `json:"refunds,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// CustomerRecord is the typed view of one customer. Guest customers are
// synthesized from the billing details of the order that introduced them.
type CustomerRecord struct {
	ID             string            `json:"id,omitempty"`
	Username       string            `json:"username,omitempty"`
	Email          string            `json:"email"`
	FirstName      string            `json:"first_name,omitempty"`
	LastName       string            `json:"last_name,omitempty"`
	DateRegistered time.Time         `json:"date_registered,omitempty"`
	Billing        Address           `json:"billing"`
	Shipping       Address           `json:"shipping"`
	TotalSpent     float64           `json:"total_spent"`
	OrderCount     int               `json:"order_count"`
	Metadata       map[string]string `json:"metadata,omitempty"`

	Guest        bool   `json:"guest,omitempty"`
	GuestOrderID string `json:"guest_order_id,omitempty"`
}

// GuestCustomerFromOrder builds a guest pseudo-customer from an order's
// billing fields. email overrides the billing email when set.
func GuestCustomerFromOrder(order *OrderRecord, email string) *CustomerRecord {
	if email == "" {
		email = order.Billing.Email
	}
	return &CustomerRecord{
		Email:          email,
		FirstName:      order.Billing.FirstName,
		LastName:       order.Billing.LastName,
		DateRegistered: order.Date,
		Billing:        order.Billing,
		Shipping:       order.Shipping,
		TotalSpent:     order.Total - order.RefundedTotal,
		OrderCount:     1,
		Guest:          true,
		GuestOrderID:   order.ID,
	}
}
