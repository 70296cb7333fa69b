package domain

import "time"

// ShippingType selects how an order reaches the customer.
type ShippingType string

const (
	// ShippingTypeHome delivers to the customer address; priced by commune name.
	ShippingTypeHome ShippingType = "home"
	// ShippingTypeDesk delivers to a pickup center; priced by the center's commune id.
	ShippingTypeDesk ShippingType = "desk"
)

// Commune is a sub-zone within a region used for home-delivery price lookup.
type Commune struct {
	ID   int
	Name string
}

// Center is a fixed pickup desk within a region, tied to a commune for pricing.
type Center struct {
	ID        int
	Name      string
	Address   string
	CommuneID int
}

// HomePrice maps a commune name to its home-delivery price in centimes.
type HomePrice struct {
	Commune string
	Price   int64
}

// DeskPrice maps a commune id to its desk-delivery price in centimes.
type DeskPrice struct {
	CommuneID int
	Price     int64
}

// ShippingTable holds the delivery price entries for one region.
type ShippingTable struct {
	Home []HomePrice
	Desk []DeskPrice
}

// Region is a top-level delivery zone (wilaya). Reference data, loaded once
// per session and never mutated.
type Region struct {
	ID       int
	Name     string
	Communes []Commune
	Centers  []Center
	Shipping ShippingTable
}

// Customer captures the recipient details collected at checkout.
type Customer struct {
	FirstName string
	LastName  string
	Phone     string
	Address   string
}

// OrderItem is a single purchased line. Quantity is clamped to at least 1 by
// the edit operations; UnitPrice is in centimes.
type OrderItem struct {
	ID        string
	Name      string
	Quantity  int
	UnitPrice int64
	Color     string
	Size      string
	Image     string
}

// Order is the storefront order record as held by the external store.
// Subtotal stays gross; Total == Subtotal - Discount + ShippingPrice.
type Order struct {
	ID               string
	Customer         Customer
	RegionID         int
	RegionName       string
	Commune          string
	CenterID         int
	ShippingType     ShippingType
	Status           OrderStatus
	Items            []OrderItem
	FreeShipping     bool
	PromoApplied     bool
	NeedsExchange    bool
	ProductToCollect string
	TrackingID       string
	Subtotal         int64
	Discount         int64
	ShippingPrice    int64
	Total            int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Quote is the priced breakdown of a cart before submission. Amounts are in
// centimes; Total is (Subtotal - Discount) + ShippingPrice.
type Quote struct {
	Subtotal      int64
	Discount      int64
	ShippingPrice int64
	Total         int64
}

// OrderView decorates an order with its display classification for listings.
type OrderView struct {
	Order
	Bucket StatusBucket
	Badge  Badge
}
