package orderstore

import (
	"strings"
	"time"

	domain "github.com/dzirastore/api/internal/domain"
)

// Wire payloads use the store's snake_case field names. Mapping to the domain
// model is total: absent fields decode to zero values and never propagate as
// nulls.

type rawCommune struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type rawCenter struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	CommuneID int    `json:"commune_id"`
}

type rawHomePrice struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type rawDeskPrice struct {
	ID    int   `json:"id"`
	Price int64 `json:"price"`
}

type rawShipping struct {
	Home []rawHomePrice `json:"home"`
	Desk []rawDeskPrice `json:"desk"`
}

type rawRegion struct {
	ID       int          `json:"id"`
	Name     string       `json:"name"`
	Communes []rawCommune `json:"communes"`
	Centers  []rawCenter  `json:"centers"`
	Shipping rawShipping  `json:"shipping"`
}

type rawOrderItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
	Color    string `json:"color"`
	Size     string `json:"size"`
	Image    string `json:"product_img"`
}

type rawOrder struct {
	ID                string         `json:"id"`
	CustomerFirstName string         `json:"customer_first_name"`
	CustomerLastName  string         `json:"customer_last_name"`
	CustomerPhone     string         `json:"customer_phone"`
	CustomerAddress   string         `json:"customer_address"`
	RegionID          int            `json:"region_id"`
	Region            string         `json:"region"`
	Commune           string         `json:"commune"`
	CenterID          int            `json:"center_id"`
	ShippingType      string         `json:"shipping_type"`
	Status            string         `json:"status"`
	Items             []rawOrderItem `json:"items"`
	IsFreeShipping    bool           `json:"is_free_shipping"`
	PromoApplied      bool           `json:"promo_applied"`
	NeedsExchange     bool           `json:"needs_exchange"`
	ProductToCollect  string         `json:"product_to_collect"`
	TrackingID        string         `json:"tracking_id"`
	Subtotal          int64          `json:"subtotal"`
	Discount          int64          `json:"discount"`
	ShippingPrice     int64          `json:"shipping_price"`
	Total             int64          `json:"total"`
	CreatedAt         string         `json:"created_at"`
	UpdatedAt         string         `json:"updated_at"`
}

func mapRegion(raw rawRegion) domain.Region {
	region := domain.Region{
		ID:   raw.ID,
		Name: strings.TrimSpace(raw.Name),
	}

	region.Communes = make([]domain.Commune, 0, len(raw.Communes))
	for _, commune := range raw.Communes {
		region.Communes = append(region.Communes, domain.Commune{
			ID:   commune.ID,
			Name: strings.TrimSpace(commune.Name),
		})
	}

	region.Centers = make([]domain.Center, 0, len(raw.Centers))
	for _, center := range raw.Centers {
		region.Centers = append(region.Centers, domain.Center{
			ID:        center.ID,
			Name:      strings.TrimSpace(center.Name),
			Address:   strings.TrimSpace(center.Address),
			CommuneID: center.CommuneID,
		})
	}

	region.Shipping.Home = make([]domain.HomePrice, 0, len(raw.Shipping.Home))
	for _, entry := range raw.Shipping.Home {
		region.Shipping.Home = append(region.Shipping.Home, domain.HomePrice{
			Commune: strings.TrimSpace(entry.Name),
			Price:   entry.Price,
		})
	}

	region.Shipping.Desk = make([]domain.DeskPrice, 0, len(raw.Shipping.Desk))
	for _, entry := range raw.Shipping.Desk {
		region.Shipping.Desk = append(region.Shipping.Desk, domain.DeskPrice{
			CommuneID: entry.ID,
			Price:     entry.Price,
		})
	}

	return region
}

func mapRegions(raws []rawRegion) []domain.Region {
	regions := make([]domain.Region, 0, len(raws))
	for _, raw := range raws {
		regions = append(regions, mapRegion(raw))
	}
	return regions
}

func mapOrder(raw rawOrder) domain.Order {
	order := domain.Order{
		ID: strings.TrimSpace(raw.ID),
		Customer: domain.Customer{
			FirstName: strings.TrimSpace(raw.CustomerFirstName),
			LastName:  strings.TrimSpace(raw.CustomerLastName),
			Phone:     strings.TrimSpace(raw.CustomerPhone),
			Address:   strings.TrimSpace(raw.CustomerAddress),
		},
		RegionID:         raw.RegionID,
		RegionName:       strings.TrimSpace(raw.Region),
		Commune:          strings.TrimSpace(raw.Commune),
		CenterID:         raw.CenterID,
		ShippingType:     mapShippingType(raw.ShippingType),
		Status:           domain.OrderStatus(strings.TrimSpace(raw.Status)),
		FreeShipping:     raw.IsFreeShipping,
		PromoApplied:     raw.PromoApplied,
		NeedsExchange:    raw.NeedsExchange,
		ProductToCollect: strings.TrimSpace(raw.ProductToCollect),
		TrackingID:       strings.TrimSpace(raw.TrackingID),
		Subtotal:         raw.Subtotal,
		Discount:         raw.Discount,
		ShippingPrice:    raw.ShippingPrice,
		Total:            raw.Total,
		CreatedAt:        parseTime(raw.CreatedAt),
		UpdatedAt:        parseTime(raw.UpdatedAt),
	}

	order.Items = make([]domain.OrderItem, 0, len(raw.Items))
	for _, item := range raw.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ID:        strings.TrimSpace(item.ID),
			Name:      strings.TrimSpace(item.Name),
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			Color:     strings.TrimSpace(item.Color),
			Size:      strings.TrimSpace(item.Size),
			Image:     strings.TrimSpace(item.Image),
		})
	}

	return order
}

func mapOrders(raws []rawOrder) []domain.Order {
	orders := make([]domain.Order, 0, len(raws))
	for _, raw := range raws {
		orders = append(orders, mapOrder(raw))
	}
	return orders
}

func toRawOrder(order domain.Order) rawOrder {
	raw := rawOrder{
		ID:                order.ID,
		CustomerFirstName: order.Customer.FirstName,
		CustomerLastName:  order.Customer.LastName,
		CustomerPhone:     order.Customer.Phone,
		CustomerAddress:   order.Customer.Address,
		RegionID:          order.RegionID,
		Region:            order.RegionName,
		Commune:           order.Commune,
		CenterID:          order.CenterID,
		ShippingType:      string(order.ShippingType),
		Status:            string(order.Status),
		IsFreeShipping:    order.FreeShipping,
		PromoApplied:      order.PromoApplied,
		NeedsExchange:     order.NeedsExchange,
		ProductToCollect:  order.ProductToCollect,
		TrackingID:        order.TrackingID,
		Subtotal:          order.Subtotal,
		Discount:          order.Discount,
		ShippingPrice:     order.ShippingPrice,
		Total:             order.Total,
	}
	if !order.CreatedAt.IsZero() {
		raw.CreatedAt = order.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !order.UpdatedAt.IsZero() {
		raw.UpdatedAt = order.UpdatedAt.UTC().Format(time.RFC3339)
	}
	raw.Items = make([]rawOrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		raw.Items = append(raw.Items, rawOrderItem{
			ID:       item.ID,
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.UnitPrice,
			Color:    item.Color,
			Size:     item.Size,
			Image:    item.Image,
		})
	}
	return raw
}

func mapShippingType(value string) domain.ShippingType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(domain.ShippingTypeDesk):
		return domain.ShippingTypeDesk
	default:
		return domain.ShippingTypeHome
	}
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}
