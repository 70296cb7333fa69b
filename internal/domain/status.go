package domain

import "strings"

// OrderStatus is a raw status string drawn from the carrier vocabulary plus
// the two store-side states. The set is externally defined and open-ended:
// unknown values are tolerated and classify as BucketUnclassified.
type OrderStatus string

const (
	StatusPending   OrderStatus = "En attente de confirmation"
	StatusConfirmed OrderStatus = "Confirmé"
	StatusCanceled  OrderStatus = "Annulé"

	StatusToVerify      OrderStatus = "A vérifier"
	StatusInPreparation OrderStatus = "En préparation"
	StatusNotShippedYet OrderStatus = "Pas encore expédié"
	StatusNotPickedUp   OrderStatus = "Pas encore ramassé"
	StatusReadyToShip   OrderStatus = "Prêt à expédier"
	StatusPickedUp      OrderStatus = "Ramassé"
	StatusBlocked       OrderStatus = "Bloqué"
	StatusUnblocked     OrderStatus = "Débloqué"
	StatusTransfer      OrderStatus = "Transfert"
	StatusShipped       OrderStatus = "Expédié"
	StatusAtCenter      OrderStatus = "Centre"
	StatusLocating      OrderStatus = "En localisation"
	StatusTowardRegion  OrderStatus = "Vers Wilaya"
	StatusAtRegion      OrderStatus = "Reçu à Wilaya"
	StatusAwaitClient   OrderStatus = "En attente du client"
	StatusReadyCourier  OrderStatus = "Prêt pour livreur"
	StatusOutForDeliv   OrderStatus = "Sorti en livraison"
	StatusOnHold        OrderStatus = "En attente"
	StatusAlert         OrderStatus = "En alerte"
	StatusAttemptFailed OrderStatus = "Tentative échouée"
	StatusDelivered     OrderStatus = "Livré"
	StatusDeliveryFail  OrderStatus = "Echèc livraison"
	StatusReturnToHub   OrderStatus = "Retour vers centre"
	StatusReturnedHub   OrderStatus = "Retourné au centre"
	StatusReturnMoving  OrderStatus = "Retour transfert"
	StatusReturnGrouped OrderStatus = "Retour groupé"
	StatusReturnHeld    OrderStatus = "Retour à retirer"
	StatusReturnToShop  OrderStatus = "Retour vers vendeur"
	StatusReturnedShop  OrderStatus = "Retourné au vendeur"
	StatusExchangeFail  OrderStatus = "Echange échoué"
)

// StatusBucket is the coarse operational partition used by dashboards.
type StatusBucket string

const (
	BucketPending      StatusBucket = "pending"
	BucketConfirmed    StatusBucket = "confirmed"
	BucketProcessing   StatusBucket = "processing"
	BucketShipped      StatusBucket = "shipped"
	BucketDelivered    StatusBucket = "delivered"
	BucketReturned     StatusBucket = "returned"
	BucketCanceled     StatusBucket = "canceled"
	BucketUnclassified StatusBucket = "unclassified"
)

// BadgeColor is the severity tag rendered with a status badge.
type BadgeColor string

const (
	ColorWarning    BadgeColor = "warning"
	ColorInfo       BadgeColor = "info"
	ColorProcessing BadgeColor = "processing"
	ColorDelivery   BadgeColor = "delivery"
	ColorBlocked    BadgeColor = "blocked"
	ColorTransit    BadgeColor = "transit"
	ColorSuccess    BadgeColor = "success"
	ColorError      BadgeColor = "error"
	ColorReturned   BadgeColor = "returned"
	ColorAttention  BadgeColor = "attention"
	ColorDefault    BadgeColor = "default"
)

// Badge carries everything the UI needs to render a status chip.
type Badge struct {
	Label   string
	Color   BadgeColor
	Tooltip string
}

const defaultBadgeTooltip = "Aucune raison fournie"

type statusEntry struct {
	bucket         StatusBucket
	label          string
	color          BadgeColor
	excludeRevenue bool
}

// statusTable is the single source of truth for classification and badge
// rendering. Revenue exclusion is an explicit list, not the complement of
// delivered: a pending order still counts toward revenue, a returned or
// blocked one does not.
var statusTable = map[OrderStatus]statusEntry{
	StatusPending:   {bucket: BucketPending, label: "En attente de confirmation", color: ColorWarning},
	StatusConfirmed: {bucket: BucketConfirmed, label: "Confirmé", color: ColorInfo},
	StatusCanceled:  {bucket: BucketCanceled, label: "Annulé", color: ColorError, excludeRevenue: true},

	StatusToVerify:      {bucket: BucketProcessing, label: "À vérifier", color: ColorAttention},
	StatusInPreparation: {bucket: BucketProcessing, label: "En préparation", color: ColorProcessing},
	StatusNotShippedYet: {bucket: BucketProcessing, label: "Pas encore expédié", color: ColorWarning},
	StatusNotPickedUp:   {bucket: BucketProcessing, label: "Pas encore ramassé", color: ColorWarning},
	StatusReadyToShip:   {bucket: BucketProcessing, label: "Prêt à expédier", color: ColorProcessing},

	StatusPickedUp:      {bucket: BucketShipped, label: "Ramassé", color: ColorTransit},
	StatusBlocked:       {bucket: BucketShipped, label: "Bloqué", color: ColorBlocked, excludeRevenue: true},
	StatusUnblocked:     {bucket: BucketShipped, label: "Débloqué", color: ColorTransit},
	StatusTransfer:      {bucket: BucketShipped, label: "Transfert", color: ColorTransit},
	StatusShipped:       {bucket: BucketShipped, label: "Expédié", color: ColorTransit},
	StatusAtCenter:      {bucket: BucketShipped, label: "Au centre", color: ColorTransit},
	StatusLocating:      {bucket: BucketShipped, label: "En localisation", color: ColorTransit},
	StatusTowardRegion:  {bucket: BucketShipped, label: "Vers wilaya", color: ColorTransit},
	StatusAtRegion:      {bucket: BucketShipped, label: "Reçu à wilaya", color: ColorTransit},
	StatusAwaitClient:   {bucket: BucketShipped, label: "En attente du client", color: ColorAttention},
	StatusReadyCourier:  {bucket: BucketShipped, label: "Prêt pour livreur", color: ColorDelivery},
	StatusOutForDeliv:   {bucket: BucketShipped, label: "Sorti en livraison", color: ColorDelivery},
	StatusOnHold:        {bucket: BucketShipped, label: "En attente", color: ColorWarning},
	StatusAlert:         {bucket: BucketShipped, label: "En alerte", color: ColorAttention},
	StatusAttemptFailed: {bucket: BucketShipped, label: "Tentative échouée", color: ColorError},

	StatusDelivered: {bucket: BucketDelivered, label: "Livré", color: ColorSuccess},

	StatusDeliveryFail:  {bucket: BucketReturned, label: "Échec de livraison", color: ColorError, excludeRevenue: true},
	StatusReturnToHub:   {bucket: BucketReturned, label: "Retour vers centre", color: ColorReturned, excludeRevenue: true},
	StatusReturnedHub:   {bucket: BucketReturned, label: "Retourné au centre", color: ColorReturned, excludeRevenue: true},
	StatusReturnMoving:  {bucket: BucketReturned, label: "Retour transfert", color: ColorReturned, excludeRevenue: true},
	StatusReturnGrouped: {bucket: BucketReturned, label: "Retour groupé", color: ColorReturned, excludeRevenue: true},
	StatusReturnHeld:    {bucket: BucketReturned, label: "Retour à retirer", color: ColorReturned, excludeRevenue: true},
	StatusReturnToShop:  {bucket: BucketReturned, label: "Retour vers vendeur", color: ColorReturned, excludeRevenue: true},
	StatusReturnedShop:  {bucket: BucketReturned, label: "Retourné au vendeur", color: ColorReturned, excludeRevenue: true},
	StatusExchangeFail:  {bucket: BucketReturned, label: "Échange échoué", color: ColorError, excludeRevenue: true},
}

// Statuses returns the full known vocabulary. The slice is rebuilt on each
// call so callers may not mutate shared state.
func Statuses() []OrderStatus {
	out := make([]OrderStatus, 0, len(statusTable))
	for status := range statusTable {
		out = append(out, status)
	}
	return out
}

// KnownStatus reports whether the status belongs to the known vocabulary.
func KnownStatus(status OrderStatus) bool {
	_, ok := statusTable[status]
	return ok
}

// BucketOf classifies a raw status string. The mapping is total: statuses
// outside the vocabulary land in BucketUnclassified rather than silently
// joining pending.
func BucketOf(status OrderStatus) StatusBucket {
	entry, ok := statusTable[status]
	if !ok {
		return BucketUnclassified
	}
	return entry.bucket
}

// BadgeOf builds the display badge for a status. Unknown statuses fall back
// to a neutral badge carrying the raw value so the UI never renders blank.
func BadgeOf(status OrderStatus, reason string) Badge {
	tooltip := strings.TrimSpace(reason)
	if tooltip == "" {
		tooltip = defaultBadgeTooltip
	}
	entry, ok := statusTable[status]
	if !ok {
		return Badge{Label: string(status), Color: ColorDefault, Tooltip: tooltip}
	}
	return Badge{Label: entry.label, Color: entry.color, Tooltip: tooltip}
}

// ExcludedFromRevenue reports whether the status represents a failed,
// returned, or blocked outcome whose order total must not count as revenue.
func ExcludedFromRevenue(status OrderStatus) bool {
	entry, ok := statusTable[status]
	return ok && entry.excludeRevenue
}

// OrderStats aggregates bucket counts over a set of orders.
type OrderStats struct {
	Total        int
	Counts       map[StatusBucket]int
	TotalRevenue int64
}

// Aggregate derives dashboard statistics. Every order counts toward Total;
// only revenue-excluded statuses are left out of TotalRevenue, and
// unclassified statuses contribute to no counted bucket.
func Aggregate(orders []Order) OrderStats {
	stats := OrderStats{Counts: make(map[StatusBucket]int, 8)}
	for _, order := range orders {
		stats.Total++
		if bucket := BucketOf(order.Status); bucket != BucketUnclassified {
			stats.Counts[bucket]++
		}
		if !ExcludedFromRevenue(order.Status) {
			stats.TotalRevenue += order.Total
		}
	}
	return stats
}
