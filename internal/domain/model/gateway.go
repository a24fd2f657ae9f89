package model

// Gateway names. These are the only values accepted by webhook routing and
// stored in gateway columns.
const (
	GatewayStripe      = "stripe"
	GatewayPayPal      = "paypal"
	GatewayRazorpay    = "razorpay"
	GatewayPaystack    = "paystack"
	GatewayMercadoPago = "mercadopago"
)

// KnownGateways lists every supported gateway in routing order.
var KnownGateways = []string{
	GatewayStripe, GatewayPayPal, GatewayRazorpay, GatewayPaystack, GatewayMercadoPago,
}

// CanonicalStatus is the fixed status vocabulary every gateway adapter maps
// its native status strings into before the reconciler sees them.
type CanonicalStatus string

const (
	CanonicalStatusActive    CanonicalStatus = "active"
	CanonicalStatusPastDue   CanonicalStatus = "past_due"
	CanonicalStatusCancelled CanonicalStatus = "cancelled"
	CanonicalStatusExpired   CanonicalStatus = "expired"
	CanonicalStatusPending   CanonicalStatus = "pending"
	CanonicalStatusUnknown   CanonicalStatus = "unknown"
)

type EventKind string

const (
	EventKindCreditPurchase     EventKind = "credit_purchase"
	EventKindSubscriptionCharge EventKind = "subscription_charge"
	EventKindRefund             EventKind = "refund"
	EventKindChargeback         EventKind = "chargeback"
	EventKindSubscriptionStatus EventKind = "subscription_status"
	EventKindIgnored            EventKind = "ignored"
)

// CanonicalEvent is the gateway-independent shape every adapter parses its
// raw webhook body into. Only the fields relevant to the event kind are set.
type CanonicalEvent struct {
	Gateway   string
	EventID   string
	Kind      EventKind
	RawType   string // provider-native event type, kept for logging
	UserID    string

	GatewayTransactionID  string
	GatewayRefundID       string
	GatewaySubscriptionID string

	PlanID          string
	CreditPackageID string
	Credits         int64
	Amount          int64 // minor units
	Currency        string

	Status        CanonicalStatus
	BillingPeriod BillingPeriod
}
