package audithook

// Action constants for audit events.
const (
	// Identity actions
	ActionUserCreated = "user.created"

	// Order actions
	ActionOrderCreated   = "order.created"
	ActionOrderPaid      = "order.paid"
	ActionOrderFulfilled = "order.fulfilled"

	// Purchase actions
	ActionPurchaseRecorded = "purchase.recorded"

	// Payment actions
	ActionPaymentCreated        = "payment.created"
	ActionPaymentObserved       = "payment.observed"
	ActionPaymentAlreadyHandled = "payment.already_handled"
	ActionGatewayError          = "gateway.error"

	// Webhook actions
	ActionWebhookReceived = "webhook.received"

	// Sweep actions
	ActionSweepCompleted = "sweep.completed"
)

// Resource constants for audit events.
const (
	ResourceUser     = "user"
	ResourceOrder    = "order"
	ResourcePurchase = "purchase"
	ResourcePayment  = "payment"
	ResourceGateway  = "gateway"
	ResourceWebhook  = "webhook"
	ResourceSweep    = "sweep"
)

// Category constants for audit events.
const (
	CategoryIdentity    = "identity"
	CategoryOrder       = "order"
	CategoryPayment     = "payment"
	CategoryAccess      = "access"
	CategoryIntegration = "integration"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
