package audithook

// Action constants for audit events.
const (
	// Identity actions
	ActionIdentityCreated    = "identity.created"
	ActionCustomerRegistered = "customer.registered"

	// Referral actions
	ActionReferralRecorded = "referral.recorded"

	// Point actions
	ActionPointsEarned     = "points.earned"
	ActionPointsRedeemed   = "points.redeemed"
	ActionRedemptionDenied = "redemption.denied"
	ActionRewardGranted    = "reward.granted"
)

// Resource constants for audit events.
const (
	ResourceIdentity    = "identity"
	ResourceCustomer    = "customer"
	ResourceReferral    = "referral"
	ResourcePoints      = "points"
	ResourceReward      = "reward"
	ResourceTransaction = "transaction"
)

// Category constants for audit events.
const (
	CategoryEnrollment = "enrollment"
	CategoryReferral   = "referral"
	CategoryLedger     = "ledger"
	CategoryReward     = "reward"
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
