package usage

import "time"

// #region plans
// Unlimited marks a plan without a credit ceiling.
const Unlimited = -1

// DefaultPlanLimits are the per-user generation credits for each plan.
func DefaultPlanLimits() map[string]int {
	return map[string]int{
		"starter_trial": 10,
		"starter":       50,
		"pro":           1000,
		"plus":          5000,
		"custom":        Unlimited,
	}
}

// DefaultMonthlyLimit applies to organizations with no explicit limit.
const DefaultMonthlyLimit = 100

// Operation types recorded in usage_records.
const (
	OpGenerateReply   = "generate_reply"
	OpRegeneration    = "regeneration"
	OpAnalyzeToxicity = "analyze_toxicity"
	OpPostResponse    = "post_response"
	OpReview          = "rqc_review"
)

// operationCosts in cents per unit.
var operationCosts = map[string]int{
	OpGenerateReply:   5,
	OpRegeneration:    5,
	OpAnalyzeToxicity: 1,
	OpPostResponse:    0,
	OpReview:          1,
}

// billable operations count against the organization's monthly limit.
func billable(op string) bool {
	return op == OpGenerateReply || op == OpRegeneration
}

// #endregion plans

// #region results
// ConsumeResult reports the outcome of one credit consumption.
type ConsumeResult struct {
	Success   bool   `json:"success"`
	Remaining int    `json:"remaining"` // Unlimited for unlimited plans
	Limit     int    `json:"limit"`
	Used      int    `json:"used"`
	Error     string `json:"error,omitempty"`
}

// Decision is the answer to CanPerformOperation.
type Decision struct {
	Allowed      bool   `json:"allowed"`
	Reason       string `json:"reason,omitempty"`
	Message      string `json:"message,omitempty"`
	CurrentUsage int    `json:"current_usage"`
	Limit        int    `json:"limit"`
}

// #endregion results

// #region record
// Record is one usage_records row.
type Record struct {
	ID             string
	OrganizationID string
	Platform       string
	OperationType  string
	Quantity       int
	TokensUsed     int
	CostCents      int
	ActorID        string
	Metadata       map[string]any
	CreatedAt      time.Time
}

// #endregion record
