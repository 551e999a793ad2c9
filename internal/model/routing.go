package model

// RouteSource records which tier of the routing policy resolved the account.
type RouteSource string

// Routing provenance constants.
const (
	RouteEndingHint       RouteSource = "ending-hint"
	RouteSenderMapping    RouteSource = "sender-mapping"
	RouteFallbackExisting RouteSource = "fallback-existing"
	RouteFallbackCreated  RouteSource = "fallback-created"
	RouteFailed           RouteSource = "failed"
)

// RoutingDecision is the resolved destination account for one message.
// Computed fresh per message, never cached, because ending hints are
// per-message.
type RoutingDecision struct {
	AccountID   string      `json:"account_id,omitempty"`
	AccountName string      `json:"account_name,omitempty"`
	Source      RouteSource `json:"source"`
}
