package model

// Account is a ledger account as reported by the budgeting service.
type Account struct {
	ID      string
	Name    string
	Deleted bool
	Closed  bool
}

// Category is a ledger budget category, flattened out of its group.
type Category struct {
	ID        string
	Name      string
	GroupName string
	Deleted   bool
	Hidden    bool
}

// Payee is a ledger payee. TransferAccountID is set when the payee is the
// transfer placeholder for another account rather than a real counterparty.
type Payee struct {
	ID                string
	Name              string
	TransferAccountID string
	Deleted           bool
}
