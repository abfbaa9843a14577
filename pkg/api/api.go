// Package api defines the request and response messages of the utilipay
// RPC services. Amounts are decimal strings with two places; times are
// RFC 3339 strings.
package api

type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User *User `json:"user"`
}

// BankInfo describes the bank account linked to a utility account.
type BankInfo struct {
	AccountID       string `json:"accountId,omitempty"`
	InstitutionName string `json:"institutionName"`
	Mask            string `json:"mask"`
	LinkedAt        string `json:"linkedAt,omitempty"`
}

type Account struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	MeterNumber     string    `json:"meterNumber"`
	Address         string    `json:"address,omitempty"`
	Bank            *BankInfo `json:"bank,omitempty"`
	OpenBills       int       `json:"openBills"`
	TotalDue        string    `json:"totalDue"`
	FirstOpenBillID string    `json:"firstOpenBillId,omitempty"`
}

type Bill struct {
	ID            string `json:"id"`
	AccountID     string `json:"accountId"`
	AccountType   string `json:"accountType"`
	Description   string `json:"description"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	IssuedDate    string `json:"issuedDate,omitempty"`
	DueDate       string `json:"dueDate"`
	SettlementRef string `json:"settlementRef,omitempty"`
}

type UsagePoint struct {
	AccountID   string  `json:"accountId"`
	AccountType string  `json:"accountType"`
	Date        string  `json:"date"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
}

type CreateLinkTokenRequest struct{}

type CreateLinkTokenResponse struct {
	LinkToken string `json:"linkToken"`
}

type ExchangePublicTokenRequest struct {
	PublicToken string `json:"publicToken"`
	// AccountID selects the utility account to link; defaults to the user's first.
	AccountID string `json:"accountId,omitempty"`
}

type ExchangePublicTokenResponse struct {
	AccountID string    `json:"accountId"`
	Bank      *BankInfo `json:"bank"`
}

type PayBillRequest struct {
	BillID string `json:"billId"`
	// PaymentMethod is SAVED_INSTRUMENT or LINKED_BANK (default).
	PaymentMethod string `json:"paymentMethod,omitempty"`
}

type PayBillResponse struct {
	BillID              string `json:"billId"`
	TransactionID       string `json:"transactionId"`
	SettlementReference string `json:"settlementReference"`
	Amount              string `json:"amount"`
	PaymentMethod       string `json:"paymentMethod"`
	SettledAt           string `json:"settledAt"`
}

type GetDashboardRequest struct{}

type GetDashboardResponse struct {
	Accounts    []*Account    `json:"accounts"`
	TotalDue    string        `json:"totalDue"`
	RecentUsage []*UsagePoint `json:"recentUsage"`
}

type GetBillingDataRequest struct{}

type GetBillingDataResponse struct {
	OpenBills     []*Bill   `json:"openBills"`
	TotalDue      string    `json:"totalDue"`
	ConnectedBank *BankInfo `json:"connectedBank,omitempty"`
}

// HistoryEntry is either a bill ("bill") or a payment against it ("payment").
type HistoryEntry struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Date          string `json:"date"`
	ServiceType   string `json:"serviceType"`
	Description   string `json:"description"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
	SettlementRef string `json:"settlementRef,omitempty"`
}

type GetPaymentHistoryRequest struct{}

type GetPaymentHistoryResponse struct {
	Entries []*HistoryEntry `json:"entries"`
}

type GetReceiptRequest struct {
	TransactionID string `json:"transactionId"`
}

// Document is a rendered file.
type Document struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

type GetReceiptResponse struct {
	Document *Document `json:"document"`
}

type ExportHistoryRequest struct{}

type ExportHistoryResponse struct {
	Document *Document `json:"document"`
}

type ExplainSettlementRequest struct {
	TransactionID string `json:"transactionId"`
}

type ExplainSettlementResponse struct {
	SettlementReference string `json:"settlementReference"`
	Explanation         string `json:"explanation"`
}

type AuditUsageRequest struct {
	// AccountID limits the audit to one account; empty audits all of them.
	AccountID string `json:"accountId,omitempty"`
}

type AuditUsageResponse struct {
	Analysis        string `json:"analysis"`
	UsageDataPoints int    `json:"usageDataPoints"`
}
