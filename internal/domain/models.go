package domain

import "time"

type Item struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PricePaise int64  `json:"price_paise"`
	Category   string `json:"category"`
	Stock      int    `json:"stock"`
	Image      string `json:"image,omitempty"`
}

type ItemCreateRequest struct {
	TerminalID string `json:"terminal_id"`
	Name       string `json:"name"`
	Price      string `json:"price"`
	Category   string `json:"category"`
	Stock      int    `json:"stock"`
	Image      string `json:"image"`
	AddToCart  bool   `json:"add_to_cart"`
}

type QuickAddResponse struct {
	Item  Item           `json:"item"`
	Draft *DraftResponse `json:"draft,omitempty"`
}

// CartLine is a snapshot of an item taken when it was added to the cart.
type CartLine struct {
	ItemID     string `json:"item_id"`
	Name       string `json:"name"`
	PricePaise int64  `json:"price_paise"`
	Category   string `json:"category"`
	StockAtAdd int    `json:"stock_at_add"`
	Qty        int    `json:"qty"`
	Note       string `json:"note,omitempty"`
}

type Cart struct {
	Lines []CartLine `json:"lines"`
}

type CustomerInput struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Note  string `json:"note"`
}

type PaymentInput struct {
	Method  string `json:"method"`
	Advance string `json:"advance"`
}

type DeliverySchedule struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// Draft is the operator's uncommitted working state for one terminal.
type Draft struct {
	TerminalID string            `json:"terminal_id"`
	Mode       string            `json:"mode"`
	Handover   string            `json:"handover"`
	Cart       Cart              `json:"cart"`
	Customer   CustomerInput     `json:"customer"`
	Payment    PaymentInput      `json:"payment"`
	Delivery   *DeliverySchedule `json:"delivery,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

type DraftResponse struct {
	Draft             Draft           `json:"draft"`
	TotalPaise        int64           `json:"total_paise"`
	BalanceDuePaise   int64           `json:"balance_due_paise"`
	ReturningCustomer *CustomerRecord `json:"returning_customer,omitempty"`
}

type CartAddRequest struct {
	TerminalID string `json:"terminal_id"`
	ItemID     string `json:"item_id"`
}

type CartQtyRequest struct {
	TerminalID string `json:"terminal_id"`
	Delta      int    `json:"delta"`
}

type CartNoteRequest struct {
	TerminalID string `json:"terminal_id"`
	Note       string `json:"note"`
}

type DraftDetailsRequest struct {
	TerminalID string            `json:"terminal_id"`
	Mode       *string           `json:"mode,omitempty"`
	Handover   *string           `json:"handover,omitempty"`
	Customer   *CustomerInput    `json:"customer,omitempty"`
	Payment    *PaymentInput     `json:"payment,omitempty"`
	Delivery   *DeliverySchedule `json:"delivery,omitempty"`
}

type TransactionLine struct {
	ItemID         string `json:"item_id"`
	Name           string `json:"name"`
	UnitPricePaise int64  `json:"unit_price_paise"`
	Qty            int    `json:"qty"`
	Category       string `json:"category"`
	Note           string `json:"note,omitempty"`
}

type CustomerRef struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Note  string `json:"note,omitempty"`
}

type Payment struct {
	Method        string     `json:"method"`
	AdvancePaise  int64      `json:"advance_paise"`
	BalancePaise  int64      `json:"balance_paise"`
	Status        string     `json:"status"`
	BalanceMethod string     `json:"balance_method,omitempty"`
	BalancePaidAt *time.Time `json:"balance_paid_at,omitempty"`
}

// Transaction is the record of a commercial event. Items and TotalValuePaise
// never change after creation.
type Transaction struct {
	ID              string            `json:"id"`
	Kind            string            `json:"kind"`
	CreatedAt       time.Time         `json:"created_at"`
	Items           []TransactionLine `json:"items"`
	TotalValuePaise int64             `json:"total_value_paise"`
	AmountPaise     int64             `json:"amount_paise"`
	Description     string            `json:"description"`
	Customer        *CustomerRef      `json:"customer,omitempty"`
	Delivery        *DeliverySchedule `json:"delivery,omitempty"`
	Payment         Payment           `json:"payment"`
	Status          string            `json:"status"`
	OrderRef        string            `json:"order_ref,omitempty"`
	TerminalID      string            `json:"terminal_id,omitempty"`
	CreatedBy       string            `json:"created_by,omitempty"`
}

type CustomerRecord struct {
	Phone           string    `json:"phone"`
	Name            string    `json:"name"`
	VisitCount      int       `json:"visit_count"`
	TotalSpentPaise int64     `json:"total_spent_paise"`
	LastVisit       time.Time `json:"last_visit"`
	LastNote        string    `json:"last_note,omitempty"`
}

type CheckoutRequest struct {
	TerminalID  string `json:"terminal_id"`
	ShouldPrint bool   `json:"should_print"`
}

type CheckoutResponse struct {
	State        string       `json:"state"`
	Transaction  *Transaction `json:"transaction,omitempty"`
	DocumentType string       `json:"document_type,omitempty"`
	Printing     bool         `json:"printing"`
	Celebration  *Celebration `json:"celebration,omitempty"`
}

type DeliveryRequest struct {
	Method string `json:"method"`
}

type SettlementResponse struct {
	Outcome    string       `json:"outcome"`
	FailedStep string       `json:"failed_step,omitempty"`
	Order      *Transaction `json:"order,omitempty"`
	Settlement *Transaction `json:"settlement,omitempty"`
}

type OrderListResponse struct {
	Orders []Transaction `json:"orders"`
}

type ExpenseRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Method      string `json:"method"`
}

type InvoiceResponse struct {
	DocumentType string      `json:"document_type"`
	ShopName     string      `json:"shop_name"`
	Transaction  Transaction `json:"transaction"`
}

type PurgeRequest struct {
	From       string `json:"from"`
	To         string `json:"to"`
	ManagerPIN string `json:"manager_pin"`
}

type PurgeResponse struct {
	Deleted int    `json:"deleted"`
	From    string `json:"from"`
	To      string `json:"to"`
}

type MilestoneState struct {
	TrackingStartedAt time.Time `json:"tracking_started_at"`
	Celebrated        []int64   `json:"celebrated"`
}

type Celebration struct {
	ThresholdPaise int64 `json:"threshold_paise"`
	DaysTaken      int   `json:"days_taken"`
	TotalPaise     int64 `json:"total_paise"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken  string   `json:"access_token"`
	Role         string   `json:"role"`
	Capabilities []string `json:"capabilities"`
	ExpiresAt    string   `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// CanCheckout reports whether the operator may record transactions.
func (a Actor) CanCheckout() bool {
	return a.Role == RoleAdmin || a.Role == RoleStaff
}

// CanDeleteBulk reports whether the operator may purge transaction history.
func (a Actor) CanDeleteBulk() bool {
	return a.Role == RoleAdmin
}

// Capabilities lists what the operator may do so clients can hide the
// controls that would be refused.
func (a Actor) Capabilities() []string {
	caps := []string{CapabilityBrowse}
	if a.CanCheckout() {
		caps = append(caps, CapabilityCheckout)
	}
	if a.CanDeleteBulk() {
		caps = append(caps, CapabilityPurge)
	}
	return caps
}

func IsKnownRole(role string) bool {
	return role == RoleAdmin || role == RoleStaff || role == RoleGuest
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	KindSale       = "sale"
	KindOrder      = "order"
	KindSettlement = "settlement"
	KindExpense    = "expense"
)

const (
	ModeSale  = "sale"
	ModeOrder = "order"
)

const (
	HandoverNow   = "now"
	HandoverLater = "later"
)

const (
	TxStatusCompleted = "completed"
	TxStatusPending   = "pending"
	TxStatusReady     = "ready"
)

const (
	PaymentStatusPaid    = "paid"
	PaymentStatusPartial = "partial"
)

const (
	PaymentMethodCash = "cash"
	PaymentMethodUPI  = "upi"
)

const (
	DocTaxInvoice   = "TAX_INVOICE"
	DocOrderBooking = "ORDER_BOOKING"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
	RoleGuest = "guest"

	CapabilityBrowse   = "browse"
	CapabilityCheckout = "checkout"
	CapabilityPurge    = "purge"
)

// IsOpenOrder reports whether an order still awaits handover.
func IsOpenOrder(tx Transaction) bool {
	return tx.Kind == KindOrder && (tx.Status == TxStatusPending || tx.Status == TxStatusReady)
}

// DocumentType picks the receipt flavour for a transaction: a booking slip
// while an order is open, a tax invoice otherwise.
func DocumentType(tx Transaction) string {
	if IsOpenOrder(tx) {
		return DocOrderBooking
	}
	return DocTaxInvoice
}

// IsRevenue reports whether the transaction's amount counts towards completed takings.
func IsRevenue(tx Transaction) bool {
	if tx.Status != TxStatusCompleted {
		return false
	}
	switch tx.Kind {
	case KindSale, KindOrder, KindSettlement:
		return true
	default:
		return false
	}
}
