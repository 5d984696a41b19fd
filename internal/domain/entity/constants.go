package entity

// Role is an organizational role from the closed user directory set
type Role string

const (
	RoleSuperAdmin        Role = "SUPER_ADMIN"
	RoleCEO               Role = "CEO"
	RoleCFO               Role = "CFO"
	RoleFinanceDirector   Role = "FINANCE_DIRECTOR"
	RoleOperationsManager Role = "OPERATIONS_MANAGER"
	RoleStationManager    Role = "STATION_MANAGER"
	RoleAccountant        Role = "ACCOUNTANT"
	RoleLogistics         Role = "LOGISTICS"
	RoleShiftSupervisor   Role = "SHIFT_SUPERVISOR"
	RolePumpAttendant     Role = "PUMP_ATTENDANT"
)

// Pseudo roles used only as tier slots in an approval chain
const (
	RoleLineManager Role = "LINE_MANAGER"
	RoleAnyApprover Role = "ANY_APPROVER"
)

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// RequestType tags which entity an approvable request is
type RequestType string

const (
	RequestTypeInvoice RequestType = "INVOICE"
	RequestTypeExpense RequestType = "EXPENSE"
	RequestTypePrice   RequestType = "PRICE"
)

// IsValid returns true for the three approvable entity kinds
func (t RequestType) IsValid() bool {
	switch t {
	case RequestTypeInvoice, RequestTypeExpense, RequestTypePrice:
		return true
	default:
		return false
	}
}

// String returns the string representation of the request type
func (t RequestType) String() string {
	return string(t)
}

// Action is the decision recorded in an approval step
type Action string

const (
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
)

// Status labels persisted on request rows
const (
	StatusSubmitted = "SUBMITTED"
	StatusApproved  = "APPROVED"
	StatusRejected  = "REJECTED"
	StatusPaid      = "PAID"
	StatusDisbursed = "DISBURSED"
	StatusActive    = "ACTIVE"
	StatusArchived  = "ARCHIVED"

	// StatusPendingPrefix is followed by the role of the tier being waited on
	StatusPendingPrefix = "PENDING_"
)

// DisbursementMethod is how an approved expense is paid out
type DisbursementMethod string

const (
	DisbursementPettyCash    DisbursementMethod = "PETTY_CASH"
	DisbursementBankTransfer DisbursementMethod = "BANK_TRANSFER"
)

// IsValid returns true for supported disbursement methods
func (m DisbursementMethod) IsValid() bool {
	return m == DisbursementPettyCash || m == DisbursementBankTransfer
}

// FuelType identifies a product sold at the pumps
type FuelType string

const (
	FuelSuper   FuelType = "SUPER"
	FuelGasoil  FuelType = "GASOIL"
	FuelPetrole FuelType = "PETROLE"
)

// IsValid returns true for known fuel types
func (f FuelType) IsValid() bool {
	switch f {
	case FuelSuper, FuelGasoil, FuelPetrole:
		return true
	default:
		return false
	}
}
