package domain

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrLoanNotFound         = errors.New("loan not found")
	ErrLoanAmountInvalid    = errors.New("loan amount must be positive")
	ErrLoanPurposeRequired  = errors.New("loan purpose is required")
	ErrLoanTermInvalid      = errors.New("loan term must be at least 1 month")
	ErrLoanRateInvalid      = errors.New("interest rate must be between 0 and 100")
	ErrActiveLoanExists     = errors.New("borrower already has an active loan in this chama")
	ErrLoanStateInvalid     = errors.New("operation not allowed for current loan status")
	ErrPaymentAmountInvalid = errors.New("payment amount must be positive")
)

// LoanStatus is the lifecycle state of a loan
type LoanStatus string

const (
	LoanStatusPending   LoanStatus = "pending"
	LoanStatusApproved  LoanStatus = "approved"
	LoanStatusRejected  LoanStatus = "rejected"
	LoanStatusPaid      LoanStatus = "paid"
	LoanStatusOverdue   LoanStatus = "overdue"
	LoanStatusDefaulted LoanStatus = "defaulted"
)

// IsTerminal reports whether no further transitions leave this status
func (s LoanStatus) IsTerminal() bool {
	return s == LoanStatusPaid || s == LoanStatusRejected || s == LoanStatusDefaulted
}

// InstallmentStatus is the state of a single scheduled repayment
type InstallmentStatus string

const (
	InstallmentStatusPending       InstallmentStatus = "pending"
	InstallmentStatusPartiallyPaid InstallmentStatus = "partially_paid"
	InstallmentStatusPaid          InstallmentStatus = "paid"
	InstallmentStatusOverdue       InstallmentStatus = "overdue"
)

// DefaultTermMonths is the repayment term used when approval does not specify one
const DefaultTermMonths = 6

var (
	monthsPerYear = decimal.NewFromInt(12)
	oneHundred    = decimal.NewFromInt(100)
)

// Installment is one scheduled partial repayment of a loan. Installments are
// treated as values: payment allocation produces a new schedule slice instead
// of mutating entries in place.
type Installment struct {
	Amount      decimal.Decimal   `json:"amount" bson:"amount"`
	DueDate     time.Time         `json:"dueDate" bson:"dueDate"`
	Status      InstallmentStatus `json:"status" bson:"status"`
	AmountPaid  decimal.Decimal   `json:"amountPaid" bson:"amountPaid"`
	PaymentDate *time.Time        `json:"paymentDate,omitempty" bson:"paymentDate,omitempty"`
}

// Remaining returns the amount still owed against this installment
func (i Installment) Remaining() decimal.Decimal {
	return i.Amount.Sub(i.AmountPaid)
}

// IsSettled reports whether the installment is fully covered
func (i Installment) IsSettled() bool {
	return i.Status == InstallmentStatusPaid
}

// PaymentRecord is one entry in a loan's append-only payment history
type PaymentRecord struct {
	Amount     decimal.Decimal    `json:"amount" bson:"amount"`
	Date       time.Time          `json:"date" bson:"date"`
	Method     string             `json:"method" bson:"method"`
	Reference  string             `json:"reference" bson:"reference"`
	RecordedBy primitive.ObjectID `json:"recordedBy" bson:"recordedBy"`
	Notes      string             `json:"notes,omitempty" bson:"notes,omitempty"`
	ReceiptKey *string            `json:"receiptKey,omitempty" bson:"receiptKey,omitempty"`
}

// Loan is the ledger's central entity. All state transitions go through its
// methods; callers persist the result atomically.
type Loan struct {
	ID             primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	ChamaID        primitive.ObjectID   `json:"chamaId" bson:"chamaId"`
	BorrowerID     primitive.ObjectID   `json:"borrowerId" bson:"borrowerId"`
	GuarantorIDs   []primitive.ObjectID `json:"guarantorIds,omitempty" bson:"guarantorIds,omitempty"`
	Principal      decimal.Decimal      `json:"principal" bson:"principal"`
	Purpose        string               `json:"purpose" bson:"purpose"`
	InterestRate   decimal.Decimal      `json:"interestRate" bson:"interestRate"`
	InterestAmount decimal.Decimal      `json:"interestAmount" bson:"interestAmount"`
	TotalRepayment decimal.Decimal      `json:"totalRepaymentAmount" bson:"totalRepaymentAmount"`
	Status         LoanStatus           `json:"status" bson:"status"`
	ApprovedBy     *primitive.ObjectID  `json:"approvedBy,omitempty" bson:"approvedBy,omitempty"`
	ApprovalDate   *time.Time           `json:"approvalDate,omitempty" bson:"approvalDate,omitempty"`
	Schedule       []Installment        `json:"repaymentSchedule" bson:"repaymentSchedule"`
	Payments       []PaymentRecord      `json:"paymentHistory" bson:"paymentHistory"`
	ClosedAt       *time.Time           `json:"closedAt,omitempty" bson:"closedAt,omitempty"`
	DefaultDate    *time.Time           `json:"defaultDate,omitempty" bson:"defaultDate,omitempty"`
	OverdueSince   *time.Time           `json:"overdueSince,omitempty" bson:"overdueSince,omitempty"`
	CreatedAt      time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt" bson:"updatedAt"`
	Version        int64                `json:"-" bson:"version"`
}

// Validate checks the creation-time invariants of a loan request
func (l *Loan) Validate() error {
	if l.Principal.LessThanOrEqual(decimal.Zero) {
		return ErrLoanAmountInvalid
	}
	if l.Purpose == "" {
		return ErrLoanPurposeRequired
	}
	if l.InterestRate.IsNegative() || l.InterestRate.GreaterThan(oneHundred) {
		return ErrLoanRateInvalid
	}
	return nil
}

// IsActive reports whether the loan counts against the one-active-loan rule
func (l *Loan) IsActive() bool {
	return l.Status == LoanStatusPending || l.Status == LoanStatusApproved
}

// Approve transitions a pending loan to approved, computes interest and, if no
// schedule exists yet, generates termMonths equal installments due at
// now+1..termMonths months.
//
// Interest follows a flat monthly rate: monthlyRate = interestRate/12/100,
// interestAmount = principal * monthlyRate * termMonths.
func (l *Loan) Approve(approverID primitive.ObjectID, termMonths int, now time.Time) error {
	if l.Status != LoanStatusPending {
		return ErrLoanStateInvalid
	}
	if termMonths < 1 {
		return ErrLoanTermInvalid
	}

	if l.InterestRate.GreaterThan(decimal.Zero) {
		monthlyRate := l.InterestRate.Div(monthsPerYear).Div(oneHundred)
		l.InterestAmount = l.Principal.Mul(monthlyRate).Mul(decimal.NewFromInt(int64(termMonths))).Round(2)
	} else {
		l.InterestAmount = decimal.Zero
	}
	l.TotalRepayment = l.Principal.Add(l.InterestAmount)

	l.Status = LoanStatusApproved
	l.ApprovedBy = &approverID
	l.ApprovalDate = &now

	if len(l.Schedule) == 0 {
		l.Schedule = GenerateSchedule(l.TotalRepayment, termMonths, now)
	}
	return nil
}

// Reject transitions a pending loan to the terminal rejected status
func (l *Loan) Reject() error {
	if l.Status != LoanStatusPending {
		return ErrLoanStateInvalid
	}
	l.Status = LoanStatusRejected
	return nil
}

// GenerateSchedule splits total into termMonths installments due on successive
// months after start. Amounts are rounded to cents; the final installment
// absorbs the rounding remainder so the schedule sums exactly to total.
func GenerateSchedule(total decimal.Decimal, termMonths int, start time.Time) []Installment {
	if termMonths < 1 {
		return nil
	}
	per := total.Div(decimal.NewFromInt(int64(termMonths))).Round(2)
	schedule := make([]Installment, termMonths)
	for i := 0; i < termMonths; i++ {
		amount := per
		if i == termMonths-1 {
			amount = total.Sub(per.Mul(decimal.NewFromInt(int64(termMonths - 1))))
		}
		schedule[i] = Installment{
			Amount:     amount,
			DueDate:    start.AddDate(0, i+1, 0),
			Status:     InstallmentStatusPending,
			AmountPaid: decimal.Zero,
		}
	}
	return schedule
}

// ApplyPayment appends the record to the payment history, allocates the amount
// greedily across unpaid installments in due-date order, and recomputes the
// loan-level status. Payments are only accepted on approved or overdue loans.
func (l *Loan) ApplyPayment(record PaymentRecord, now time.Time) error {
	if record.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrPaymentAmountInvalid
	}
	if l.Status != LoanStatusApproved && l.Status != LoanStatusOverdue {
		return ErrLoanStateInvalid
	}

	l.Payments = append(l.Payments, record)
	l.Schedule = allocate(l.Schedule, record.Amount, now)
	l.recomputeStatus(now)
	return nil
}

// allocate walks the schedule in due-date order and applies amount to each
// unpaid installment until the pool is exhausted. The input slice is not
// modified; a new schedule is returned.
func allocate(schedule []Installment, amount decimal.Decimal, now time.Time) []Installment {
	next := make([]Installment, len(schedule))
	copy(next, schedule)
	sort.SliceStable(next, func(i, j int) bool {
		return next[i].DueDate.Before(next[j].DueDate)
	})

	remaining := amount
	for i := range next {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		if next[i].IsSettled() {
			continue
		}
		applied := decimal.Min(remaining, next[i].Remaining())
		next[i].AmountPaid = next[i].AmountPaid.Add(applied)
		if next[i].AmountPaid.GreaterThanOrEqual(next[i].Amount) {
			next[i].Status = InstallmentStatusPaid
			paidAt := now
			next[i].PaymentDate = &paidAt
		} else if applied.GreaterThan(decimal.Zero) {
			next[i].Status = InstallmentStatusPartiallyPaid
		}
		remaining = remaining.Sub(applied)
	}
	return next
}

// recomputeStatus derives the loan-level status from the payment history and
// schedule: fully paid wins, then overdue, otherwise the loan stays approved.
func (l *Loan) recomputeStatus(now time.Time) {
	if l.TotalPaid().GreaterThanOrEqual(l.TotalRepayment) {
		l.Status = LoanStatusPaid
		if l.ClosedAt == nil {
			closed := now
			l.ClosedAt = &closed
		}
		return
	}

	if due, ok := l.earliestLapsedDue(now); ok {
		l.Status = LoanStatusOverdue
		if l.OverdueSince == nil {
			since := due
			l.OverdueSince = &since
		}
		l.flagLapsedInstallments(now)
		return
	}

	l.Status = LoanStatusApproved
}

// earliestLapsedDue returns the due date of the earliest unpaid installment
// whose due date has passed
func (l *Loan) earliestLapsedDue(now time.Time) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, inst := range l.Schedule {
		if inst.IsSettled() || !inst.DueDate.Before(now) {
			continue
		}
		if !found || inst.DueDate.Before(earliest) {
			earliest = inst.DueDate
			found = true
		}
	}
	return earliest, found
}

// flagLapsedInstallments marks unpaid installments with a lapsed due date as
// overdue, producing a new schedule slice
func (l *Loan) flagLapsedInstallments(now time.Time) {
	next := make([]Installment, len(l.Schedule))
	copy(next, l.Schedule)
	for i := range next {
		if !next[i].IsSettled() && next[i].DueDate.Before(now) {
			next[i].Status = InstallmentStatusOverdue
		}
	}
	l.Schedule = next
}

// RefreshOverdue re-evaluates overdue state for the periodic sweep. It returns
// true only when the loan transitioned into overdue; an already-overdue loan
// is left unchanged, which makes the sweep idempotent.
func (l *Loan) RefreshOverdue(now time.Time) bool {
	if l.Status != LoanStatusApproved && l.Status != LoanStatusOverdue {
		return false
	}
	due, ok := l.earliestLapsedDue(now)
	if !ok {
		return false
	}
	transitioned := l.Status == LoanStatusApproved
	l.Status = LoanStatusOverdue
	if l.OverdueSince == nil {
		since := due
		l.OverdueSince = &since
	}
	l.flagLapsedInstallments(now)
	return transitioned
}

// MarkDefaulted transitions an overdue loan to the terminal defaulted status
func (l *Loan) MarkDefaulted(now time.Time) error {
	if l.Status != LoanStatusOverdue {
		return ErrLoanStateInvalid
	}
	l.Status = LoanStatusDefaulted
	l.DefaultDate = &now
	return nil
}

// TotalPaid sums the append-only payment history
func (l *Loan) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range l.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// TotalAllocated sums the amounts applied to installments. After any payment
// it must equal TotalPaid.
func (l *Loan) TotalAllocated() decimal.Decimal {
	total := decimal.Zero
	for _, inst := range l.Schedule {
		total = total.Add(inst.AmountPaid)
	}
	return total
}

// Balance returns the amount still owed on the loan
func (l *Loan) Balance() decimal.Decimal {
	return l.TotalRepayment.Sub(l.TotalPaid())
}

// IsOverdue reports whether the loan is currently overdue
func (l *Loan) IsOverdue() bool {
	return l.Status == LoanStatusOverdue
}

// DaysOverdue returns whole days elapsed since the earliest unpaid lapsed
// installment's due date, or 0 when the loan is not overdue
func (l *Loan) DaysOverdue(now time.Time) int {
	if !l.IsOverdue() {
		return 0
	}
	due, ok := l.earliestLapsedDue(now)
	if !ok {
		return 0
	}
	return int(now.Sub(due).Hours() / 24)
}

// LoanRepository persists loans in the document store. Save performs an
// optimistic version check and returns ErrVersionConflict when the stored
// document changed since it was loaded.
type LoanRepository interface {
	Create(ctx context.Context, loan *Loan) (*Loan, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*Loan, error)
	Save(ctx context.Context, loan *Loan) (*Loan, error)
	FindActive(ctx context.Context, borrowerID, chamaID primitive.ObjectID) (*Loan, error)
	ListByChama(ctx context.Context, chamaID primitive.ObjectID) ([]*Loan, error)
	ListByBorrower(ctx context.Context, borrowerID primitive.ObjectID) ([]*Loan, error)
	ListOverdueCandidates(ctx context.Context, now time.Time) ([]*Loan, error)
}
