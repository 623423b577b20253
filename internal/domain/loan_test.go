package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func approvedLoan(t *testing.T, principal int64, rate int64, termMonths int, now time.Time) *Loan {
	t.Helper()
	loan := &Loan{
		ID:           primitive.NewObjectID(),
		ChamaID:      primitive.NewObjectID(),
		BorrowerID:   primitive.NewObjectID(),
		Principal:    decimal.NewFromInt(principal),
		Purpose:      "stock for shop",
		InterestRate: decimal.NewFromInt(rate),
		Status:       LoanStatusPending,
	}
	if err := loan.Approve(primitive.NewObjectID(), termMonths, now); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	return loan
}

func TestApprove_InterestCalculation(t *testing.T) {
	// 12000 at 12% over 6 months: monthlyRate = 0.01,
	// interest = 12000 * 0.01 * 6 = 720, total = 12720, installments = 2120
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	loan := approvedLoan(t, 12000, 12, 6, now)

	if !loan.InterestAmount.Equal(decimal.NewFromInt(720)) {
		t.Errorf("Expected interest 720, got %s", loan.InterestAmount)
	}
	if !loan.TotalRepayment.Equal(decimal.NewFromInt(12720)) {
		t.Errorf("Expected total 12720, got %s", loan.TotalRepayment)
	}
	if len(loan.Schedule) != 6 {
		t.Fatalf("Expected 6 installments, got %d", len(loan.Schedule))
	}
	for i, inst := range loan.Schedule {
		if !inst.Amount.Equal(decimal.NewFromInt(2120)) {
			t.Errorf("Installment %d: expected 2120, got %s", i, inst.Amount)
		}
		if inst.Status != InstallmentStatusPending {
			t.Errorf("Installment %d: expected pending, got %s", i, inst.Status)
		}
	}
	if loan.ApprovedBy == nil || loan.ApprovalDate == nil {
		t.Error("Expected approvedBy and approvalDate to be set")
	}
}

func TestApprove_ZeroInterest(t *testing.T) {
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	loan := approvedLoan(t, 6000, 0, 6, now)

	if !loan.InterestAmount.Equal(decimal.Zero) {
		t.Errorf("Expected zero interest, got %s", loan.InterestAmount)
	}
	if !loan.TotalRepayment.Equal(decimal.NewFromInt(6000)) {
		t.Errorf("Expected total 6000, got %s", loan.TotalRepayment)
	}
}

func TestApprove_DueDatesMonthly(t *testing.T) {
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	loan := approvedLoan(t, 6000, 0, 3, now)

	expected := []time.Time{
		time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC),
	}
	for i, inst := range loan.Schedule {
		if !inst.DueDate.Equal(expected[i]) {
			t.Errorf("Installment %d: expected due %s, got %s", i, expected[i], inst.DueDate)
		}
	}
}

func TestApprove_NotPending(t *testing.T) {
	now := time.Now()
	loan := approvedLoan(t, 6000, 0, 6, now)

	if err := loan.Approve(primitive.NewObjectID(), 6, now); err != ErrLoanStateInvalid {
		t.Errorf("Expected ErrLoanStateInvalid, got %v", err)
	}
}

func TestApprove_KeepsExistingSchedule(t *testing.T) {
	now := time.Now()
	loan := &Loan{
		Principal: decimal.NewFromInt(1000),
		Purpose:   "x",
		Status:    LoanStatusPending,
		Schedule:  GenerateSchedule(decimal.NewFromInt(1000), 4, now),
	}
	if err := loan.Approve(primitive.NewObjectID(), 6, now); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if len(loan.Schedule) != 4 {
		t.Errorf("Expected existing 4-installment schedule to be kept, got %d", len(loan.Schedule))
	}
}

func TestGenerateSchedule_RoundingRemainderOnLast(t *testing.T) {
	// 100 over 3 months: 33.33 + 33.33 + 33.34
	schedule := GenerateSchedule(decimal.NewFromInt(100), 3, time.Now())

	sum := decimal.Zero
	for _, inst := range schedule {
		sum = sum.Add(inst.Amount)
	}
	if !sum.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected schedule to sum to 100, got %s", sum)
	}
	if !schedule[2].Amount.Equal(decimal.NewFromFloat(33.34)) {
		t.Errorf("Expected last installment 33.34, got %s", schedule[2].Amount)
	}
}

func TestApplyPayment_ExactPayoff(t *testing.T) {
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	loan := approvedLoan(t, 6000, 0, 6, now)

	err := loan.ApplyPayment(PaymentRecord{
		Amount: decimal.NewFromInt(6000),
		Date:   now,
		Method: "mpesa",
	}, now)
	if err != nil {
		t.Fatalf("payment failed: %v", err)
	}

	if loan.Status != LoanStatusPaid {
		t.Errorf("Expected paid, got %s", loan.Status)
	}
	if loan.ClosedAt == nil {
		t.Error("Expected closedAt to be set")
	}
	for i, inst := range loan.Schedule {
		if inst.Status != InstallmentStatusPaid {
			t.Errorf("Installment %d: expected paid, got %s", i, inst.Status)
		}
		if inst.PaymentDate == nil {
			t.Errorf("Installment %d: expected paymentDate set", i)
		}
	}
}

func TestApplyPayment_OverpaymentNotDistributed(t *testing.T) {
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	loan := approvedLoan(t, 6000, 0, 6, now)

	err := loan.ApplyPayment(PaymentRecord{Amount: decimal.NewFromInt(7000), Date: now}, now)
	if err != nil {
		t.Fatalf("payment failed: %v", err)
	}

	if loan.Status != LoanStatusPaid {
		t.Errorf("Expected paid, got %s", loan.Status)
	}
	for i, inst := range loan.Schedule {
		if inst.AmountPaid.GreaterThan(inst.Amount) {
			t.Errorf("Installment %d: amountPaid %s exceeds amount %s", i, inst.AmountPaid, inst.Amount)
		}
	}
	// History keeps the full payment even though only 6000 was allocatable
	if !loan.TotalPaid().Equal(decimal.NewFromInt(7000)) {
		t.Errorf("Expected history total 7000, got %s", loan.TotalPaid())
	}
}

func TestApplyPayment_PartialThenFull(t *testing.T) {
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	loan := approvedLoan(t, 9000, 0, 6, now) // installments of 1500

	if err := loan.ApplyPayment(PaymentRecord{Amount: decimal.NewFromInt(1000), Date: now}, now); err != nil {
		t.Fatalf("first payment failed: %v", err)
	}
	if loan.Schedule[0].Status != InstallmentStatusPartiallyPaid {
		t.Errorf("Expected partially_paid after first payment, got %s", loan.Schedule[0].Status)
	}
	if !loan.Schedule[0].AmountPaid.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected amountPaid 1000, got %s", loan.Schedule[0].AmountPaid)
	}

	if err := loan.ApplyPayment(PaymentRecord{Amount: decimal.NewFromInt(1000), Date: now}, now); err != nil {
		t.Fatalf("second payment failed: %v", err)
	}
	if loan.Schedule[0].Status != InstallmentStatusPaid {
		t.Errorf("Expected first installment paid, got %s", loan.Schedule[0].Status)
	}
	// 500 surplus rolls into the second installment
	if !loan.Schedule[1].AmountPaid.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected second installment amountPaid 500, got %s", loan.Schedule[1].AmountPaid)
	}
	if loan.Schedule[1].Status != InstallmentStatusPartiallyPaid {
		t.Errorf("Expected second installment partially_paid, got %s", loan.Schedule[1].Status)
	}
}

func TestApplyPayment_SumConservation(t *testing.T) {
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	loan := approvedLoan(t, 6000, 12, 6, now)

	amounts := []int64{250, 1999, 1, 3000, 120}
	for _, amt := range amounts {
		if err := loan.ApplyPayment(PaymentRecord{Amount: decimal.NewFromInt(amt), Date: now}, now); err != nil {
			t.Fatalf("payment of %d failed: %v", amt, err)
		}
		if !loan.TotalPaid().Equal(loan.TotalAllocated()) {
			t.Errorf("After payment of %d: history total %s != allocated total %s",
				amt, loan.TotalPaid(), loan.TotalAllocated())
		}
	}
}

func TestApplyPayment_InvalidAmount(t *testing.T) {
	now := time.Now()
	loan := approvedLoan(t, 6000, 0, 6, now)

	if err := loan.ApplyPayment(PaymentRecord{Amount: decimal.Zero}, now); err != ErrPaymentAmountInvalid {
		t.Errorf("Expected ErrPaymentAmountInvalid, got %v", err)
	}
	if len(loan.Payments) != 0 {
		t.Error("Rejected payment must not be appended to history")
	}
}

func TestApplyPayment_InvalidStates(t *testing.T) {
	now := time.Now()
	for _, status := range []LoanStatus{LoanStatusPending, LoanStatusRejected, LoanStatusPaid, LoanStatusDefaulted} {
		loan := &Loan{Status: status, TotalRepayment: decimal.NewFromInt(100)}
		if err := loan.ApplyPayment(PaymentRecord{Amount: decimal.NewFromInt(10)}, now); err != ErrLoanStateInvalid {
			t.Errorf("status %s: expected ErrLoanStateInvalid, got %v", status, err)
		}
	}
}

func TestApplyPayment_ClearsOverdue(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	loan := approvedLoan(t, 6000, 0, 6, start)

	// First installment due Feb 15; sweep in March marks the loan overdue
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if !loan.RefreshOverdue(now) {
		t.Fatal("Expected transition to overdue")
	}

	// Paying the lapsed installment brings the loan back to approved
	if err := loan.ApplyPayment(PaymentRecord{Amount: decimal.NewFromInt(1000), Date: now}, now); err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if loan.Status != LoanStatusApproved {
		t.Errorf("Expected approved after clearing arrears, got %s", loan.Status)
	}
	// overdueSince stays set once recorded
	if loan.OverdueSince == nil {
		t.Error("Expected overdueSince to remain set")
	}
}

func TestRefreshOverdue_SetsOverdueSince(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	loan := approvedLoan(t, 6000, 0, 6, start)

	now := time.Date(2024, 2, 16, 0, 0, 0, 0, time.UTC)
	if !loan.RefreshOverdue(now) {
		t.Fatal("Expected transition to overdue")
	}
	if loan.Status != LoanStatusOverdue {
		t.Errorf("Expected overdue, got %s", loan.Status)
	}
	due := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	if loan.OverdueSince == nil || !loan.OverdueSince.Equal(due) {
		t.Errorf("Expected overdueSince %s, got %v", due, loan.OverdueSince)
	}
	if loan.Schedule[0].Status != InstallmentStatusOverdue {
		t.Errorf("Expected first installment overdue, got %s", loan.Schedule[0].Status)
	}
}

func TestRefreshOverdue_Idempotent(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	loan := approvedLoan(t, 6000, 0, 6, start)

	now := time.Date(2024, 2, 16, 0, 0, 0, 0, time.UTC)
	if !loan.RefreshOverdue(now) {
		t.Fatal("Expected first call to transition")
	}
	if loan.RefreshOverdue(now) {
		t.Error("Expected second call to be a no-op")
	}
	if loan.Status != LoanStatusOverdue {
		t.Errorf("Expected overdue, got %s", loan.Status)
	}
}

func TestRefreshOverdue_NothingLapsed(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	loan := approvedLoan(t, 6000, 0, 6, start)

	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if loan.RefreshOverdue(now) {
		t.Error("Expected no transition before first due date")
	}
	if loan.Status != LoanStatusApproved {
		t.Errorf("Expected approved, got %s", loan.Status)
	}
}

func TestMarkDefaulted(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	loan := approvedLoan(t, 6000, 0, 6, start)

	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := loan.MarkDefaulted(now); err != ErrLoanStateInvalid {
		t.Errorf("Expected ErrLoanStateInvalid for approved loan, got %v", err)
	}

	loan.RefreshOverdue(now)
	if err := loan.MarkDefaulted(now); err != nil {
		t.Fatalf("markDefaulted failed: %v", err)
	}
	if loan.Status != LoanStatusDefaulted {
		t.Errorf("Expected defaulted, got %s", loan.Status)
	}
	if loan.DefaultDate == nil {
		t.Error("Expected defaultDate set")
	}
}

func TestTerminalStatusesDoNotTransition(t *testing.T) {
	now := time.Now()
	for _, status := range []LoanStatus{LoanStatusPaid, LoanStatusRejected, LoanStatusDefaulted} {
		loan := &Loan{Status: status, TotalRepayment: decimal.NewFromInt(100)}
		if loan.RefreshOverdue(now) {
			t.Errorf("status %s: sweep must not transition a terminal loan", status)
		}
		if err := loan.MarkDefaulted(now); err == nil {
			t.Errorf("status %s: markDefaulted must fail", status)
		}
		if err := loan.Reject(); err == nil {
			t.Errorf("status %s: reject must fail", status)
		}
		if !status.IsTerminal() {
			t.Errorf("status %s: expected IsTerminal", status)
		}
	}
}

func TestDaysOverdue(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	loan := approvedLoan(t, 6000, 0, 6, start)

	if loan.DaysOverdue(start) != 0 {
		t.Error("Expected 0 days overdue for a current loan")
	}

	now := time.Date(2024, 2, 25, 0, 0, 0, 0, time.UTC)
	loan.RefreshOverdue(now)
	if got := loan.DaysOverdue(now); got != 10 {
		t.Errorf("Expected 10 days overdue, got %d", got)
	}
}

func TestBalance(t *testing.T) {
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	loan := approvedLoan(t, 12000, 12, 6, now)

	if err := loan.ApplyPayment(PaymentRecord{Amount: decimal.NewFromInt(2120), Date: now}, now); err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if !loan.Balance().Equal(decimal.NewFromInt(10600)) {
		t.Errorf("Expected balance 10600, got %s", loan.Balance())
	}
}

func TestValidate(t *testing.T) {
	base := Loan{
		Principal:    decimal.NewFromInt(1000),
		Purpose:      "school fees",
		InterestRate: decimal.NewFromInt(10),
	}

	loan := base
	if err := loan.Validate(); err != nil {
		t.Errorf("Expected valid loan, got %v", err)
	}

	loan = base
	loan.Principal = decimal.Zero
	if err := loan.Validate(); err != ErrLoanAmountInvalid {
		t.Errorf("Expected ErrLoanAmountInvalid, got %v", err)
	}

	loan = base
	loan.Purpose = ""
	if err := loan.Validate(); err != ErrLoanPurposeRequired {
		t.Errorf("Expected ErrLoanPurposeRequired, got %v", err)
	}

	loan = base
	loan.InterestRate = decimal.NewFromInt(101)
	if err := loan.Validate(); err != ErrLoanRateInvalid {
		t.Errorf("Expected ErrLoanRateInvalid, got %v", err)
	}
}
