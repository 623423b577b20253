package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chamapesa/chamapesa-backend/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// saveRetries bounds how often a payment is replayed after losing an
// optimistic concurrency race.
const saveRetries = 3

// LoanService orchestrates the loan lifecycle: request, approval,
// repayment, overdue and default handling. All state transitions run
// through domain.Loan methods; this layer adds persistence, membership
// checks and notification dispatch.
type LoanService struct {
	loanRepo  domain.LoanRepository
	chamaRepo domain.ChamaRepository
	tx        domain.TxRunner
	notifier  *NotificationService
}

// NewLoanService creates a new LoanService
func NewLoanService(loanRepo domain.LoanRepository, chamaRepo domain.ChamaRepository, tx domain.TxRunner, notifier *NotificationService) *LoanService {
	return &LoanService{
		loanRepo:  loanRepo,
		chamaRepo: chamaRepo,
		tx:        tx,
		notifier:  notifier,
	}
}

// RequestLoanInput contains input for requesting a loan
type RequestLoanInput struct {
	ChamaID      primitive.ObjectID
	BorrowerID   primitive.ObjectID
	Principal    decimal.Decimal
	Purpose      string
	InterestRate decimal.Decimal
	GuarantorIDs []primitive.ObjectID
}

// RequestLoan creates a pending loan after verifying chama membership and
// the one-active-loan rule. The existence check and insert run in one
// transaction so two concurrent requests cannot both succeed.
func (s *LoanService) RequestLoan(ctx context.Context, input RequestLoanInput) (*domain.Loan, error) {
	loan := &domain.Loan{
		ChamaID:      input.ChamaID,
		BorrowerID:   input.BorrowerID,
		GuarantorIDs: input.GuarantorIDs,
		Principal:    input.Principal,
		Purpose:      strings.TrimSpace(input.Purpose),
		InterestRate: input.InterestRate,
		Status:       domain.LoanStatusPending,
	}
	if err := loan.Validate(); err != nil {
		return nil, err
	}

	chama, err := s.chamaRepo.GetByID(ctx, input.ChamaID)
	if err != nil {
		return nil, err
	}
	if !chama.HasMember(input.BorrowerID) {
		return nil, domain.ErrNotChamaMember
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.loanRepo.FindActive(ctx, input.BorrowerID, input.ChamaID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrActiveLoanExists
		}
		loan, err = s.loanRepo.Create(ctx, loan)
		return err
	})
	if err != nil {
		return nil, err
	}

	return loan, nil
}

// ApproveLoan transitions a pending loan to approved, computes interest
// and generates the repayment schedule. Treasurers and admins only; the
// handler enforces the role, this layer enforces membership.
func (s *LoanService) ApproveLoan(ctx context.Context, loanID, approverID primitive.ObjectID, termMonths int) (*domain.Loan, error) {
	if termMonths == 0 {
		termMonths = domain.DefaultTermMonths
	}

	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, loan.ChamaID, approverID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := loan.Approve(approverID, termMonths, now); err != nil {
		return nil, err
	}

	loan, err = s.loanRepo.Save(ctx, loan)
	if err != nil {
		return nil, err
	}

	s.notifier.LoanApproved(loan)
	return loan, nil
}

// RejectLoan transitions a pending loan to the terminal rejected status
func (s *LoanService) RejectLoan(ctx context.Context, loanID, reviewerID primitive.ObjectID) (*domain.Loan, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, loan.ChamaID, reviewerID); err != nil {
		return nil, err
	}

	if err := loan.Reject(); err != nil {
		return nil, err
	}

	loan, err = s.loanRepo.Save(ctx, loan)
	if err != nil {
		return nil, err
	}

	s.notifier.LoanRejected(loan)
	return loan, nil
}

// RecordPaymentInput contains input for recording a repayment
type RecordPaymentInput struct {
	LoanID     primitive.ObjectID
	Amount     decimal.Decimal
	Method     string
	Reference  string
	RecordedBy primitive.ObjectID
	Notes      string
	ReceiptKey *string
}

// RecordPayment appends a payment to the loan's history, allocates it
// across the schedule and persists the result. A lost optimistic
// concurrency race reloads the loan and replays the payment, so two
// treasurers recording at once both land exactly once.
func (s *LoanService) RecordPayment(ctx context.Context, input RecordPaymentInput) (*domain.Loan, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrPaymentAmountInvalid
	}

	record := domain.PaymentRecord{
		Amount:     input.Amount,
		Date:       time.Now().UTC(),
		Method:     input.Method,
		Reference:  input.Reference,
		RecordedBy: input.RecordedBy,
		Notes:      input.Notes,
		ReceiptKey: input.ReceiptKey,
	}

	var (
		loan *domain.Loan
		err  error
	)
	for attempt := 0; attempt < saveRetries; attempt++ {
		loan, err = s.loanRepo.GetByID(ctx, input.LoanID)
		if err != nil {
			return nil, err
		}
		if err := s.requireMember(ctx, loan.ChamaID, input.RecordedBy); err != nil {
			return nil, err
		}

		wasOverdue := loan.IsOverdue()
		if err := loan.ApplyPayment(record, record.Date); err != nil {
			return nil, err
		}

		loan, err = s.loanRepo.Save(ctx, loan)
		if err == nil {
			s.notifier.PaymentRecorded(loan, record)
			if loan.Status == domain.LoanStatusPaid && wasOverdue {
				log.Info().
					Str("loan_id", loan.ID.Hex()).
					Msg("overdue loan settled in full")
			}
			return loan, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, err
		}
		log.Debug().
			Str("loan_id", input.LoanID.Hex()).
			Int("attempt", attempt+1).
			Msg("payment save lost version race, retrying")
	}
	return nil, err
}

// MarkDefaulted transitions an overdue loan to defaulted
func (s *LoanService) MarkDefaulted(ctx context.Context, loanID, actorID primitive.ObjectID) (*domain.Loan, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, loan.ChamaID, actorID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := loan.MarkDefaulted(now); err != nil {
		return nil, err
	}

	loan, err = s.loanRepo.Save(ctx, loan)
	if err != nil {
		return nil, err
	}

	s.notifier.LoanDefaulted(loan)
	return loan, nil
}

// SweepOverdue flags every approved loan with a lapsed unpaid
// installment as overdue and returns how many loans transitioned.
// Already-overdue loans are skipped, so repeated sweeps are idempotent.
func (s *LoanService) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.loanRepo.ListOverdueCandidates(ctx, now)
	if err != nil {
		return 0, err
	}

	transitioned := 0
	for _, loan := range candidates {
		if !loan.RefreshOverdue(now) {
			continue
		}
		saved, err := s.loanRepo.Save(ctx, loan)
		if err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				// A concurrent payment or sweep got there first.
				continue
			}
			log.Error().
				Err(err).
				Str("loan_id", loan.ID.Hex()).
				Msg("failed to persist overdue transition")
			continue
		}
		transitioned++
		s.notifier.LoanOverdue(saved)
	}
	return transitioned, nil
}

// GetLoan retrieves a loan, restricted to members of its chama
func (s *LoanService) GetLoan(ctx context.Context, loanID, requesterID primitive.ObjectID) (*domain.Loan, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, loan.ChamaID, requesterID); err != nil {
		return nil, err
	}
	return loan, nil
}

// ListChamaLoans retrieves a chama's loans, restricted to its members
func (s *LoanService) ListChamaLoans(ctx context.Context, chamaID, requesterID primitive.ObjectID) ([]*domain.Loan, error) {
	if err := s.requireMember(ctx, chamaID, requesterID); err != nil {
		return nil, err
	}
	return s.loanRepo.ListByChama(ctx, chamaID)
}

// ListBorrowerLoans retrieves the requester's own loans
func (s *LoanService) ListBorrowerLoans(ctx context.Context, borrowerID primitive.ObjectID) ([]*domain.Loan, error) {
	return s.loanRepo.ListByBorrower(ctx, borrowerID)
}

func (s *LoanService) requireMember(ctx context.Context, chamaID, userID primitive.ObjectID) error {
	chama, err := s.chamaRepo.GetByID(ctx, chamaID)
	if err != nil {
		return err
	}
	if !chama.HasMember(userID) {
		return domain.ErrNotChamaMember
	}
	return nil
}
