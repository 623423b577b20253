package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chamapesa/chamapesa-backend/internal/domain"
	"github.com/chamapesa/chamapesa-backend/internal/mail"
	"github.com/chamapesa/chamapesa-backend/internal/websocket"
	"github.com/rs/zerolog/log"
)

// notificationBuffer bounds the queue of pending notification jobs.
// When the buffer is full new jobs are dropped, never blocked on.
const notificationBuffer = 256

// deliveryTimeout bounds one job's store and email work.
const deliveryTimeout = 15 * time.Second

type notificationJob struct {
	notification *domain.Notification
	event        websocket.Event
	emailSubject string
	emailBody    string
}

// NotificationService delivers lifecycle notifications to chama members
// over three channels: a stored inbox record, a websocket event and an
// email. Delivery is fire and forget; the ledger operation that raised
// the event has already committed and never waits on or fails with it.
type NotificationService struct {
	notificationRepo domain.NotificationRepository
	chamaRepo        domain.ChamaRepository
	userRepo         domain.UserRepository
	publisher        websocket.EventPublisher
	mailer           mail.Sender

	jobs chan notificationJob
	wg   sync.WaitGroup
	once sync.Once
}

// NewNotificationService creates a NotificationService and starts its
// delivery worker.
func NewNotificationService(
	notificationRepo domain.NotificationRepository,
	chamaRepo domain.ChamaRepository,
	userRepo domain.UserRepository,
	publisher websocket.EventPublisher,
	mailer mail.Sender,
) *NotificationService {
	s := &NotificationService{
		notificationRepo: notificationRepo,
		chamaRepo:        chamaRepo,
		userRepo:         userRepo,
		publisher:        publisher,
		mailer:           mailer,
		jobs:             make(chan notificationJob, notificationBuffer),
	}
	s.wg.Add(1)
	go s.worker()
	return s
}

// Close stops accepting jobs and waits for in-flight deliveries.
func (s *NotificationService) Close() {
	s.once.Do(func() {
		close(s.jobs)
	})
	s.wg.Wait()
}

func (s *NotificationService) worker() {
	defer s.wg.Done()
	for job := range s.jobs {
		s.deliver(job)
	}
}

func (s *NotificationService) deliver(job notificationJob) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	n := job.notification

	chama, err := s.chamaRepo.GetByID(ctx, n.ChamaID)
	if err != nil {
		log.Error().
			Err(err).
			Str("chama_id", n.ChamaID.Hex()).
			Str("kind", string(n.Kind)).
			Msg("notification dropped, chama lookup failed")
		return
	}
	n.RecipientIDs = chama.MemberIDs()

	if _, err := s.notificationRepo.Create(ctx, n); err != nil {
		log.Error().
			Err(err).
			Str("kind", string(n.Kind)).
			Msg("failed to store notification")
	}

	recipientHexes := make([]string, len(n.RecipientIDs))
	for i, id := range n.RecipientIDs {
		recipientHexes[i] = id.Hex()
	}
	s.publisher.Publish(recipientHexes, job.event)

	if job.emailSubject == "" {
		return
	}
	users, err := s.userRepo.GetByIDs(ctx, n.RecipientIDs)
	if err != nil {
		log.Error().
			Err(err).
			Str("kind", string(n.Kind)).
			Msg("failed to load notification recipients")
		return
	}
	for _, user := range users {
		if user.Email == "" {
			continue
		}
		if err := s.mailer.Send(user.Email, job.emailSubject, job.emailBody); err != nil {
			log.Warn().
				Err(err).
				Str("recipient", user.Email).
				Str("kind", string(n.Kind)).
				Msg("failed to send notification email")
		}
	}
}

func (s *NotificationService) enqueue(job notificationJob) {
	select {
	case s.jobs <- job:
	default:
		log.Warn().
			Str("kind", string(job.notification.Kind)).
			Msg("notification queue full, dropping job")
	}
}

type loanEventPayload struct {
	LoanID     string `json:"loanId"`
	ChamaID    string `json:"chamaId"`
	BorrowerID string `json:"borrowerId"`
	Status     string `json:"status"`
	Balance    string `json:"balance"`
}

func loanPayload(loan *domain.Loan) loanEventPayload {
	return loanEventPayload{
		LoanID:     loan.ID.Hex(),
		ChamaID:    loan.ChamaID.Hex(),
		BorrowerID: loan.BorrowerID.Hex(),
		Status:     string(loan.Status),
		Balance:    loan.Balance().StringFixed(2),
	}
}

// LoanApproved announces an approved loan to the chama.
func (s *NotificationService) LoanApproved(loan *domain.Loan) {
	msg := fmt.Sprintf("Loan of %s approved, repayable in %d installments", loan.Principal.StringFixed(2), len(loan.Schedule))
	s.enqueue(notificationJob{
		notification: &domain.Notification{
			Kind:      domain.NotificationLoanApproved,
			ChamaID:   loan.ChamaID,
			SubjectID: loan.ID,
			Message:   msg,
		},
		event:        websocket.NewLoanApprovedEvent(loanPayload(loan)),
		emailSubject: "Loan approved",
		emailBody: fmt.Sprintf("<p>A loan of <b>%s</b> has been approved.</p><p>Total repayment: %s over %d installments.</p>",
			loan.Principal.StringFixed(2), loan.TotalRepayment.StringFixed(2), len(loan.Schedule)),
	})
}

// LoanRejected announces a rejected loan request to the chama.
func (s *NotificationService) LoanRejected(loan *domain.Loan) {
	s.enqueue(notificationJob{
		notification: &domain.Notification{
			Kind:      domain.NotificationLoanRejected,
			ChamaID:   loan.ChamaID,
			SubjectID: loan.ID,
			Message:   fmt.Sprintf("Loan request of %s was rejected", loan.Principal.StringFixed(2)),
		},
		event: websocket.NewLoanRejectedEvent(loanPayload(loan)),
	})
}

// PaymentRecorded announces a repayment to the chama.
func (s *NotificationService) PaymentRecorded(loan *domain.Loan, record domain.PaymentRecord) {
	s.enqueue(notificationJob{
		notification: &domain.Notification{
			Kind:      domain.NotificationPaymentRecorded,
			ChamaID:   loan.ChamaID,
			SubjectID: loan.ID,
			Message:   fmt.Sprintf("Payment of %s recorded, balance %s", record.Amount.StringFixed(2), loan.Balance().StringFixed(2)),
		},
		event: websocket.NewLoanPaymentRecordedEvent(loanPayload(loan)),
	})
}

// LoanOverdue announces an overdue loan to the chama.
func (s *NotificationService) LoanOverdue(loan *domain.Loan) {
	s.enqueue(notificationJob{
		notification: &domain.Notification{
			Kind:      domain.NotificationLoanOverdue,
			ChamaID:   loan.ChamaID,
			SubjectID: loan.ID,
			Message:   fmt.Sprintf("Loan is overdue, outstanding balance %s", loan.Balance().StringFixed(2)),
		},
		event:        websocket.NewLoanOverdueEvent(loanPayload(loan)),
		emailSubject: "Loan repayment overdue",
		emailBody: fmt.Sprintf("<p>A loan repayment is overdue.</p><p>Outstanding balance: <b>%s</b>.</p>",
			loan.Balance().StringFixed(2)),
	})
}

// LoanDefaulted announces a defaulted loan to the chama.
func (s *NotificationService) LoanDefaulted(loan *domain.Loan) {
	s.enqueue(notificationJob{
		notification: &domain.Notification{
			Kind:      domain.NotificationLoanDefaulted,
			ChamaID:   loan.ChamaID,
			SubjectID: loan.ID,
			Message:   fmt.Sprintf("Loan was marked as defaulted with balance %s", loan.Balance().StringFixed(2)),
		},
		event:        websocket.NewLoanDefaultedEvent(loanPayload(loan)),
		emailSubject: "Loan marked as defaulted",
		emailBody: fmt.Sprintf("<p>A loan has been marked as defaulted.</p><p>Outstanding balance: <b>%s</b>.</p>",
			loan.Balance().StringFixed(2)),
	})
}

// ContributionRecorded announces a member contribution to the chama.
func (s *NotificationService) ContributionRecorded(contribution *domain.Contribution) {
	s.enqueue(notificationJob{
		notification: &domain.Notification{
			Kind:      domain.NotificationContributionRecorded,
			ChamaID:   contribution.ChamaID,
			SubjectID: contribution.ID,
			Message:   fmt.Sprintf("Contribution of %s recorded", contribution.Amount.StringFixed(2)),
		},
		event: websocket.NewContributionRecordedEvent(map[string]string{
			"contributionId": contribution.ID.Hex(),
			"chamaId":        contribution.ChamaID.Hex(),
			"memberId":       contribution.MemberID.Hex(),
			"amount":         contribution.Amount.StringFixed(2),
		}),
	})
}
