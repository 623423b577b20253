package service

import (
	"errors"
	"testing"

	"github.com/chamapesa/chamapesa-backend/internal/domain"
	"github.com/chamapesa/chamapesa-backend/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type notifierFixture struct {
	svc       *NotificationService
	noteRepo  *testutil.MockNotificationRepository
	publisher *testutil.MockEventPublisher
	mailer    *testutil.MockEmailSender
	chama     *domain.Chama
	members   []*domain.User
}

func newNotifierFixture(t *testing.T) *notifierFixture {
	t.Helper()

	noteRepo := testutil.NewMockNotificationRepository()
	chamaRepo := testutil.NewMockChamaRepository()
	userRepo := testutil.NewMockUserRepository()
	publisher := testutil.NewMockEventPublisher()
	mailer := testutil.NewMockEmailSender()

	m1 := &domain.User{ID: primitive.NewObjectID(), Name: "Aisha", Email: "aisha@example.com"}
	m2 := &domain.User{ID: primitive.NewObjectID(), Name: "Brian", Email: "brian@example.com"}
	userRepo.AddUser(m1)
	userRepo.AddUser(m2)

	chama := &domain.Chama{
		ID: primitive.NewObjectID(),
		Members: []domain.Membership{
			{UserID: m1.ID, Role: domain.MemberRoleMember},
			{UserID: m2.ID, Role: domain.MemberRoleTreasurer},
		},
	}
	chamaRepo.AddChama(chama)

	return &notifierFixture{
		svc:       NewNotificationService(noteRepo, chamaRepo, userRepo, publisher, mailer),
		noteRepo:  noteRepo,
		publisher: publisher,
		mailer:    mailer,
		chama:     chama,
		members:   []*domain.User{m1, m2},
	}
}

func (f *notifierFixture) sampleLoan() *domain.Loan {
	return &domain.Loan{
		ID:             primitive.NewObjectID(),
		ChamaID:        f.chama.ID,
		BorrowerID:     f.members[0].ID,
		Principal:      decimal.NewFromInt(6000),
		TotalRepayment: decimal.NewFromInt(6300),
		Status:         domain.LoanStatusApproved,
	}
}

func TestNotifierLoanApprovedDeliversAllChannels(t *testing.T) {
	f := newNotifierFixture(t)
	loan := f.sampleLoan()

	f.svc.LoanApproved(loan)
	f.svc.Close()

	notes := f.noteRepo.All()
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationLoanApproved, notes[0].Kind)
	assert.Equal(t, loan.ID, notes[0].SubjectID)
	assert.ElementsMatch(t, f.chama.MemberIDs(), notes[0].RecipientIDs)

	events := f.publisher.Published()
	require.Len(t, events, 1)
	assert.Equal(t, "loan.approved", events[0].Event.Type)

	emails := f.mailer.Sent()
	require.Len(t, emails, 2)
	assert.Equal(t, "Loan approved", emails[0].Subject)
}

func TestNotifierPaymentRecordedSkipsEmail(t *testing.T) {
	f := newNotifierFixture(t)
	loan := f.sampleLoan()

	f.svc.PaymentRecorded(loan, domain.PaymentRecord{Amount: decimal.NewFromInt(500)})
	f.svc.Close()

	assert.Len(t, f.noteRepo.All(), 1)
	assert.Len(t, f.publisher.Published(), 1)
	assert.Empty(t, f.mailer.Sent())
}

func TestNotifierStoreFailureStillBroadcasts(t *testing.T) {
	f := newNotifierFixture(t)
	f.noteRepo.CreateErr = errors.New("mongo down")

	f.svc.LoanOverdue(f.sampleLoan())
	f.svc.Close()

	// Store failure is logged and swallowed; the websocket event and
	// emails still go out.
	assert.Len(t, f.publisher.Published(), 1)
	assert.Len(t, f.mailer.Sent(), 2)
}

func TestNotifierEmailFailureSwallowed(t *testing.T) {
	f := newNotifierFixture(t)
	f.mailer.Err = errors.New("smtp down")

	f.svc.LoanDefaulted(f.sampleLoan())
	f.svc.Close()

	assert.Len(t, f.noteRepo.All(), 1)
	assert.Len(t, f.publisher.Published(), 1)
}

func TestNotifierUnknownChamaDropsJob(t *testing.T) {
	f := newNotifierFixture(t)
	loan := f.sampleLoan()
	loan.ChamaID = primitive.NewObjectID()

	f.svc.LoanApproved(loan)
	f.svc.Close()

	assert.Empty(t, f.noteRepo.All())
	assert.Empty(t, f.publisher.Published())
}

func TestNotifierContributionRecorded(t *testing.T) {
	f := newNotifierFixture(t)

	f.svc.ContributionRecorded(&domain.Contribution{
		ID:       primitive.NewObjectID(),
		ChamaID:  f.chama.ID,
		MemberID: f.members[0].ID,
		Amount:   decimal.NewFromInt(2000),
	})
	f.svc.Close()

	notes := f.noteRepo.All()
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationContributionRecorded, notes[0].Kind)

	events := f.publisher.Published()
	require.Len(t, events, 1)
	assert.Equal(t, "contribution.recorded", events[0].Event.Type)
}
