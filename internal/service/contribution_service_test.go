package service

import (
	"context"
	"testing"

	"github.com/chamapesa/chamapesa-backend/internal/domain"
	"github.com/chamapesa/chamapesa-backend/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type contributionFixture struct {
	svc       *ContributionService
	notifier  *NotificationService
	publisher *testutil.MockEventPublisher
	chama     *domain.Chama
	member    *domain.User
	treasurer *domain.User
}

func newContributionFixture(t *testing.T) *contributionFixture {
	t.Helper()

	contributionRepo := testutil.NewMockContributionRepository()
	chamaRepo := testutil.NewMockChamaRepository()
	userRepo := testutil.NewMockUserRepository()
	noteRepo := testutil.NewMockNotificationRepository()
	publisher := testutil.NewMockEventPublisher()

	member := &domain.User{ID: primitive.NewObjectID(), Name: "Aisha"}
	treasurer := &domain.User{ID: primitive.NewObjectID(), Name: "Brian"}
	userRepo.AddUser(member)
	userRepo.AddUser(treasurer)

	chama := &domain.Chama{
		ID: primitive.NewObjectID(),
		Members: []domain.Membership{
			{UserID: member.ID, Role: domain.MemberRoleMember},
			{UserID: treasurer.ID, Role: domain.MemberRoleTreasurer},
		},
	}
	chamaRepo.AddChama(chama)

	notifier := NewNotificationService(noteRepo, chamaRepo, userRepo, publisher, testutil.NewMockEmailSender())
	t.Cleanup(notifier.Close)

	return &contributionFixture{
		svc:       NewContributionService(contributionRepo, chamaRepo, notifier),
		notifier:  notifier,
		publisher: publisher,
		chama:     chama,
		member:    member,
		treasurer: treasurer,
	}
}

func TestRecordContribution(t *testing.T) {
	f := newContributionFixture(t)

	contribution, err := f.svc.RecordContribution(context.Background(), RecordContributionInput{
		ChamaID:    f.chama.ID,
		MemberID:   f.member.ID,
		Amount:     decimal.NewFromInt(2000),
		Method:     "mpesa",
		Reference:  "QA99",
		RecordedBy: f.treasurer.ID,
	})
	require.NoError(t, err)
	assert.False(t, contribution.ID.IsZero())
	assert.False(t, contribution.Date.IsZero())

	f.notifier.Close()
	events := f.publisher.Published()
	require.Len(t, events, 1)
	assert.Equal(t, "contribution.recorded", events[0].Event.Type)
}

func TestRecordContributionInvalidAmount(t *testing.T) {
	f := newContributionFixture(t)

	_, err := f.svc.RecordContribution(context.Background(), RecordContributionInput{
		ChamaID:    f.chama.ID,
		MemberID:   f.member.ID,
		Amount:     decimal.Zero,
		RecordedBy: f.treasurer.ID,
	})
	assert.ErrorIs(t, err, domain.ErrContributionAmountInvalid)
}

func TestRecordContributionNonMember(t *testing.T) {
	f := newContributionFixture(t)

	_, err := f.svc.RecordContribution(context.Background(), RecordContributionInput{
		ChamaID:    f.chama.ID,
		MemberID:   primitive.NewObjectID(),
		Amount:     decimal.NewFromInt(100),
		RecordedBy: f.treasurer.ID,
	})
	assert.ErrorIs(t, err, domain.ErrNotChamaMember)
}

func TestMemberContributionSummary(t *testing.T) {
	f := newContributionFixture(t)

	for _, amount := range []int64{1000, 2500, 500} {
		_, err := f.svc.RecordContribution(context.Background(), RecordContributionInput{
			ChamaID:    f.chama.ID,
			MemberID:   f.member.ID,
			Amount:     decimal.NewFromInt(amount),
			Method:     "mpesa",
			RecordedBy: f.treasurer.ID,
		})
		require.NoError(t, err)
	}

	summary, err := f.svc.MemberContributionSummary(context.Background(), f.chama.ID, f.member.ID, f.member.ID)
	require.NoError(t, err)
	assert.Equal(t, "4000", summary.TotalContributions.String())
	assert.Len(t, summary.Contributions, 3)
}

func TestListChamaContributionsNonMember(t *testing.T) {
	f := newContributionFixture(t)

	_, err := f.svc.ListChamaContributions(context.Background(), f.chama.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, domain.ErrNotChamaMember)
}
