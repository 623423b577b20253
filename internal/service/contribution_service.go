package service

import (
	"context"
	"time"

	"github.com/chamapesa/chamapesa-backend/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ContributionService records and reports member savings contributions
type ContributionService struct {
	contributionRepo domain.ContributionRepository
	chamaRepo        domain.ChamaRepository
	notifier         *NotificationService
}

// NewContributionService creates a new ContributionService
func NewContributionService(contributionRepo domain.ContributionRepository, chamaRepo domain.ChamaRepository, notifier *NotificationService) *ContributionService {
	return &ContributionService{
		contributionRepo: contributionRepo,
		chamaRepo:        chamaRepo,
		notifier:         notifier,
	}
}

// RecordContributionInput contains input for recording a contribution
type RecordContributionInput struct {
	ChamaID    primitive.ObjectID
	MemberID   primitive.ObjectID
	Amount     decimal.Decimal
	Method     string
	Reference  string
	RecordedBy primitive.ObjectID
}

// RecordContribution stores a member's deposit after verifying both the
// contributing member and the recorder belong to the chama
func (s *ContributionService) RecordContribution(ctx context.Context, input RecordContributionInput) (*domain.Contribution, error) {
	contribution := &domain.Contribution{
		ChamaID:    input.ChamaID,
		MemberID:   input.MemberID,
		Amount:     input.Amount,
		Method:     input.Method,
		Reference:  input.Reference,
		RecordedBy: input.RecordedBy,
		Date:       time.Now().UTC(),
	}
	if err := contribution.Validate(); err != nil {
		return nil, err
	}

	chama, err := s.chamaRepo.GetByID(ctx, input.ChamaID)
	if err != nil {
		return nil, err
	}
	if !chama.HasMember(input.MemberID) || !chama.HasMember(input.RecordedBy) {
		return nil, domain.ErrNotChamaMember
	}

	contribution, err = s.contributionRepo.Create(ctx, contribution)
	if err != nil {
		return nil, err
	}

	s.notifier.ContributionRecorded(contribution)
	return contribution, nil
}

// ListChamaContributions returns a chama's contributions, restricted to
// its members
func (s *ContributionService) ListChamaContributions(ctx context.Context, chamaID, requesterID primitive.ObjectID) ([]*domain.Contribution, error) {
	chama, err := s.chamaRepo.GetByID(ctx, chamaID)
	if err != nil {
		return nil, err
	}
	if !chama.HasMember(requesterID) {
		return nil, domain.ErrNotChamaMember
	}
	return s.contributionRepo.ListByChama(ctx, chamaID)
}

// MemberSummary reports a member's standing within a chama
type MemberSummary struct {
	MemberID           primitive.ObjectID     `json:"memberId"`
	TotalContributions decimal.Decimal        `json:"totalContributions"`
	Contributions      []*domain.Contribution `json:"contributions"`
}

// MemberContributionSummary returns a member's contributions and their
// running total
func (s *ContributionService) MemberContributionSummary(ctx context.Context, chamaID, memberID, requesterID primitive.ObjectID) (*MemberSummary, error) {
	chama, err := s.chamaRepo.GetByID(ctx, chamaID)
	if err != nil {
		return nil, err
	}
	if !chama.HasMember(requesterID) {
		return nil, domain.ErrNotChamaMember
	}

	contributions, err := s.contributionRepo.ListByMember(ctx, chamaID, memberID)
	if err != nil {
		return nil, err
	}
	total, err := s.contributionRepo.TotalByMember(ctx, chamaID, memberID)
	if err != nil {
		return nil, err
	}

	return &MemberSummary{
		MemberID:           memberID,
		TotalContributions: total,
		Contributions:      contributions,
	}, nil
}
