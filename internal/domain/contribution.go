package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrContributionAmountInvalid = errors.New("contribution amount must be positive")
	ErrContributionNotFound      = errors.New("contribution not found")
)

// Contribution is a member's deposit into a chama's pooled savings
type Contribution struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ChamaID    primitive.ObjectID `json:"chamaId" bson:"chamaId"`
	MemberID   primitive.ObjectID `json:"memberId" bson:"memberId"`
	Amount     decimal.Decimal    `json:"amount" bson:"amount"`
	Method     string             `json:"method" bson:"method"`
	Reference  string             `json:"reference,omitempty" bson:"reference,omitempty"`
	RecordedBy primitive.ObjectID `json:"recordedBy" bson:"recordedBy"`
	Date       time.Time          `json:"date" bson:"date"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
}

func (c *Contribution) Validate() error {
	if c.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrContributionAmountInvalid
	}
	return nil
}

type ContributionRepository interface {
	Create(ctx context.Context, contribution *Contribution) (*Contribution, error)
	ListByChama(ctx context.Context, chamaID primitive.ObjectID) ([]*Contribution, error)
	ListByMember(ctx context.Context, chamaID, memberID primitive.ObjectID) ([]*Contribution, error)
	TotalByMember(ctx context.Context, chamaID, memberID primitive.ObjectID) (decimal.Decimal, error)
}
