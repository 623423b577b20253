package mongodb

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/chamapesa/chamapesa-backend/internal/domain"
)

// ContributionRepository implements domain.ContributionRepository on MongoDB
type ContributionRepository struct {
	collection *mongo.Collection
}

// NewContributionRepository creates a new ContributionRepository
func NewContributionRepository(client *Client) *ContributionRepository {
	return &ContributionRepository{collection: client.database.Collection(contributionsCollection)}
}

type contributionDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	ChamaID    primitive.ObjectID `bson:"chamaId"`
	MemberID   primitive.ObjectID `bson:"memberId"`
	Amount     string             `bson:"amount"`
	Method     string             `bson:"method"`
	Reference  string             `bson:"reference,omitempty"`
	RecordedBy primitive.ObjectID `bson:"recordedBy"`
	Date       time.Time          `bson:"date"`
	CreatedAt  time.Time          `bson:"createdAt"`
}

// Create inserts a new contribution
func (r *ContributionRepository) Create(ctx context.Context, contribution *domain.Contribution) (*domain.Contribution, error) {
	if contribution.ID.IsZero() {
		contribution.ID = primitive.NewObjectID()
	}
	contribution.CreatedAt = time.Now().UTC()

	if _, err := r.collection.InsertOne(ctx, contributionToDoc(contribution)); err != nil {
		return nil, err
	}
	return contribution, nil
}

// ListByChama retrieves all contributions for a chama, newest first
func (r *ContributionRepository) ListByChama(ctx context.Context, chamaID primitive.ObjectID) ([]*domain.Contribution, error) {
	return r.list(ctx, bson.M{"chamaId": chamaID})
}

// ListByMember retrieves a member's contributions in a chama, newest first
func (r *ContributionRepository) ListByMember(ctx context.Context, chamaID, memberID primitive.ObjectID) ([]*domain.Contribution, error) {
	return r.list(ctx, bson.M{"chamaId": chamaID, "memberId": memberID})
}

// TotalByMember sums a member's contributions in a chama. Amounts are stored
// as decimal strings, so the sum happens client-side.
func (r *ContributionRepository) TotalByMember(ctx context.Context, chamaID, memberID primitive.ObjectID) (decimal.Decimal, error) {
	contributions, err := r.ListByMember(ctx, chamaID, memberID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, c := range contributions {
		total = total.Add(c.Amount)
	}
	return total, nil
}

func (r *ContributionRepository) list(ctx context.Context, filter bson.M) ([]*domain.Contribution, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"date": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []contributionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	contributions := make([]*domain.Contribution, len(docs))
	for i, doc := range docs {
		contributions[i] = docToContribution(doc)
	}
	return contributions, nil
}

func contributionToDoc(c *domain.Contribution) contributionDoc {
	return contributionDoc{
		ID:         c.ID,
		ChamaID:    c.ChamaID,
		MemberID:   c.MemberID,
		Amount:     decimalToString(c.Amount),
		Method:     c.Method,
		Reference:  c.Reference,
		RecordedBy: c.RecordedBy,
		Date:       c.Date,
		CreatedAt:  c.CreatedAt,
	}
}

func docToContribution(doc contributionDoc) *domain.Contribution {
	return &domain.Contribution{
		ID:         doc.ID,
		ChamaID:    doc.ChamaID,
		MemberID:   doc.MemberID,
		Amount:     stringToDecimal(doc.Amount),
		Method:     doc.Method,
		Reference:  doc.Reference,
		RecordedBy: doc.RecordedBy,
		Date:       doc.Date,
		CreatedAt:  doc.CreatedAt,
	}
}
