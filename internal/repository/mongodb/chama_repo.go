package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/chamapesa/chamapesa-backend/internal/domain"
)

// ChamaRepository implements domain.ChamaRepository on MongoDB
type ChamaRepository struct {
	collection *mongo.Collection
}

// NewChamaRepository creates a new ChamaRepository
func NewChamaRepository(client *Client) *ChamaRepository {
	return &ChamaRepository{collection: client.database.Collection(chamasCollection)}
}

// GetByID retrieves a chama with its membership roll
func (r *ChamaRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Chama, error) {
	var chama domain.Chama
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&chama)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrChamaNotFound
		}
		return nil, err
	}
	return &chama, nil
}
