package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/chamapesa/chamapesa-backend/internal/domain"
)

// NotificationRepository implements domain.NotificationRepository on MongoDB
type NotificationRepository struct {
	collection *mongo.Collection
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(client *Client) *NotificationRepository {
	return &NotificationRepository{collection: client.database.Collection(notificationsCollection)}
}

// Create inserts a notification record
func (r *NotificationRepository) Create(ctx context.Context, notification *domain.Notification) (*domain.Notification, error) {
	if notification.ID.IsZero() {
		notification.ID = primitive.NewObjectID()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	if _, err := r.collection.InsertOne(ctx, notification); err != nil {
		return nil, err
	}
	return notification, nil
}

// ListByRecipient retrieves the most recent notifications addressed to a user
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID primitive.ObjectID, limit int64) ([]*domain.Notification, error) {
	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, bson.M{"recipientIds": recipientID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var notifications []*domain.Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}
