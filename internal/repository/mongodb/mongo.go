package mongodb

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/chamapesa/chamapesa-backend/internal/config"
)

// Collection names
const (
	loansCollection         = "loans"
	chamasCollection        = "chamas"
	usersCollection         = "users"
	contributionsCollection = "contributions"
	notificationsCollection = "notifications"
)

// Client wraps the Mongo connection and the application database
type Client struct {
	client   *mongo.Client
	database *mongo.Database
}

// Connect establishes a MongoDB connection and verifies it with a ping
func Connect(ctx context.Context, cfg *config.Config) (*Client, error) {
	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	log.Info().Str("database", cfg.MongoDatabase).Msg("Connected to MongoDB")

	return &Client{
		client:   client,
		database: client.Database(cfg.MongoDatabase),
	}, nil
}

// Disconnect closes the underlying connection
func (c *Client) Disconnect(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// WithTransaction implements domain.TxRunner using a session-scoped Mongo
// transaction. Repository calls made with the callback's context join the
// transaction; any error aborts it.
func (c *Client) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := c.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(context.Background())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
