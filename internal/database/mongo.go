package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection         = "users"
	roomsCollection         = "rooms"
	conversationsCollection = "conversations"

	defaultOpTimeout = 10 * time.Second
)

// ErrNotFound is returned when a lookup matches no document. Callers
// check it with errors.Is without importing the driver.
var ErrNotFound = mongo.ErrNoDocuments

type MongoChatRepository struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoChatRepository(ctx context.Context, uri, dbName string) (*MongoChatRepository, error) {
	connectCtx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &MongoChatRepository{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

func (r *MongoChatRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

func (r *MongoChatRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique and lookup indexes the repository
// depends on. Safe to call on every startup.
func (r *MongoChatRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := r.db.Collection(usersCollection).Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}

	roomIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "roomId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "roomName", Value: 1}},
		},
	}
	if _, err := r.db.Collection(roomsCollection).Indexes().CreateMany(ctx, roomIndexes); err != nil {
		return fmt.Errorf("room indexes: %w", err)
	}

	convIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "users", Value: 1}},
		},
	}
	if _, err := r.db.Collection(conversationsCollection).Indexes().CreateMany(ctx, convIndexes); err != nil {
		return fmt.Errorf("conversation indexes: %w", err)
	}

	return nil
}

func (r *MongoChatRepository) users() *mongo.Collection {
	return r.db.Collection(usersCollection)
}

func (r *MongoChatRepository) rooms() *mongo.Collection {
	return r.db.Collection(roomsCollection)
}

func (r *MongoChatRepository) conversations() *mongo.Collection {
	return r.db.Collection(conversationsCollection)
}
