package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"edu-consult/internal/config"
)

const UsersCollection = "users"

// NewMongoClient conecta con MongoDB y verifica la conexión con un ping.
func NewMongoClient(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetConnectTimeout(5 * time.Second).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// UsersCollectionOf devuelve la colección de usuarios de la base configurada.
func UsersCollectionOf(client *mongo.Client, cfg *config.Config) *mongo.Collection {
	return client.Database(cfg.MongoDatabase).Collection(UsersCollection)
}
