package storeinfra

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-query-cache/query/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DocumentConfig points at a MongoDB deployment.
type DocumentConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

func (c DocumentConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.URI, validation.Required),
		validation.Field(&c.Database, validation.Required),
	)
}

// DocumentStore is a connected MongoDB client bound to one database.
type DocumentStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// ConnectDocument connects and pings the deployment described by cfg.
func ConnectDocument(ctx context.Context, cfg DocumentConfig) (*DocumentStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("storeinfra: connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("storeinfra: ping mongo: %w", err)
	}
	return &DocumentStore{client: client, db: client.Database(cfg.Database)}, nil
}

func (s *DocumentStore) Database() *mongo.Database { return s.db }

func (s *DocumentStore) Collection(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// Find compiles filter and decodes every matching document of coll.
func (s *DocumentStore) Find(ctx context.Context, coll string, filter any, opts ...*options.FindOptions) ([]bson.M, error) {
	f, err := document.Compile(filter)
	if err != nil {
		return nil, err
	}
	cur, err := s.db.Collection(coll).Find(ctx, f, opts...)
	if err != nil {
		return nil, err
	}
	var out []bson.M
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count compiles filter and counts the matching documents of coll.
func (s *DocumentStore) Count(ctx context.Context, coll string, filter any) (int64, error) {
	f, err := document.Compile(filter)
	if err != nil {
		return 0, err
	}
	return s.db.Collection(coll).CountDocuments(ctx, f)
}

func (s *DocumentStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
