package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"daily-planner/internal/plan"
	"daily-planner/internal/user"
)

// MongoStorage implements the Storage interface using MongoDB
type MongoStorage struct {
	client         *mongo.Client
	database       *mongo.Database
	userCollection *mongo.Collection
	planCollection *mongo.Collection
}

// NewMongoStorage creates a new MongoDB storage instance
func NewMongoStorage(connectionString, databaseName string) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Test the connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(databaseName)

	ms := &MongoStorage{
		client:         client,
		database:       database,
		userCollection: database.Collection("users"),
		planCollection: database.Collection("plans"),
	}

	if err := ms.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return ms, nil
}

// Close closes the MongoDB connection
func (ms *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ms.client.Disconnect(ctx)
}

// createIndexes enforces unique user names and one plan per (user, date).
func (ms *MongoStorage) createIndexes(ctx context.Context) error {
	_, err := ms.userCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("users: %w", err)
	}

	_, err = ms.planCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("plans: %w", err)
	}
	return nil
}

// User operations

func (ms *MongoStorage) CreateUser(ctx context.Context, u *user.User) error {
	_, err := ms.userCollection.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (ms *MongoStorage) findUser(ctx context.Context, filter bson.M, label string) (*user.User, error) {
	var u user.User
	err := ms.userCollection.FindOne(ctx, filter).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user %s: %w", label, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (ms *MongoStorage) GetUser(ctx context.Context, id string) (*user.User, error) {
	return ms.findUser(ctx, bson.M{"id": id}, id)
}

func (ms *MongoStorage) GetUserByName(ctx context.Context, name string) (*user.User, error) {
	return ms.findUser(ctx, bson.M{"name": name}, fmt.Sprintf("%q", name))
}

func (ms *MongoStorage) DeleteUser(ctx context.Context, id string) error {
	if _, err := ms.planCollection.DeleteMany(ctx, bson.M{"userId": id}); err != nil {
		return fmt.Errorf("failed to delete plans: %w", err)
	}

	result, err := ms.userCollection.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}

// Plan operations

func planFilter(userID, date string) bson.M {
	return bson.M{"userId": userID, "date": date}
}

func (ms *MongoStorage) GetPlan(ctx context.Context, userID, date string) (*plan.Plan, error) {
	var p plan.Plan
	err := ms.planCollection.FindOne(ctx, planFilter(userID, date)).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("plan for %s on %s: %w", userID, date, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	p.Normalize()
	return &p, nil
}

func (ms *MongoStorage) UpsertPlan(ctx context.Context, p *plan.Plan) error {
	var existing plan.Plan
	err := ms.planCollection.FindOne(ctx, planFilter(p.UserID, p.Date)).Decode(&existing)
	var prev *plan.Plan
	switch {
	case err == nil:
		prev = &existing
	case !errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("failed to look up plan: %w", err)
	}

	c := prepareUpsert(p, prev)
	opts := options.Replace().SetUpsert(true)
	if _, err := ms.planCollection.ReplaceOne(ctx, planFilter(c.UserID, c.Date), c, opts); err != nil {
		return fmt.Errorf("failed to upsert plan: %w", err)
	}
	return nil
}

func (ms *MongoStorage) DeletePlan(ctx context.Context, userID, date string) error {
	result, err := ms.planCollection.DeleteOne(ctx, planFilter(userID, date))
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("plan for %s on %s: %w", userID, date, ErrNotFound)
	}
	return nil
}

func (ms *MongoStorage) ListPlans(ctx context.Context, userID string) ([]*plan.Plan, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cursor, err := ms.planCollection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer cursor.Close(ctx)

	var plans []*plan.Plan
	for cursor.Next(ctx) {
		var p plan.Plan
		if err := cursor.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to decode plan: %w", err)
		}
		p.Normalize()
		plans = append(plans, &p)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return plans, nil
}

// MarkReminderNotified patches only the matching element of the reminders
// array, so a concurrent save of the rest of the plan is not overwritten.
func (ms *MongoStorage) MarkReminderNotified(ctx context.Context, userID, date string, reminderID int) error {
	filter := bson.M{"userId": userID, "date": date, "reminders.id": reminderID}
	update := bson.M{"$set": bson.M{"reminders.$[r].notified": true}}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"r.id": reminderID}},
	})

	result, err := ms.planCollection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to mark reminder notified: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("reminder %d on %s: %w", reminderID, date, ErrNotFound)
	}
	return nil
}
