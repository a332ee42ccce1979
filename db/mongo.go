package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on MongoDB. Nested plan fields are kept as
// serialized text, same as the SQL tables.
type MongoStore struct {
	client      *mongo.Client
	plans       *mongo.Collection
	expenses    *mongo.Collection
	preferences *mongo.Collection
	configs     *mongo.Collection
}

func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	if database == "" {
		database = "wanderplan"
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	d := client.Database(database)
	s := &MongoStore{
		client:      client,
		plans:       d.Collection("travel_plans"),
		expenses:    d.Collection("expenses"),
		preferences: d.Collection("user_preferences"),
		configs:     d.Collection("user_system_configs"),
	}
	if err := s.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) createIndexes(ctx context.Context) error {
	_, err := s.plans.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "plan_name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create plan indexes: %w", err)
	}
	_, err = s.expenses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "travel_plan_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create expense index: %w", err)
	}
	_, err = s.preferences.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create preference index: %w", err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var newestFirst = options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

func (s *MongoStore) PlanNamesWithPrefix(ctx context.Context, userID, prefix string) ([]string, error) {
	filter := bson.M{
		"user_id":   userID,
		"plan_name": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)},
	}
	cursor, err := s.plans.Find(ctx, filter, options.Find().SetProjection(bson.M{"plan_name": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var names []string
	for cursor.Next(ctx) {
		var doc struct {
			PlanName string `bson:"plan_name"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		names = append(names, doc.PlanName)
	}
	return names, cursor.Err()
}

func (s *MongoStore) InsertPlan(ctx context.Context, row PlanRow) error {
	_, err := s.plans.InsertOne(ctx, row)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateName
	}
	return err
}

func (s *MongoStore) ListPlans(ctx context.Context, userID string) ([]PlanRow, error) {
	cursor, err := s.plans.Find(ctx, bson.M{"user_id": userID}, newestFirst)
	if err != nil {
		return nil, err
	}
	rows := []PlanRow{}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *MongoStore) GetPlan(ctx context.Context, planID, userID string) (PlanRow, error) {
	var row PlanRow
	err := s.plans.FindOne(ctx, bson.M{"_id": planID, "user_id": userID}).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return PlanRow{}, ErrNotFound
	}
	return row, err
}

func (s *MongoStore) UpdatePlan(ctx context.Context, planID, userID string, fields Fields) (PlanRow, error) {
	if len(fields) > 0 {
		res, err := s.plans.UpdateOne(ctx,
			bson.M{"_id": planID, "user_id": userID},
			bson.M{"$set": bson.M(fields)},
		)
		if mongo.IsDuplicateKeyError(err) {
			return PlanRow{}, ErrDuplicateName
		}
		if err != nil {
			return PlanRow{}, err
		}
		if res.MatchedCount == 0 {
			return PlanRow{}, ErrNotFound
		}
	}
	return s.GetPlan(ctx, planID, userID)
}

func (s *MongoStore) DeletePlan(ctx context.Context, planID, userID string) error {
	return deleteOwned(ctx, s.plans, planID, userID)
}

func deleteOwned(ctx context.Context, coll *mongo.Collection, id, userID string) error {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) InsertExpense(ctx context.Context, row ExpenseRow) error {
	_, err := s.expenses.InsertOne(ctx, row)
	return err
}

func (s *MongoStore) ListExpenses(ctx context.Context, planID, userID string) ([]ExpenseRow, error) {
	cursor, err := s.expenses.Find(ctx, bson.M{"travel_plan_id": planID, "user_id": userID}, newestFirst)
	if err != nil {
		return nil, err
	}
	rows := []ExpenseRow{}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *MongoStore) DeleteExpense(ctx context.Context, id, userID string) error {
	return deleteOwned(ctx, s.expenses, id, userID)
}

func (s *MongoStore) InsertPreference(ctx context.Context, row PreferenceRow) error {
	_, err := s.preferences.InsertOne(ctx, row)
	return err
}

func (s *MongoStore) ListPreferences(ctx context.Context, userID string) ([]PreferenceRow, error) {
	cursor, err := s.preferences.Find(ctx, bson.M{"user_id": userID}, newestFirst)
	if err != nil {
		return nil, err
	}
	rows := []PreferenceRow{}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *MongoStore) DeletePreference(ctx context.Context, id, userID string) error {
	return deleteOwned(ctx, s.preferences, id, userID)
}

func (s *MongoStore) GetSystemConfig(ctx context.Context, userID string) (ConfigRow, error) {
	var row ConfigRow
	err := s.configs.FindOne(ctx, bson.M{"_id": userID}).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ConfigRow{}, ErrNotFound
	}
	return row, err
}

func (s *MongoStore) UpsertSystemConfig(ctx context.Context, row ConfigRow) error {
	_, err := s.configs.ReplaceOne(ctx, bson.M{"_id": row.UserID}, row, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) DeleteSystemConfig(ctx context.Context, userID string) error {
	_, err := s.configs.DeleteOne(ctx, bson.M{"_id": userID})
	return err
}
