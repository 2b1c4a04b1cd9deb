package db

import (
	"context"
	"fmt"
	"time"

	"churn-insight/churn"
	"churn-insight/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoClient struct {
	client   *mongo.Client
	database string
}

func NewMongoClient(uri string) (*MongoClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %s", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("error pinging MongoDB: %s", err)
	}

	return &MongoClient{
		client:   client,
		database: utils.GetEnv("MONGO_DATABASE", "churn_insight"),
	}, nil
}

func (c *MongoClient) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Disconnect(ctx)
}

func (c *MongoClient) StoreTick(summary TickSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	collection := c.client.Database(c.database).Collection("ticks")
	_, err := collection.InsertOne(ctx, bson.M{
		"timestamp":          summary.Timestamp,
		"avg_risk":           summary.AvgRisk,
		"predicted_churners": summary.PredictedChurners,
		"active_sessions":    summary.ActiveSessions,
		"alert_count":        summary.AlertCount,
	})
	if err != nil {
		return fmt.Errorf("error storing tick summary: %s", err)
	}
	return nil
}

func (c *MongoClient) StoreAlerts(timestamp time.Time, alerts []churn.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	docs := make([]interface{}, 0, len(alerts))
	for _, alert := range alerts {
		docs = append(docs, bson.M{
			"timestamp": timestamp,
			"severity":  alert.Severity,
			"segment":   alert.Segment,
			"message":   alert.Message,
			"load":      alert.Load,
		})
	}

	collection := c.client.Database(c.database).Collection("alerts")
	if _, err := collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("error storing alerts: %s", err)
	}
	return nil
}

func (c *MongoClient) RecentAlerts(limit int) ([]StoredAlert, error) {
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	collection := c.client.Database(c.database).Collection("alerts")
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(int64(limit))
	cursor, err := collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying alerts: %s", err)
	}
	defer cursor.Close(ctx)

	var alerts []StoredAlert
	for cursor.Next(ctx) {
		var doc struct {
			Timestamp time.Time `bson:"timestamp"`
			Severity  string    `bson:"severity"`
			Segment   string    `bson:"segment"`
			Message   string    `bson:"message"`
			Load      float64   `bson:"load"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("error decoding alert: %s", err)
		}
		alerts = append(alerts, StoredAlert{
			Timestamp: doc.Timestamp,
			Severity:  doc.Severity,
			Segment:   doc.Segment,
			Message:   doc.Message,
			Load:      doc.Load,
		})
	}

	return alerts, nil
}
