package db

import (
	"fmt"
	"time"

	"churn-insight/churn"
	"churn-insight/utils"
)

// StoredAlert is one persisted alert event from the history log.
type StoredAlert struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Severity  string    `json:"severity"`
	Segment   string    `json:"segment,omitempty"`
	Message   string    `json:"message"`
	Load      float64   `json:"load"`
}

// TickSummary is the per-tick roll-up appended to the history log.
type TickSummary struct {
	Timestamp         time.Time `json:"timestamp"`
	AvgRisk           float64   `json:"avgRisk"`
	PredictedChurners int       `json:"predictedChurners"`
	ActiveSessions    int       `json:"activeSessions"`
	AlertCount        int       `json:"alertCount"`
}

// HistoryStore is an append-only operational log of alerts and tick
// summaries. It is deliberately not the analytics state: the window, model
// and cursor live in memory and are rebuilt from the source dataset.
type HistoryStore interface {
	StoreTick(summary TickSummary) error
	StoreAlerts(timestamp time.Time, alerts []churn.Alert) error
	RecentAlerts(limit int) ([]StoredAlert, error)
	Close() error
}

// NewHistoryStore selects the backing store from DB_TYPE ("sqlite" by
// default, or "mongo").
func NewHistoryStore() (HistoryStore, error) {
	dbType := utils.GetEnv("DB_TYPE", "sqlite")
	switch dbType {
	case "sqlite":
		return NewSQLiteClient(utils.GetEnv("SQLITE_DB_PATH", "storage/history.db"))
	case "mongo":
		return NewMongoClient(utils.GetEnv("MONGO_URI", "mongodb://localhost:27017"))
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE: %s", dbType)
	}
}
