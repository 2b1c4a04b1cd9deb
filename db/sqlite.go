package db

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"churn-insight/churn"
	"churn-insight/utils"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

type SQLiteClient struct {
	db *sql.DB
}

func NewSQLiteClient(dataSourceName string) (*SQLiteClient, error) {
	// Extract the file path before query parameters
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "" {
		if err := utils.CreateFolder(dbDir); err != nil {
			return nil, fmt.Errorf("error creating database directory: %s", err)
		}
	}

	// Add busy timeout param to DSN (milliseconds)
	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000" // 5 seconds
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %s", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("error creating tables: %s", err)
	}

	return &SQLiteClient{db: db}, nil
}

func createTables(db *sql.DB) error {
	createTicksTable := `
    CREATE TABLE IF NOT EXISTS ticks (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        avg_risk REAL NOT NULL DEFAULT 0,
        predicted_churners INTEGER NOT NULL DEFAULT 0,
        active_sessions INTEGER NOT NULL DEFAULT 0,
        alert_count INTEGER NOT NULL DEFAULT 0
    );
    CREATE INDEX IF NOT EXISTS idx_ticks_timestamp ON ticks(timestamp);
    `

	createAlertsTable := `
    CREATE TABLE IF NOT EXISTS alerts (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        severity TEXT NOT NULL,
        segment TEXT,
        message TEXT NOT NULL,
        load REAL NOT NULL DEFAULT 0
    );
    CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp);
    CREATE INDEX IF NOT EXISTS idx_alerts_segment ON alerts(segment);
    `

	if _, err := db.Exec(createTicksTable); err != nil {
		return fmt.Errorf("error creating ticks table: %s", err)
	}
	if _, err := db.Exec(createAlertsTable); err != nil {
		return fmt.Errorf("error creating alerts table: %s", err)
	}

	return nil
}

func (c *SQLiteClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// StoreTick appends one per-tick summary row.
func (c *SQLiteClient) StoreTick(summary TickSummary) error {
	_, err := c.db.Exec(`
		INSERT INTO ticks (timestamp, avg_risk, predicted_churners, active_sessions, alert_count)
		VALUES (?, ?, ?, ?, ?)`,
		summary.Timestamp,
		summary.AvgRisk,
		summary.PredictedChurners,
		summary.ActiveSessions,
		summary.AlertCount,
	)
	if err != nil {
		return fmt.Errorf("error storing tick summary: %s", err)
	}
	return nil
}

// StoreAlerts appends every alert of one tick inside a single transaction.
func (c *SQLiteClient) StoreAlerts(timestamp time.Time, alerts []churn.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %s", err)
	}

	stmt, err := tx.Prepare("INSERT INTO alerts (timestamp, severity, segment, message, load) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("error preparing statement: %s", err)
	}
	defer stmt.Close()

	for _, alert := range alerts {
		if _, err := stmt.Exec(timestamp, alert.Severity, alert.Segment, alert.Message, alert.Load); err != nil {
			tx.Rollback()
			return fmt.Errorf("error executing statement: %s", err)
		}
	}

	return tx.Commit()
}

// RecentAlerts returns the newest alert events, newest first.
func (c *SQLiteClient) RecentAlerts(limit int) ([]StoredAlert, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := c.db.Query(`
		SELECT id, timestamp, severity, segment, message, load
		FROM alerts
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying alerts: %s", err)
	}
	defer rows.Close()

	var alerts []StoredAlert
	for rows.Next() {
		var alert StoredAlert
		var segment sql.NullString
		if err := rows.Scan(&alert.ID, &alert.Timestamp, &alert.Severity, &segment, &alert.Message, &alert.Load); err != nil {
			return nil, fmt.Errorf("error scanning alert: %s", err)
		}
		alert.Segment = segment.String
		alerts = append(alerts, alert)
	}

	return alerts, nil
}
