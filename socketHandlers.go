package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"churn-insight/churn"
	"churn-insight/db"
	"churn-insight/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/mdobak/go-xerrors"
)

// socketController pushes the analytics snapshot to connected dashboards and
// answers on-demand state requests.
type socketController struct {
	aggregator *churn.Aggregator
	server     *socketio.Server
	store      db.HistoryStore
}

func newSocketController(aggregator *churn.Aggregator, server *socketio.Server, store db.HistoryStore) *socketController {
	return &socketController{aggregator: aggregator, server: server, store: store}
}

func (c *socketController) emitSnapshot(socket socketio.Conn) {
	socket.Emit("snapshot", c.aggregator.Snapshot())
}

func (c *socketController) handleRequestSnapshot(socket socketio.Conn) {
	if !c.aggregator.Ready() {
		socket.Emit("analyticsError", map[string]string{"message": "no dataset loaded"})
		return
	}
	c.emitSnapshot(socket)
}

func (c *socketController) handleRequestModelInfo(socket socketio.Conn) {
	dataset, stats := c.aggregator.Health()
	socket.Emit("modelInfo", map[string]interface{}{
		"dataset": dataset,
		"stats":   stats,
	})
}

// runTicker drives the aggregator at a fixed interval and broadcasts every
// published snapshot. Each emission is a complete replacement; clients never
// receive incremental diffs.
func (c *socketController) runTicker(interval time.Duration) {
	logger := utils.GetLogger()
	ctx := context.Background()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		snapshot, ok := c.aggregator.Tick()
		if !ok {
			continue
		}

		c.server.BroadcastToNamespace("/", "snapshot", snapshot)

		if c.store == nil {
			continue
		}

		now := time.Now()
		summary := db.TickSummary{
			Timestamp:         now,
			AvgRisk:           snapshot.KPIs.AvgRisk,
			PredictedChurners: snapshot.KPIs.PredictedChurners,
			ActiveSessions:    snapshot.KPIs.ActiveSessions,
			AlertCount:        len(snapshot.Alerts),
		}
		if err := c.store.StoreTick(summary); err != nil {
			err := xerrors.New(err)
			logger.WarnContext(ctx, "failed to persist tick summary", slog.Any("error", err))
		}
		if err := c.store.StoreAlerts(now, snapshot.Alerts); err != nil {
			err := xerrors.New(err)
			logger.WarnContext(ctx, "failed to persist alerts", slog.Any("error", err))
		}
	}
}

func registerSocketHandlers(server *socketio.Server, controller *socketController) {
	server.OnConnect("/", func(socket socketio.Conn) error {
		socket.SetContext("")
		log.Printf("CONNECTED: %s, remote addr: %s\n", socket.ID(), socket.RemoteAddr())
		controller.emitSnapshot(socket)
		return nil
	})

	server.OnEvent("/", "requestSnapshot", func(socket socketio.Conn) {
		controller.handleRequestSnapshot(socket)
	})

	server.OnEvent("/", "requestModelInfo", func(socket socketio.Conn) {
		controller.handleRequestModelInfo(socket)
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		log.Println("meet error:", e)
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Printf("Socket disconnected - ID: %s, Reason: %s\n", s.ID(), reason)
	})
}
