package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"churn-insight/advisor"
	"churn-insight/churn"
	"churn-insight/db"
	"churn-insight/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/mdobak/go-xerrors"
)

type apiError struct {
	Message string `json:"message"`
}

type datasetUploadResponse struct {
	Dataset churn.DatasetInfo `json:"dataset"`
	Stats   churn.ModelStats  `json:"stats"`
}

type healthResponse struct {
	DatasetRowCount     int              `json:"datasetRowCount"`
	DatasetPath         string           `json:"datasetPath"`
	LastUpdateTimestamp time.Time        `json:"lastUpdateTimestamp"`
	ModelStats          churn.ModelStats `json:"modelStats"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Message: message})
}

func allowCORS(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Credentials", "true")
}

// newDatasetUploadHandler accepts a multipart CSV upload and hands it to the
// aggregator. Reload and tick are mutually exclusive inside the aggregator;
// a failed reload leaves the previous analytics state untouched.
func newDatasetUploadHandler(aggregator *churn.Aggregator) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		allowCORS(w, "POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		if err := r.ParseMultipartForm(64 << 20); err != nil {
			logger.ErrorContext(ctx, "failed to parse multipart form", slog.Any("error", err))
			writeJSONError(w, http.StatusBadRequest, "invalid upload payload")
			return
		}

		file, header, err := r.FormFile("dataset")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "no dataset file provided")
			return
		}
		defer file.Close()

		uploadDir := filepath.Join("tmp", "uploads")
		if err := utils.CreateFolder(uploadDir); err != nil {
			logger.ErrorContext(ctx, "failed to create upload dir", slog.Any("error", err))
			writeJSONError(w, http.StatusInternalServerError, "internal error while preparing upload")
			return
		}

		tempFile, err := os.CreateTemp(uploadDir, "dataset-*.csv")
		if err != nil {
			logger.ErrorContext(ctx, "failed to create temp file", slog.Any("error", err))
			writeJSONError(w, http.StatusInternalServerError, "internal error while preparing upload")
			return
		}
		if _, err := io.Copy(tempFile, file); err != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
			logger.ErrorContext(ctx, "failed to persist upload", slog.Any("error", err))
			writeJSONError(w, http.StatusInternalServerError, "failed to store uploaded dataset")
			return
		}
		tempFile.Close()

		started := time.Now()
		if err := aggregator.Reload(tempFile.Name()); err != nil {
			os.Remove(tempFile.Name())
			err := xerrors.New(err)
			logger.ErrorContext(ctx, "dataset reload failed",
				slog.String("filename", header.Filename),
				slog.Any("error", err))
			writeJSONError(w, http.StatusUnprocessableEntity, "unable to ingest dataset")
			return
		}

		dataset, stats := aggregator.Health()
		logger.InfoContext(ctx, "dataset reloaded",
			slog.String("filename", header.Filename),
			slog.Int("rows", dataset.Rows),
			slog.Float64("accuracy", stats.Accuracy),
			slog.Float64("trainMs", time.Since(started).Seconds()*1000),
		)

		writeJSON(w, http.StatusOK, datasetUploadResponse{Dataset: dataset, Stats: stats})
	}
}

func newSnapshotHandler(aggregator *churn.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		if !aggregator.Ready() {
			writeJSONError(w, http.StatusServiceUnavailable, "no dataset loaded")
			return
		}
		writeJSON(w, http.StatusOK, aggregator.Snapshot())
	}
}

// newHealthHandler reads dataset metadata and model quality without blocking
// the tick loop.
func newHealthHandler(aggregator *churn.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		dataset, stats := aggregator.Health()
		writeJSON(w, http.StatusOK, healthResponse{
			DatasetRowCount:     dataset.Rows,
			DatasetPath:         dataset.Path,
			LastUpdateTimestamp: dataset.UpdatedAt,
			ModelStats:          stats,
		})
	}
}

func newAlertHistoryHandler(store db.HistoryStore) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if store == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "history store disabled")
			return
		}

		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}

		alerts, err := store.RecentAlerts(limit)
		if err != nil {
			logger.ErrorContext(context.Background(), "failed to load alert history", slog.Any("error", err))
			writeJSONError(w, http.StatusInternalServerError, "failed to load alert history")
			return
		}
		writeJSON(w, http.StatusOK, alerts)
	}
}

func newAdvisorHandler(aggregator *churn.Aggregator, client *advisor.GeminiClient) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if client == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "advisor not configured")
			return
		}

		var payload struct {
			Question string `json:"question"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || strings.TrimSpace(payload.Question) == "" {
			writeJSONError(w, http.StatusBadRequest, "question is required")
			return
		}

		brief, err := client.GenerateBrief(aggregator.Snapshot(), payload.Question)
		if err != nil {
			logger.ErrorContext(context.Background(), "advisor request failed", slog.Any("error", err))
			writeJSONError(w, http.StatusBadGateway, "advisor request failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"answer": brief})
	}
}

func serve(protocol, port string) {
	logger := utils.GetLogger()
	ctx := context.Background()

	var allowOriginFunc = func(r *http.Request) bool {
		return true
	}

	cfg := trainingConfigFromEnv()
	aggregator := churn.NewAggregator(cfg)

	datasetPath := utils.GetEnv("CHURN_DATASET_PATH", filepath.Join("data", "customers.csv"))
	if err := aggregator.Reload(datasetPath); err != nil {
		logger.WarnContext(ctx, "initial dataset load failed; waiting for upload",
			slog.String("path", datasetPath),
			slog.Any("error", err))
	} else {
		dataset, stats := aggregator.Health()
		log.Printf("Loaded dataset %s (%d rows, accuracy %.2f%%)", datasetPath, dataset.Rows, stats.Accuracy)
	}

	var store db.HistoryStore
	if strings.EqualFold(utils.GetEnv("CHURN_PERSIST_HISTORY", "true"), "true") {
		client, err := db.NewHistoryStore()
		if err != nil {
			logger.WarnContext(ctx, "history store unavailable; continuing without persistence",
				slog.Any("error", err))
		} else {
			store = client
			defer store.Close()
		}
	}

	var advisorClient *advisor.GeminiClient
	if client, err := advisor.NewGeminiClient(); err != nil {
		logger.WarnContext(ctx, "retention advisor disabled", slog.Any("error", err))
	} else {
		advisorClient = client
	}

	tickInterval, err := time.ParseDuration(utils.GetEnv("CHURN_TICK_INTERVAL", "2s"))
	if err != nil || tickInterval <= 0 {
		tickInterval = 2 * time.Second
	}

	server := socketio.NewServer(&engineio.Options{
		PingTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: allowOriginFunc,
			},
			&polling.Transport{
				CheckOrigin: allowOriginFunc,
			},
		},
	})

	controller := newSocketController(aggregator, server, store)
	registerSocketHandlers(server, controller)

	go func() {
		if err := server.Serve(); err != nil {
			log.Fatalf("socketio listen error: %s\n", err)
		}
	}()
	defer server.Close()

	go controller.runTicker(tickInterval)

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", server)
	mux.HandleFunc("/api/dataset/upload", newDatasetUploadHandler(aggregator))
	mux.HandleFunc("/api/snapshot", newSnapshotHandler(aggregator))
	mux.HandleFunc("/api/health", newHealthHandler(aggregator))
	mux.HandleFunc("/api/alerts/history", newAlertHistoryHandler(store))
	mux.HandleFunc("/api/advisor", newAdvisorHandler(aggregator, advisorClient))
	mux.Handle("/", http.FileServer(http.Dir("static")))

	serveHTTP(strings.EqualFold(protocol, "https"), port, mux)
}

func trainingConfigFromEnv() churn.TrainingConfig {
	cfg := churn.DefaultTrainingConfig()
	if raw := utils.GetEnv("CHURN_EPOCHS", ""); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			cfg.Epochs = parsed
		}
	}
	if raw := utils.GetEnv("CHURN_LEARNING_RATE", ""); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 {
			cfg.LearningRate = parsed
		}
	}
	if raw := utils.GetEnv("CHURN_L2", ""); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed >= 0 {
			cfg.L2 = parsed
		}
	}
	return cfg
}

func serveHTTP(serveHTTPS bool, port string, handler http.Handler) {
	if serveHTTPS {
		certFile := utils.GetEnv("CERT_FILE", "")
		certKey := utils.GetEnv("CERT_KEY", "")
		if certFile == "" || certKey == "" {
			log.Fatal("Missing cert")
		}

		log.Printf("Starting HTTPS server on port %v", port)
		if err := http.ListenAndServeTLS(":"+port, certFile, certKey, handler); err != nil {
			log.Fatalf("HTTPS server ListenAndServeTLS: %v", err)
		}
		return
	}

	log.Printf("Starting HTTP server on port %v", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("HTTP server ListenAndServe: %v", err)
	}
}
