package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"churn-insight/churn"
	"churn-insight/utils"
)

func main() {
	defaultData := utils.GetEnv("CHURN_DATASET_PATH", filepath.Join("data", "customers.csv"))
	defaultEpochs := getEnvInt("CHURN_EPOCHS", churn.DefaultTrainingConfig().Epochs)

	dataFlag := flag.String("data", defaultData, "Path to customer dataset CSV")
	epochsFlag := flag.Int("epochs", defaultEpochs, "Gradient descent epochs")
	lrFlag := flag.Float64("lr", churn.DefaultTrainingConfig().LearningRate, "Learning rate")
	l2Flag := flag.Float64("l2", churn.DefaultTrainingConfig().L2, "L2 regularization strength")
	topFlag := flag.Int("top", 10, "Number of top-risk customers to print")
	flag.Parse()

	records, err := churn.LoadDataset(*dataFlag)
	if err != nil {
		log.Fatalf("failed to load dataset: %v", err)
	}
	if len(records) == 0 {
		log.Fatalf("no rows found in %s", *dataFlag)
	}

	fmt.Printf("Training on %d rows from %s (epochs=%d, lr=%.3f, l2=%.4f)\n\n",
		len(records), *dataFlag, *epochsFlag, *lrFlag, *l2Flag)

	start := time.Now()
	rows := churn.ExtractAll(records)
	model := churn.Train(rows, churn.TrainingConfig{
		Epochs:       *epochsFlag,
		LearningRate: *lrFlag,
		L2:           *l2Flag,
	})
	scored := churn.ScoreAll(rows, model)
	stats := churn.Evaluate(scored, churn.DefaultThreshold)
	elapsed := time.Since(start).Seconds() * 1000

	fmt.Printf("Accuracy:  %6.2f%%\n", stats.Accuracy)
	fmt.Printf("Precision: %6.2f%%\n", stats.Precision)
	fmt.Printf("Recall:    %6.2f%%\n", stats.Recall)
	fmt.Printf("F1:        %6.2f%%\n", stats.F1)
	fmt.Printf("Confusion: TP=%d TN=%d FP=%d FN=%d (threshold=%.0f)\n\n",
		stats.TruePositives, stats.TrueNegatives, stats.FalsePositives, stats.FalseNegatives, stats.Threshold)

	printTopRisk(scored, *topFlag)
	fmt.Printf("Elapsed: %.2fms\n", elapsed)
}

func printTopRisk(scored []churn.ScoredRow, limit int) {
	ranked := make([]churn.ScoredRow, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ChurnRisk > ranked[j].ChurnRisk
	})

	fmt.Println("Top risk customers:")
	for idx, row := range ranked {
		if idx >= limit {
			break
		}
		driver := ""
		if len(row.Drivers) > 0 {
			driver = fmt.Sprintf("%s (%s %.3f)", row.Drivers[0].Feature, row.Drivers[0].Direction, row.Drivers[0].Impact)
		}
		fmt.Printf("  #%-2d %-12s %-12s risk=%6.2f%% tier=%-8s %s\n",
			idx+1, row.ID, row.Segment, row.ChurnRisk, row.Tier, driver)
	}
	fmt.Println()
}

func getEnvInt(key string, fallback int) int {
	val := utils.GetEnv(key, "")
	if val == "" {
		return fallback
	}
	if parsed, err := strconv.Atoi(val); err == nil {
		return parsed
	}
	return fallback
}
