package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"moldubot/config"
	"moldubot/internal/evaluation"
	"moldubot/internal/intent"
	"moldubot/internal/repository"
	"moldubot/internal/service"
	"moldubot/pkg/db"
	"moldubot/pkg/logger"
)

func main() {
	useModel := flag.Bool("model", false, "evaluate the model path instead of the rule engine only")
	minAccuracy := flag.Float64("min-accuracy-all-fields", 95.0, "minimum all-field accuracy (%)")
	maxLatency := flag.Float64("max-avg-latency-ms", 2500.0, "maximum average latency (ms)")
	output := flag.String("output-json", "", "optional path for the JSON report")
	env := flag.String("env", "", "config env (defaults to CONFIG_ENV or local)")
	configDir := flag.String("config-dir", "", "config directory (defaults to CONFIG_DIR or ./config)")
	auditCounts := flag.Bool("audit-counts", false, "print the source mix of recorded decompositions and exit")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: "warn"})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if *auditCounts {
		if err := printAuditCounts(*env, *configDir, log); err != nil {
			log.Fatal("Failed to read audit counts", zap.Error(err))
		}
		return
	}

	mode := "offline-rule-only"
	var parser *intent.Parser
	if *useModel {
		cfg, err := config.Load(*env, *configDir)
		if err != nil {
			log.Fatal("Failed to load config", zap.Error(err))
		}
		mode = "model-parser"
		parser = service.NewIntentParser(cfg.Intent, log)
	} else {
		parser = intent.NewParser(intent.Unavailable(), zap.NewNop())
	}

	parse := parser.Parse
	if !*useModel {
		parse = func(_ context.Context, utterance string) intent.Decomposition {
			return parser.RuleDecomposition(utterance)
		}
	}

	report := evaluation.Run(context.Background(), mode, parse, evaluation.EdgeCases(time.Now().Year()))

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatal("Failed to encode report", zap.Error(err))
	}
	if *output != "" {
		if err := os.WriteFile(*output, body, 0o644); err != nil {
			log.Fatal("Failed to write report", zap.String("path", *output), zap.Error(err))
		}
	}
	fmt.Println(string(body))

	if !report.Gate(*minAccuracy, *maxLatency) {
		fmt.Printf("QUALITY_GATE=FAIL accuracy_all_fields<%v or avg_elapsed_ms>%v\n", *minAccuracy, *maxLatency)
		os.Exit(1)
	}
	fmt.Printf("QUALITY_GATE=PASS accuracy_all_fields>=%v, avg_elapsed_ms<=%v\n", *minAccuracy, *maxLatency)
}

// printAuditCounts reports how often the model path was used in production.
func printAuditCounts(env, dir string, log *zap.Logger) error {
	cfg, err := config.Load(env, dir)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	counts, err := repository.NewDecompositionRepository(pool).CountBySource(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	return nil
}
