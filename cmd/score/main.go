package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"finsight/pkg/core/cache"
	"finsight/pkg/core/engine"
	"finsight/pkg/core/logging"
	"finsight/pkg/core/score"
	"finsight/pkg/core/store"
	"finsight/pkg/models"
)

const dateLayout = "2006-01-02"

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Warn(".env file not found, assuming environment variables are set")
	}

	var (
		inputPath  = flag.String("input", "", "path to a JSON file holding the transaction dataset")
		companyID  = flag.String("company", "", "company id to load from Postgres (requires DATABASE_URL)")
		fromStr    = flag.String("from", "", "analysis period start, YYYY-MM-DD (inclusive)")
		toStr      = flag.String("to", "", "analysis period end, YYYY-MM-DD (exclusive)")
		configPath = flag.String("config", "", "optional sector threshold overrides (YAML)")
	)
	flag.Parse()

	log := logging.New()
	cli := logging.WithComponent(log, "cli")
	ctx := context.Background()

	// Period flags are optional when the input file carries its own period.
	var from, to time.Time
	var err error
	if *fromStr != "" {
		if from, err = time.Parse(dateLayout, *fromStr); err != nil {
			cli.WithError(err).Fatal("invalid -from date")
		}
	}
	if *toStr != "" {
		if to, err = time.Parse(dateLayout, *toStr); err != nil {
			cli.WithError(err).Fatal("invalid -to date")
		}
	}

	var table *score.ThresholdTable
	if *configPath != "" {
		table, err = score.LoadTable(*configPath)
		if err != nil {
			cli.WithError(err).Fatal("failed to load threshold config")
		}
	}

	req := engine.ScoreRequest{
		CompanyID:   *companyID,
		PeriodStart: from,
		PeriodEnd:   to,
		Config:      table,
	}

	switch {
	case *inputPath != "":
		req.Transactions, err = loadDataset(*inputPath, &req)
		if err != nil {
			cli.WithError(err).Fatal("failed to load input dataset")
		}
	case *companyID != "":
		if err := store.InitDB(ctx); err != nil {
			cli.WithError(err).Fatal("failed to connect to database")
		}
		defer store.Close()
		req.Transactions, err = store.NewTransactionStore(store.GetPool()).
			ListTransactions(ctx, *companyID, to)
		if err != nil {
			cli.WithError(err).Fatal("failed to load transactions")
		}
	default:
		fmt.Fprintln(os.Stderr, "either -input or -company is required")
		flag.Usage()
		os.Exit(2)
	}

	scorer := cache.NewCachedScorer(engine.New(log), buildCache(ctx, log), log)

	result, err := scorer.Score(ctx, req)
	if err != nil {
		cli.WithError(err).Fatal("scoring failed")
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		cli.WithError(err).Fatal("failed to encode result")
	}
	fmt.Println(string(out))
}

// buildCache picks Redis when REDIS_ADDRESS is set, then the Postgres
// result repository when a pool is open, and falls back to in-memory.
func buildCache(ctx context.Context, log *logrus.Logger) cache.ResultCache {
	if addr := os.Getenv("REDIS_ADDRESS"); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable, falling back")
		} else {
			return cache.NewRedis(client, 0)
		}
	}
	if pool := store.GetPool(); pool != nil {
		return store.NewResultRepo(pool)
	}
	return cache.NewMemory()
}

// dataset is the file layout accepted by -input. Period and company fields
// are optional overrides for the flags.
type dataset struct {
	CompanyID    string               `json:"company_id"`
	PeriodStart  *time.Time           `json:"period_start"`
	PeriodEnd    *time.Time           `json:"period_end"`
	Transactions []models.Transaction `json:"transactions"`
}

func loadDataset(path string, req *engine.ScoreRequest) ([]models.Transaction, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ds dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if ds.CompanyID != "" {
		req.CompanyID = ds.CompanyID
	}
	if ds.PeriodStart != nil {
		req.PeriodStart = *ds.PeriodStart
	}
	if ds.PeriodEnd != nil {
		req.PeriodEnd = *ds.PeriodEnd
	}
	return ds.Transactions, nil
}
