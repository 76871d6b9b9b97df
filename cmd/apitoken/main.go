package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"brandkit/internal/infra"
	"brandkit/internal/infra/credentials"
)

func main() {
	var (
		tokenFlag string
		labelFlag string
	)
	flag.StringVar(&tokenFlag, "token", "", "prediction API token (falls back to PREDICTION_API_TOKEN)")
	flag.StringVar(&labelFlag, "label", "", "optional note stored with the token")
	flag.Parse()

	infra.LoadEnvFiles()

	token := strings.TrimSpace(tokenFlag)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("PREDICTION_API_TOKEN"))
	}
	if token == "" {
		fmt.Fprintln(os.Stderr, "prediction API token is required via -token or PREDICTION_API_TOKEN")
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "apitoken").Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	props := map[string]any{"updated_by": "apitoken"}
	if label := strings.TrimSpace(labelFlag); label != "" {
		props["label"] = label
	}
	if err := store.SetPredictionToken(ctx, token, props); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist prediction token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("prediction API token stored successfully")
}
