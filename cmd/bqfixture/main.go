package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"google.golang.org/api/option"

	bq "github.com/quarterlake/bqfixture/pkg/bigquery"
	"github.com/quarterlake/bqfixture/pkg/lifecycle"
	"github.com/quarterlake/bqfixture/pkg/loader"
	"github.com/quarterlake/bqfixture/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")

	// BigQuery configuration
	projectFlag := flag.String("project", "", "GCP project id (or set BQFIXTURE_PROJECT env var)")
	credentialsFlag := flag.String("credentials-file", "", "service account credentials JSON file (or set GOOGLE_APPLICATION_CREDENTIALS env var)")
	prefixFlag := flag.String("prefix", lifecycle.DefaultVersionPrefix, "transient dataset version prefix")
	staleAfterFlag := flag.Duration("stale-after", lifecycle.DefaultStaleAfter, "staleness window for transient datasets")

	// Commands
	sweepFlag := flag.Bool("sweep", false, "Delete transient datasets older than the staleness window")
	destroyFlag := flag.String("destroy", "", "Destroy the transient dataset for the given database name")

	flag.Parse()

	// Best-effort: a missing .env file is fine.
	_ = godotenv.Load()

	log := logger.New(os.Stdout, *verboseFlag)

	if envProject := os.Getenv("BQFIXTURE_PROJECT"); envProject != "" {
		*projectFlag = envProject
	}
	if *projectFlag == "" {
		return errors.New("project is required (--project or BQFIXTURE_PROJECT)")
	}

	runID := uuid.New().String()
	log = log.With("run_id", runID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var opts []option.ClientOption
	if *credentialsFlag != "" {
		opts = append(opts, option.WithCredentialsFile(*credentialsFlag))
	}
	client, err := bq.NewClient(ctx, log, *projectFlag, opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	ld, err := loader.New(loader.Config{
		Logger: log,
		Client: client,
	})
	if err != nil {
		return err
	}

	manager, err := lifecycle.NewManager(lifecycle.Config{
		Logger:        log,
		Client:        client,
		Loader:        ld,
		VersionPrefix: *prefixFlag,
		StaleAfter:    *staleAfterFlag,
	})
	if err != nil {
		return err
	}

	switch {
	case *destroyFlag != "":
		return manager.DestroyDatabase(ctx, *destroyFlag)
	case *sweepFlag:
		swept := manager.SweepStale(ctx)
		log.Info("stale dataset sweep finished", "swept", swept)
		return nil
	}

	flag.Usage()
	return errors.New("no command given (use --sweep or --destroy)")
}
