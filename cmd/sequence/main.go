package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/blackmichael/novelle/internal/config"
	"github.com/blackmichael/novelle/internal/domain"
	"github.com/blackmichael/novelle/internal/mongodb"
	"github.com/blackmichael/novelle/internal/sqlstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		store    string
		mongoURI string
		database string
		dsn      string
		name     string
		startAt  int64
		ensure   bool
		next     bool
		timeout  time.Duration
	)

	flag.StringVar(&store, "store", envOrDefault("STORE", config.StoreMongo), "Sequence backend: mongo or sql")
	flag.StringVar(&mongoURI, "mongo-uri", envOrDefault("MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection string")
	flag.StringVar(&database, "db", envOrDefault("MONGO_DATABASE", "novelle"), "MongoDB database name")
	flag.StringVar(&dsn, "dsn", envOrDefault("SEQUENCE_DSN", "sqlite:novelle-sequences.db"), "SQL sequence store (postgres://... or sqlite:<path>)")
	flag.StringVar(&name, "name", "", "Sequence name (default: every known sequence)")
	flag.Int64Var(&startAt, "start", 1, "First value the sequence issues")
	flag.BoolVar(&ensure, "ensure", true, "Create the sequence if it does not exist")
	flag.BoolVar(&next, "next", false, "Issue and print the next value")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	if next && name == "" {
		return fmt.Errorf("--name is required with --next")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	seq, closeSeq, err := openSequencer(ctx, store, mongoURI, database, dsn)
	if err != nil {
		return err
	}
	defer closeSeq()

	names := domain.KnownSequences
	if name != "" {
		names = []string{name}
	}

	if ensure {
		for _, n := range names {
			fmt.Printf("Ensuring sequence %q starts at %d...\n", n, startAt)
			if err := seq.Ensure(ctx, n, startAt); err != nil {
				return err
			}
		}
	}

	if next {
		v, err := seq.NextValue(ctx, name, startAt)
		if err != nil {
			return err
		}
		fmt.Printf("Next value of %q: %d\n", name, v)
	}

	return nil
}

func openSequencer(ctx context.Context, store, mongoURI, database, dsn string) (domain.Sequencer, func(), error) {
	switch store {
	case config.StoreMongo:
		fmt.Printf("Connecting to MongoDB database %q...\n", database)
		s, err := mongodb.Connect(ctx, mongoURI, database)
		if err != nil {
			return nil, nil, err
		}
		return s.Sequencer(), func() { s.Close(context.Background()) }, nil
	case config.StoreSQL:
		fmt.Println("Opening SQL sequence store...")
		s, err := sqlstore.Open(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("--store must be %q or %q, got %q", config.StoreMongo, config.StoreSQL, store)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
