package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bookstacks/catalog/internal/config"
	"github.com/bookstacks/catalog/internal/entrypoint"
)

// SeedCommand wipes the configured store and reloads the seed dataset.
type SeedCommand struct {
	Timeout time.Duration
}

func NewSeedCommand() *SeedCommand {
	return &SeedCommand{}
}

func (cmd *SeedCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)

	fs.DurationVar(&cmd.Timeout, "timeout", time.Minute, "Timeout for the seed operation")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s seed [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Reset the configured catalog store and reload the seed dataset.\n")
		fmt.Fprintf(os.Stderr, "The store is selected via the STORE_DRIVER environment variable.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s seed\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  STORE_DRIVER=mongo %s seed\n", os.Args[0])
	}

	return fs.Parse(args)
}

func (cmd *SeedCommand) Run() error {
	cfg := config.NewConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cmd.Timeout)
	defer cancel()

	st, err := entrypoint.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	if err := st.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}

	books, err := st.ListBooks(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify seed data: %w", err)
	}

	fmt.Printf("Seeded %q store with %d books\n", cfg.Store.Driver, len(books))
	return nil
}
