// import-guests merges a CSV guest list into the configured store.
//
// Rows are matched to existing guests by name; new names get a token,
// link and response deadline. Running it twice with the same file only
// updates names and plus-ones.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"wedding-rsvp/internal/app"
	"wedding-rsvp/internal/cache"
	"wedding-rsvp/internal/config"
	"wedding-rsvp/internal/importer"
	"wedding-rsvp/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		file        string
		requireFlag bool
		dryRun      bool
	)
	flagSet := pflag.NewFlagSet("import-guests", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file")
	flagSet.StringVarP(&file, "file", "f", "data/invitados.csv", "CSV file to import")
	flagSet.BoolVar(&requireFlag, "require-flag", true, `only import rows whose first column is "true"`)
	flagSet.BoolVar(&dryRun, "dry-run", false, "parse the file and print the rows without writing")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log, err := app.NewLogger(cfg.LogLevel, true)
	if err != nil {
		return err
	}
	log = log.With().Str("component", "import-guests").Logger()

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	rows, err := importer.ReadRows(f, importer.CSVOptions{RequireFlag: requireFlag})
	if err != nil {
		return err
	}
	log.Info().Str("file", file).Int("rows", len(rows)).Msg("CSV parsed")

	if dryRun {
		for _, row := range rows {
			plus := "-"
			if row.PlusOnesAllowed != nil {
				plus = fmt.Sprint(*row.PlusOnesAllowed)
			}
			fmt.Printf("%s\t%s\n", row.Name, plus)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closer, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	guests := service.NewGuestService(store, cache.New(cfg.CacheTTL, time.Now), service.Config{
		BaseURL:        cfg.BaseURL,
		ResponseWindow: cfg.ResponseWindow,
	}, log)

	res, err := guests.ImportFromCSV(ctx, rows)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	fmt.Printf("✅ Import complete: %d created, %d updated, %d skipped\n", res.Created, res.Updated, res.Skipped)
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadConfig()
	}
	return config.Load(path)
}
