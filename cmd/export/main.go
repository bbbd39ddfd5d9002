// Command export snapshots an fsintent journal into a standalone SQLite
// file. The output is a plain relational copy of the journal, suitable for
// ad-hoc querying or for archiving before pruning.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsintent/fsintent-server/internal/store"
	"github.com/fsintent/fsintent-server/internal/store/sqlite"
)

func main() {
	dataDir := flag.String("data", "", "fsintent data directory (default: $FSINTENT_DATA_DIR or ~/.local/share/fsintent)")
	out := flag.String("out", "fsintent-export.db", "output SQLite file")
	withKeys := flag.Bool("with-keys", false, "include API key records (hashes only, never plaintext)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	journalPath := resolveJournalPath(*dataDir)

	if _, err := os.Stat(*out); err == nil {
		fatal("refusing to overwrite existing file %s", *out)
	}

	src, err := store.New(journalPath, logger, store.NewNoopEmitter())
	if err != nil {
		fatal("open journal at %s: %v", journalPath, err)
	}
	defer src.Close()

	dst, err := sqlite.Open(*out, logger)
	if err != nil {
		fatal("create %s: %v", *out, err)
	}
	defer dst.Close()

	ctx := context.Background()

	ops, err := dst.ImportOperations(ctx, src.StreamOperations(ctx))
	if err != nil {
		fatal("export operations: %v", err)
	}

	watches, err := dst.ImportWatches(ctx, src.StreamWatches(ctx))
	if err != nil {
		fatal("export watch roots: %v", err)
	}

	keys := 0
	if *withKeys {
		keys, err = dst.ImportAPIKeys(ctx, src.StreamAPIKeys(ctx))
		if err != nil {
			fatal("export API keys: %v", err)
		}
	}

	if err := dst.SetMeta(ctx, "exported_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
		fatal("write export metadata: %v", err)
	}
	if err := dst.SetMeta(ctx, "source_journal", journalPath); err != nil {
		fatal("write export metadata: %v", err)
	}

	fmt.Printf("Exported %d operations, %d watch roots, %d API keys to %s\n", ops, watches, keys, *out)
}

func resolveJournalPath(dataDir string) string {
	if dataDir == "" {
		dataDir = os.Getenv("FSINTENT_DATA_DIR")
	}
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fatal("resolve home directory: %v", err)
		}
		dataDir = filepath.Join(home, ".local", "share", "fsintent")
	}
	return filepath.Join(dataDir, "journal")
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
