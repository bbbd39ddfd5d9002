// Command dbinspect dumps a summary of an fsintent journal for debugging.
// It opens the Badger database read-only, so it is safe to point at a
// journal the daemon is using.
package main

import (
	"encoding/json/v2"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/fsintent/fsintent-server/internal/domain"
)

func main() {
	dataDir := flag.String("data", "", "fsintent data directory (default: $FSINTENT_DATA_DIR or ~/.local/share/fsintent)")
	verbose := flag.Bool("v", false, "print every record, not just counts")
	flag.Parse()

	dbPath := resolveJournalPath(*dataDir)

	opts := badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open journal at %s: %v", dbPath, err)
	}
	defer db.Close()

	fmt.Println("=== Journal Inspection ===")
	fmt.Println("Path:", dbPath)
	fmt.Println()

	inspectOperations(db, *verbose)
	inspectWatches(db, *verbose)
	inspectAPIKeys(db)
	countIndexKeys(db)
}

func resolveJournalPath(dataDir string) string {
	if dataDir == "" {
		dataDir = os.Getenv("FSINTENT_DATA_DIR")
	}
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Cannot resolve home directory: %v", err)
		}
		dataDir = filepath.Join(home, ".local", "share", "fsintent")
	}
	return filepath.Join(dataDir, "journal")
}

func inspectOperations(db *badger.DB, verbose bool) {
	total := 0
	byType := make(map[string]int)
	byDetector := make(map[string]int)

	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("op:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec domain.OperationRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				total++
				byType[rec.Type.String()]++
				byDetector[rec.DetectorName]++
				if verbose {
					fmt.Printf("  %s  %-20s %-22s %s\n",
						rec.DetectedAt.Format("2006-01-02 15:04:05"),
						rec.Type, rec.DetectorName, rec.PrimaryPath)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to scan operations: %v", err)
	}

	fmt.Printf("Operations: %d\n", total)
	for opType, count := range byType {
		fmt.Printf("  %-22s %d\n", opType, count)
	}
	fmt.Println("By detector:")
	for detector, count := range byDetector {
		fmt.Printf("  %-22s %d\n", detector, count)
	}
	fmt.Println()
}

func inspectWatches(db *badger.DB, verbose bool) {
	count := 0
	enabled := 0

	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("watch:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			key := string(it.Item().Key())
			// Skip the unique-path index entries.
			if strings.HasPrefix(key, "watch:idx:") {
				continue
			}
			err := it.Item().Value(func(val []byte) error {
				var w domain.WatchRoot
				if err := json.Unmarshal(val, &w); err != nil {
					return err
				}
				count++
				if w.Enabled {
					enabled++
				}
				if verbose {
					state := "enabled"
					if !w.Enabled {
						state = "disabled"
					}
					fmt.Printf("  %s  %-8s %s\n", w.ID, state, w.Path)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to scan watches: %v", err)
	}

	fmt.Printf("Watch roots: %d (%d enabled)\n\n", count, enabled)
}

func inspectAPIKeys(db *badger.DB) {
	count := 0

	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("apikey:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			key := string(it.Item().Key())
			if strings.HasPrefix(key, "apikey:idx:") {
				continue
			}
			count++
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to scan API keys: %v", err)
	}

	// Names and hashes stay out of the dump on purpose.
	fmt.Printf("API keys: %d\n\n", count)
}

func countIndexKeys(db *badger.DB) {
	count := 0

	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("idx:ops:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to scan indexes: %v", err)
	}

	fmt.Printf("Operation index keys: %d\n", count)
}
