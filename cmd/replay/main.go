// Command replay runs recorded or live file system events through the
// correlation window and detection engine without touching a journal.
// It exists for tuning window parameters and debugging detector order.
//
// Two modes:
//
//	replay -file events.jsonl          # one JSON event per line, or - for stdin
//	replay -watch /tmp/scratch -for 30s  # capture live events for a bounded time
package main

import (
	"bufio"
	"context"
	"encoding/json/v2"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsintent/fsintent-server/internal/correlate"
	"github.com/fsintent/fsintent-server/internal/detect"
	"github.com/fsintent/fsintent-server/internal/domain"
	"github.com/fsintent/fsintent-server/internal/watcher"
)

func main() {
	file := flag.String("file", "", "JSONL event log to replay (- for stdin)")
	watchPath := flag.String("watch", "", "directory to capture live events from")
	watchFor := flag.Duration("for", 30*time.Second, "capture duration in -watch mode")
	idleGap := flag.Duration("idle-gap", 0, "window idle gap (0 = default)")
	maxSpan := flag.Duration("max-span", 0, "window max span (0 = default)")
	maxEvents := flag.Int("max-events", 0, "window max events (0 = default)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if (*file == "") == (*watchPath == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -file or -watch is required")
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	registry := detect.NewRegistry()
	if err := detect.RegisterBuiltins(registry); err != nil {
		fatal("register detectors: %v", err)
	}
	engine := detect.NewEngine(registry, logger)

	correlator := correlate.New(logger, correlate.Options{
		IdleGap:   *idleGap,
		MaxSpan:   *maxSpan,
		MaxEvents: *maxEvents,
	})

	ctx := context.Background()
	if err := correlator.Start(ctx); err != nil {
		fatal("start correlator: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var batches, operations int
	go func() {
		defer wg.Done()
		for batch := range correlator.Batches() {
			batches++
			op, err := engine.Detect(batch.Events)
			if err != nil {
				logger.Warn("detection failed", "batch", batch.ID, "error", err)
				continue
			}
			if op == nil {
				fmt.Printf("%-18s %-22s %s (%d events, span %s)\n",
					"(no match)", "-", batch.Events[0].Path, len(batch.Events), batch.Span().Round(time.Millisecond))
				continue
			}
			operations++
			fmt.Printf("%-18s %-22s %s (%d events, span %s)\n",
				op.Type, op.DetectorName, op.PrimaryPath, len(batch.Events), batch.Span().Round(time.Millisecond))
		}
	}()

	var fed int
	var err error
	if *file != "" {
		fed, err = replayFile(*file, correlator)
	} else {
		fed, err = captureLive(ctx, logger, *watchPath, *watchFor, correlator)
	}
	if err != nil {
		fatal("%v", err)
	}

	correlator.Flush()
	if err := correlator.Stop(); err != nil {
		fatal("stop correlator: %v", err)
	}
	wg.Wait()

	fmt.Fprintf(os.Stderr, "\n%d events -> %d batches -> %d operations\n", fed, batches, operations)
}

// replayFile feeds a JSONL log into the correlator. Each line is one
// domain.Event; blank lines and # comments are skipped.
func replayFile(path string, correlator *correlate.Correlator) (int, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		r = f
	}

	fed := 0
	lineNo := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var event domain.Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return fed, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now()
		}
		correlator.Add(event)
		fed++
	}
	if err := scanner.Err(); err != nil {
		return fed, err
	}
	return fed, nil
}

// captureLive watches a single directory for the given duration and feeds
// whatever the backend reports into the correlator.
func captureLive(ctx context.Context, logger *slog.Logger, path string, d time.Duration, correlator *correlate.Correlator) (int, error) {
	w, err := watcher.New(logger, watcher.Options{Recursive: true})
	if err != nil {
		return 0, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Watch(path); err != nil {
		return 0, fmt.Errorf("watch %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	if err := w.Start(ctx); err != nil {
		return 0, fmt.Errorf("start watcher: %w", err)
	}
	defer w.Stop()

	fmt.Fprintf(os.Stderr, "capturing events under %s for %s...\n", path, d)

	fed := 0
	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				return fed, nil
			}
			correlator.Add(domain.Event{
				Timestamp: ev.Time,
				Path:      ev.Path,
				DestPath:  ev.DestPath,
				Kind:      domainKind(ev.Type),
			})
			fed++
		case err, ok := <-w.Errors():
			if ok && err != nil {
				logger.Warn("watcher error", "error", err)
			}
		case <-ctx.Done():
			return fed, nil
		}
	}
}

func domainKind(t watcher.EventType) domain.EventKind {
	switch t {
	case watcher.EventCreated:
		return domain.EventCreated
	case watcher.EventModified:
		return domain.EventModified
	case watcher.EventDeleted:
		return domain.EventDeleted
	case watcher.EventMoved:
		return domain.EventMoved
	default:
		return domain.EventModified
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
