package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/halvard/munin/internal/block"
	"github.com/halvard/munin/internal/membank"
)

// Watch sweeps the inbox once, then processes newly dropped files until ctx
// is cancelled. Write events are debounced briefly so files still being
// written are read once, whole.
func Watch(ctx context.Context, bank *membank.Bank, inbox *Inbox, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	// Files dropped before startup.
	Sweep(ctx, bank, inbox, logger)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(inbox.Root()); err != nil {
		return err
	}
	logger.Info("ingest: watching inbox", slog.String("root", inbox.Root()))

	// Debounce per-file: a timer per name, reset on every event.
	pending := make(map[string]*time.Timer)
	fire := make(chan string, 64)

	for {
		select {
		case <-ctx.Done():
			for _, t := range pending {
				t.Stop()
			}
			logger.Info("ingest: stopped")
			return nil

		case name := <-fire:
			delete(pending, name)
			processFile(ctx, bank, inbox, name, logger)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := strings.TrimPrefix(ev.Name, inbox.Root()+"/")
			if strings.Contains(name, "/") || !strings.HasSuffix(name, ".json") {
				continue
			}
			if t, ok := pending[name]; ok {
				t.Reset(200 * time.Millisecond)
				continue
			}
			n := name
			pending[name] = time.AfterFunc(200*time.Millisecond, func() {
				select {
				case fire <- n:
				case <-ctx.Done():
				}
			})

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("ingest: watch error", slog.String("error", watchErr.Error()))
		}
	}
}

// Sweep processes every file already sitting in the inbox.
func Sweep(ctx context.Context, bank *membank.Bank, inbox *Inbox, logger *slog.Logger) {
	names, err := inbox.Pending()
	if err != nil {
		logger.Warn("ingest: sweep list failed", slog.String("error", err.Error()))
		return
	}
	for _, name := range names {
		processFile(ctx, bank, inbox, name, logger)
	}
}

// processFile decodes one dropped file as a memory block and stores it.
// Write semantics are replace-by-id, so re-dropping a file with the same id
// is a safe overwrite.
func processFile(ctx context.Context, bank *membank.Bank, inbox *Inbox, name string, logger *slog.Logger) {
	data, err := inbox.Read(name)
	if err != nil {
		logger.Warn("ingest: read failed", slog.String("file", name), slog.String("error", err.Error()))
		return
	}

	var b block.Block
	if err := json.Unmarshal(data, &b); err != nil {
		logger.Warn("ingest: malformed block file", slog.String("file", name), slog.String("error", err.Error()))
		reject(inbox, name, logger)
		return
	}
	b.Touch()

	if err := bank.CreateBlock(ctx, &b); err != nil {
		logger.Warn("ingest: store failed",
			slog.String("file", name), slog.String("id", b.ID), slog.String("error", err.Error()))
		reject(inbox, name, logger)
		return
	}

	logger.Info("ingest: stored block", slog.String("file", name), slog.String("id", b.ID))
	if err := inbox.Archive(name); err != nil {
		logger.Warn("ingest: archive failed", slog.String("file", name), slog.String("error", err.Error()))
	}
}

func reject(inbox *Inbox, name string, logger *slog.Logger) {
	if err := inbox.Reject(name); err != nil {
		logger.Warn("ingest: reject failed", slog.String("file", name), slog.String("error", err.Error()))
	}
}
