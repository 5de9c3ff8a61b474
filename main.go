// lumina TUI - a terminal client for the Lumina chat-analytics backend.
//
// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/lumina-analytics/lumina-tui/internal/api"
	"github.com/lumina-analytics/lumina-tui/internal/buffer"
	"github.com/lumina-analytics/lumina-tui/internal/config"
	"github.com/lumina-analytics/lumina-tui/internal/controller"
	"github.com/lumina-analytics/lumina-tui/internal/log"
	"github.com/lumina-analytics/lumina-tui/internal/reconcile"
	"github.com/lumina-analytics/lumina-tui/internal/session"
	"github.com/lumina-analytics/lumina-tui/internal/sidebar"
	"github.com/lumina-analytics/lumina-tui/internal/stream"
	"github.com/lumina-analytics/lumina-tui/internal/telemetry"
	"github.com/lumina-analytics/lumina-tui/internal/ui/chat"
	"github.com/lumina-analytics/lumina-tui/internal/ui/styles"

	"go.uber.org/zap"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "print version and exit")
		backendURL  = flag.String("backend", "", "backend base URL (overrides config)")
		debug       = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("lumina %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if err := run(*backendURL, *debug); err != nil {
		fmt.Fprintf(os.Stderr, "lumina: %v\n", err)
		os.Exit(1)
	}
}

func run(backendURL string, debug bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if backendURL != "" {
		cfg.Backend.BaseURL = backendURL
	}
	config.SetGlobal(cfg)

	// The TUI owns the terminal, diagnostics go to a file.
	if err := log.InitFile(cfg.Logging.Dir, debug || cfg.Logging.Debug); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer log.Sync()
	log.Info("lumina starting",
		zap.String("version", Version),
		zap.String("backend", cfg.Backend.BaseURL))

	// Session identity. An empty token means ephemeral mode: the chat
	// works, nothing persists.
	sess := session.NewStore()
	if cfg.Auth.Token != "" {
		sess.Authenticate(cfg.Auth.Token)
	} else {
		log.Info("no credential configured, running ephemeral")
	}

	client := api.NewClient(&api.Config{
		BaseURL:      cfg.Backend.BaseURL,
		Timeout:      time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
		SidebarLimit: cfg.Backend.SidebarLimit,
		PageSize:     cfg.Backend.PageSize,
	}, sess)

	sb := sidebar.NewCache(client, cfg.Backend.SidebarLimit)
	buf := buffer.NewBuffer(client, cfg.Backend.PageSize)
	rec := reconcile.NewReconciler(client, sess, sb)

	opts := controller.Options{
		HistoryTurns: cfg.Chat.HistoryTurns,
		SendBurst:    cfg.Chat.SendBurst,
	}
	if cfg.Chat.SendsPerMinute > 0 {
		opts.SendRate = rate.Limit(float64(cfg.Chat.SendsPerMinute) / 60.0)
	} else {
		opts.SendRate = rate.Inf
	}

	var recorder *telemetry.Recorder
	if cfg.Telemetry.Enabled {
		recorder, err = telemetry.NewRecorder(cfg.Telemetry.DBPath)
		if err != nil {
			// Telemetry is not worth refusing to start over.
			log.Warn("telemetry disabled", zap.Error(err))
		} else {
			defer recorder.Close()
			opts.Recorder = recorder
		}
	}

	querier := controller.QuerierFunc(func(ctx context.Context, query string, history []api.Turn, sessionID string) (stream.Source, error) {
		return client.Query(ctx, query, history, sessionID)
	})

	// Engine changes re-render the view; stream tokens arrive through
	// this same path. The program pointer is set below, before Run.
	setProgram, sendToProgram := programRef()
	opts.Notify = func() { sendToProgram(chat.EngineUpdatedMsg{}) }

	ctrl := controller.NewController(sess, querier, sb, buf, rec, opts)

	ui := chat.New(ctrl, styles.ByName(cfg.UI.Theme), cfg.UI.Markdown)
	program := tea.NewProgram(ui, tea.WithAltScreen())
	setProgram(program)

	// Hot-reload the config so backend or theme changes apply live.
	if path, err := config.ConfigPath(); err == nil {
		if watcher, werr := config.Watch(path, nil); werr == nil {
			defer watcher.Close()
		} else {
			log.Debug("config watch unavailable", zap.Error(werr))
		}
	}

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("UI error: %w", err)
	}
	log.Info("lumina exiting")
	return nil
}

// programRef returns a setter and a sender for the tea program, so the
// controller's notify callback can exist before the program does.
func programRef() (func(*tea.Program), func(tea.Msg)) {
	var mu sync.Mutex
	var program *tea.Program

	set := func(p *tea.Program) {
		mu.Lock()
		program = p
		mu.Unlock()
	}
	send := func(msg tea.Msg) {
		mu.Lock()
		p := program
		mu.Unlock()
		if p != nil {
			p.Send(msg)
		}
	}
	return set, send
}
