// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/poiesic/notegen"
	"github.com/poiesic/notegen/ai"
	"github.com/poiesic/notegen/api"
	"github.com/poiesic/notegen/batch"
	"github.com/poiesic/notegen/config"
	"github.com/poiesic/notegen/core"
	"github.com/poiesic/notegen/ledger"
	"github.com/poiesic/notegen/notify"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"
)

// logLevel is shared by the handler installed in setupLogger so the config
// file can still lower or raise it after loading.
var logLevel = new(slog.LevelVar)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "notegen",
		Usage: "AI generated metadata for markdown notes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (default: search ./notegen.yaml and the user config dir)",
			},
			&cli.StringFlag{
				Name:  "vault",
				Usage: "Vault directory, overrides vault.path",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Process every note in the vault",
				Action: runCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "no-front-matter", Usage: "Skip front matter generation"},
					&cli.BoolFlag{Name: "no-wikilinks", Usage: "Skip wikilink suggestions"},
					&cli.BoolFlag{Name: "ontology", Usage: "Extract concepts into front matter"},
					&cli.BoolFlag{Name: "bloom", Usage: "Create notes for missing link targets"},
					&cli.StringFlag{Name: "provider", Usage: "Provider to use instead of the configured default"},
					&cli.StringFlag{Name: "model", Usage: "Model to use instead of the provider's default"},
					&cli.IntFlag{Name: "chunk-size", Usage: "Number of notes per chunk (0 uses config)"},
					&cli.IntFlag{Name: "max-retries", Usage: "Retry attempts per note (-1 uses config)", Value: -1},
					&cli.IntFlag{Name: "max-concurrent", Usage: "Notes in flight per chunk (0 uses config)"},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N notes",
						Value: 10,
					},
					&cli.BoolFlag{Name: "json", Usage: "Print the result as JSON"},
				},
			},
			{
				Name:      "process",
				Usage:     "Process one note and wait for it",
				ArgsUsage: "<note path relative to the vault>",
				Action:    processCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Process even if the ledger says it is up to date"},
				},
			},
			{
				Name:   "models",
				Usage:  "List providers and their models",
				Action: modelsCommand,
			},
			{
				Name:   "test-connection",
				Usage:  "Check credentials and reachability of a provider",
				Action: testConnectionCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "provider", Usage: "Provider to test (default: configured provider)"},
					&cli.StringFlag{Name: "model", Usage: "Model to test (default: provider's default)"},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show processing statistics from the ledger",
				Action: statsCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Print statistics as JSON"},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API and reload config on change",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "Listen address, overrides server.addr"},
				},
			},
		},
	}
}

// loadConfig reads the config file and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if vault := c.String("vault"); vault != "" {
		cfg.Vault.Path = vault
	}
	if !c.IsSet("log-level") {
		if level, err := parseLevel(cfg.LogLevel); err == nil {
			logLevel.Set(level)
		}
	}
	return cfg, nil
}

// startApp loads the config, builds the app and starts it. The caller closes it.
func startApp(ctx context.Context, c *cli.Context, sink notify.Sink) (*notegen.App, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	app, err := notegen.New(ctx, cfg, notegen.WithNotifier(sink))
	if err != nil {
		return nil, fmt.Errorf("failed to create app: %w", err)
	}
	if err := app.Start(ctx); err != nil {
		_ = app.Close(context.Background())
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return app, nil
}

func closeApp(app *notegen.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Close(ctx); err != nil {
		slog.Error("error during shutdown", "err", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runCommand(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	app, err := startApp(ctx, c, notify.NewConsoleSink(os.Stderr))
	if err != nil {
		return err
	}
	defer closeApp(app)

	opts, err := runOptions(c, app.BatchOptions(ctx))
	if err != nil {
		return err
	}
	opts.Progress = os.Stderr

	fmt.Fprintf(os.Stderr, "Vault: %s\n", app.Vault().Root())
	result, err := app.Run(ctx, opts)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Printf("Processed: %d\nSkipped:   %d\nFailed:    %d\nDuration:  %s\n",
		result.Processed, result.Skipped, result.Errors, result.Duration.Round(time.Millisecond))
	for _, ie := range result.ItemErrors {
		fmt.Printf("  %s (%d attempts): %s\n", ie.ItemID, ie.Attempts, ie.Error)
	}
	if result.Errors > 0 {
		return cli.Exit(fmt.Sprintf("%d notes failed", result.Errors), 1)
	}
	return nil
}

// runOptions applies the run flags on top of the configured defaults.
func runOptions(c *cli.Context, opts *batch.Options) (*batch.Options, error) {
	if c.Bool("no-front-matter") {
		opts.GenerateFrontMatter = false
	}
	if c.Bool("no-wikilinks") {
		opts.GenerateWikilinks = false
	}
	if c.Bool("ontology") {
		opts.Operations = append(opts.Operations, core.OperationOntology)
	}
	if c.Bool("bloom") {
		opts.Operations = append(opts.Operations, core.OperationKnowledgeBloom)
	}
	if p := c.String("provider"); p != "" {
		provider, err := ai.ParseProvider(p)
		if err != nil {
			return nil, err
		}
		opts.Provider = string(provider)
	}
	if m := c.String("model"); m != "" {
		opts.Model = m
	}
	if n := c.Int("chunk-size"); n > 0 {
		opts.ChunkSize = n
	}
	if n := c.Int("max-retries"); n >= 0 {
		opts.MaxRetries = n
	}
	if n := c.Int("max-concurrent"); n > 0 {
		opts.MaxConcurrent = n
	}
	if n := c.Int("report-interval"); n > 0 {
		opts.ReportInterval = n
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run options: %w", err)
	}
	return opts, nil
}

func processCommand(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("note path is required")
	}
	ctx, stop := signalContext()
	defer stop()

	app, err := startApp(ctx, c, notify.NewConsoleSink(os.Stderr))
	if err != nil {
		return err
	}
	defer closeApp(app)

	err = app.TriggerItem(ctx, id, c.Bool("force"))
	if errors.Is(err, ledger.ErrUpToDate) {
		pterm.Info.Printfln("%s is up to date, use --force to process it anyway", id)
		return nil
	}
	if err != nil {
		return err
	}
	if err := app.Triggers().Wait(ctx); err != nil {
		return err
	}
	item, err := app.Vault().Stat(ctx, id)
	if err != nil {
		return err
	}
	rec, ok := app.Ledger().Record(item.ID)
	if !ok {
		return fmt.Errorf("no ledger record for %s", item.ID)
	}
	if rec.HasError() {
		return cli.Exit(rec.LastError, 1)
	}
	return nil
}

func modelsCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	settings, err := cfg.AISettings()
	if err != nil {
		return err
	}
	registry, err := ai.NewRegistry(settings, notegen.DefaultFactories())
	if err != nil {
		return err
	}

	data := pterm.TableData{{"Provider", "Model", "API name", "Capabilities", "Credential"}}
	for _, d := range registry.Descriptors() {
		credential := "missing"
		if d.CredentialPresent {
			credential = "ok"
		}
		provider := string(d.Provider)
		if d.Provider == settings.Provider {
			provider += " (default)"
		}
		for _, m := range d.AvailableModels {
			caps := make([]string, 0, len(m.Capabilities))
			for _, capability := range m.Capabilities {
				caps = append(caps, string(capability))
			}
			data = append(data, []string{provider, m.Name, m.APIName, strings.Join(caps, ", "), credential})
		}
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func testConnectionCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	settings, err := cfg.AISettings()
	if err != nil {
		return err
	}
	registry, err := ai.NewRegistry(settings, notegen.DefaultFactories())
	if err != nil {
		return err
	}
	provider := settings.Provider
	if p := c.String("provider"); p != "" {
		if provider, err = ai.ParseProvider(p); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(c.Context, 2*time.Minute)
	defer cancel()

	if !registry.ValidateCredential(ctx, provider) {
		pterm.Error.Printfln("%s: credential missing or rejected", provider)
		return cli.Exit("", 1)
	}
	if !registry.TestConnection(ctx, provider, c.String("model")) {
		pterm.Error.Printfln("%s: connection test failed", provider)
		return cli.Exit("", 1)
	}
	pterm.Success.Printfln("%s: connection ok", provider)
	return nil
}

func statsCommand(c *cli.Context) error {
	ctx := c.Context
	app, err := startApp(ctx, c, notify.Nop)
	if err != nil {
		return err
	}
	defer closeApp(app)

	summary := app.Ledger().Summary()
	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"summary": summary,
			"samples": app.Ledger().Stats(),
		})
	}

	last := "never"
	if !summary.LastProcessedAt.IsZero() {
		last = summary.LastProcessedAt.Local().Format(time.DateTime)
	}
	data := pterm.TableData{
		{"Records", strconv.Itoa(summary.Records)},
		{"Runs", strconv.Itoa(summary.Runs)},
		{"Processed", strconv.Itoa(summary.TotalProcessed)},
		{"Errors", strconv.Itoa(summary.TotalErrors)},
		{"Skipped", strconv.Itoa(summary.TotalSkipped)},
		{"Success rate", fmt.Sprintf("%.1f%%", summary.SuccessRatePercent)},
		{"Average time", fmt.Sprintf("%.0f ms", summary.AverageTimeMs)},
		{"Last processed", last},
	}
	return pterm.DefaultTable.WithData(data).Render()
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	app, err := startApp(ctx, c, notify.NewLogSink(slog.Default()))
	if err != nil {
		return err
	}
	defer closeApp(app)

	if path := c.String("config"); path != "" {
		watcher, err := config.NewWatcher(path)
		if err != nil {
			return fmt.Errorf("failed to watch config: %w", err)
		}
		defer watcher.Close()
		watcher.OnReload(func(cfg *config.Config) error {
			if vault := c.String("vault"); vault != "" {
				cfg.Vault.Path = vault
			}
			return app.Reload(cfg)
		})
	}

	addr := app.Config().Server.Addr
	if a := c.String("addr"); a != "" {
		addr = a
	}
	slog.Info("serving", "addr", addr, "vault", app.Vault().Root())
	return api.Serve(ctx, addr, app.Handler())
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", s)
	}
}

func setupLogger(c *cli.Context) error {
	level, err := parseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	logLevel.Set(level)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	return nil
}
