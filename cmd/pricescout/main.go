// Command pricescout looks up pharmacy item prices across suppliers.
//
// Usage:
//
//	pricescout --config configs/pricescout.yaml quote --caller alice "paracetamol 500mg"
//	pricescout --config configs/pricescout.yaml serve --listen :8080
//	pricescout --config configs/pricescout.yaml check-config
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/ahrav/go-pricescout/infrastructure/httpapi"
	"github.com/ahrav/go-pricescout/internal/application"
	"github.com/ahrav/go-pricescout/internal/domain"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "pricescout",
		Usage:   "Aggregate supplier offers for pharmacy items",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "configs/pricescout.yaml",
				Usage:   "Path to the YAML configuration",
				EnvVars: []string{"PRICESCOUT_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"PRICESCOUT_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "Log format (text, json)",
				EnvVars: []string{"PRICESCOUT_LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "dsn",
				Usage:   "PostgreSQL DSN for conversation history; overrides the config file",
				EnvVars: []string{"PRICESCOUT_HISTORY_DSN"},
			},
		},
		Before: func(c *cli.Context) error {
			return configureLogging(log.StandardLogger(), c.String("log-level"), c.String("log-format"))
		},
		Commands: []*cli.Command{
			quoteCommand(),
			serveCommand(),
			checkConfigCommand(),
		},
	}
}

// configureLogging applies level and format to logger.
func configureLogging(logger *log.Logger, level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	return nil
}

func quoteCommand() *cli.Command {
	return &cli.Command{
		Name:      "quote",
		Usage:     "Look up one item and print the reply",
		ArgsUsage: "<item>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "caller",
				Value: "cli",
				Usage: "Caller identity used for throttling and history",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the full quote as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			item := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(item) == "" {
				return cli.Exit("an item name is required", 2)
			}

			cfg, err := application.LoadConfig(c.String("config"))
			if err != nil {
				return err
			}
			svc, err := buildService(c.Context, cfg, c.String("dsn"), log.StandardLogger())
			if err != nil {
				return err
			}
			defer svc.Close()

			quote, err := svc.quoter.Quote(c.Context, c.String("caller"), item)
			if err != nil && !domain.IsUnavailable(err) {
				return err
			}

			if c.Bool("json") {
				enc := json.NewEncoder(c.App.Writer)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(quote); encErr != nil {
					return encErr
				}
			} else {
				fmt.Fprintln(c.App.Writer, quote.Reply)
			}
			if err != nil {
				return cli.Exit("", 3)
			}
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the quote API over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Value:   ":8080",
				Usage:   "Listen address",
				EnvVars: []string{"PRICESCOUT_LISTEN"},
			},
			&cli.DurationFlag{
				Name:  "request-timeout",
				Value: 15 * time.Minute,
				Usage: "Upper bound for one quote request",
			},
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Value: 30 * time.Second,
				Usage: "Grace period for in-flight requests on shutdown",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := application.LoadConfig(c.String("config"))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := buildService(ctx, cfg, c.String("dsn"), log.StandardLogger())
			if err != nil {
				return err
			}
			defer svc.Close()

			server := httpapi.NewServer(svc.quoter,
				httpapi.WithMetricsHandler(promhttp.HandlerFor(svc.gatherer, promhttp.HandlerOpts{})),
				httpapi.WithHealthDetails(func() map[string]any {
					return map[string]any{
						"breaker":         svc.breaker.GetState().String(),
						"tracked_callers": svc.throttle.Len(),
					}
				}),
				httpapi.WithRequestTimeout(c.Duration("request-timeout")),
			)
			return server.ListenAndServe(ctx, c.String("listen"), c.Duration("shutdown-timeout"))
		},
	}
}

func checkConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "check-config",
		Usage: "Validate the configuration and print the phase plan",
		Action: func(c *cli.Context) error {
			cfg, err := application.LoadConfig(c.String("config"))
			if err != nil {
				var ve *domain.ValidationError
				if errors.As(err, &ve) {
					for _, msg := range ve.Errors {
						fmt.Fprintf(c.App.ErrWriter, "  - %s\n", msg)
					}
				}
				return cli.Exit(fmt.Sprintf("configuration invalid: %v", err), 2)
			}
			printPlan(c, cfg)
			return nil
		},
	}
}

func printPlan(c *cli.Context, cfg *application.Config) {
	byPhase := map[int][]application.ProviderConfig{}
	for _, p := range cfg.Providers {
		byPhase[p.Phase] = append(byPhase[p.Phase], p)
	}
	phases := make([]int, 0, len(byPhase))
	for n := range byPhase {
		phases = append(phases, n)
	}
	sort.Ints(phases)

	w := c.App.Writer
	fmt.Fprintf(w, "configuration OK (fast provider: %s, threshold: %.2f)\n",
		cfg.Engine.FastProvider, cfg.Engine.SimilarityThreshold)
	for _, n := range phases {
		fmt.Fprintf(w, "phase %d:\n", n)
		for _, p := range byPhase[n] {
			adapter := p.Adapter
			if adapter == "" {
				adapter = "passthrough"
			}
			fmt.Fprintf(w, "  %-12s kind=%-6s adapter=%-17s timeout=%s markup=%.0f%%\n",
				p.ID, p.Kind, adapter, p.Timeout, p.MarkupPercent)
		}
	}
}

// Compile-time check that the quoter satisfies the HTTP contract.
var _ httpapi.QuoteService = (*application.Quoter)(nil)

