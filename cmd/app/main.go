package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atvirokodosprendimai/credschema/internal/app"
	"github.com/atvirokodosprendimai/credschema/internal/core/domain"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "credschema",
		Usage: "Credential-form schema registry and validation API",
		Commands: []*cli.Command{
			serveCommand(),
			checkCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: ":8080",
				Usage: "HTTP listen address",
			},
			&cli.StringFlag{
				Name:  "db-path",
				Value: "./credschema.sqlite",
				Usage: "SQLite file path",
			},
			&cli.StringFlag{
				Name:    "bootstrap-api-key",
				Sources: cli.EnvVars("CREDSCHEMA_BOOTSTRAP_API_KEY"),
				Usage:   "Optional API key to upsert at startup",
			},
			&cli.StringFlag{
				Name:    "bootstrap-tenant",
				Value:   "default",
				Sources: cli.EnvVars("CREDSCHEMA_BOOTSTRAP_TENANT"),
				Usage:   "Tenant for bootstrap API key",
			},
			&cli.StringFlag{
				Name:    "bootstrap-key-name",
				Value:   "bootstrap",
				Sources: cli.EnvVars("CREDSCHEMA_BOOTSTRAP_KEY_NAME"),
				Usage:   "Name for bootstrap API key",
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Sources: cli.EnvVars("CREDSCHEMA_WEBHOOK_URL"),
				Usage:   "Registry change webhook target URL",
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Sources: cli.EnvVars("CREDSCHEMA_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for outbound webhook requests",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := app.Config{
				Addr:             c.String("addr"),
				DBPath:           c.String("db-path"),
				BootstrapAPIKey:  c.String("bootstrap-api-key"),
				BootstrapTenant:  c.String("bootstrap-tenant"),
				BootstrapKeyName: c.String("bootstrap-key-name"),
				WebhookURL:       c.String("webhook-url"),
				WebhookSecret:    c.String("webhook-secret"),
			}

			server, closer, err := app.NewServer(ctx, cfg)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}
			defer func() {
				if closeErr := closer.Close(); closeErr != nil {
					log.Printf("close resources: %v", closeErr)
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				log.Printf("listening on %s", cfg.Addr)
				errCh <- server.ListenAndServe()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case sig := <-sigCh:
				log.Printf("received signal %s", sig)
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Validate a record file against a schema document file, offline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "schema",
				Required: true,
				Usage:    "Path to the schema document (JSON or YAML)",
			},
			&cli.StringFlag{
				Name:     "record",
				Required: true,
				Usage:    "Path to the candidate record (JSON object)",
			},
			&cli.BoolFlag{
				Name:  "strict-generated",
				Usage: "Treat generate_id fields as user-supplied instead of system-populated",
			},
		},
		Action: func(_ context.Context, c *cli.Command) error {
			rawSchema, err := os.ReadFile(c.String("schema"))
			if err != nil {
				return fmt.Errorf("read schema: %w", err)
			}
			doc, err := domain.ParseDocument(rawSchema)
			if err != nil {
				return err
			}

			rawRecord, err := os.ReadFile(c.String("record"))
			if err != nil {
				return fmt.Errorf("read record: %w", err)
			}
			record, err := domain.DecodeRecord(rawRecord)
			if err != nil {
				return err
			}

			result := doc.Check(record, domain.CheckOptions{
				AllowGenerated: !c.Bool("strict-generated"),
			})
			for _, v := range result.Violations {
				fmt.Fprintf(os.Stderr, "%s\t%s\t%s\n", v.Field, v.Constraint, v.Message)
			}
			if err := result.Err(); err != nil {
				return fmt.Errorf("record does not conform to %s: %d violation(s)", doc.SchemaID, len(result.Violations))
			}

			fmt.Printf("record conforms to %s (%s)\n", doc.SchemaID, doc.Name)
			return nil
		},
	}
}
