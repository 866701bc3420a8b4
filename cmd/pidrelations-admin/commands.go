package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pidstack/pidrelations/pkg/audit"
	"github.com/pidstack/pidrelations/pkg/auth"
	"github.com/pidstack/pidrelations/pkg/config"
	"github.com/pidstack/pidrelations/pkg/constraints"
	"github.com/pidstack/pidrelations/pkg/pidstore"
	"github.com/pidstack/pidrelations/pkg/relations"
)

// handleToken mints a JWT signed with the configured secret. The secret comes
// from the config file or PIDREL_JWT_SECRET, never from a flag.
func handleToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config file")
	subject := fs.String("subject", "", "Token subject (required)")
	role := fs.String("role", auth.RoleReader, "Token role: admin, curator or reader")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	fs.Parse(args)

	if *subject == "" {
		return fmt.Errorf("--subject is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("no JWT secret configured (set auth.jwt_secret or PIDREL_JWT_SECRET)")
	}

	manager, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, *ttl)
	if err != nil {
		return err
	}
	token, err := manager.GenerateToken(*subject, *role)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}

// handleAuditExport reads an audit log directory and writes it to stdout
func handleAuditExport(args []string) error {
	fs := flag.NewFlagSet("audit-export", flag.ExitOnError)
	path := fs.String("path", "./data/audit", "Audit log directory")
	format := fs.String("format", "json", "Output format: json or csv")
	from := fs.String("from", "", "Only records at or after this RFC3339 time")
	to := fs.String("to", "", "Only records at or before this RFC3339 time")
	fs.Parse(args)

	log, err := audit.Open(*path)
	if err != nil {
		return err
	}
	defer log.Close()

	filter := &audit.Filter{}
	if *from != "" {
		if filter.From, err = time.Parse(time.RFC3339, *from); err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
	}
	if *to != "" {
		if filter.To, err = time.Parse(time.RFC3339, *to); err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
	}

	var count int
	switch *format {
	case "json":
		count, err = log.ExportJSON(os.Stdout, filter)
	case "csv":
		count, err = log.ExportCSV(os.Stdout, filter)
	default:
		return fmt.Errorf("format must be json or csv")
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "exported %d records\n", count)
	return nil
}

// handleValidate runs the full constraint set against a live database and
// prints every violation
func handleValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("no database configured (set database.url or PIDREL_DATABASE_URL)")
	}

	registry, err := cfg.BuildRegistry()
	if err != nil {
		return err
	}

	ctx := context.Background()
	pids, err := pidstore.NewPGStore(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open pid store: %w", err)
	}
	defer pids.Close()

	rels, err := relations.NewPGStore(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open relation store: %w", err)
	}
	defer rels.Close()

	validator := constraints.NewRegistryValidator(registry, pids)
	result, err := validator.Validate(ctx, rels)
	if err != nil {
		return err
	}

	if result.Valid {
		fmt.Println("graph is consistent: no violations")
		return nil
	}

	for _, v := range result.Violations {
		fmt.Printf("[%s] %s: %s\n", v.Severity, v.Constraint, v.Message)
	}
	return fmt.Errorf("%d violations found", len(result.Violations))
}
