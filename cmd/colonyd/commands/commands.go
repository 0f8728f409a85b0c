package commands

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/colonyledger/core/internal/adapters/gate"
	"github.com/colonyledger/core/internal/adapters/repository"
	"github.com/colonyledger/core/internal/infrastructure/config"
	"github.com/colonyledger/core/internal/infrastructure/database"
	"github.com/colonyledger/core/internal/infrastructure/logger"
	"github.com/colonyledger/core/internal/infrastructure/server"
	"github.com/colonyledger/core/internal/ports"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	var inMemory bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the colony ledger server",
		Long:  "Start the colony ledger server with all configured routes and middleware",
		Run: func(cmd *cobra.Command, args []string) {
			runServer(inMemory)
		},
	}

	cmd.Flags().BoolVar(&inMemory, "in-memory", false, "Run against an in-process store instead of Postgres")
	return cmd
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage database migrations (up, down, version)",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Run all up migrations",
		Run: func(cmd *cobra.Command, args []string) {
			runMigration("up", 0)
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Run all down migrations",
		Run: func(cmd *cobra.Command, args []string) {
			runMigration("down", 0)
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		Run: func(cmd *cobra.Command, args []string) {
			showMigrationVersion()
		},
	})

	return migrateCmd
}

// NewTokenCommand creates the capability token command
func NewTokenCommand() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Capability token commands",
		Long:  "Issue capability tokens for callers of the ledger",
	}

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a capability token",
		Run: func(cmd *cobra.Command, args []string) {
			subject, _ := cmd.Flags().GetString("subject")
			caps, _ := cmd.Flags().GetString("capabilities")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			if subject == "" {
				log.Fatal("Subject is required")
			}

			issueToken(subject, caps, ttl)
		},
	}

	issueCmd.Flags().String("subject", "", "Caller the token names (required)")
	issueCmd.Flags().String("capabilities", string(ports.CapabilityTasks),
		"Comma-separated capabilities (tasks:write, funding:write, governance:execute, *)")
	issueCmd.Flags().Duration("ttl", 0, "Token lifetime (defaults to the configured TTL)")

	tokenCmd.AddCommand(issueCmd)
	return tokenCmd
}

// NewAPIKeyCommand creates the operator API key command
func NewAPIKeyCommand() *cobra.Command {
	apikeyCmd := &cobra.Command{
		Use:   "apikey",
		Short: "Operator API key commands",
	}

	hashCmd := &cobra.Command{
		Use:   "hash",
		Short: "Hash an operator API key for GATE_OPERATOR_KEY_HASH",
		Run: func(cmd *cobra.Command, args []string) {
			key, _ := cmd.Flags().GetString("key")
			if key == "" {
				log.Fatal("Key is required")
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
			if err != nil {
				log.Fatalf("Failed to hash key: %v", err)
			}
			fmt.Println(string(hash))
		},
	}

	hashCmd.Flags().String("key", "", "API key to hash (required)")
	apikeyCmd.AddCommand(hashCmd)
	return apikeyCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print colonyd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("colonyd v1.0.0")
		},
	}
}

func runServer(inMemory bool) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	var (
		store ports.LedgerStore
		db    *database.DB
	)

	if inMemory {
		store = repository.NewMemoryStore(cfg.Ledger.IdentityName, cfg.Ledger.TokenContract)
		appLogger.Warn("Running on the in-memory store, state will not survive a restart")
	} else {
		db, err = database.New(cfg.Database)
		if err != nil {
			appLogger.Fatal("Failed to connect to database", "error", err)
		}
		defer db.Close()

		pgStore := repository.NewPostgresStore(db)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pgStore.EnsureState(ctx, cfg.Ledger.IdentityName, cfg.Ledger.TokenContract); err != nil {
			appLogger.Fatal("Failed to bind ledger state", "error", err)
		}
		store = pgStore
	}

	srv, err := server.New(cfg, store, db, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize server", "error", err)
	}

	appLogger.Info("Starting colony ledger server",
		"port", cfg.Server.Port,
		"environment", cfg.App.Environment,
		"ledger", cfg.Ledger.IdentityName,
	)

	if err := srv.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		appLogger.Fatal("Server failed to start", "error", err)
	}
}

func runMigration(direction string, steps int) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		log.Fatalf("Failed to create migration driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		log.Fatalf("Failed to create migration instance: %v", err)
	}

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	}

	if err != nil && err != migrate.ErrNoChange {
		log.Fatalf("Migration failed: %v", err)
	}

	if err == migrate.ErrNoChange {
		fmt.Println("No migrations to run")
	} else {
		fmt.Printf("Migration %s completed successfully\n", direction)
	}
}

func showMigrationVersion() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		log.Fatalf("Failed to create migration driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		log.Fatalf("Failed to create migration instance: %v", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		log.Fatalf("Failed to get migration version: %v", err)
	}

	fmt.Printf("Current migration version: %d\n", version)
	fmt.Printf("Dirty: %t\n", dirty)
}

func issueToken(subject, caps string, ttl time.Duration) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	capabilities := strings.Split(caps, ",")
	for i := range capabilities {
		capabilities[i] = strings.TrimSpace(capabilities[i])
	}

	token, err := gate.New(cfg.Gate).IssueToken(subject, capabilities, ttl)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}

	fmt.Println(token)
}
