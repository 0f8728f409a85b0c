package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/colonyledger/core/cmd/colonyd/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "colonyd",
		Short: "Colony task and funding ledger",
		Long:  `colonyd serves a colony's task store and funding reservation ledger: task creation, two-asset contributions, token reservations against the colony balance, acceptance, payouts and one-shot migration.`,
	}

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewTokenCommand())
	rootCmd.AddCommand(commands.NewAPIKeyCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
