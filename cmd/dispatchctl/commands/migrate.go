package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ignite/campaign-dispatch/internal/app"
	"github.com/ignite/campaign-dispatch/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up [steps]",
	Short: "Apply pending migrations",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := migrations.Up
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("steps must be a positive integer")
			}
			target = migrations.Steps(n)
		}
		return runMigrate(target)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Revert migrations (all unless steps is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := migrations.Down
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("steps must be a positive integer")
			}
			target = migrations.Steps(-n)
		}
		return runMigrate(target)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := app.OpenDB(context.Background(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		v, dirty, err := migrations.Version(db)
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return outputJSON(map[string]interface{}{"version": v, "dirty": dirty, "latest": migrations.LatestVersion})
		}
		fmt.Printf("version %d (latest %d)", v, migrations.LatestVersion)
		if dirty {
			fmt.Print(" DIRTY")
		}
		fmt.Println()
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
}

func runMigrate(target migrations.Target) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := app.OpenDB(context.Background(), cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Apply(db, target); err != nil {
		return err
	}
	v, _, err := migrations.Version(db)
	if err != nil {
		return err
	}
	fmt.Printf("schema at version %d\n", v)
	return nil
}
