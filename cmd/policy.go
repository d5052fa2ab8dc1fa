package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/frahmantamala/medichat/internal/policy"
	userPostgres "github.com/frahmantamala/medichat/internal/user/postgres"
	"github.com/frahmantamala/medichat/pkg/logger"
	"github.com/spf13/cobra"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Policy decision point commands",
}

var policySyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Create or update resources and roles on the remote decision point",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if cfg.Policy.Mode != "remote" {
			return errors.New("policy sync needs policy.mode set to remote")
		}

		lg := logger.LoggerWrapper()
		client := newRemotePolicy(cfg.Policy, lg)
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		for _, def := range policy.Resources {
			if err := client.UpsertResource(ctx, def); err != nil {
				return err
			}
			lg.Info("resource synced", "resource", def.Key)
		}
		for _, def := range policy.Roles {
			if err := client.UpsertRole(ctx, def); err != nil {
				return err
			}
			lg.Info("role synced", "role", def.Key, "permissions", len(def.Permissions))
		}

		fmt.Printf("Synced %d resources and %d roles\n", len(policy.Resources), len(policy.Roles))
		return nil
	},
}

var policyCheckCmd = &cobra.Command{
	Use:   "check [user-id] [action] [resource]",
	Short: "Ask the configured decision point whether a user may act on a resource",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		lg := logger.LoggerWrapper()

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		gormDB, err := initGorm(db, cfg.Env)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		client := newPolicyClient(cfg.Policy, userPostgres.NewUserRepository(gormDB), lg)
		allowed, err := client.Check(context.Background(), args[0], policy.Action(args[1]), policy.ResourceType(args[2]))
		if err != nil {
			log.Fatalf("policy check failed: %v", err)
		}

		fmt.Printf("user=%s action=%s resource=%s allowed=%t\n", args[0], args[1], args[2], allowed)
	},
}

func init() {
	policyCmd.AddCommand(policySyncCmd)
	policyCmd.AddCommand(policyCheckCmd)
}
