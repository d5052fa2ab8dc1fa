package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	userDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/user"
	"github.com/frahmantamala/medichat/internal/policy"
	userPostgres "github.com/frahmantamala/medichat/internal/user/postgres"
	"github.com/frahmantamala/medichat/pkg/logger"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

type seedUser struct {
	Email          string
	Name           string
	Role           policy.Role
	Department     string
	Clearance      *int
	Specialization string
}

var seedUsers = []seedUser{
	{Email: "admin@medichat.local", Name: "Ada Admin", Role: policy.RoleAdmin, Clearance: policy.Clearance(3)},
	{Email: "doctor@medichat.local", Name: "Dana Doctor", Role: policy.RoleDoctor, Department: "cardiology", Clearance: policy.Clearance(2), Specialization: "cardiology"},
	{Email: "researcher@medichat.local", Name: "Rio Researcher", Role: policy.RoleResearcher, Department: "oncology", Clearance: policy.Clearance(1)},
	{Email: "patient@medichat.local", Name: "Pat Patient", Role: policy.RolePatient},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with one user per role and push them to the policy decision point.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

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

		if clearData {
			for _, table := range []string{"audit_logs", "chat_sessions", "users"} {
				if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte("password"), cfg.Security.BCryptCost)
		if err != nil {
			log.Fatalf("failed to hash seed password: %v", err)
		}

		userRepo := userPostgres.NewUserRepository(gormDB)
		policyClient := newPolicyClient(cfg.Policy, userRepo, lg)

		for _, s := range seedUsers {
			id, err := userRepo.Upsert(ctx, &userDatamodel.User{
				Email:          s.Email,
				Name:           s.Name,
				PasswordHash:   string(hash),
				Role:           string(s.Role),
				Department:     s.Department,
				Clearance:      s.Clearance,
				Specialization: s.Specialization,
				IsActive:       true,
			})
			if err != nil {
				log.Fatalf("failed to seed %s: %v", s.Email, err)
			}

			first, last, _ := strings.Cut(s.Name, " ")
			err = policyClient.SyncUser(ctx, policy.UserProfile{
				ID:        id,
				Email:     s.Email,
				FirstName: first,
				LastName:  last,
				Role:      s.Role,
				Attributes: policy.Attributes{
					Department:     s.Department,
					Clearance:      s.Clearance,
					Specialization: s.Specialization,
				},
			})
			if err != nil {
				log.Fatalf("failed to sync %s to policy: %v", s.Email, err)
			}

			fmt.Printf("Seeded %s user: %s\n", s.Role, s.Email)
		}

		fmt.Println("Users seeded successfully")
	},
}
