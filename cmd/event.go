package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/frahmantamala/medichat/internal/conversation"
	conversationPostgres "github.com/frahmantamala/medichat/internal/conversation/postgres"
	chatDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/chat"
	"github.com/frahmantamala/medichat/internal/core/events"
	userPostgres "github.com/frahmantamala/medichat/internal/user/postgres"
	"github.com/frahmantamala/medichat/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish events through the same bus and handlers the server uses`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish-conversation [user-id] [messages.json]",
	Short: "Store a conversation through the submission event",
	Long:  `Read a JSON array of {role, content} messages and publish it as a submitted conversation for the user`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		publishConversation(args[0], args[1])
	},
}

func publishConversation(userID, path string) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	lg := logger.LoggerWrapper()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to read messages: %v", err)
	}
	var messages []chatDatamodel.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		log.Fatalf("failed to parse messages: %v", err)
	}

	db, err := initDB(cfg.Database)
	if err != nil {
		log.Fatalf("failed to init db: %v", err)
	}
	defer db.Close()

	gormDB, err := initGorm(db, cfg.Env)
	if err != nil {
		log.Fatalf("failed to init gorm: %v", err)
	}

	policyClient := newPolicyClient(cfg.Policy, userPostgres.NewUserRepository(gormDB), lg)
	conversationService := conversation.NewService(
		conversationPostgres.NewSessionRepository(gormDB), policyClient, lg,
	).WithWindow(cfg.Chat.SessionWindow)

	bus := events.NewEventBus(lg)
	bus.Subscribe(events.EventTypeConversationSubmitted,
		conversationService.HandleConversationSubmitted(cfg.Chat.SaveTimeout))

	event := events.NewConversationSubmittedEvent(userID, messages)
	lg.Info("publishing conversation", "event_id", event.EventID(), "user_id", userID, "messages_count", len(messages))

	ctx := context.Background()
	if err := bus.PublishSync(ctx, event); err != nil {
		log.Fatalf("failed to store conversation: %v", err)
	}

	fmt.Printf("Stored %d messages for user %s\n", len(messages), userID)
}

func init() {
	eventCmd.AddCommand(publishEventCmd)
}
