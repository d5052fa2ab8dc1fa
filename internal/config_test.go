package internal_test

import (
	"strings"
	"time"

	"github.com/frahmantamala/medichat/internal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func validConfig() *internal.Config {
	cfg := &internal.Config{
		Database: internal.DatabaseConfig{Source: "postgres://localhost/medichat"},
		Security: internal.SecurityConfig{
			AccessTokenSecret:  strings.Repeat("a", 32),
			RefreshTokenSecret: strings.Repeat("b", 32),
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

var _ = Describe("Config", func() {
	Describe("ApplyDefaults", func() {
		It("fills zero values", func() {
			cfg := &internal.Config{}
			cfg.ApplyDefaults()

			Expect(cfg.Env).To(Equal("development"))
			Expect(cfg.Server.Port).To(Equal(3004))
			Expect(cfg.Policy.Mode).To(Equal("local"))
			Expect(cfg.Policy.CacheTTL).To(Equal(time.Minute))
			Expect(cfg.Chat.StepBudget).To(Equal(internal.DefaultStepBudget))
			Expect(cfg.Chat.SessionWindow).To(Equal(time.Hour))
			Expect(cfg.LLM.Model).To(Equal(internal.DefaultModel))
		})

		It("keeps explicit values", func() {
			cfg := &internal.Config{Chat: internal.ChatConfig{StepBudget: 3}}
			cfg.ApplyDefaults()

			Expect(cfg.Chat.StepBudget).To(Equal(3))
		})
	})

	Describe("Validate", func() {
		It("accepts a complete local config", func() {
			Expect(validConfig().Validate()).To(Succeed())
		})

		It("requires a database source", func() {
			cfg := validConfig()
			cfg.Database.Source = ""

			Expect(cfg.Validate()).To(MatchError(ContainSubstring("database config: source is required")))
		})

		It("rejects identical token secrets", func() {
			cfg := validConfig()
			cfg.Security.RefreshTokenSecret = cfg.Security.AccessTokenSecret

			Expect(cfg.Validate()).To(MatchError(ContainSubstring("secrets must differ")))
		})

		It("requires an api key in remote policy mode", func() {
			cfg := validConfig()
			cfg.Policy.Mode = "remote"

			Expect(cfg.Validate()).To(MatchError(ContainSubstring("api_key is required")))
		})

		It("rejects an unknown policy mode", func() {
			cfg := validConfig()
			cfg.Policy.Mode = "maybe"

			Expect(cfg.Validate()).To(MatchError(ContainSubstring(`unknown mode "maybe"`)))
		})

		It("joins every failing section", func() {
			cfg := validConfig()
			cfg.Database.Source = ""
			cfg.Chat.StepBudget = -1

			err := cfg.Validate()
			Expect(err).To(MatchError(ContainSubstring("database config")))
			Expect(err).To(MatchError(ContainSubstring("chat config")))
		})
	})

	It("splits and trims allowed origins", func() {
		server := internal.ServerConfig{AllowedOrigins: " http://a.test, ,http://b.test "}

		Expect(server.Origins()).To(Equal([]string{"http://a.test", "http://b.test"}))
	})
})
