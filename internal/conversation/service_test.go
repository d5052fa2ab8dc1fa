package conversation_test

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/medichat/internal"
	"github.com/frahmantamala/medichat/internal/conversation"
	chatDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/chat"
	"github.com/frahmantamala/medichat/internal/core/events"
	"github.com/frahmantamala/medichat/internal/policy"
	"github.com/frahmantamala/medichat/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type mockRepository struct {
	sessions  []*chatDatamodel.Session
	saveErr   error
	listErr   error
	saveCalls int
	lastLimit int
	nextID    int
}

func (m *mockRepository) SaveRecent(_ context.Context, userID string, messages []chatDatamodel.Message, now, cutoff time.Time) (*chatDatamodel.Session, bool, error) {
	m.saveCalls++
	if m.saveErr != nil {
		return nil, false, m.saveErr
	}

	var latest *chatDatamodel.Session
	for _, s := range m.sessions {
		if s.UserID == userID && (latest == nil || s.UpdatedAt.After(latest.UpdatedAt)) {
			latest = s
		}
	}
	if latest != nil && latest.UpdatedAt.After(cutoff) {
		latest.Messages = messages
		latest.UpdatedAt = now
		return latest, false, nil
	}

	m.nextID++
	s := &chatDatamodel.Session{
		ID:        string(rune('a' + m.nextID)),
		UserID:    userID,
		Messages:  messages,
		StartedAt: now,
		UpdatedAt: now,
	}
	m.sessions = append(m.sessions, s)
	return s, true, nil
}

func (m *mockRepository) ListByUser(_ context.Context, userID string, limit int) ([]*chatDatamodel.Session, error) {
	m.lastLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*chatDatamodel.Session
	for i := len(m.sessions) - 1; i >= 0; i-- {
		if m.sessions[i].UserID == userID {
			out = append(out, m.sessions[i])
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type mockPolicy struct {
	policy.Client
	allow    bool
	checkErr error
}

func (m *mockPolicy) Check(_ context.Context, _ string, action policy.Action, resource policy.ResourceType) (bool, error) {
	Expect(action).To(Equal(policy.ActionView))
	Expect(resource).To(Equal(policy.ResourceChat))
	return m.allow, m.checkErr
}

var _ = Describe("Conversation Service", func() {
	var (
		ctx     context.Context
		repo    *mockRepository
		pdp     *mockPolicy
		service *conversation.Service
		now     time.Time
	)

	messages := func(contents ...string) []chatDatamodel.Message {
		out := make([]chatDatamodel.Message, 0, len(contents))
		for _, c := range contents {
			out = append(out, chatDatamodel.Message{Role: chatDatamodel.RoleUser, Content: c})
		}
		return out
	}

	BeforeEach(func() {
		ctx = context.Background()
		repo = &mockRepository{}
		pdp = &mockPolicy{allow: true}
		now = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
		service = conversation.NewService(repo, pdp, logger.Discard()).
			WithClock(func() time.Time { return now })
	})

	Describe("Save", func() {
		It("ignores an empty message list without touching storage", func() {
			id, err := service.Save(ctx, "user-1", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(BeEmpty())
			Expect(repo.saveCalls).To(BeZero())
		})

		It("reuses the session within the window and opens a new one after it", func() {
			first, err := service.Save(ctx, "user-1", messages("hello"))
			Expect(err).NotTo(HaveOccurred())

			now = now.Add(59 * time.Minute)
			second, err := service.Save(ctx, "user-1", messages("hello", "again"))
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
			Expect(repo.sessions[0].Messages).To(HaveLen(2))

			now = now.Add(61 * time.Minute)
			third, err := service.Save(ctx, "user-1", messages("later"))
			Expect(err).NotTo(HaveOccurred())
			Expect(third).NotTo(Equal(first))
			Expect(repo.sessions).To(HaveLen(2))
		})

		It("honours a custom window", func() {
			service.WithWindow(10 * time.Minute)
			first, _ := service.Save(ctx, "user-1", messages("a"))

			now = now.Add(11 * time.Minute)
			second, _ := service.Save(ctx, "user-1", messages("b"))
			Expect(second).NotTo(Equal(first))
		})

		It("wraps storage failures as persistence errors", func() {
			repo.saveErr = errors.New("connection refused")

			_, err := service.Save(ctx, "user-1", messages("hello"))
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypePersistence))
		})
	})

	Describe("History", func() {
		BeforeEach(func() {
			for i := 0; i < 3; i++ {
				_, err := service.Save(ctx, "user-1", messages("turn"))
				Expect(err).NotTo(HaveOccurred())
				now = now.Add(2 * time.Hour)
			}
		})

		It("returns the user's sessions newest first", func() {
			history, err := service.History(ctx, "user-1", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(3))
			Expect(history[0].UpdatedAt).To(BeTemporally(">", history[1].UpdatedAt))
			Expect(repo.lastLimit).To(Equal(conversation.DefaultHistoryLimit))
		})

		It("clamps the limit", func() {
			_, err := service.History(ctx, "user-1", 5000)
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.lastLimit).To(Equal(conversation.MaxHistoryLimit))
		})

		It("returns an empty list when access is denied", func() {
			pdp.allow = false

			history, err := service.History(ctx, "user-1", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).NotTo(BeNil())
			Expect(history).To(BeEmpty())
		})

		It("falls back to the user's own records when the decision point fails", func() {
			pdp.checkErr = policy.ErrUnavailable

			history, err := service.History(ctx, "user-1", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(3))
		})

		It("surfaces read failures", func() {
			repo.listErr = errors.New("timeout")

			_, err := service.History(ctx, "user-1", 10)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("HandleConversationSubmitted", func() {
		It("saves the submitted messages", func() {
			handler := service.HandleConversationSubmitted(time.Second)

			err := handler(ctx, events.NewConversationSubmittedEvent("user-2", messages("hi")))
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.sessions).To(HaveLen(1))
			Expect(repo.sessions[0].UserID).To(Equal("user-2"))
		})

		It("still saves when the request context was cancelled", func() {
			handler := service.HandleConversationSubmitted(time.Second)
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			Expect(handler(cancelled, events.NewConversationSubmittedEvent("user-2", messages("hi")))).To(Succeed())
		})

		It("reports failures to the bus", func() {
			repo.saveErr = errors.New("disk full")
			handler := service.HandleConversationSubmitted(time.Second)

			Expect(handler(ctx, events.NewConversationSubmittedEvent("user-2", messages("hi")))).NotTo(Succeed())
			Expect(repo.saveCalls).To(Equal(1))
		})
	})
})
