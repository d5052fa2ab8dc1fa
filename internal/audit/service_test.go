package audit_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/frahmantamala/medichat/internal"
	"github.com/frahmantamala/medichat/internal/audit"
	auditDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/audit"
	"github.com/frahmantamala/medichat/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type mockAuditRepository struct {
	inserted  []*auditDatamodel.Log
	insertErr error
	lastLimit int
}

func (m *mockAuditRepository) Insert(_ context.Context, log *auditDatamodel.Log) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, log)
	return nil
}

func (m *mockAuditRepository) ListByUser(_ context.Context, _ string, limit int) ([]*auditDatamodel.Log, error) {
	m.lastLimit = limit
	return m.inserted, nil
}

var _ = Describe("Audit Service", func() {
	var (
		ctx     context.Context
		repo    *mockAuditRepository
		service *audit.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = &mockAuditRepository{}
		service = audit.NewService(repo, logger.Discard())
	})

	It("stores the entry with its context as JSON", func() {
		err := service.LogAccessAttempt(ctx, audit.Entry{
			UserID:   "user-1",
			Action:   "process",
			Resource: "aiResponse",
			Allowed:  true,
			Context:  map[string]any{"messageCount": 3, "classification": "view"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.inserted).To(HaveLen(1))

		log := repo.inserted[0]
		Expect(log.ID).NotTo(BeEmpty())
		Expect(log.OccurredAt).NotTo(BeZero())
		Expect(log.Context).To(MatchJSON(`{"messageCount":3,"classification":"view"}`))
	})

	It("stores an empty JSON object when there is no context", func() {
		Expect(service.LogAccessAttempt(ctx, audit.Entry{
			UserID:   "user-1",
			Action:   "search",
			Resource: "ragQuery",
		})).To(Succeed())

		Expect(repo.inserted).To(HaveLen(1))
		Expect(repo.inserted[0].Context).To(MatchJSON(`{}`))
	})

	It("returns repository failures to the caller", func() {
		repo.insertErr = errors.New("db down")

		err := service.LogAccessAttempt(ctx, audit.Entry{UserID: "user-1", Action: "process", Resource: "aiResponse"})
		Expect(err).To(MatchError(ContainSubstring("db down")))
	})

	It("decodes stored context when listing", func() {
		Expect(service.LogAccessAttempt(ctx, audit.Entry{
			UserID:   "user-1",
			Action:   "process",
			Resource: "aiResponse",
			Context:  map[string]any{"model": "m"},
		})).To(Succeed())

		records, err := service.Recent(ctx, "user-1", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[0].Context).To(HaveKeyWithValue("model", "m"))
		Expect(repo.lastLimit).To(Equal(audit.DefaultListLimit))
	})

	It("clamps oversized list requests", func() {
		_, err := service.Recent(ctx, "user-1", 10000)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.lastLimit).To(Equal(audit.MaxListLimit))
	})
})

var _ = Describe("Audit Handler", func() {
	It("lists the caller's records", func() {
		repo := &mockAuditRepository{inserted: []*auditDatamodel.Log{{ID: "a1", UserID: "user-1", Action: "process"}}}
		handler := audit.NewHandler(audit.NewService(repo, logger.Discard()))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/audit?limit=5", nil)
		req = req.WithContext(internal.ContextWithUserID(req.Context(), "user-1"))
		rr := httptest.NewRecorder()
		handler.ListMine(rr, req)

		Expect(rr.Code).To(Equal(http.StatusOK))
		Expect(rr.Body.String()).To(ContainSubstring(`"logs"`))
		Expect(rr.Body.String()).To(ContainSubstring(`"a1"`))
		Expect(repo.lastLimit).To(Equal(5))
	})

	It("rejects a negative limit", func() {
		handler := audit.NewHandler(audit.NewService(&mockAuditRepository{}, logger.Discard()))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/audit?limit=-1", nil)
		req = req.WithContext(internal.ContextWithUserID(req.Context(), "user-1"))
		rr := httptest.NewRecorder()
		handler.ListMine(rr, req)

		Expect(rr.Code).To(Equal(http.StatusBadRequest))
	})
})
