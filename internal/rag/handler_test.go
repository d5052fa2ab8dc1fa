package rag_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/frahmantamala/medichat/internal"
	"github.com/frahmantamala/medichat/internal/rag"
	"github.com/frahmantamala/medichat/internal/transport"
	"github.com/frahmantamala/medichat/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubSearchService struct {
	result *rag.SearchResult
	err    error
	limit  int
}

func (s *stubSearchService) Search(_ context.Context, _ string, text string, limit int) (*rag.SearchResult, error) {
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return &rag.SearchResult{Query: text, Documents: s.result.Documents}, nil
}

var _ = Describe("Handler", func() {
	var (
		svc     *stubSearchService
		handler *rag.Handler
	)

	BeforeEach(func() {
		svc = &stubSearchService{result: &rag.SearchResult{Documents: []rag.Document{{ID: "1", Content: "x"}}}}
		handler = &rag.Handler{BaseHandler: transport.NewBaseHandler(logger.Discard()), Service: svc}
	})

	request := func(target string, authenticated bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if authenticated {
			req = req.WithContext(internal.ContextWithUserID(req.Context(), "user-1"))
		}
		rec := httptest.NewRecorder()
		handler.Search(rec, req)
		return rec
	}

	It("returns results", func() {
		rec := request("/documents/search?q=aspirin&limit=3", true)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(svc.limit).To(Equal(3))

		var body map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body).To(HaveKeyWithValue("query", "aspirin"))
	})

	It("requires authentication", func() {
		rec := request("/documents/search?q=aspirin", false)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("rejects a missing query", func() {
		rec := request("/documents/search", true)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("rejects a non-numeric limit", func() {
		rec := request("/documents/search?q=a&limit=ten", true)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("maps service errors", func() {
		svc.err = internal.ErrAccessDenied
		rec := request("/documents/search?q=a", true)
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(rec.Body.String()).To(ContainSubstring("ACCESS_DENIED"))
	})
})
