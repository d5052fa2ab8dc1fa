package chat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/medichat/internal"
	"github.com/frahmantamala/medichat/internal/chat"
	chatDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/chat"
	"github.com/frahmantamala/medichat/internal/conversation"
	"github.com/frahmantamala/medichat/internal/llm"
	"github.com/frahmantamala/medichat/internal/prompt"
	"github.com/frahmantamala/medichat/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Chat Handler", func() {
	var (
		generator *mockGenerator
		classify  *mockClassifier
		history   *mockHistory
		handler   *chat.Handler
		caller    internal.Caller
	)

	BeforeEach(func() {
		generator = &mockGenerator{stream: &fakeStream{chunks: []string{"Hello", " \"world\""}}}
		classify = &mockClassifier{result: prompt.Result{Allowed: true, Classification: prompt.ClassificationView}}
		history = &mockHistory{}
		service := chat.NewService(classify, &mockPolicy{allow: true}, generator, &mockAudit{}, history, &mockPublisher{}, logger.Discard())
		handler = chat.NewHandler(service)
		caller = internal.Caller{ID: "user-1", Email: "pat@example.com", Role: "patient"}
	})

	post := func(body string, withCaller bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if withCaller {
			req = req.WithContext(internal.ContextWithCaller(req.Context(), caller))
		}
		rr := httptest.NewRecorder()
		handler.Chat(rr, req)
		return rr
	}

	Describe("POST /chat", func() {
		It("streams the reply as data-stream parts", func() {
			rr := post(`{"messages":[{"role":"user","content":"What are my appointments?"}]}`, true)

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Header().Get("X-Vercel-AI-Data-Stream")).To(Equal("v1"))
			Expect(rr.Header().Get("Content-Type")).To(Equal("text/plain; charset=utf-8"))

			lines := strings.Split(strings.TrimRight(rr.Body.String(), "\n"), "\n")
			Expect(lines).To(HaveLen(4))
			Expect(lines[0]).To(HavePrefix(`f:{"messageId":"msg-`))
			Expect(lines[1]).To(Equal(`0:"Hello"`))
			Expect(lines[2]).To(Equal(`0:" \"world\""`))
			Expect(lines[3]).To(HavePrefix(`d:{"finishReason":"stop"`))
		})

		It("finishes with an error reason when the model fails mid-stream", func() {
			generator.stream = &fakeStream{chunks: []string{"Part"}, err: context.DeadlineExceeded}

			rr := post(`{"messages":[{"role":"user","content":"hi"}]}`, true)

			Expect(rr.Code).To(Equal(http.StatusOK))
			body := rr.Body.String()
			Expect(body).To(ContainSubstring(`0:"Part"`))
			Expect(body).To(ContainSubstring(`0:"` + chat.StreamErrorText + `"`))
			Expect(body).To(ContainSubstring(`d:{"finishReason":"error"`))
		})

		It("requires an authenticated caller", func() {
			rr := post(`{"messages":[{"role":"user","content":"hi"}]}`, false)
			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
		})

		It("rejects a malformed body", func() {
			rr := post(`{"messages":`, true)
			Expect(rr.Code).To(Equal(http.StatusBadRequest))
			Expect(rr.Body.String()).To(ContainSubstring("INVALID_REQUEST_BODY"))
		})

		DescribeTable("validation",
			func(body string) {
				rr := post(body, true)
				Expect(rr.Code).To(Equal(http.StatusBadRequest))
				Expect(rr.Body.String()).To(ContainSubstring("VALIDATION_FAILED"))
				Expect(generator.calls).To(BeZero())
			},
			Entry("no messages", `{"messages":[]}`),
			Entry("missing messages", `{}`),
			Entry("unknown role", `{"messages":[{"role":"robot","content":"hi"}]}`),
			Entry("bad attachment url", `{"messages":[{"role":"user","content":"hi"}],"attachments":[{"name":"x","url":"not a url","contentType":"image/png"}]}`),
		)

		It("answers a rejected prompt with 403 before streaming", func() {
			classify.result = prompt.Result{Allowed: false, Classification: prompt.ClassificationDelete, Reason: "Not authorized to delete via chat"}

			rr := post(`{"messages":[{"role":"user","content":"delete my records"}]}`, true)

			Expect(rr.Code).To(Equal(http.StatusForbidden))
			Expect(rr.Header().Get("X-Vercel-AI-Data-Stream")).To(BeEmpty())
			Expect(rr.Body.String()).To(ContainSubstring("PROMPT_REJECTED"))
		})

		It("keeps upstream model failure text out of the response", func() {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided: sk-live-SECRET123. internal host llm-gw-7.prod.internal","type":"invalid_request_error"}}`))
			}))
			defer upstream.Close()

			openAI := llm.NewOpenAIGenerator(llm.OpenAIConfig{
				BaseURL: upstream.URL,
				APIKey:  "sk-live-SECRET123",
				Model:   "test-model",
			}, logger.Discard())
			service := chat.NewService(classify, &mockPolicy{allow: true}, openAI, &mockAudit{}, history, &mockPublisher{}, logger.Discard())
			handler = chat.NewHandler(service)

			rr := post(`{"messages":[{"role":"user","content":"hi"}]}`, true)

			Expect(rr.Code).To(Equal(http.StatusInternalServerError))
			body := rr.Body.String()
			Expect(body).To(ContainSubstring("MODEL_FAILURE"))
			Expect(body).To(ContainSubstring("AI model error: the assistant is temporarily unavailable"))
			Expect(body).NotTo(ContainSubstring("SECRET123"))
			Expect(body).NotTo(ContainSubstring("llm-gw-7"))
		})
	})

	Describe("GET /chat/history", func() {
		get := func(query string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/history"+query, nil)
			req = req.WithContext(internal.ContextWithCaller(req.Context(), caller))
			rr := httptest.NewRecorder()
			handler.History(rr, req)
			return rr
		}

		It("returns the history wrapped in an object", func() {
			history.summaries = []conversation.Summary{{
				ID:       "s-1",
				Messages: []chatDatamodel.Message{{Role: "user", Content: "hi"}},
			}}

			rr := get("?limit=5")

			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(history.limit).To(Equal(5))

			var resp struct {
				History []conversation.Summary `json:"history"`
			}
			Expect(json.Unmarshal(rr.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.History).To(HaveLen(1))
			Expect(resp.History[0].ID).To(Equal("s-1"))
		})

		It("passes zero through when no limit is given", func() {
			rr := get("")
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(history.limit).To(BeZero())
		})

		It("rejects a bad limit", func() {
			rr := get("?limit=abc")
			Expect(rr.Code).To(Equal(http.StatusBadRequest))
			Expect(rr.Body.String()).To(ContainSubstring("INVALID_QUERY"))
		})
	})
})
