package rag_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/frahmantamala/medichat/internal/policy"
	"github.com/frahmantamala/medichat/internal/rag"
	"github.com/frahmantamala/medichat/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		status   int
		apiKey   string
		path     string
		received map[string]any
		client   *rag.Client
	)

	BeforeEach(func() {
		status = http.StatusOK
		received = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey = r.Header.Get("X-API-Key")
			path = r.URL.Path
			_ = json.NewDecoder(r.Body).Decode(&received)

			w.WriteHeader(status)
			if status == http.StatusOK {
				_, _ = w.Write([]byte(`{"results":[{"id":"r1","content":"Aspirin guidance","score":0.9,"documentId":"d1"}],"query":"aspirin"}`))
			}
		}))
		client = rag.NewClient(rag.ClientConfig{
			BaseURL:  server.URL + "/api/v1",
			APIKey:   "secret",
			BucketID: 42,
			Limit:    5,
		}, logger.Discard())
	})

	AfterEach(func() {
		server.Close()
	})

	It("posts the query with filters and metadata", func() {
		docs, err := client.Search(context.Background(), rag.Query{
			Text: "aspirin",
			Filters: policy.Filters{
				Department:  "Cardiology",
				Sensitivity: []string{policy.SensitivityNormal},
			},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(docs).To(HaveLen(1))
		Expect(docs[0].DocumentID).To(Equal("d1"))

		Expect(apiKey).To(Equal("secret"))
		Expect(path).To(Equal("/api/v1/search/content"))
		Expect(received).To(HaveKeyWithValue("query", "aspirin"))
		Expect(received).To(HaveKeyWithValue("bucketId", BeNumerically("==", 42)))
		Expect(received).To(HaveKeyWithValue("includeMetadata", true))
		Expect(received).To(HaveKeyWithValue("n", BeNumerically("==", 5)))
		Expect(received["filter"]).To(Equal(map[string]any{"department": "Cardiology", "sensitivity": "Normal"}))
	})

	It("omits the filter when there is none", func() {
		_, err := client.Search(context.Background(), rag.Query{Text: "aspirin", Limit: 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(received).NotTo(HaveKey("filter"))
		Expect(received).To(HaveKeyWithValue("n", BeNumerically("==", 2)))
	})

	It("fails on non-200 responses", func() {
		status = http.StatusUnauthorized
		_, err := client.Search(context.Background(), rag.Query{Text: "aspirin"})
		Expect(err).To(MatchError(ContainSubstring("401")))
	})
})
