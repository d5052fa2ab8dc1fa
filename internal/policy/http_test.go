package policy_test

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/frahmantamala/medichat/internal/policy"
	"github.com/frahmantamala/medichat/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("HTTPClient", func() {
	var (
		ctx      context.Context
		server   *httptest.Server
		client   *policy.HTTPClient
		mu       sync.Mutex
		requests []*http.Request
		bodies   []map[string]any
		handler  http.HandlerFunc
	)

	BeforeEach(func() {
		ctx = context.Background()
		requests = nil
		bodies = nil
		handler = func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			requests = append(requests, r)
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			bodies = append(bodies, body)
			mu.Unlock()
			handler(w, r)
		}))

		client = policy.NewHTTPClient(policy.HTTPConfig{
			PDPURL:      server.URL,
			APIURL:      server.URL,
			APIKey:      "permit_key_test",
			Project:     "medichat",
			Environment: "dev",
		}, logger.Discard())
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("Check", func() {
		It("posts the decision request and returns the answer", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"allow": true}`))
			}

			allowed, err := client.Check(ctx, "user_1", policy.ActionUpdate, policy.ResourcePrompt)
			Expect(err).NotTo(HaveOccurred())
			Expect(allowed).To(BeTrue())

			Expect(requests).To(HaveLen(1))
			Expect(requests[0].Method).To(Equal(http.MethodPost))
			Expect(requests[0].URL.Path).To(Equal("/allowed"))
			Expect(requests[0].Header.Get("Authorization")).To(Equal("Bearer permit_key_test"))
			Expect(bodies[0]["action"]).To(Equal("update"))
			Expect(bodies[0]["user"]).To(HaveKeyWithValue("key", "user_1"))
			Expect(bodies[0]["resource"]).To(HaveKeyWithValue("type", "prompt"))
		})

		It("wraps transport failures as unavailable", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}

			allowed, err := client.Check(ctx, "user_1", policy.ActionView, policy.ResourceChat)
			Expect(allowed).To(BeFalse())
			Expect(err).To(MatchError(policy.ErrUnavailable))
		})
	})

	Describe("GetUserAttributes", func() {
		It("decodes typed and extension attributes", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{
					"key": "user_1",
					"attributes": {"department": "Cardiology", "clearance": 3, "specialization": "Pediatrics", "ward": "B"},
					"roles": [{"role": "doctor", "tenant": "default"}]
				}`))
			}

			attrs, err := client.GetUserAttributes(ctx, "user_1")
			Expect(err).NotTo(HaveOccurred())
			Expect(attrs.Department).To(Equal("Cardiology"))
			Expect(*attrs.Clearance).To(Equal(3))
			Expect(attrs.Specialization).To(Equal("Pediatrics"))
			Expect(attrs.Role).To(Equal(policy.RoleDoctor))
			Expect(attrs.Extra).To(HaveKeyWithValue("ward", "B"))
			Expect(requests[0].URL.Path).To(Equal("/v2/facts/medichat/dev/users/user_1"))
		})

		It("accepts clearance sent as a string", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"key": "user_1", "attributes": {"clearance": "5"}}`))
			}

			attrs, err := client.GetUserAttributes(ctx, "user_1")
			Expect(err).NotTo(HaveOccurred())
			Expect(*attrs.Clearance).To(Equal(5))
		})

		DescribeTable("clamps out of range clearance instead of wrapping",
			func(raw string, expected int) {
				handler = func(w http.ResponseWriter, r *http.Request) {
					_, _ = w.Write([]byte(`{"key": "user_1", "attributes": {"clearance": ` + raw + `}}`))
				}

				attrs, err := client.GetUserAttributes(ctx, "user_1")
				Expect(err).NotTo(HaveOccurred())
				Expect(attrs.Clearance).NotTo(BeNil())
				Expect(*attrs.Clearance).To(Equal(expected))
			},
			Entry("huge positive", "1e20", math.MaxInt32),
			Entry("huge negative", "-1e20", math.MinInt32),
			Entry("fractional", "3.7", 3),
		)

		It("keeps a huge clearance in the widest sensitivity band", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"key": "user_1", "attributes": {"clearance": 1e20}}`))
			}

			attrs, err := client.GetUserAttributes(ctx, "user_1")
			Expect(err).NotTo(HaveOccurred())
			Expect(policy.DeriveFilters(attrs).Sensitivity).To(BeNil())
		})

		It("maps 404 to an unknown user", func() {
			_, err := client.GetUserAttributes(ctx, "ghost")
			Expect(err).To(MatchError(policy.ErrUnknownUser))
		})
	})

	Describe("GetUserPermissions", func() {
		It("collects permissions across assigned roles without duplicates", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/v2/facts/medichat/dev/role_assignments":
					_, _ = w.Write([]byte(`[{"role": "patient"}, {"role": "researcher"}]`))
				case "/v2/schema/medichat/dev/roles/patient":
					_, _ = w.Write([]byte(`{"permissions": ["chat:view", "ragQuery:search"]}`))
				case "/v2/schema/medichat/dev/roles/researcher":
					_, _ = w.Write([]byte(`{"permissions": ["ragQuery:search", "aiResponse:view"]}`))
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			}

			perms, err := client.GetUserPermissions(ctx, "user_1")
			Expect(err).NotTo(HaveOccurred())
			Expect(perms).To(Equal([]string{"chat:view", "ragQuery:search", "aiResponse:view"}))
			Expect(requests[0].URL.Query().Get("user")).To(Equal("user_1"))
		})
	})

	Describe("SyncUser", func() {
		It("upserts the user and assigns the default role", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{}`))
			}

			err := client.SyncUser(ctx, policy.UserProfile{
				ID:         "user_1",
				Email:      "pat@example.com",
				Attributes: policy.Attributes{Department: "Cardiology", Clearance: policy.Clearance(2)},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(requests).To(HaveLen(2))
			Expect(requests[0].Method).To(Equal(http.MethodPut))
			Expect(requests[0].URL.Path).To(Equal("/v2/facts/medichat/dev/users/user_1"))
			Expect(bodies[0]["attributes"]).To(HaveKeyWithValue("department", "Cardiology"))
			Expect(requests[1].URL.Path).To(Equal("/v2/facts/medichat/dev/role_assignments"))
			Expect(bodies[1]["role"]).To(Equal("patient"))
		})

		It("treats an existing role assignment as success", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/v2/facts/medichat/dev/role_assignments" {
					w.WriteHeader(http.StatusConflict)
					return
				}
				_, _ = w.Write([]byte(`{}`))
			}

			Expect(client.AssignRole(ctx, "user_1", policy.RoleDoctor)).To(Succeed())
		})
	})

	Describe("UpsertRole", func() {
		It("falls back to patching an existing role", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodPost {
					w.WriteHeader(http.StatusConflict)
					return
				}
				_, _ = w.Write([]byte(`{}`))
			}

			err := client.UpsertRole(ctx, policy.Roles[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(requests).To(HaveLen(2))
			Expect(requests[1].Method).To(Equal(http.MethodPatch))
			Expect(requests[1].URL.Path).To(Equal("/v2/schema/medichat/dev/roles/admin"))
		})
	})
})
