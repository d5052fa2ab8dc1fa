package policy_test

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/medichat/internal/policy"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type countingClient struct {
	attrCalls int
	permCalls int
	attrErr   error
	attrs     policy.Attributes
	perms     []string

	// runs inside AssignRole and SyncUser, before the write lands
	duringWrite func()
}

func (c *countingClient) Check(context.Context, string, policy.Action, policy.ResourceType) (bool, error) {
	return true, nil
}

func (c *countingClient) GetUserAttributes(context.Context, string) (policy.Attributes, error) {
	c.attrCalls++
	if c.attrErr != nil {
		return policy.Attributes{}, c.attrErr
	}
	return c.attrs, nil
}

func (c *countingClient) GetUserPermissions(context.Context, string) ([]string, error) {
	c.permCalls++
	return c.perms, nil
}

func (c *countingClient) AssignRole(context.Context, string, policy.Role) error {
	if c.duringWrite != nil {
		c.duringWrite()
	}
	return nil
}

func (c *countingClient) SyncUser(context.Context, policy.UserProfile) error {
	if c.duringWrite != nil {
		c.duringWrite()
	}
	return nil
}

var _ = Describe("CachedClient", func() {
	var (
		ctx    context.Context
		inner  *countingClient
		cached *policy.CachedClient
	)

	BeforeEach(func() {
		ctx = context.Background()
		inner = &countingClient{
			attrs: policy.Attributes{Department: "ER"},
			perms: []string{"chat:view"},
		}
		cached = policy.NewCachedClient(inner, time.Minute)
	})

	It("serves repeated attribute lookups from cache", func() {
		for i := 0; i < 3; i++ {
			attrs, err := cached.GetUserAttributes(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(attrs.Department).To(Equal("ER"))
		}
		Expect(inner.attrCalls).To(Equal(1))
	})

	It("does not cache failures", func() {
		inner.attrErr = errors.New("pdp down")
		_, err := cached.GetUserAttributes(ctx, "u1")
		Expect(err).To(HaveOccurred())

		inner.attrErr = nil
		attrs, err := cached.GetUserAttributes(ctx, "u1")
		Expect(err).NotTo(HaveOccurred())
		Expect(attrs.Department).To(Equal("ER"))
		Expect(inner.attrCalls).To(Equal(2))
	})

	It("invalidates on role assignment", func() {
		_, _ = cached.GetUserPermissions(ctx, "u1")
		Expect(cached.AssignRole(ctx, "u1", policy.RoleDoctor)).To(Succeed())
		_, _ = cached.GetUserPermissions(ctx, "u1")
		Expect(inner.permCalls).To(Equal(2))
	})

	It("drops entries refilled while a role assignment is in flight", func() {
		inner.duringWrite = func() {
			_, _ = cached.GetUserAttributes(ctx, "u1")
		}
		Expect(cached.AssignRole(ctx, "u1", policy.RoleDoctor)).To(Succeed())
		Expect(inner.attrCalls).To(Equal(1))

		inner.attrs = policy.Attributes{Department: "Cardiology"}
		attrs, err := cached.GetUserAttributes(ctx, "u1")
		Expect(err).NotTo(HaveOccurred())
		Expect(attrs.Department).To(Equal("Cardiology"))
		Expect(inner.attrCalls).To(Equal(2))
	})

	It("drops entries refilled while a user sync is in flight", func() {
		inner.duringWrite = func() {
			_, _ = cached.GetUserPermissions(ctx, "u1")
		}
		Expect(cached.SyncUser(ctx, policy.UserProfile{ID: "u1"})).To(Succeed())

		_, _ = cached.GetUserPermissions(ctx, "u1")
		Expect(inner.permCalls).To(Equal(2))
	})
})
