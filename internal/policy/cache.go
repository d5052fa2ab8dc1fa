package policy

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedClient remembers successful attribute and permission lookups for a
// short time. Checks always go to the wrapped client, and errors are never cached.
type CachedClient struct {
	Client
	cache *gocache.Cache
}

func NewCachedClient(inner Client, ttl time.Duration) *CachedClient {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedClient{
		Client: inner,
		cache:  gocache.New(ttl, 2*ttl),
	}
}

func attrsKey(userID string) string { return "attrs:" + userID }
func permsKey(userID string) string { return "perms:" + userID }

func (c *CachedClient) GetUserAttributes(ctx context.Context, userID string) (Attributes, error) {
	if v, ok := c.cache.Get(attrsKey(userID)); ok {
		return v.(Attributes), nil
	}

	attrs, err := c.Client.GetUserAttributes(ctx, userID)
	if err != nil {
		return Attributes{}, err
	}
	c.cache.SetDefault(attrsKey(userID), attrs)
	return attrs, nil
}

func (c *CachedClient) GetUserPermissions(ctx context.Context, userID string) ([]string, error) {
	if v, ok := c.cache.Get(permsKey(userID)); ok {
		cached := v.([]string)
		out := make([]string, len(cached))
		copy(out, cached)
		return out, nil
	}

	perms, err := c.Client.GetUserPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(permsKey(userID), perms)
	return perms, nil
}

// AssignRole and SyncUser drop the user's entries on both sides of the
// write, so a lookup racing the write cannot leave the old answer cached.
func (c *CachedClient) AssignRole(ctx context.Context, userID string, role Role) error {
	c.Invalidate(userID)
	defer c.Invalidate(userID)
	return c.Client.AssignRole(ctx, userID, role)
}

func (c *CachedClient) SyncUser(ctx context.Context, profile UserProfile) error {
	c.Invalidate(profile.ID)
	defer c.Invalidate(profile.ID)
	return c.Client.SyncUser(ctx, profile)
}

func (c *CachedClient) Invalidate(userID string) {
	c.cache.Delete(attrsKey(userID))
	c.cache.Delete(permsKey(userID))
}
