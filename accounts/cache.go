package accounts

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jrsteele09/quiz-admin/internal/kvstore"
)

const (
	cacheNamespace = "users"
	cacheKey       = "all"
)

// KVCache stores the whole user list as one document in the local store.
type KVCache struct {
	store *kvstore.Store
}

var _ Cache = (*KVCache)(nil)

func NewKVCache(store *kvstore.Store) *KVCache {
	return &KVCache{store: store}
}

// Load returns nil without error when nothing has been cached yet.
func (c *KVCache) Load(ctx context.Context) ([]Account, error) {
	var list []Account
	err := c.store.GetJSON(ctx, cacheNamespace, cacheKey, &list)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[KVCache.Load]")
	}
	return list, nil
}

func (c *KVCache) Save(ctx context.Context, list []Account) error {
	return errors.Wrap(c.store.PutJSON(ctx, cacheNamespace, cacheKey, list), "[KVCache.Save]")
}
