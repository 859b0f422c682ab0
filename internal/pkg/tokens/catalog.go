package tokens

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const catalogCacheKeyPrefix = "careerboost:service_price:"

// Catalog resolves per-service token costs. The catalog is read-mostly, so
// lookups go through a short-lived Redis cache in front of the DB; cache
// failures degrade to a plain DB read.
type Catalog struct {
	repo     Repository
	cache    *redis.Client
	cacheTTL time.Duration
}

// NewCatalog creates a catalog over the token repository. cache may be nil
// to disable caching (tests, single-instance deployments).
func NewCatalog(repo Repository, cache *redis.Client, cacheTTL time.Duration) *Catalog {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Catalog{repo: repo, cache: cache, cacheTTL: cacheTTL}
}

// GetCost returns the token cost of an active service. Lookup is
// case-insensitive. A cost of zero is a valid result (free service) and is
// distinct from ErrNotFound, which is returned only when no active catalog
// entry matches.
func (c *Catalog) GetCost(ctx context.Context, serviceName string) (int64, error) {
	name := strings.ToLower(strings.TrimSpace(serviceName))
	if name == "" {
		return 0, ErrValidation
	}

	if c.cache != nil {
		if val, err := c.cache.Get(ctx, catalogCacheKeyPrefix+name).Result(); err == nil {
			if cost, parseErr := strconv.ParseInt(val, 10, 64); parseErr == nil {
				return cost, nil
			}
		}
	}

	price, err := c.repo.GetActiveServicePrice(name)
	if err != nil {
		return 0, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, catalogCacheKeyPrefix+name, strconv.FormatInt(price.TokenCost, 10), c.cacheTTL).Err(); err != nil {
			log.Printf("Warning: could not cache service price %s: %v", name, err)
		}
	}
	return price.TokenCost, nil
}
