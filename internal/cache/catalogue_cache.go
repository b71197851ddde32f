package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/pharmstock/backend-go/internal/config"
	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
)

const (
	keyPrefix         = "catalogue:"
	summaryKey        = keyPrefix + "summary"
	productsKeyPrefix = keyPrefix + "products:"
	scanBatchSize     = 100
)

// CatalogueCache keeps the latest summary and product pages of a snapshot.
type CatalogueCache interface {
	GetSummary(ctx context.Context) (domain.DashboardSummary, bool, error)
	SetSummary(ctx context.Context, summary domain.DashboardSummary) error
	GetProducts(ctx context.Context, snapshotID string, filter domain.ProductFilter) (*domain.ProductPage, bool, error)
	SetProducts(ctx context.Context, snapshotID string, filter domain.ProductFilter, page *domain.ProductPage) error
	InvalidateAll(ctx context.Context) error
}

type redisCatalogueCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopCatalogueCache struct{}

// NewCatalogueCache returns a redis backed cache, or a noop one when caching
// is disabled.
func NewCatalogueCache(cfg config.CacheConfig) (CatalogueCache, error) {
	if !cfg.Enabled {
		return NewNoopCatalogueCache(), nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	return &redisCatalogueCache{client: client, ttl: ttl}, nil
}

func NewNoopCatalogueCache() CatalogueCache {
	return &noopCatalogueCache{}
}

func (c *redisCatalogueCache) GetSummary(ctx context.Context) (domain.DashboardSummary, bool, error) {
	var summary domain.DashboardSummary
	ok, err := c.get(ctx, summaryKey, &summary)
	return summary, ok, err
}

func (c *redisCatalogueCache) SetSummary(ctx context.Context, summary domain.DashboardSummary) error {
	return c.set(ctx, summaryKey, summary)
}

func (c *redisCatalogueCache) GetProducts(ctx context.Context, snapshotID string, filter domain.ProductFilter) (*domain.ProductPage, bool, error) {
	var page domain.ProductPage
	ok, err := c.get(ctx, productsKey(snapshotID, filter), &page)
	if !ok || err != nil {
		return nil, false, err
	}
	return &page, true, nil
}

func (c *redisCatalogueCache) SetProducts(ctx context.Context, snapshotID string, filter domain.ProductFilter, page *domain.ProductPage) error {
	return c.set(ctx, productsKey(snapshotID, filter), page)
}

func (c *redisCatalogueCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, keyPrefix, scanBatchSize)
}

func (c *redisCatalogueCache) get(ctx context.Context, key string, dst any) (bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

func (c *redisCatalogueCache) set(ctx context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (n *noopCatalogueCache) GetSummary(ctx context.Context) (domain.DashboardSummary, bool, error) {
	return domain.DashboardSummary{}, false, nil
}

func (n *noopCatalogueCache) SetSummary(ctx context.Context, summary domain.DashboardSummary) error {
	return nil
}

func (n *noopCatalogueCache) GetProducts(ctx context.Context, snapshotID string, filter domain.ProductFilter) (*domain.ProductPage, bool, error) {
	return nil, false, nil
}

func (n *noopCatalogueCache) SetProducts(ctx context.Context, snapshotID string, filter domain.ProductFilter, page *domain.ProductPage) error {
	return nil
}

func (n *noopCatalogueCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func productsKey(snapshotID string, filter domain.ProductFilter) string {
	return productsKeyPrefix + snapshotID + ":" + filterHash(filter)
}

// filterHash is stable under reordering of the alert list and the case of
// free-text fields.
func filterHash(filter domain.ProductFilter) string {
	filter = filter.Normalize()
	parts := []string{
		fmt.Sprintf("page=%d", filter.Page),
		fmt.Sprintf("page_size=%d", filter.PageSize),
	}

	if len(filter.Alerts) > 0 {
		alerts := make([]string, 0, len(filter.Alerts))
		for _, a := range filter.Alerts {
			alerts = append(alerts, string(a))
		}
		slices.Sort(alerts)
		alerts = slices.Compact(alerts)
		parts = append(parts, "alert="+strings.Join(alerts, ","))
	}
	if filter.ABC != "" {
		parts = append(parts, "abc="+strings.ToUpper(filter.ABC))
	}
	if filter.XYZ != "" {
		parts = append(parts, "xyz="+strings.ToUpper(filter.XYZ))
	}
	if filter.Category != "" {
		parts = append(parts, "category="+string(filter.Category))
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		parts = append(parts, "q="+strings.ToUpper(q))
	}
	if m := strings.TrimSpace(filter.Molecule); m != "" {
		parts = append(parts, "molecule="+strings.ToUpper(m))
	}

	slices.Sort(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
