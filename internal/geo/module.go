package geo

import (
	"time"

	"github.com/redis/go-redis/v9"

	apphttp "nordflytt_backend/internal/http"
	"nordflytt_backend/platform/config"
	"nordflytt_backend/platform/logger"
)

// Module wires the geo lookup HTTP routes and owns the distance resolver
// shared with the quoting modules.
type Module struct {
	handler  *Handler
	resolver Resolver
}

// NewModule builds the resolver stack. When a redis client is provided the
// resolver is wrapped with a read-through distance cache.
func NewModule(cfg config.GeoConfig, redisClient *redis.Client, log *logger.Logger) *Module {
	svc := NewService(cfg, log)

	var resolver Resolver = svc
	if redisClient != nil {
		ttl := cfg.GetDistanceCacheTTL()
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		resolver = NewCachedResolver(svc, redisClient, ttl, log)
	}

	return &Module{
		handler:  NewHandler(svc, resolver),
		resolver: resolver,
	}
}

func (m *Module) Name() string {
	return "geo"
}

// Resolver exposes the distance resolver for other modules.
func (m *Module) Resolver() Resolver {
	return m.resolver
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/geo")
	group.GET("/address-lookup", m.handler.LookupAddress)
	group.POST("/distance", m.handler.ResolveDistance)
}

var _ apphttp.Module = (*Module)(nil)
