// Gather is the feed aggregation service.
//
// Given a user it assembles a time-ordered page of the posts their friends
// have made, by fanning out to the friend-graph and post-store services,
// merging the per-friend results and caching the assembled pages.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-envconfig"
	"github.com/sethvargo/go-retry"
	"go.uber.org/fx"

	"github.com/lmcintyre/gather/internal/api"
	"github.com/lmcintyre/gather/internal/cache"
	"github.com/lmcintyre/gather/internal/cursor"
	"github.com/lmcintyre/gather/internal/feed"
	"github.com/lmcintyre/gather/internal/gather"
	"github.com/lmcintyre/gather/internal/upstream"
	"github.com/lmcintyre/gather/logger"
)

type config struct {
	Port int `env:"PORT, default=4444"`

	FriendServiceURL   string `env:"FRIEND_SERVICE_URL, required"`
	PostServiceURL     string `env:"POST_SERVICE_URL, required"`
	IdentityServiceURL string `env:"IDENTITY_SERVICE_URL, required"`

	// Shared secret for the post store's internal read API.
	PostInternalKey string `env:"POST_INTERNAL_KEY"`

	// When set, cached pages are shared between replicas through redis;
	// otherwise each replica keeps its own in-process cache.
	RedisAddr string `env:"REDIS_ADDR"`

	FriendTimeout   time.Duration `env:"FRIEND_TIMEOUT, default=500ms"`
	PostTimeout     time.Duration `env:"POST_TIMEOUT, default=800ms"`
	IdentityTimeout time.Duration `env:"IDENTITY_TIMEOUT, default=500ms"`
	MaxFanout       int           `env:"MAX_FANOUT, default=20"`
	CacheTTL        time.Duration `env:"CACHE_TTL, default=30s"`
	CacheSize       int           `env:"CACHE_SIZE, default=4096"`
	PageDeadline    time.Duration `env:"PAGE_DEADLINE, default=2s"`

	CursorHashKey  string `env:"CURSOR_HASH_KEY, required"`
	CursorBlockKey string `env:"CURSOR_BLOCK_KEY"`

	CorsOrigin   string `env:"CORS_ORIGIN, default=*"`
	AuthDisabled bool   `env:"AUTH_DISABLED, default=false"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	// Determine which logger format to use
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, nil)
	if cfg.LoggerFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	}
	slog.SetDefault(slog.New(logger.NewContextHandler(handler)))

	// Pick the cache backend, waiting for redis when it's configured
	var store cache.Store = cache.NewMemoryStore(cfg.CacheTTL, cfg.CacheSize)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := retry.Fibonacci(ctx, 1*time.Second, func(ctx context.Context) error {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		}); err != nil {
			log.Fatalf("unable to reach redis: %s", err)
		}
		store = cache.NewRedisStore(rdb, cfg.CacheTTL)
	}

	var blockKey []byte
	if cfg.CursorBlockKey != "" {
		blockKey = []byte(cfg.CursorBlockKey)
	}

	// Start the application
	fx.New(
		fx.Supply(
			api.ServerConfig{
				Port:         cfg.Port,
				CorsOrigin:   cfg.CorsOrigin,
				AuthDisabled: cfg.AuthDisabled,
			},
			feed.Config{
				FriendTimeout: cfg.FriendTimeout,
				PostTimeout:   cfg.PostTimeout,
				MaxFanout:     cfg.MaxFanout,
				CacheTTL:      cfg.CacheTTL,
				PageDeadline:  cfg.PageDeadline,
			},
			cursor.NewCodec([]byte(cfg.CursorHashKey), blockKey),
			fx.Annotate(store, fx.As(new(cache.Store))),
			fx.Annotate(
				upstream.NewFriendClient(cfg.FriendServiceURL, cfg.FriendTimeout),
				fx.As(new(gather.FriendGraph)),
			),
			fx.Annotate(
				upstream.NewPostClient(cfg.PostServiceURL, cfg.PostTimeout, cfg.PostInternalKey),
				fx.As(new(gather.PostStore)),
			),
			fx.Annotate(
				upstream.NewIdentityClient(cfg.IdentityServiceURL, cfg.IdentityTimeout),
				fx.As(new(gather.Identity)),
			),
		),
		feed.Module,
		api.Module,
		fx.Invoke(func(*api.Server) {}), // Start the feed server
	).Run()
}
