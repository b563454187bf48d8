package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/support-assistant/internal/platform/logger"
)

const DefaultRedisKey = "support:quota:completion"

const redisOpTimeout = 2 * time.Second

// Redis shares the breaker between processes (web server and a separately deployed bridge).
// The key has no TTL. A local copy answers while Redis is unreachable so an outage can
// never close a tripped breaker.
type Redis struct {
	log   *logger.Logger
	rdb   *goredis.Client
	key   string
	local *Memory

	// set when a Trip could not be written; replayed on the next successful read.
	pending atomic.Bool
}

func NewRedis(log *logger.Logger, addr, password string, db int, key string) (*Redis, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisWithClient(log, rdb, key), nil
}

func NewRedisWithClient(log *logger.Logger, rdb *goredis.Client, key string) *Redis {
	if log == nil {
		log = logger.Nop()
	}
	if strings.TrimSpace(key) == "" {
		key = DefaultRedisKey
	}
	return &Redis{
		log:   log.With("service", "QuotaBreaker"),
		rdb:   rdb,
		key:   key,
		local: NewMemory(),
	}
}

func (r *Redis) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}

func (r *Redis) Exceeded(ctx context.Context) bool {
	return r.Status(ctx).Exceeded
}

func (r *Redis) Trip(ctx context.Context, reason string) {
	r.local.Trip(ctx, reason)
	if err := r.write(ctx, r.local.Status(ctx)); err != nil {
		r.pending.Store(true)
		r.log.Warn("quota breaker trip not persisted", "error", err)
	}
}

// Reset stores an explicit closed record rather than deleting the key, so a lost key
// (restart without persistence, eviction, FLUSHDB) is never read as an operator reset.
func (r *Redis) Reset(ctx context.Context) {
	r.pending.Store(false)
	r.local.Reset(ctx)
	raw, _ := json.Marshal(Status{})
	cctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := r.rdb.Set(cctx, r.key, raw, 0).Err(); err != nil {
		r.log.Warn("quota breaker reset not persisted", "error", err)
	}
}

func (r *Redis) Status(ctx context.Context) Status {
	cctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	raw, err := r.rdb.Get(cctx, r.key).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		// Key lost: keep local state and re-publish a trip.
		if r.local.Exceeded(ctx) {
			if werr := r.write(ctx, r.local.Status(ctx)); werr == nil {
				r.pending.Store(false)
			} else {
				r.pending.Store(true)
			}
		}
		return r.local.Status(ctx)
	case err != nil:
		r.log.Warn("quota breaker read failed, using local state", "error", err)
		return r.local.Status(ctx)
	}
	var st Status
	if uerr := json.Unmarshal(raw, &st); uerr != nil {
		st = Status{Exceeded: true, Reason: "unparseable breaker state"}
	}
	if !st.Exceeded {
		if r.pending.Load() {
			// Our trip never reached Redis; the closed record predates it.
			if werr := r.write(ctx, r.local.Status(ctx)); werr == nil {
				r.pending.Store(false)
			}
			return r.local.Status(ctx)
		}
		// Reset by an operator, possibly through another process.
		if r.local.Exceeded(ctx) {
			r.local.Reset(ctx)
		}
		return Status{}
	}
	// The shared record wins so every process reports the first trip's reason.
	r.local.set(st)
	r.pending.Store(false)
	return r.local.Status(ctx)
}

// tripScript writes the trip record unless the key already holds a tripped one, which
// keeps the first trip's reason when processes race.
var tripScript = goredis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur then
  local ok, st = pcall(cjson.decode, cur)
  if ok and type(st) == "table" and st["exceeded"] == true then
    return 0
  end
end
redis.call("SET", KEYS[1], ARGV[1])
return 1
`)

func (r *Redis) write(ctx context.Context, st Status) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	return tripScript.Run(cctx, r.rdb, []string{r.key}, string(raw)).Err()
}
