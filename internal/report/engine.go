package report

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"veggiemarket/backend/internal/cache"
	"veggiemarket/backend/internal/state"
)

// Engine builds reports and keeps recent ones in a cache. A state change bumps
// the version and with it the key, so stale entries are never served.
type Engine struct {
	cache    cache.ReportCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewEngine(cacheStore cache.ReportCache, cacheTTL time.Duration, logger *zap.Logger) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopReportCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cache: cacheStore, cacheTTL: cacheTTL, logger: logger.Named("report")}
}

func (e *Engine) Build(ctx context.Context, st state.State, w Window) Report {
	key := buildCacheKey(w, st.Version)
	if payload, ok, err := e.cache.Get(ctx, key); err == nil && ok {
		var cached Report
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached
		}
	} else if err != nil {
		e.logger.Warn("report cache read failed", zap.Error(err))
	}

	rep := Build(st, w)
	payload, err := json.Marshal(rep)
	if err != nil {
		e.logger.Error("encode report", zap.Error(err))
		return rep
	}
	if err := e.cache.Set(ctx, key, payload, e.cacheTTL); err != nil {
		e.logger.Warn("report cache write failed", zap.Error(err))
	}
	return rep
}

func buildCacheKey(w Window, version uint64) string {
	parts := []string{
		string(w.Period),
		strconv.FormatInt(unixOrZero(w.Start), 10),
		strconv.FormatInt(unixOrZero(w.End), 10),
		"v:" + strconv.FormatUint(version, 10),
	}
	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
