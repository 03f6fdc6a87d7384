package pipeline

import (
	"context"

	"github.com/matzehuels/mmdoc/pkg/cache"
	"github.com/matzehuels/mmdoc/pkg/config"
	pkgerrors "github.com/matzehuels/mmdoc/pkg/errors"
)

// OpenMirror creates the artifact mirror selected by the [cache] section.
// defaultDir is used by the file mirror when cache.dir is unset.
func OpenMirror(ctx context.Context, cfg *config.Config, defaultDir string) (cache.Cache, error) {
	switch cfg.Cache.Mirror {
	case "", config.MirrorNone:
		return cache.NewNullCache(), nil
	case config.MirrorFile:
		dir := cfg.ResolvePath(cfg.Cache.Dir)
		if dir == "" {
			dir = defaultDir
		}
		if dir == "" {
			return nil, pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "file mirror needs cache.dir")
		}
		return cache.NewFileCache(dir)
	case config.MirrorRedis:
		return cache.NewRedisCache(ctx, cfg.Cache.RedisURL, "")
	}
	return nil, pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "unknown mirror %q", cfg.Cache.Mirror)
}
