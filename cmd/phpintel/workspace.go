package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rlch/phpintel"
	"github.com/rlch/phpintel/cache"
	"github.com/rlch/phpintel/index"
	"github.com/rlch/phpintel/workspace"
)

// ErrCancelled is returned when indexing is interrupted.
var ErrCancelled = errors.New("indexing cancelled")

// session is a loaded workspace ready to index.
type session struct {
	cfg     *phpintel.Config
	logger  *zap.Logger
	index   *index.Index
	indexer *workspace.Indexer
	cache   cache.Cache
}

// openSession loads the configuration of dir and builds an indexer over it.
func openSession(cmd *cli.Command, dir string, opts ...workspace.Option) (*session, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %s: %w", dir, err)
	}

	cfg, err := phpintel.LoadConfigOrDefault(abs)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger(cmd.String("log-level"), cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	c, err := cache.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	idx := index.New()

	opts = append([]workspace.Option{workspace.WithLogger(logger)}, opts...)
	if c != nil {
		opts = append(opts, workspace.WithCache(c))
	}

	return &session{
		cfg:     cfg,
		logger:  logger,
		index:   idx,
		indexer: workspace.NewIndexer(workspace.NewLoader(cfg), idx, opts...),
		cache:   c,
	}, nil
}

func (s *session) Close() {
	if s.cache != nil {
		err := s.cache.Close()
		if err != nil {
			s.logger.Warn("Failed to close cache", zap.Error(err))
		}
	}

	_ = s.logger.Sync()
}

// pruneCache drops cache entries not written within maxAge. Caches that
// cannot prune are left alone.
func (s *session) pruneCache(ctx context.Context, maxAge time.Duration) (int64, error) {
	pruner, ok := s.cache.(cache.Pruner)
	if !ok {
		s.logger.Warn("Cache driver does not support pruning", zap.String("driver", s.cfg.Cache.Driver))
		return 0, nil
	}

	n, err := pruner.Prune(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}

	s.logger.Info("Pruned cache", zap.Int64("entries", n), zap.Duration("max_age", maxAge))

	return n, nil
}

// indexAll indexes the workspace, turning cancellation into a plain error.
func (s *session) indexAll(ctx context.Context) ([]workspace.Result, error) {
	results, err := s.indexer.IndexAll(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, ErrCancelled
		}

		return nil, fmt.Errorf("indexing: %w", err)
	}

	return results, nil
}

// newLogger builds a stderr logger. The flag level wins over the config level;
// the default is warn so command output stays readable.
func newLogger(flagLevel, configLevel string) (*zap.Logger, error) {
	level := zapcore.WarnLevel

	for _, name := range []string{configLevel, flagLevel} {
		if name == "" {
			continue
		}

		parsed, err := zapcore.ParseLevel(name)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", name, err)
		}

		level = parsed
	}

	config := zap.NewDevelopmentConfig()
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.Level = zap.NewAtomicLevelAt(level)

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	return logger, nil
}

// workspaceDir returns the directory argument of a command, or the working directory.
func workspaceDir(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() > 0 {
		return cmd.Args().First(), nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	return wd, nil
}
