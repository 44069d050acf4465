package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Video-Analyzer/internal/analyzerapi"
	"github.com/park285/Cheese-Video-Analyzer/internal/archive"
	"github.com/park285/Cheese-Video-Analyzer/internal/artifact"
	"github.com/park285/Cheese-Video-Analyzer/internal/boardimg"
	appcfg "github.com/park285/Cheese-Video-Analyzer/internal/config"
	"github.com/park285/Cheese-Video-Analyzer/internal/msgcat"
	"github.com/park285/Cheese-Video-Analyzer/internal/session"
)

type deps struct {
	client   *analyzerapi.Client
	streamer analyzerapi.Streamer
	store    artifact.Store
	catalog  *msgcat.Catalog
	archive  *archive.Repository
	rdb      *redis.Client
}

func buildDeps(ctx context.Context, cfg *appcfg.AppConfig, logger *zap.Logger) (*deps, error) {
	d := &deps{}

	headers := func() map[string]string {
		h := map[string]string{}
		if cfg.ClientID != "" {
			h["X-Client-Id"] = cfg.ClientID
		}
		return h
	}

	d.client = analyzerapi.NewClient(cfg.BaseURL,
		analyzerapi.WithTimeout(cfg.RequestTimeout),
		analyzerapi.WithUploadTimeout(cfg.UploadTimeout),
		analyzerapi.WithMaxUploadBytes(cfg.MaxUploadBytes),
		analyzerapi.WithHeaderProvider(headers),
		analyzerapi.WithLogger(logger.Named("api")),
	)

	streamer, err := analyzerapi.NewStreamer(cfg.StreamMode, cfg.BaseURL, cfg.WSURL,
		analyzerapi.WithStreamHeaders(headers),
		analyzerapi.WithStreamLogger(logger.Named("stream")),
	)
	if err != nil {
		return nil, err
	}
	d.streamer = streamer

	switch cfg.ArtifactStore {
	case appcfg.StoreMemory:
		d.store = artifact.NewMemoryStore()
	case appcfg.StoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		d.rdb = redis.NewClient(opts)
		if err := d.rdb.Ping(ctx).Err(); err != nil {
			d.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		d.store = artifact.NewRedisStore(d.rdb, cfg.ArtifactTTL)
	default:
		fs, err := artifact.NewFileStore(cfg.ArtifactDir)
		if err != nil {
			return nil, err
		}
		d.store = fs
	}

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("load messages: %w", err)
	}
	d.catalog = cat

	if cfg.DatabaseURL != "" {
		repo, err := archive.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			// 아카이브는 선택 기능이라 실패해도 계속 진행
			logger.Warn("archive_disabled", zap.Error(err))
		} else {
			d.archive = repo
		}
	}
	return d, nil
}

func (d *deps) controllerOptions(cfg *appcfg.AppConfig, logger *zap.Logger) []session.Option {
	opts := []session.Option{session.WithLogger(logger.Named("session"))}
	if d.archive != nil {
		opts = append(opts, session.WithRecorder(d.archive))
	}
	if cfg.PreviewEnabled {
		opts = append(opts, session.WithPreview(boardimg.New()))
	}
	return opts
}

func (d *deps) Close() {
	if d == nil {
		return
	}
	if d.archive != nil {
		_ = d.archive.Close()
	}
	if d.rdb != nil {
		_ = d.rdb.Close()
	}
}
