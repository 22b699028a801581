// Package service 组装数据库、Redis、MQTT 与评分组件，提供 CLI 与 HTTP 服务共用的入口。
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"wisefido-care-scores/common/database"
	"wisefido-care-scores/common/mqtt"
	commonredis "wisefido-care-scores/common/redis"
	"wisefido-care-scores/internal/backfill"
	"wisefido-care-scores/internal/config"
	"wisefido-care-scores/internal/domains"
	"wisefido-care-scores/internal/httpapi"
	"wisefido-care-scores/internal/materializer"
	"wisefido-care-scores/internal/metrics"
	"wisefido-care-scores/internal/models"
	"wisefido-care-scores/internal/notify"
	"wisefido-care-scores/internal/repository"
	"wisefido-care-scores/internal/scoring"

	"go.uber.org/zap"
)

// ScoringService 评分服务
type ScoringService struct {
	config       *config.Config
	logger       *zap.Logger
	db           *sql.DB
	redisClient  *commonredis.Client
	mqttClient   *mqtt.Client
	registry     *domains.Registry
	scoreRepo    *repository.ScoreRepository
	materializer *materializer.Materializer
	metrics      *metrics.BatchMetrics
	summaries    *notify.RedisNotifier
	server       *http.Server
}

// NewScoringService 连接存储并装配组件；Redis/MQTT 按配置可选
func NewScoringService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ScoringService, error) {
	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &ScoringService{
		config:    cfg,
		logger:    logger,
		db:        db,
		registry:  domains.Default(),
		scoreRepo: repository.NewScoreRepository(db, logger),
		metrics:   metrics.NewBatchMetrics(),
	}

	var notifiers []materializer.Notifier
	if cfg.Redis.Enabled {
		client, err := commonredis.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.redisClient = client
		s.summaries = notify.NewRedisNotifier(
			notify.NewRedisKVStore(client),
			notify.NewRedisStreamPublisher(client),
			cfg.Publish.Stream,
			cfg.Publish.SummaryTTL,
			logger,
		)
		notifiers = append(notifiers, s.summaries)
	}
	if cfg.MQTT.Enabled {
		client, err := mqtt.NewClient(&cfg.MQTT, logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to mqtt broker: %w", err)
		}
		s.mqttClient = client
		notifiers = append(notifiers, notify.NewMQTTNotifier(client, cfg.Publish.AlertTopic, logger))
	}

	s.materializer = materializer.New(
		repository.NewDirectoryRepository(db, logger),
		repository.NewEventRepository(db, logger),
		s.scoreRepo,
		scoring.NewEngine(s.registry),
		logger,
		materializer.WithNotifiers(notifiers...),
		materializer.WithMetrics(s.metrics),
	)
	return s, nil
}

// Calculate 单个快照日期的全部周期
func (s *ScoringService) Calculate(ctx context.Context, snapshotEnd time.Time, periods []int, clientFilter string) ([]models.PeriodSummary, error) {
	return s.materializer.Calculate(ctx, snapshotEnd, periods, clientFilter)
}

// Backfill 按天重复计算 [start, end]
func (s *ScoringService) Backfill(ctx context.Context, start, end time.Time, periods []int, clientFilter string, progress backfill.ProgressFunc) (models.BackfillTotals, error) {
	driver := backfill.NewDriver(s.materializer.WithoutRiskAlerts(), s.logger)
	if progress != nil {
		driver.OnProgress(progress)
	}
	return driver.Run(ctx, start, end, periods, clientFilter)
}

// Snapshot 读取一个窗口的全部评分
func (s *ScoringService) Snapshot(ctx context.Context, startDateID, endDateID int) ([]models.ScoreRow, error) {
	return s.scoreRepo.ListSnapshot(ctx, startDateID, endDateID)
}

// Migrate 执行数据库迁移
func (s *ScoringService) Migrate(ctx context.Context) error {
	return repository.RunMigrations(ctx, s.db, s.logger)
}

// Start 启动 HTTP 服务与每日定时计算，阻塞直到 ctx 取消或服务出错
func (s *ScoringService) Start(ctx context.Context) error {
	router := httpapi.NewRouter(s.metrics, s.logger)
	router.RegisterHealthRoutes(s.db)

	var summaries httpapi.SummaryCache
	if s.summaries != nil {
		summaries = s.summaries
	}
	router.RegisterScoreRoutes(httpapi.NewScoresHandler(
		s.materializer,
		s.scoreRepo,
		s.registry,
		summaries,
		s.config.Scoring.Periods,
		s.config.Scoring.Location,
		s.logger,
	))

	s.server = &http.Server{
		Addr:              s.config.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.config.Scoring.ScheduleHour >= 0 {
		scheduler := NewScheduler(
			s.materializer,
			s.config.Scoring.ScheduleHour,
			s.config.Scoring.Location,
			s.config.Scoring.Periods,
			s.config.Scoring.Client,
			s.logger,
		)
		go scheduler.Run(ctx)
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", s.config.HTTP.Addr))
	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errChan:
		return fmt.Errorf("http server failed: %w", err)
	}
}

// Stop 关闭 HTTP 服务并释放连接
func (s *ScoringService) Stop(ctx context.Context) error {
	var err error
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = s.server.Shutdown(shutdownCtx)
	}
	s.Close()
	return err
}

// Close 释放数据库、Redis、MQTT 连接
func (s *ScoringService) Close() {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.redisClient != nil {
		if err := commonredis.Close(s.redisClient); err != nil {
			s.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if err := database.Close(s.db); err != nil {
		s.logger.Warn("Failed to close database", zap.Error(err))
	}
}
