package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"wisefido-care-scores/common/config"
	"wisefido-care-scores/internal/period"
)

// Config 照护风险评分服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	// 评分批处理配置
	Scoring struct {
		Periods      []int          // 回溯周期，如 7,14,30
		Client       string         // 仅计算该客户（空 = 全部）
		Location     *time.Location // 快照日期所在时区
		ScheduleHour int            // 每日定时计算的小时（0-23），-1 关闭
	}

	// 汇总发布
	Publish struct {
		Stream     string        // Redis Stream 名称
		SummaryTTL time.Duration // 汇总缓存 TTL
		AlertTopic string        // MQTT 告警主题前缀
	}

	HTTP struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database = config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Database: "care_analytics",
		SSLMode:  "prefer",
		MaxConns: 10,
		MaxIdle:  5,
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis = config.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT = config.MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "wisefido-care-scores",
		QoS:      1,
	}
	cfg.MQTT.LoadFromEnv("MQTT")

	periods, err := period.ParsePeriods(getEnv("SCORING_PERIODS", "7,14,30"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCORING_PERIODS: %w", err)
	}
	cfg.Scoring.Periods = periods
	cfg.Scoring.Client = getEnv("SCORING_CLIENT", "")

	tz := getEnv("SCORING_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid SCORING_TIMEZONE %q: %w", tz, err)
	}
	cfg.Scoring.Location = loc

	cfg.Scoring.ScheduleHour = getEnvInt("SCORING_SCHEDULE_HOUR", 2)
	if cfg.Scoring.ScheduleHour < -1 || cfg.Scoring.ScheduleHour > 23 {
		return nil, fmt.Errorf("invalid SCORING_SCHEDULE_HOUR: %d", cfg.Scoring.ScheduleHour)
	}

	cfg.Publish.Stream = getEnv("SCORE_STREAM", "care-scores:snapshots")
	cfg.Publish.SummaryTTL = time.Duration(getEnvInt("SCORE_SUMMARY_TTL_HOURS", 48)) * time.Hour
	cfg.Publish.AlertTopic = getEnv("MQTT_ALERT_TOPIC", "care-scores/alerts")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8090")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
