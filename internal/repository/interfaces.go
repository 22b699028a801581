package repository

import (
	"context"
	"time"

	"wisefido-care-scores/internal/models"
)

// DirectoryInterface 住户/领域参考数据（用于测试 mock）
type DirectoryInterface interface {
	ListActiveResidents(ctx context.Context, clientName string) ([]models.Resident, error)
	ListDomains(ctx context.Context) ([]models.Domain, error)
}

// EventSourceInterface 事件存储（用于测试 mock）
type EventSourceInterface interface {
	FetchEvents(ctx context.Context, residentID, domainID int64, start, end time.Time) ([]models.RawEvent, error)
}

// ScoreSinkInterface 评分存储（用于测试 mock）
// UpsertScores 返回与 records 一一对应的单条错误；第二个返回值非 nil 表示整批未写入
type ScoreSinkInterface interface {
	UpsertScores(ctx context.Context, records []models.ScoreRecord) ([]error, error)
}

// ScoreReaderInterface 已物化评分的只读查询
type ScoreReaderInterface interface {
	GetScore(ctx context.Context, key models.ScoreKey) (*models.ScoreRow, error)
	ListSnapshot(ctx context.Context, startDateID, endDateID int) ([]models.ScoreRow, error)
}
