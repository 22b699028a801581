package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wisefido-care-scores/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// upsertScoreSQL 以 (resident_id, domain_id, start_date_id, end_date_id) 为唯一键覆盖写入
const upsertScoreSQL = `
	INSERT INTO fact_resident_domain_score (
		resident_id,
		domain_id,
		start_date_id,
		end_date_id,
		crs_level,
		crs_total,
		crs_refusal_score,
		crs_gap_score,
		crs_dependency_score,
		refusal_count,
		max_gap_hours,
		dependency_trend,
		dcs_level,
		dcs_percentage,
		actual_entries,
		expected_entries,
		overall_risk
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8, $9,
		$10, $11, $12,
		$13, $14, $15, $16,
		$17
	)
	ON CONFLICT (resident_id, domain_id, start_date_id, end_date_id)
	DO UPDATE SET
		crs_level = EXCLUDED.crs_level,
		crs_total = EXCLUDED.crs_total,
		crs_refusal_score = EXCLUDED.crs_refusal_score,
		crs_gap_score = EXCLUDED.crs_gap_score,
		crs_dependency_score = EXCLUDED.crs_dependency_score,
		refusal_count = EXCLUDED.refusal_count,
		max_gap_hours = EXCLUDED.max_gap_hours,
		dependency_trend = EXCLUDED.dependency_trend,
		dcs_level = EXCLUDED.dcs_level,
		dcs_percentage = EXCLUDED.dcs_percentage,
		actual_entries = EXCLUDED.actual_entries,
		expected_entries = EXCLUDED.expected_entries,
		overall_risk = EXCLUDED.overall_risk,
		calculated_at = NOW()
`

const scoreColumns = `
		s.resident_id, s.domain_id, s.start_date_id, s.end_date_id,
		s.crs_level, s.crs_total, s.crs_refusal_score, s.crs_gap_score, s.crs_dependency_score,
		s.refusal_count, s.max_gap_hours, s.dependency_trend,
		s.dcs_level, s.dcs_percentage, s.actual_entries, s.expected_entries,
		s.overall_risk, s.calculated_at,
		r.resident_name, c.client_name, d.domain_name
`

// ScoreRepository fact_resident_domain_score 读写
type ScoreRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewScoreRepository creates a new score repository
func NewScoreRepository(db *sql.DB, logger *zap.Logger) *ScoreRepository {
	return &ScoreRepository{
		db:     db,
		logger: logger,
	}
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// UpsertScores 在一个事务内写入一个窗口的全部记录
// 每条记录使用独立 SAVEPOINT：单条失败只回滚该条；连接错误或提交失败时整批不生效
func (r *ScoreRepository) UpsertScores(ctx context.Context, records []models.ScoreRecord) ([]error, error) {
	results := make([]error, len(records))
	if len(records) == 0 {
		return results, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin score transaction: %w", err)
	}
	defer tx.Rollback()

	for i, rec := range records {
		if _, err := tx.ExecContext(ctx, "SAVEPOINT score_upsert"); err != nil {
			return nil, fmt.Errorf("failed to create savepoint: %w", err)
		}

		_, err := tx.ExecContext(ctx, upsertScoreSQL,
			rec.ResidentID,
			rec.DomainID,
			rec.StartDateID,
			rec.EndDateID,
			string(rec.CRSLevel),
			rec.CRSTotal,
			rec.CRSRefusalScore,
			rec.CRSGapScore,
			rec.CRSDependencyScore,
			rec.RefusalCount,
			nullDecimal(rec.MaxGapHours),
			nullDecimal(rec.DependencyTrend),
			string(rec.DCSLevel),
			rec.DCSPercentage,
			rec.ActualEntries,
			rec.ExpectedEntries,
			string(rec.OverallRisk),
		)
		if err != nil {
			if IsConnectivityError(err) {
				return nil, fmt.Errorf("failed to upsert score: %w", err)
			}
			results[i] = fmt.Errorf("failed to upsert score resident=%d domain=%d window=%d-%d: %w",
				rec.ResidentID, rec.DomainID, rec.StartDateID, rec.EndDateID, err)
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT score_upsert"); rbErr != nil {
				return nil, fmt.Errorf("failed to roll back savepoint: %w", rbErr)
			}
			r.logger.Warn("Score upsert rolled back",
				zap.Int64("resident_id", rec.ResidentID),
				zap.Int64("domain_id", rec.DomainID),
				zap.Error(err),
			)
			continue
		}

		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT score_upsert"); err != nil {
			return nil, fmt.Errorf("failed to release savepoint: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit scores: %w", err)
	}
	return results, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScoreRow(s rowScanner) (*models.ScoreRow, error) {
	var (
		row        models.ScoreRow
		crsLevel   string
		dcsLevel   string
		overall    string
		maxGap     decimal.NullDecimal
		trend      decimal.NullDecimal
		calculated sql.NullTime
	)
	if err := s.Scan(
		&row.ResidentID, &row.DomainID, &row.StartDateID, &row.EndDateID,
		&crsLevel, &row.CRSTotal, &row.CRSRefusalScore, &row.CRSGapScore, &row.CRSDependencyScore,
		&row.RefusalCount, &maxGap, &trend,
		&dcsLevel, &row.DCSPercentage, &row.ActualEntries, &row.ExpectedEntries,
		&overall, &calculated,
		&row.ResidentName, &row.ClientName, &row.DomainName,
	); err != nil {
		return nil, err
	}

	row.CRSLevel = models.RiskLevel(crsLevel)
	row.DCSLevel = models.RiskLevel(dcsLevel)
	row.OverallRisk = models.RiskLevel(overall)
	if maxGap.Valid {
		row.MaxGapHours = &maxGap.Decimal
	}
	if trend.Valid {
		row.DependencyTrend = &trend.Decimal
	}
	if calculated.Valid {
		row.CalculatedAt = &calculated.Time
	}
	return &row, nil
}

// GetScore 按唯一键读取单条评分
func (r *ScoreRepository) GetScore(ctx context.Context, key models.ScoreKey) (*models.ScoreRow, error) {
	query := `SELECT ` + scoreColumns + `
		FROM fact_resident_domain_score s
		JOIN dim_resident r ON s.resident_id = r.resident_id
		JOIN dim_client c ON r.client_id = c.client_id
		JOIN dim_domain d ON s.domain_id = d.domain_id
		WHERE s.resident_id = $1
		  AND s.domain_id = $2
		  AND s.start_date_id = $3
		  AND s.end_date_id = $4
	`

	row, err := scanScoreRow(r.db.QueryRowContext(ctx, query, key.ResidentID, key.DomainID, key.StartDateID, key.EndDateID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScoreNotFound
		}
		return nil, fmt.Errorf("failed to get score: %w", err)
	}
	return row, nil
}

// ListSnapshot 读取一个窗口的全部评分，按住户、领域排序
func (r *ScoreRepository) ListSnapshot(ctx context.Context, startDateID, endDateID int) ([]models.ScoreRow, error) {
	query := `SELECT ` + scoreColumns + `
		FROM fact_resident_domain_score s
		JOIN dim_resident r ON s.resident_id = r.resident_id
		JOIN dim_client c ON r.client_id = c.client_id
		JOIN dim_domain d ON s.domain_id = d.domain_id
		WHERE s.start_date_id = $1
		  AND s.end_date_id = $2
		ORDER BY r.resident_name, d.domain_name
	`

	rows, err := r.db.QueryContext(ctx, query, startDateID, endDateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query score snapshot: %w", err)
	}
	defer rows.Close()

	var out []models.ScoreRow
	for rows.Next() {
		row, err := scanScoreRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		out = append(out, *row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scores: %w", err)
	}
	return out, nil
}
