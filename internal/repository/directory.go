package repository

import (
	"context"
	"database/sql"
	"fmt"

	"wisefido-care-scores/internal/models"

	"go.uber.org/zap"
)

// DirectoryRepository 住户与领域参考数据
type DirectoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(db *sql.DB, logger *zap.Logger) *DirectoryRepository {
	return &DirectoryRepository{
		db:     db,
		logger: logger,
	}
}

// ListActiveResidents 活跃住户（住户与所属客户均为 active），可按客户名过滤
func (r *DirectoryRepository) ListActiveResidents(ctx context.Context, clientName string) ([]models.Resident, error) {
	query := `
		SELECT r.resident_id, r.resident_name, c.client_name
		FROM dim_resident r
		JOIN dim_client c ON r.client_id = c.client_id
		WHERE r.is_active = TRUE
		  AND c.is_active = TRUE
		  AND ($1 = '' OR c.client_name = $1)
		ORDER BY r.resident_name, r.resident_id
	`

	rows, err := r.db.QueryContext(ctx, query, clientName)
	if err != nil {
		return nil, fmt.Errorf("failed to query active residents: %w", err)
	}
	defer rows.Close()

	var residents []models.Resident
	for rows.Next() {
		var res models.Resident
		if err := rows.Scan(&res.ResidentID, &res.ResidentName, &res.ClientName); err != nil {
			return nil, fmt.Errorf("failed to scan resident: %w", err)
		}
		residents = append(residents, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate residents: %w", err)
	}

	r.logger.Debug("Loaded active residents",
		zap.String("client", clientName),
		zap.Int("count", len(residents)),
	)
	return residents, nil
}

// ListDomains 已配置的 ADL 领域
func (r *DirectoryRepository) ListDomains(ctx context.Context) ([]models.Domain, error) {
	query := `
		SELECT domain_id, domain_name
		FROM dim_domain
		ORDER BY domain_name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query domains: %w", err)
	}
	defer rows.Close()

	var domainList []models.Domain
	for rows.Next() {
		var d models.Domain
		if err := rows.Scan(&d.DomainID, &d.DomainName); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		domainList = append(domainList, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate domains: %w", err)
	}
	return domainList, nil
}
