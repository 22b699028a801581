package scoring

import "errors"

// 拒绝阈值以 7 天基线计数定义，换算为每日比率以适配不同回溯周期
const (
	RefusalThresholdAmber = 2
	RefusalThresholdRed   = 4
	RefusalBaselineDays   = 7

	RefusalRateThresholdAmber = float64(RefusalThresholdAmber) / RefusalBaselineDays
	RefusalRateThresholdRed   = float64(RefusalThresholdRed) / RefusalBaselineDays
)

// 记录合规阈值（百分比）
// DocumentationThresholdRed 仅用于标注，不参与分级：低于 AMBER 即为 RED
const (
	DocumentationThresholdGreen = 90.0
	DocumentationThresholdAmber = 60.0
	DocumentationThresholdRed   = 40.0
)

// CRS 分级点数
const (
	CareRiskRedPoints   = 5
	CareRiskAmberPoints = 2
)

// 依赖趋势参数
const (
	DependencyMinEvents   = 6
	DependencyWindow      = 3
	DependencyShiftMargin = 0.5
	DependencyTrendPoints = 2
)

var (
	// ErrInvalidPeriod period_days 必须为正数
	ErrInvalidPeriod = errors.New("period_days must be a positive integer")
	// ErrUnknownDomain 领域名称不在注册表中
	ErrUnknownDomain = errors.New("unknown domain")
)
