// Package domains 保存五个标准 ADL 领域的静态评分参数。
package domains

import (
	"fmt"
	"sort"
	"strings"

	"wisefido-care-scores/internal/models"
)

// 标准领域名称（与 dim_domain.domain_name 一致）
const (
	WashingBathing   = "Washing/Bathing"
	OralCare         = "Oral Care"
	DressingClothing = "Dressing/Clothing"
	Toileting        = "Toileting"
	Grooming         = "Grooming"
)

// Standard 标准领域配置表
var Standard = []models.DomainConfig{
	{DomainName: WashingBathing, ExpectedPerDay: 1.0, GapThresholdAmberHours: 24, GapThresholdRedHours: 48},
	{DomainName: OralCare, ExpectedPerDay: 2.0, GapThresholdAmberHours: 16, GapThresholdRedHours: 24},
	{DomainName: DressingClothing, ExpectedPerDay: 1.0, GapThresholdAmberHours: 24, GapThresholdRedHours: 48},
	{DomainName: Toileting, ExpectedPerDay: 4.0, GapThresholdAmberHours: 12, GapThresholdRedHours: 24},
	{DomainName: Grooming, ExpectedPerDay: 0.5, GapThresholdAmberHours: 48, GapThresholdRedHours: 96},
}

// standardAliases 源系统中的记录项名称 -> 标准领域
var standardAliases = map[string]string{
	"getting washed":    WashingBathing,
	"washing":           WashingBathing,
	"bathing":           WashingBathing,
	"wash":              WashingBathing,
	"bath":              WashingBathing,
	"washing / bathing": WashingBathing,
	"oral hygiene":      OralCare,
	"oral":              OralCare,
	"teeth":             OralCare,
	"teeth brushing":    OralCare,
	"dental":            OralCare,
	"getting dressed":   DressingClothing,
	"dressing":          DressingClothing,
	"dress":             DressingClothing,
	"clothing":          DressingClothing,
	"toilet":            Toileting,
	"continence":        Toileting,
	"pad change":        Toileting,
	"pad check":         Toileting,
	"shaving":           Grooming,
	"hair care":         Grooming,
	"hair":              Grooming,
	"nails":             Grooming,
}

// Registry 领域配置注册表，创建后只读
type Registry struct {
	configs map[string]models.DomainConfig
	aliases map[string]string
}

// NewRegistry 校验并构建注册表
func NewRegistry(configs []models.DomainConfig, aliases map[string]string) (*Registry, error) {
	r := &Registry{
		configs: make(map[string]models.DomainConfig, len(configs)),
		aliases: make(map[string]string, len(aliases)),
	}
	for _, cfg := range configs {
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		key := normalizeName(cfg.DomainName)
		if _, dup := r.configs[key]; dup {
			return nil, fmt.Errorf("duplicate domain config: %s", cfg.DomainName)
		}
		r.configs[key] = cfg
	}
	for alias, target := range aliases {
		if _, ok := r.configs[normalizeName(target)]; !ok {
			return nil, fmt.Errorf("alias %q points to unknown domain %q", alias, target)
		}
		r.aliases[normalizeName(alias)] = target
	}
	return r, nil
}

// Default 标准五领域注册表
func Default() *Registry {
	r, err := NewRegistry(Standard, standardAliases)
	if err != nil {
		panic(fmt.Sprintf("invalid standard domain table: %v", err))
	}
	return r
}

// Validate 检查单个领域配置
func Validate(cfg models.DomainConfig) error {
	if strings.TrimSpace(cfg.DomainName) == "" {
		return fmt.Errorf("domain name is required")
	}
	if cfg.ExpectedPerDay < 0 {
		return fmt.Errorf("domain %s: expected_per_day must not be negative", cfg.DomainName)
	}
	if cfg.GapThresholdAmberHours <= 0 || cfg.GapThresholdAmberHours >= cfg.GapThresholdRedHours {
		return fmt.Errorf("domain %s: amber threshold (%dh) must be positive and below red threshold (%dh)",
			cfg.DomainName, cfg.GapThresholdAmberHours, cfg.GapThresholdRedHours)
	}
	return nil
}

// Lookup 按名称查找配置，大小写不敏感，支持别名
func (r *Registry) Lookup(name string) (models.DomainConfig, bool) {
	key := normalizeName(name)
	if cfg, ok := r.configs[key]; ok {
		return cfg, true
	}
	if target, ok := r.aliases[key]; ok {
		cfg, ok := r.configs[normalizeName(target)]
		return cfg, ok
	}
	return models.DomainConfig{}, false
}

// All 按名称排序返回全部配置
func (r *Registry) All() []models.DomainConfig {
	out := make([]models.DomainConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DomainName < out[j].DomainName })
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
