package models

// Resident 活跃住户（dim_resident + dim_client）
type Resident struct {
	ResidentID   int64  `json:"resident_id"`
	ResidentName string `json:"resident_name"`
	ClientName   string `json:"client_name,omitempty"`
}

// Domain 已配置的 ADL 领域（dim_domain）
type Domain struct {
	DomainID   int64  `json:"domain_id"`
	DomainName string `json:"domain_name"`
}
