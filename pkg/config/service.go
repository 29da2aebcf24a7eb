package config

import (
	"github.com/ticnexus/nexus/pkg/models"
)

// Policy is the read-only view of the circulation and catalog rules that
// clients need to render forms and hints.
type Policy struct {
	StoragePrefix          string   `json:"storage_prefix"`
	StorageLocationPattern string   `json:"storage_location_pattern"`
	LoanDays               int      `json:"loan_days"`
	MaxLoanDays            int      `json:"max_loan_days"`
	ExtensionDays          int      `json:"extension_days"`
	MaxExtensions          int      `json:"max_extensions"`
	DueSoonDays            int      `json:"due_soon_days"`
	MaxUploadSizeMB        int      `json:"max_upload_size_mb"`
	AllowedFormats         []string `json:"allowed_formats"`
}

type Service struct {
	config *Config
}

func NewService(cfg *Config) *Service {
	return &Service{config: cfg}
}

func (s *Service) RetrievePolicy() *Policy {
	return &Policy{
		StoragePrefix:          s.config.StoragePrefix,
		StorageLocationPattern: models.StorageLocationRegexp(s.config.StoragePrefix).String(),
		LoanDays:               int(models.DefaultLoanPeriod.Hours() / 24),
		MaxLoanDays:            models.MaxLoanDays,
		ExtensionDays:          int(models.ExtensionPeriod.Hours() / 24),
		MaxExtensions:          models.MaxExtensions,
		DueSoonDays:            models.DueSoonDays,
		MaxUploadSizeMB:        s.config.MaxUploadSizeMB,
		AllowedFormats:         models.DigitalFormats,
	}
}
