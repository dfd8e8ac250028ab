package rules

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	// RuleVersion is stamped on every generated bundle.
	RuleVersion = "1.0"
	// StatusGenerated marks metadata produced by a normal run.
	StatusGenerated = "generated"
)

// Metadata is the JSON sidecar written next to each pair of rules.
type Metadata struct {
	Author          string   `json:"author" validate:"required"`
	Created         string   `json:"created" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Version         string   `json:"version" validate:"required"`
	Description     string   `json:"description"`
	SourceFile      string   `json:"source_file" validate:"required"`
	FileSize        int64    `json:"file_size" validate:"min=0"`
	FileType        string   `json:"file_type" validate:"required"`
	AnalysisDate    string   `json:"analysis_date" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	FileHash        string   `json:"file_hash" validate:"required,md5|eq=hash_calculation_failed"`
	IndicatorsFound []string `json:"indicators_found" validate:"max=5"`
	FileTLSH        string   `json:"file_tlsh,omitempty"`
	Status          string   `json:"status" validate:"oneof=generated"`
}

// MetadataValidator checks metadata records before they are written.
type MetadataValidator struct {
	validate *validator.Validate
}

func NewMetadataValidator() *MetadataValidator {
	return &MetadataValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *MetadataValidator) Validate(m *Metadata) error {
	if m == nil {
		return fmt.Errorf("metadata is nil")
	}
	if err := v.validate.Struct(m); err != nil {
		return fmt.Errorf("invalid metadata for %s: %w", m.SourceFile, err)
	}
	return nil
}
