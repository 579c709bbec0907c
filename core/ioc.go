package core

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Indicator Types and Constants
// =============================================================================

// IndicatorKind is the class of value an indicator represents
type IndicatorKind string

const (
	IndicatorKindFileHash    IndicatorKind = "file_hash"
	IndicatorKindFilePath    IndicatorKind = "file_path"
	IndicatorKindFileName    IndicatorKind = "file_name"
	IndicatorKindProcessName IndicatorKind = "process_name"
)

// AllIndicatorKinds lists every valid indicator kind
var AllIndicatorKinds = []IndicatorKind{
	IndicatorKindFileHash, IndicatorKindFilePath, IndicatorKindFileName, IndicatorKindProcessName,
}

// IsValid checks if the indicator kind is valid
func (k IndicatorKind) IsValid() bool {
	for _, valid := range AllIndicatorKinds {
		if k == valid {
			return true
		}
	}
	return false
}

// HashAlgorithm identifies the digest a file_hash indicator was produced with
type HashAlgorithm string

const (
	HashAlgorithmMD5    HashAlgorithm = "md5"
	HashAlgorithmSHA1   HashAlgorithm = "sha1"
	HashAlgorithmSHA256 HashAlgorithm = "sha256"
)

// Severity ranks how serious a hit on the indicator is
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid checks if the severity is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// MaxIndicatorValueLength bounds stored indicator values.
const MaxIndicatorValueLength = 4096

// =============================================================================
// Classification
// =============================================================================

var (
	sha256Pattern    = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)
	sha1Pattern      = regexp.MustCompile(`^[a-fA-F0-9]{40}$`)
	md5Pattern       = regexp.MustCompile(`^[a-fA-F0-9]{32}$`)
	extensionPattern = regexp.MustCompile(`\.[a-zA-Z0-9]{1,10}$`)
)

// Classification is the result of classifying a raw indicator value
type Classification struct {
	Kind          IndicatorKind `json:"kind"`
	HashAlgorithm HashAlgorithm `json:"hash_algorithm,omitempty"`
}

// Classify assigns a kind to any string. The first matching rule wins:
// 64/40/32 hex characters are sha256/sha1/md5 hashes, a value with a path
// separator and a dot-extension is a file path, a dot-extension alone is a
// file name, and everything else is a process name.
func Classify(value string) Classification {
	value = strings.TrimSpace(value)

	switch {
	case sha256Pattern.MatchString(value):
		return Classification{Kind: IndicatorKindFileHash, HashAlgorithm: HashAlgorithmSHA256}
	case sha1Pattern.MatchString(value):
		return Classification{Kind: IndicatorKindFileHash, HashAlgorithm: HashAlgorithmSHA1}
	case md5Pattern.MatchString(value):
		return Classification{Kind: IndicatorKindFileHash, HashAlgorithm: HashAlgorithmMD5}
	}

	hasSeparator := strings.ContainsAny(value, `/\`)
	hasExtension := extensionPattern.MatchString(value)

	switch {
	case hasSeparator && hasExtension:
		return Classification{Kind: IndicatorKindFilePath}
	case hasExtension:
		return Classification{Kind: IndicatorKindFileName}
	default:
		// A bare name like "malware" lands here too.
		return Classification{Kind: IndicatorKindProcessName}
	}
}

// IsHash reports whether value is hex of the length algo produces. Case is ignored.
func IsHash(value string, algo HashAlgorithm) bool {
	switch algo {
	case HashAlgorithmSHA256:
		return sha256Pattern.MatchString(value)
	case HashAlgorithmSHA1:
		return sha1Pattern.MatchString(value)
	case HashAlgorithmMD5:
		return md5Pattern.MatchString(value)
	}
	return false
}

// =============================================================================
// Indicator
// =============================================================================

// Indicator is a persisted indicator of compromise
type Indicator struct {
	ID            string        `json:"id"`
	OrgID         string        `json:"org_id"`
	Kind          IndicatorKind `json:"kind"`
	Value         string        `json:"value"`
	HashAlgorithm HashAlgorithm `json:"hash_algorithm,omitempty"`
	Severity      Severity      `json:"severity"`
	Source        string        `json:"source,omitempty"`
	Description   string        `json:"description,omitempty"`
	IsActive      bool          `json:"is_active"`
	CreatedBy     string        `json:"created_by,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewIndicator creates an active indicator. When kind is empty the value is
// classified; an explicit kind overrides classification.
func NewIndicator(orgID, value string, kind IndicatorKind, source, createdBy string) (*Indicator, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, NewValidationError("value", "must not be empty")
	}

	now := time.Now().UTC()
	ind := &Indicator{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		Value:     value,
		Severity:  SeverityMedium,
		Source:    source,
		IsActive:  true,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ind.SetKind(kind)

	if err := ind.Validate(); err != nil {
		return nil, err
	}
	return ind, nil
}

// SetKind applies an explicit kind, or classifies the value when kind is empty.
func (i *Indicator) SetKind(kind IndicatorKind) {
	if kind == "" {
		c := Classify(i.Value)
		i.Kind = c.Kind
		i.HashAlgorithm = c.HashAlgorithm
		return
	}
	i.Kind = kind
	i.HashAlgorithm = ""
	if kind == IndicatorKindFileHash {
		i.HashAlgorithm = Classify(i.Value).HashAlgorithm
	}
}

// EffectiveKind returns the stored kind, falling back to classification when
// the stored kind is missing or unknown.
func (i *Indicator) EffectiveKind() IndicatorKind {
	if i.Kind.IsValid() {
		return i.Kind
	}
	return Classify(i.Value).Kind
}

// Validate checks the indicator fields
func (i *Indicator) Validate() error {
	if strings.TrimSpace(i.Value) == "" {
		return NewValidationError("value", "must not be empty")
	}
	if len(i.Value) > MaxIndicatorValueLength {
		return NewValidationError("value", "exceeds maximum length")
	}
	if !i.Kind.IsValid() {
		return NewValidationError("kind", "invalid indicator kind: "+string(i.Kind))
	}
	if !i.Severity.IsValid() {
		return NewValidationError("severity", "invalid severity: "+string(i.Severity))
	}
	return nil
}

// IndicatorFilters narrows ListIndicators
type IndicatorFilters struct {
	ActiveOnly bool          `json:"active_only,omitempty"`
	Kind       IndicatorKind `json:"kind,omitempty"`
	Severity   Severity      `json:"severity,omitempty"`
	Search     string        `json:"search,omitempty"`
	Limit      int           `json:"limit,omitempty"`
	Offset     int           `json:"offset,omitempty"`
}
