package config

import (
	"fmt"
	"strings"
)

const (
	BlobModeLocal = "local"
	BlobModeS3    = "s3"
	BlobModeAuto  = "auto"
)

type S3Config struct {
	Endpoint          string
	Region            string
	Bucket            string
	AccessKeyID       string
	SecretAccessKey   string
	PublicBaseURL     string
	PresignTTLSeconds int
	PreferPublicURL   bool
}

// MissingRequired lists the env keys that still need a value. The public base
// URL is only required when public links are preferred over presigned ones.
func (c S3Config) MissingRequired() []string {
	missing := make([]string, 0, 6)
	if strings.TrimSpace(c.Endpoint) == "" {
		missing = append(missing, "S3_ENDPOINT")
	}
	if strings.TrimSpace(c.Region) == "" {
		missing = append(missing, "S3_REGION")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		missing = append(missing, "S3_BUCKET")
	}
	if strings.TrimSpace(c.AccessKeyID) == "" {
		missing = append(missing, "S3_ACCESS_KEY_ID")
	}
	if strings.TrimSpace(c.SecretAccessKey) == "" {
		missing = append(missing, "S3_SECRET_ACCESS_KEY")
	}
	if c.PreferPublicURL && strings.TrimSpace(c.PublicBaseURL) == "" {
		missing = append(missing, "S3_PUBLIC_BASE_URL")
	}
	return missing
}

func (c S3Config) IsConfigured() bool {
	return len(c.MissingRequired()) == 0
}

func (c S3Config) Diagnostics() (level string, code string, msg string) {
	allEmpty := strings.TrimSpace(c.Endpoint) == "" &&
		strings.TrimSpace(c.Region) == "" &&
		strings.TrimSpace(c.Bucket) == "" &&
		strings.TrimSpace(c.AccessKeyID) == "" &&
		strings.TrimSpace(c.SecretAccessKey) == ""

	if allEmpty {
		return "INFO", "s3_not_configured", "not configured (all empty)"
	}

	if missing := c.MissingRequired(); len(missing) > 0 {
		return "WARN", "s3_partial_config", fmt.Sprintf("partial config, missing=%v", missing)
	}

	return "INFO", "s3_ready", "ready"
}

// DiagnosticsSummary returns a detailed summary for logging (no secrets)
func (c S3Config) DiagnosticsSummary() string {
	return fmt.Sprintf("endpoint=%s region=%s bucket=%s public_base_url=%s presign_ttl=%ds prefer_public_url=%t access_key_id=%s secret_access_key=%s",
		nonEmptyOrDash(c.Endpoint),
		nonEmptyOrDash(c.Region),
		nonEmptyOrDash(c.Bucket),
		nonEmptyOrDash(c.PublicBaseURL),
		c.PresignTTLSeconds,
		c.PreferPublicURL,
		setOrNot(c.AccessKeyID),
		setOrNot(c.SecretAccessKey),
	)
}

type BlobConfig struct {
	Mode           string // local|s3|auto
	ExportsMode    string // local|s3|auto (override)
	ExportsModeSet bool
	S3             S3Config
}

// EffectiveExportsMode returns EXPORTS_MODE when set, BLOB_MODE otherwise.
func (c BlobConfig) EffectiveExportsMode() string {
	if c.ExportsModeSet {
		return c.ExportsMode
	}
	return c.Mode
}

func nonEmptyOrDash(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "-"
	}
	return v
}

func setOrNot(v string) string {
	if strings.TrimSpace(v) == "" {
		return "not set"
	}
	return "set"
}
