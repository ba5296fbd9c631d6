package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hungtran3011/research-review-sub001/internal/flagx"
	"github.com/hungtran3011/research-review-sub001/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations accept
// strings such as "15m" as well as integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC              string         `json:"endpoint_addr_grpc"`
	MetricsAddr                   string         `json:"metrics_addr"`
	Storage                       string         `json:"storage"`
	DatabaseDSN                   string         `json:"database_dsn"`
	SecretKey                     string         `json:"secret_key"`
	DigestKey                     string         `json:"digest_key"`
	Issuer                        string         `json:"issuer"`
	AccessTokenValidityDuration   timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration  timex.Duration `json:"refresh_token_validity_duration"`
	InvitationValidityDuration    timex.Duration `json:"invitation_validity_duration"`
	ManuscriptURLValidityDuration timex.Duration `json:"manuscript_url_validity_duration"`
	S3RootUser                    string         `json:"s3_root_user"`
	S3RootPassword                string         `json:"s3_root_password"`
	S3Bucket                      string         `json:"s3_bucket"`
	S3Region                      string         `json:"s3_region"`
	S3BaseEndpoint                string         `json:"s3_base_endpoint"`
	LogLevel                      string         `json:"log_level"`
	OTLPEndpoint                  string         `json:"otlp_endpoint"`
	RequestTimeout                timex.Duration `json:"request_timeout"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}

// parseJSON overlays the file named by -c/-config in args. Keys that are
// absent or empty keep their current value.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&cfg.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&cfg.MetricsAddr, c.MetricsAddr)
	setString(&cfg.Storage, c.Storage)
	setString(&cfg.DatabaseDSN, c.DatabaseDSN)
	setString(&cfg.SecretKey, c.SecretKey)
	setString(&cfg.DigestKey, c.DigestKey)
	setString(&cfg.Issuer, c.Issuer)
	setString(&cfg.S3RootUser, c.S3RootUser)
	setString(&cfg.S3RootPassword, c.S3RootPassword)
	setString(&cfg.S3Bucket, c.S3Bucket)
	setString(&cfg.S3Region, c.S3Region)
	setString(&cfg.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&cfg.LogLevel, c.LogLevel)
	setString(&cfg.OTLPEndpoint, c.OTLPEndpoint)

	setDuration(&cfg.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&cfg.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&cfg.InvitationValidityDuration, c.InvitationValidityDuration)
	setDuration(&cfg.ManuscriptURLValidityDuration, c.ManuscriptURLValidityDuration)
	setDuration(&cfg.RequestTimeout, c.RequestTimeout)
	return nil
}
