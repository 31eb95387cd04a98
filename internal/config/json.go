package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/ourchat/ourchat/internal/flagx"
	"github.com/ourchat/ourchat/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "24h" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	StoreDriver string         `json:"store_driver"`
	StoreDSN    string         `json:"store_dsn"`
	BlobDriver  string         `json:"blob_driver"`
	S3Region    string         `json:"s3_region"`
	S3Endpoint  string         `json:"s3_endpoint"`
	S3Bucket    string         `json:"s3_bucket"`
	S3AccessKey string         `json:"s3_access_key"`
	S3SecretKey string         `json:"s3_secret_key"`
	TokenSecret string         `json:"token_secret"`
	TokenTTL    timex.Duration `json:"token_ttl"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// The file path comes from the -c/-config flags via flagx.JsonConfigFlags();
// when no path is given the function is a no-op. Empty JSON fields keep the
// value already in cfg, so a partial file only overrides what it names.
// Panics on read or unmarshal errors (caller should recover if desired).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	overlay(&cfg.StoreDriver, jc.StoreDriver)
	overlay(&cfg.StoreDSN, jc.StoreDSN)
	overlay(&cfg.BlobDriver, jc.BlobDriver)
	overlay(&cfg.S3Region, jc.S3Region)
	overlay(&cfg.S3Endpoint, jc.S3Endpoint)
	overlay(&cfg.S3Bucket, jc.S3Bucket)
	overlay(&cfg.S3AccessKey, jc.S3AccessKey)
	overlay(&cfg.S3SecretKey, jc.S3SecretKey)
	overlay(&cfg.TokenSecret, jc.TokenSecret)
	if jc.TokenTTL.Duration != 0 {
		cfg.TokenTTL = time.Duration(jc.TokenTTL.Duration)
	}
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
