// Package config resolves runtime settings from flags, environment
// variables, and the provisioned bucket-metadata file. Flag values win;
// environment variables fill the gaps.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "CONCHA_API_"

// Env reads a namespaced environment variable.
func Env(key string) string {
	return os.Getenv(EnvPrefix + key)
}

// FirstNonEmpty returns the first value whose trimmed form is non-empty.
func FirstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// ResolveInt prefers a non-zero flag value over the environment variable.
func ResolveInt(flagValue int, envKey string) int {
	if flagValue != 0 {
		return flagValue
	}
	raw := strings.TrimSpace(Env(envKey))
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

// ResolveDuration prefers a non-zero flag value over the environment
// variable, falling back to the provided default.
func ResolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	raw := strings.TrimSpace(Env(envKey))
	if raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

// ResolveBool treats a set flag as authoritative and otherwise consults the
// environment variable.
func ResolveBool(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}
	raw := strings.TrimSpace(Env(envKey))
	if raw == "" {
		return false
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return parsed
}

// BucketNames holds the provisioned bucket names for the two blob stores.
type BucketNames struct {
	Audio string `toml:"audio"`
	Image string `toml:"image"`
}

// BucketMetadata is the on-disk shape of the bucket-metadata file written by
// the provisioning tool and read back by the server.
type BucketMetadata struct {
	Buckets BucketNames `toml:"buckets"`
}

// LoadBucketMetadata reads a bucket-metadata TOML file.
func LoadBucketMetadata(path string) (BucketMetadata, error) {
	var metadata BucketMetadata
	if _, err := toml.DecodeFile(path, &metadata); err != nil {
		return BucketMetadata{}, fmt.Errorf("decode bucket metadata %s: %w", path, err)
	}
	if metadata.Buckets.Audio == "" || metadata.Buckets.Image == "" {
		return BucketMetadata{}, fmt.Errorf("bucket metadata %s must name both audio and image buckets", path)
	}
	return metadata, nil
}

// WriteBucketMetadata persists the bucket names for later server runs.
func WriteBucketMetadata(path string, metadata BucketMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create bucket metadata %s: %w", path, err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(metadata); err != nil {
		return fmt.Errorf("encode bucket metadata %s: %w", path, err)
	}
	return nil
}
