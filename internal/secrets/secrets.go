// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: aws-access-key-id, aws-secret-access-key, aws-session-token, aws-region.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultDir is the secrets directory used when none is configured.
const DefaultDir = ".secrets"

// Key files understood by the remote source loader.
const (
	KeyAWSAccessKeyID     = "aws-access-key-id"
	KeyAWSSecretAccessKey = "aws-secret-access-key"
	KeyAWSSessionToken    = "aws-session-token"
	KeyAWSRegion          = "aws-region"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// AWS holds S3 credentials taken from a secrets map.
type AWS struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
}

// AWSFrom extracts the AWS keys from m.
func AWSFrom(m map[string]string) AWS {
	return AWS{
		AccessKeyID:     m[KeyAWSAccessKeyID],
		SecretAccessKey: m[KeyAWSSecretAccessKey],
		SessionToken:    m[KeyAWSSessionToken],
		Region:          m[KeyAWSRegion],
	}
}

// HasKeys reports whether a static key pair is present. Without one the
// default AWS credential chain applies.
func (a AWS) HasKeys() bool {
	return a.AccessKeyID != "" && a.SecretAccessKey != ""
}
