package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/zeebo/blake3"
)

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// Fingerprint returns a short identifier for a config file's contents, used to
// tell which configuration a running process loaded.
func Fingerprint(filePath string) (string, error) {
	full, err := ComputeBlake3Hash(filePath)
	if err != nil {
		return "", err
	}
	return full[:16], nil
}
