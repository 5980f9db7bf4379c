// logdata/logdata.go
package logdata

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// OpenLogFile opens the log destination for appending. A destination that
// is an existing directory, ends in a separator or has no extension is
// treated as a directory and gets a new dated file.
func OpenLogFile(dest string) (*os.File, error) {
	absPath, err := filepath.Abs(dest)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path: %w", err)
	}

	if isDirDest(dest, absPath) {
		return createDated(absPath)
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(absPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

func isDirDest(dest, absPath string) bool {
	if info, err := os.Stat(absPath); err == nil {
		return info.IsDir()
	}
	if strings.HasSuffix(dest, "/") || strings.HasSuffix(dest, string(filepath.Separator)) {
		return true
	}
	return filepath.Ext(absPath) == ""
}

func createDated(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("20060102")
	filename := fmt.Sprintf("%s_%s.log", timestamp, generateRandomHex(3))

	f, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	return f, nil
}

func generateRandomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "randerr"
	}
	return hex.EncodeToString(b)
}
