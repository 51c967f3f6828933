// Package envfile reads flat KEY=value environment files of the kind the
// API service loads at startup. The reader is intentionally forgiving:
// comments and malformed lines are ignored, the first occurrence of a key
// wins, and a missing or empty value resolves to the caller's default.
package envfile

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Read scans path for the first line matching key=... and returns the value
// with one layer of surrounding single or double quotes stripped. When the
// key is absent or its value is empty, def is returned. The file must
// exist; its absence is the caller's concern.
func Read(path, key, def string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open env file %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(k) != key {
			continue
		}
		// First occurrence wins; later duplicates are ignored.
		value := unquote(strings.TrimSpace(v))
		if value == "" {
			return def, nil
		}
		return value, nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read env file %s: %w", path, err)
	}
	return def, nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
