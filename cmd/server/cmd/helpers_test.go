package cmd

import (
	"os"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// unsetEnv removes key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unset %s: %v", key, err)
	}
}

// resetGlobals restores flag-backed package variables after the test.
func resetGlobals(t *testing.T) {
	t.Helper()
	saved := []string{configPath, envFile, logLevel, logFormat}
	t.Cleanup(func() {
		configPath, envFile, logLevel, logFormat = saved[0], saved[1], saved[2], saved[3]
	})
}
