package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

// TestAcceptanceCriteria verifies the secret handling and precedence guarantees.
func TestAcceptanceCriteria(t *testing.T) {
	t.Run("AC1: Environment variable IF_HMAC_SECRET accessible via HMACSecrets", func(t *testing.T) {
		os.Setenv("IF_HMAC_SECRET", "0123456789abcdef0123456789abcdef:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		defer os.Unsetenv("IF_HMAC_SECRET")

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("AC1 FAIL: HMACSecrets error: %v", err)
		}
		if len(secrets) == 0 {
			t.Fatal("AC1 FAIL: No secrets loaded")
		}
		if _, ok := secrets["0123456789abcdef0123456789abcdef"]; !ok {
			t.Fatal("AC1 FAIL: Secret not accessible")
		}
		t.Log("AC1 PASS: Environment variable accessible via HMACSecrets()")
	})

	t.Run("AC2: Config file with hmac_secret rejected with clear error", func(t *testing.T) {
		// Create temp config file with secret
		tmpfile, err := os.CreateTemp("", "config-*.yaml")
		if err != nil {
			t.Fatal(err)
		}
		defer os.Remove(tmpfile.Name())

		configContent := `server:
  host: "localhost"
  port: 8080
  hmac_secret: "should_be_rejected"
`
		if _, err := tmpfile.Write([]byte(configContent)); err != nil {
			t.Fatal(err)
		}
		tmpfile.Close()

		_, err = LoadConfig(tmpfile.Name(), nil)
		if err == nil {
			t.Fatal("AC2 FAIL: Expected error for secret in config file")
		}
		if err.Error() != "HMAC secrets not allowed in config files (use IF_HMAC_SECRET environment variable)" {
			t.Fatalf("AC2 FAIL: Wrong error message: %v", err)
		}
		t.Log("AC2 PASS: Config file with hmac_secret rejected with clear error")
	})

	t.Run("AC3: flag > environment > config file", func(t *testing.T) {
		path := writeConfig(t, "server:\n  port: 9090\n  http_port: 9091\n  max_batch_size: 50\n")

		os.Setenv("IF_SERVER_PORT", "8080")
		os.Setenv("IF_SERVER_HTTP_PORT", "8081")
		defer os.Unsetenv("IF_SERVER_PORT")
		defer os.Unsetenv("IF_SERVER_HTTP_PORT")

		flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
		flags.Int("port", 50051, "")
		flags.Int("http-port", 8080, "")
		if err := flags.Parse([]string{"--port=7070"}); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadConfig(path, flags)
		if err != nil {
			t.Fatalf("AC3 FAIL: LoadConfig error: %v", err)
		}
		if cfg.Server.Port != 7070 {
			t.Errorf("AC3 FAIL: flag should win, port = %d, want 7070", cfg.Server.Port)
		}
		if cfg.Server.HTTPPort != 8081 {
			t.Errorf("AC3 FAIL: unset flag must not mask env, http_port = %d, want 8081", cfg.Server.HTTPPort)
		}
		if cfg.Server.MaxBatchSize != 50 {
			t.Errorf("AC3 FAIL: config file value lost, max_batch_size = %d, want 50", cfg.Server.MaxBatchSize)
		}
	})

	t.Run("AC4: rule priorities read from config file", func(t *testing.T) {
		path := writeConfig(t, "rules:\n  priorities:\n    sys_limit: 5\n")

		cfg, err := LoadConfig(path, nil)
		if err != nil {
			t.Fatalf("AC4 FAIL: LoadConfig error: %v", err)
		}
		if got := cfg.Rules.Priorities["sys_limit"]; got != 5 {
			t.Errorf("AC4 FAIL: priorities[sys_limit] = %d, want 5", got)
		}
	})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
