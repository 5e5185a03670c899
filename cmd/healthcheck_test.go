package cmd

import (
	"strings"
	"testing"
)

func TestHealthcheckCommand(t *testing.T) {
	configFile, _ := setupConfig(t)

	out, err := execute(t, "", "healthcheck", "--config", configFile, "--details")
	if err != nil {
		t.Fatalf("healthcheck command failed: %v\n%s", err, out)
	}

	for _, want := range []string{"Database ready", "0 record(s) stored", "Redis not configured", "Blob cache writable", "OneBot V11", "Health check passed"} {
		if !strings.Contains(out, want) {
			t.Errorf("Output should contain %q, got:\n%s", want, out)
		}
	}
}

func TestHealthcheckCommandExists(t *testing.T) {
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "healthcheck" {
			found = true
			break
		}
	}

	if !found {
		t.Error("healthcheck command not found in root command")
	}
}

func TestHealthcheckDetailsFlag(t *testing.T) {
	if healthcheckCmd.Flag("details") == nil {
		t.Error("healthcheck command should have --details flag")
	}
}
