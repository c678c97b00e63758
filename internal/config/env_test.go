package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test_value")

	input := []byte("value: ${TEST_VAR}")
	expected := []byte("value: test_value")

	result := substituteEnvVars(input)

	if string(result) != string(expected) {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestSubstituteEnvVarsMultiple(t *testing.T) {
	t.Setenv("VAR1", "value1")
	t.Setenv("VAR2", "value2")

	input := []byte("first: ${VAR1}\nsecond: ${VAR2}")
	expected := []byte("first: value1\nsecond: value2")

	result := substituteEnvVars(input)

	if string(result) != string(expected) {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestSubstituteEnvVarsNotSet(t *testing.T) {
	os.Unsetenv("NONEXISTENT_VAR")

	input := []byte("value: ${NONEXISTENT_VAR}")
	expected := []byte("value: ${NONEXISTENT_VAR}") // unchanged

	result := substituteEnvVars(input)

	if string(result) != string(expected) {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestSubstituteEnvVarsFallback(t *testing.T) {
	os.Unsetenv("NONEXISTENT_VAR")

	result := substituteEnvVars([]byte("epochs: ${NONEXISTENT_VAR:-7}"))
	if string(result) != "epochs: 7" {
		t.Errorf("expected fallback, got %q", result)
	}

	t.Setenv("NONEXISTENT_VAR", "9")
	result = substituteEnvVars([]byte("epochs: ${NONEXISTENT_VAR:-7}"))
	if string(result) != "epochs: 9" {
		t.Errorf("expected env value, got %q", result)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("SEGTRAIN_WEIGHTS", "/tmp/weights")
	t.Setenv("SEGTRAIN_EPOCHS", "4")

	content := `
training:
  epochs: ${SEGTRAIN_EPOCHS}

output:
  weights_dir: "${SEGTRAIN_WEIGHTS}"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Output.WeightsDir != "/tmp/weights" {
		t.Errorf("expected weights dir /tmp/weights, got %s", cfg.Output.WeightsDir)
	}
	if cfg.Training.Epochs != 4 {
		t.Errorf("expected 4 epochs, got %d", cfg.Training.Epochs)
	}
}
