package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"gotest.tools/v3/assert"

	"github.com/ppiankov/cligate/internal/cmdguard"
	"github.com/ppiankov/cligate/internal/model"
)

// runRoot executes the root command with an isolated home directory and
// returns what it wrote to stdout.
func runRoot(t *testing.T, args ...string) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{"CLIGATE_SAFE_MODE", "CLIGATE_RULES", "CLIGATE_CLI_NAME", "SAFE_MODE", "NEBIUS_CLI_NAME"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("cligate %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestTokensFromArgs(t *testing.T) {
	got, err := tokensFromArgs("nebius", []string{"nebius", "compute", "instance", "list"})
	assert.NilError(t, err)
	assert.DeepEqual(t, []string{"compute", "instance", "list"}, got)

	got, err = tokensFromArgs("nebius", []string{"nebius compute instance get --id 'a b'"})
	assert.NilError(t, err)
	assert.DeepEqual(t, []string{"compute", "instance", "get", "--id", "a b"}, got)

	_, err = tokensFromArgs("nebius", []string{"aws", "s3", "ls"})
	if !errors.Is(err, cmdguard.ErrWrongProgram) {
		t.Fatalf("expected ErrWrongProgram, got %v", err)
	}

	_, err = tokensFromArgs("nebius", []string{"nebius profile list | sh"})
	if !errors.Is(err, cmdguard.ErrShellSyntax) {
		t.Fatalf("expected ErrShellSyntax, got %v", err)
	}
}

func TestWriteClassifyText(t *testing.T) {
	var buf bytes.Buffer
	decision := model.Deny(model.MutatingInSafeMode, []string{"delete"})
	err := writeClassifyText(&buf, classifyReport{
		Command:  "nebius compute instance delete",
		Mode:     model.Safe,
		Decision: decision,
		Message:  cmdguard.DenialMessage(decision),
		Tokens: []model.TokenClassification{
			{Token: "compute", Class: model.Neutral},
			{Token: "instance", Class: model.Neutral},
			{Token: "delete", Class: model.Mutating, Pattern: "delete"},
		},
	})
	assert.NilError(t, err)

	out := buf.String()
	for _, want := range []string{"Mode:    safe", "TOKEN", "delete", "mutating", "Decision: deny(MUTATING_IN_SAFE_MODE)", "provide manual instructions instead"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() { logrus.SetLevel(logrus.InfoLevel) })

	assert.NilError(t, setupLogging("debug"))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.ErrorContains(t, setupLogging("loud"), "invalid log level")
}

func TestVersionCommand(t *testing.T) {
	out := runRoot(t, "version")

	var info map[string]string
	assert.NilError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "cligate", info["name"])
	assert.Equal(t, version, info["version"])
}

func TestRulesCommand(t *testing.T) {
	rulesPath := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(rulesPath, []byte("mutating: [reboot]\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out := runRoot(t, "rules", "--rules", rulesPath)
	for _, want := range []string{"# rules hash: sha256:", "- reboot", "- get-access-token", "match: regex"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestClassifyCommandJSON(t *testing.T) {
	out := runRoot(t, "classify", "--rules", "", "--safe-mode", "true", "-f", "json", "--", "nebius", "compute", "instance", "delete", "--id", "x")

	var report classifyReport
	assert.NilError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, model.Safe, report.Mode)
	assert.Equal(t, false, report.Decision.Allowed)
	assert.Equal(t, model.MutatingInSafeMode, report.Decision.Reason)
	assert.Equal(t, 5, len(report.Tokens))
}

func TestClassifyCommandUnsafe(t *testing.T) {
	out := runRoot(t, "classify", "--rules", "", "--safe-mode", "false", "-f", "text", "--", "nebius compute instance delete --id x")

	if !strings.Contains(out, "Decision: allow") {
		t.Fatalf("expected allow in unsafe mode:\n%s", out)
	}
}
