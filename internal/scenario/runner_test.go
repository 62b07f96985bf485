package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/cligate/internal/rules"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAllCasesPass(t *testing.T) {
	s := &Scenario{
		Name: "basic allow",
		Cases: []Case{
			{Command: "nebius compute instance list", Expect: "allow"},
			{Args: []string{"compute", "instance", "get", "--id", "x"}, Expect: "ALLOW"},
		},
	}

	result := Run(s, rules.Default())
	if result.Failed != 0 {
		t.Errorf("expected 0 failures, got %d: %+v", result.Failed, result.Cases)
	}
	if result.Passed != 2 {
		t.Errorf("expected 2 passed, got %d", result.Passed)
	}
}

func TestFailedAssertionDetected(t *testing.T) {
	s := &Scenario{
		Name: "wrong expectation",
		Cases: []Case{
			// read-only command is allowed, but we expect deny
			{Command: "nebius compute instance list", Expect: "deny"},
		},
	}

	result := Run(s, rules.Default())
	if result.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", result.Failed)
	}
	if result.Passed != 0 {
		t.Errorf("expected 0 passed, got %d", result.Passed)
	}
	if result.Cases[0].Actual != "allow" {
		t.Errorf("expected actual allow, got %q", result.Cases[0].Actual)
	}
}

func TestReasonMustMatch(t *testing.T) {
	s := &Scenario{
		Name: "reason",
		Cases: []Case{
			{Command: "nebius iam get-access-token", Expect: "MUTATING_IN_SAFE_MODE"},
			{Command: "nebius iam get-access-token", Expect: "credential_exposure"},
		},
	}

	result := Run(s, rules.Default())
	if result.Cases[0].Passed {
		t.Error("expected reason mismatch to fail")
	}
	if !result.Cases[1].Passed {
		t.Errorf("expected case-insensitive reason to pass: %+v", result.Cases[1])
	}
	if result.Cases[1].Matched != "get-access-token" {
		t.Errorf("unexpected matched %q", result.Cases[1].Matched)
	}
}

func TestScenarioModeAndCaseOverride(t *testing.T) {
	s := &Scenario{
		Name: "modes",
		Mode: "unsafe",
		Cases: []Case{
			{Command: "nebius compute instance delete --id x", Expect: "allow"},
			{Command: "nebius compute instance delete --id x", Mode: "safe", Expect: "MUTATING_IN_SAFE_MODE"},
			{Command: "nebius compute instance delete --id x", Mode: "true", Expect: "deny"},
		},
	}

	result := Run(s, rules.Default())
	if result.Failed != 0 {
		t.Fatalf("expected all cases to pass: %+v", result.Cases)
	}
	if result.Cases[0].Mode != "unsafe" || result.Cases[1].Mode != "safe" {
		t.Errorf("unexpected modes %q %q", result.Cases[0].Mode, result.Cases[1].Mode)
	}
}

func TestInvalidCaseFails(t *testing.T) {
	s := &Scenario{
		Name: "invalid",
		Cases: []Case{
			{Command: "aws s3 ls", Expect: "allow"},
			{Command: "nebius profile list", Mode: "sometimes", Expect: "allow"},
		},
	}

	result := Run(s, rules.Default())
	if result.Failed != 2 {
		t.Fatalf("expected 2 failures, got %d", result.Failed)
	}
	for _, c := range result.Cases {
		if c.Actual != "error" || c.Error == "" {
			t.Errorf("expected error result, got %+v", c)
		}
	}
}

func TestCustomCLIName(t *testing.T) {
	s := &Scenario{
		Name:  "custom cli",
		CLI:   "yc",
		Cases: []Case{{Command: "yc compute instance list", Expect: "allow"}},
	}
	if result := Run(s, rules.Default()); result.Failed != 0 {
		t.Fatalf("expected pass: %+v", result.Cases)
	}
}

func TestLoadAndRunTestdata(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	result, err := LoadAndRun(filepath.Join("testdata", "default-rules.yaml"), "")
	if err != nil {
		t.Fatal(err)
	}
	if result.Failed != 0 {
		t.Fatalf("expected testdata scenarios to pass:\n%s", FormatText([]*RunResult{result}))
	}
	if result.Name != "default rule table" {
		t.Errorf("unexpected name %q", result.Name)
	}
}

func TestLoadAndRunWithRulesFile(t *testing.T) {
	dir := t.TempDir()
	rulesPath := writeScenario(t, dir, "rules.yaml", "mutating: [reboot]\n")
	path := writeScenario(t, dir, "s.yaml", `name: custom verbs
cases:
  - command: nebius compute instance reboot --id x
    expect: MUTATING_IN_SAFE_MODE
  - command: nebius compute instance delete --id x
    expect: MUTATING_IN_SAFE_MODE
`)

	result, err := LoadAndRun(path, rulesPath)
	if err != nil {
		t.Fatal(err)
	}
	if result.Failed != 0 {
		t.Fatalf("unexpected failures: %+v", result.Cases)
	}
	if result.File != path {
		t.Errorf("unexpected file %q", result.File)
	}
}

func TestLoadAndRunErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadAndRun(filepath.Join(dir, "missing.yaml"), ""); err == nil {
		t.Error("expected error for missing scenario")
	}

	bad := writeScenario(t, dir, "bad.yaml", "cases: [\n")
	if _, err := LoadAndRun(bad, ""); err == nil {
		t.Error("expected error for invalid YAML")
	}

	ok := writeScenario(t, dir, "ok.yaml", "cases: []\n")
	if _, err := LoadAndRun(ok, filepath.Join(dir, "missing-rules.yaml")); err == nil {
		t.Error("expected error for missing rules file")
	}
}

func TestFormatText(t *testing.T) {
	results := []*RunResult{
		{Name: "good", Total: 1, Passed: 1},
		{Name: "bad", Total: 1, Failed: 1, Cases: []CaseResult{
			{Index: 1, Command: "nebius compute instance list", Mode: "safe", Expected: "deny", Actual: "allow"},
		}},
	}

	out := FormatText(results)
	for _, want := range []string{"Checking 2 scenario files", "PASS  good (1/1)", "FAIL  bad (0/1)", "expected deny, got allow", "1 of 2 cases passed. 1 of 2 scenarios failed."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	out, err := FormatJSON([]*RunResult{{Name: "x", Total: 0}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"name": "x"`) {
		t.Errorf("unexpected JSON %s", out)
	}
}
