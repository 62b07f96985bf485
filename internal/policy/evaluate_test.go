package policy

import (
	"reflect"
	"sync"
	"testing"

	"github.com/ppiankov/cligate/internal/model"
)

func TestCredentialDeniedInUnsafeMode(t *testing.T) {
	e := NewEvaluator(DefaultClassifier(), model.Unsafe)

	d := e.Evaluate([]string{"resource", "get", "--access-key", "abc123"})
	if d.Allowed {
		t.Fatal("expected deny for credential token in unsafe mode")
	}
	if d.Reason != model.CredentialExposure {
		t.Fatalf("expected CREDENTIAL_EXPOSURE, got %s", d.Reason)
	}
	if !reflect.DeepEqual(d.Matched, []string{"--access-key"}) {
		t.Fatalf("unexpected matched tokens %v", d.Matched)
	}
}

func TestCredentialDeniedInSafeMode(t *testing.T) {
	e := NewEvaluator(DefaultClassifier(), model.Safe)

	d := e.Evaluate([]string{"iam", "get-access-token"})
	if d.Allowed || d.Reason != model.CredentialExposure {
		t.Fatalf("expected CREDENTIAL_EXPOSURE, got %s", d)
	}
}

func TestMutatingDeniedInSafeMode(t *testing.T) {
	e := NewEvaluator(DefaultClassifier(), model.Safe)

	d := e.Evaluate([]string{"compute", "instance", "delete", "--id", "x"})
	if d.Allowed {
		t.Fatal("expected deny for mutating verb in safe mode")
	}
	if d.Reason != model.MutatingInSafeMode {
		t.Fatalf("expected MUTATING_IN_SAFE_MODE, got %s", d.Reason)
	}
	if !reflect.DeepEqual(d.Matched, []string{"delete"}) {
		t.Fatalf("unexpected matched tokens %v", d.Matched)
	}
}

func TestMutatingAllowedInUnsafeMode(t *testing.T) {
	e := NewEvaluator(DefaultClassifier(), model.Unsafe)

	d := e.Evaluate([]string{"compute", "instance", "delete", "--id", "x"})
	if !d.Allowed {
		t.Fatalf("expected allow in unsafe mode, got %s", d)
	}
	if d.Reason != "" || d.Matched != nil {
		t.Fatalf("allow must carry no reason, got %+v", d)
	}
}

func TestNeutralAllowedInBothModes(t *testing.T) {
	for _, mode := range []model.SafetyMode{model.Safe, model.Unsafe} {
		d := Evaluate([]string{"compute", "instance", "list"}, mode, nil)
		if !d.Allowed {
			t.Errorf("expected allow in %s mode, got %s", mode, d)
		}
	}
}

func TestEmptyTokensAllowed(t *testing.T) {
	d := Evaluate(nil, model.Safe, nil)
	if !d.Allowed {
		t.Fatalf("expected allow for empty token list, got %s", d)
	}
}

func TestCredentialTakesPrecedence(t *testing.T) {
	tokens := [][]string{
		{"iam", "access-key", "create"},
		{"compute", "instance", "delete", "--token", "t"},
		{"delete", "update", "--password=x", "create"},
	}
	for _, mode := range []model.SafetyMode{model.Safe, model.Unsafe} {
		for _, tt := range tokens {
			d := Evaluate(tt, mode, nil)
			if d.Allowed || d.Reason != model.CredentialExposure {
				t.Errorf("%v in %s mode: expected CREDENTIAL_EXPOSURE, got %s", tt, mode, d)
			}
		}
	}
}

func TestMatchedListsAllCredentialTokens(t *testing.T) {
	d := Evaluate([]string{"--token", "a", "delete", "--secret-key", "b"}, model.Safe, nil)
	if !reflect.DeepEqual(d.Matched, []string{"--token", "--secret-key"}) {
		t.Fatalf("unexpected matched tokens %v", d.Matched)
	}
}

func TestEvaluatePositionIndependent(t *testing.T) {
	a := Evaluate([]string{"delete", "compute", "instance"}, model.Safe, nil)
	b := Evaluate([]string{"compute", "instance", "delete"}, model.Safe, nil)
	if a.Reason != b.Reason || a.Allowed != b.Allowed {
		t.Fatalf("decision depends on position: %s vs %s", a, b)
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	e := NewEvaluator(DefaultClassifier(), model.Safe)
	inputs := [][]string{
		{"compute", "instance", "list"},
		{"compute", "instance", "delete", "--id", "x"},
		{"resource", "get", "--access-key", "abc123"},
	}
	for _, in := range inputs {
		first := e.Evaluate(in)
		second := e.Evaluate(in)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("%v: decisions differ: %+v vs %+v", in, first, second)
		}
	}
}

func TestEvaluateDoesNotMutateTokens(t *testing.T) {
	tokens := []string{"compute", "instance", "DELETE", "--Token=x"}
	orig := append([]string(nil), tokens...)

	Evaluate(tokens, model.Safe, nil)

	if !reflect.DeepEqual(tokens, orig) {
		t.Fatalf("tokens mutated: %v", tokens)
	}
}

func TestUnknownModeFailsClosed(t *testing.T) {
	e := NewEvaluator(nil, model.SafetyMode("bogus"))
	if e.Mode() != model.Safe {
		t.Fatalf("expected unknown mode to become safe, got %s", e.Mode())
	}
	if d := e.Evaluate([]string{"delete"}); d.Allowed {
		t.Fatal("expected deny for mutating verb under fail-closed mode")
	}
}

func TestExplain(t *testing.T) {
	e := NewEvaluator(nil, model.Safe)
	got := e.Explain([]string{"compute", "delete", "--token=x"})

	want := []model.TokenClass{model.Neutral, model.Mutating, model.Credential}
	if len(got) != len(want) {
		t.Fatalf("expected %d classifications, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Class != want[i] {
			t.Errorf("token %d: expected %s, got %s", i, want[i], got[i].Class)
		}
	}
}

func TestEvaluateConcurrent(t *testing.T) {
	e := NewEvaluator(DefaultClassifier(), model.Safe)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if d := e.Evaluate([]string{"iam", "access-key", "list"}); d.Reason != model.CredentialExposure {
					t.Errorf("unexpected decision %s", d)
					return
				}
			}
		}()
	}
	wg.Wait()
}
