package policy

import (
	"strings"
	"testing"

	"github.com/ppiankov/cligate/internal/model"
)

func FuzzClassify(f *testing.F) {
	c := DefaultClassifier()

	seeds := []string{
		"", "-", "--", "=", "--=", "compute", "delete", "--token", "--token=abc",
		"--access-key=", "ÄCCESS-KEY", "--\x00", "secret\n",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, token string) {
		got := c.Classify(token)
		if !got.Class.Valid() {
			t.Fatalf("invalid class %q for %q", got.Class, token)
		}
		if got.Token != token {
			t.Fatalf("token not preserved: %q vs %q", got.Token, token)
		}
	})
}

func FuzzEvaluate(f *testing.F) {
	f.Add("compute instance list")
	f.Add("resource get --access-key abc123")
	f.Add("compute instance delete --id x")
	f.Add("")

	f.Fuzz(func(t *testing.T, command string) {
		tokens := strings.Fields(command)
		safe := Evaluate(tokens, model.Safe, nil)
		unsafe := Evaluate(tokens, model.Unsafe, nil)

		// Unsafe mode never denies something safe mode allows.
		if safe.Allowed && !unsafe.Allowed {
			t.Fatalf("%q: allowed in safe mode but denied in unsafe mode", command)
		}
		// Credential exposure does not depend on mode.
		if (safe.Reason == model.CredentialExposure) != (unsafe.Reason == model.CredentialExposure) {
			t.Fatalf("%q: credential decision differs between modes", command)
		}
		if unsafe.Reason == model.MutatingInSafeMode {
			t.Fatalf("%q: mutating denial in unsafe mode", command)
		}
	})
}
