package rules

import "github.com/ppiankov/cligate/internal/model"

// DefaultTable is the built-in rule set. Credential entries are an
// unconditional deny-list; mutating entries only matter in safe mode.
var DefaultTable = Table{
	Credential: []string{
		"token",
		"access-token",
		"get-access-token",
		"access-key",
		"secret",
		"secret-key",
		"static-key",
		"password",
		"api-key",
		"private-key",
		"credentials",
		"--token",
		"--access-token",
		"--access-key",
		"--access-key-id",
		"--secret",
		"--secret-key",
		"--secret-access-key",
		"--password",
		"--api-key",
		"--private-key",
		"--credentials",
	},
	Mutating: []string{
		"create",
		"delete",
		"update",
		"remove",
		"set",
		"unset",
		"revoke",
		"rotate",
		"edit",
		"add",
		"grant",
		"activate",
		"deactivate",
		"start",
		"stop",
		"restart",
		"resize",
		"apply",
		"attach",
		"detach",
		"import",
	},
	Rules: []Rule{
		{Pattern: `^--.*(secret|password).*$`, Class: model.Credential, Match: MatchRegex},
	},
}

// Default returns the compiled built-in table.
func Default() *Compiled {
	return MustCompile(DefaultTable)
}
