package scenario

// Expectations accepted besides a deny reason code.
const (
	ExpectAllow = "allow"
	ExpectDeny  = "deny"
)

// Case is one test case within a scenario. Either Command (a full command
// line starting with the CLI name) or Args (tokens without it) is set.
type Case struct {
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
	Mode    string   `yaml:"mode,omitempty"`
	Expect  string   `yaml:"expect"`
}

// Scenario is a named collection of policy test cases. Mode applies to
// every case that does not set its own.
type Scenario struct {
	Name  string `yaml:"name"`
	CLI   string `yaml:"cli,omitempty"`
	Mode  string `yaml:"mode,omitempty"`
	Cases []Case `yaml:"cases"`
}

// CaseResult is the outcome of evaluating one test case.
type CaseResult struct {
	Index    int    `json:"index"`
	Passed   bool   `json:"passed"`
	Command  string `json:"command"`
	Mode     string `json:"mode"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Matched  string `json:"matched,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RunResult is the outcome of running all cases in one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Cases  []CaseResult `json:"cases"`
}
