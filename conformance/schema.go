package conformance

// TestSuite represents a complete YAML test file
type TestSuite struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Setup       []string   `yaml:"setup,omitempty"` // fragments run once, in order
	Tests       []TestCase `yaml:"tests"`
}

// TestCase represents a single test within a suite. Tests of one
// suite share a session, so earlier tests' declarations are visible
// to later ones.
type TestCase struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Skip        interface{} `yaml:"skip,omitempty"` // bool or reason string
	Code        string      `yaml:"code"`           // the fragment to execute
	Expect      Expectation `yaml:"expect"`
}

// Expectation defines what executing the fragment should produce
type Expectation struct {
	Value  interface{} `yaml:"value,omitempty"`  // result text of the trailing expression
	Error  string      `yaml:"error,omitempty"`  // substring of the failure message
	Output []string    `yaml:"output,omitempty"` // flushed output lines, in order
}

// IsSkipped returns true if this test should be skipped
func (tc *TestCase) IsSkipped() (bool, string) {
	switch v := tc.Skip.(type) {
	case bool:
		if v {
			return true, "skipped"
		}
	case string:
		return true, v
	}
	return false, ""
}
