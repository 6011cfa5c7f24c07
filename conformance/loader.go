package conformance

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// TestPath is the directory holding the YAML suites
const TestPath = "testdata"

// LoadedSuite is one parsed suite with its source file path
type LoadedSuite struct {
	File  string
	Suite TestSuite
}

// LoadAllSuites loads every YAML suite under the test directory
func LoadAllSuites() ([]LoadedSuite, error) {
	entries, err := os.ReadDir(TestPath)
	if err != nil {
		return nil, fmt.Errorf("conformance test directory: %w", err)
	}

	var loaded []LoadedSuite
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		path := filepath.Join(TestPath, entry.Name())
		suite, err := loadSuiteFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		loaded = append(loaded, LoadedSuite{File: entry.Name(), Suite: suite})
	}
	return loaded, nil
}

func loadSuiteFile(path string) (TestSuite, error) {
	var suite TestSuite
	data, err := os.ReadFile(path)
	if err != nil {
		return suite, err
	}
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return suite, err
	}
	if suite.Name == "" {
		return suite, fmt.Errorf("suite has no name")
	}
	for i, tc := range suite.Tests {
		if tc.Name == "" {
			return suite, fmt.Errorf("test %d has no name", i)
		}
		if tc.Code == "" {
			return suite, fmt.Errorf("test %q has no code", tc.Name)
		}
	}
	return suite, nil
}
