package testsupport

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
func LoadFixtureJSON(t testing.TB, path string, dest any) {
	t.Helper()

	if err := json.Unmarshal(LoadFixture(t, path), dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// LoadFilter decodes a filter object fixture the way a request body would
// be decoded: numbers become float64.
func LoadFilter(t testing.TB, path string) map[string]any {
	t.Helper()

	var filter map[string]any
	LoadFixtureJSON(t, path, &filter)
	return filter
}

// Case is one entry of a table fixture. Input and Want stay raw until the
// test decodes them into its own types.
type Case struct {
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
	Want  json.RawMessage `json:"want"`
}

// LoadCases loads a JSON array of cases. Duplicate names fail the test so
// subtests stay addressable.
func LoadCases(t testing.TB, path string) []Case {
	t.Helper()

	var cases []Case
	LoadFixtureJSON(t, path, &cases)

	seen := make(map[string]struct{}, len(cases))
	for _, c := range cases {
		if _, dup := seen[c.Name]; dup {
			t.Fatalf("duplicate case %q in %s", c.Name, path)
		}
		seen[c.Name] = struct{}{}
	}
	return cases
}

// DecodeInput unmarshals the case input into dest.
func (c Case) DecodeInput(t testing.TB, dest any) {
	t.Helper()
	decode(t, c.Name, "input", c.Input, dest)
}

// DecodeWant unmarshals the expected output into dest.
func (c Case) DecodeWant(t testing.TB, dest any) {
	t.Helper()
	decode(t, c.Name, "want", c.Want, dest)
}

func decode(t testing.TB, name, part string, raw json.RawMessage, dest any) {
	t.Helper()
	if len(bytes.TrimSpace(raw)) == 0 {
		t.Fatalf("case %q has no %s", name, part)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		t.Fatalf("case %q: cannot decode %s: %v", name, part, err)
	}
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}
