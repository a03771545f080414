package test

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// TestEngine_MethodComplexity ensures that methods on Engine across the root
// engine files stay below a maximum line count. Methods exceeding this
// threshold likely contain inline storage or codec logic that should live in
// credential/ or secret/.
//
// Allowed exceptions are explicitly listed below with mandatory metadata:
// - Reason: why the exception exists
// - Target: where the inline logic should migrate to
// - RemoveBy: a version or milestone when the exception should be removed
//
// Exceptions without this metadata are rejected at test time to prevent
// permanent exception creep.
func TestEngine_MethodComplexity(t *testing.T) {
	const maxLines = 50

	// methodException describes one allowed exception to the complexity
	// limit. All fields are required — if an entry is missing reason,
	// target, or removeBy, the test will fail to force cleanup.
	type methodException struct {
		limit    int    // maximum allowed lines for this method
		reason   string // why the exception is needed
		target   string // where the logic should migrate to
		removeBy string // version or milestone when this should be removed (e.g. "v1.0.0")
	}

	// Known methods that carry inline logic the layering below cannot absorb yet.
	exceptions := map[string]methodException{
		"Issue":          {150, "request normalization and per-failure audit metadata", "types.go IssueRequest normalization helper", "v1.0.0"},
		"verifyInternal": {80, "uniform rejection requires one linear decision path", "engine_verify.go stays; split audit dispatch only", "v1.0.0"},
		"verifyLegacy":   {100, "migration CAS outcome handling", "credential/ migrate helper", "v1.0.0"},
		"Rotate":         {100, "replacement record building duplicated from Issue", "shared record constructor with Issue", "v1.0.0"},
	}

	// Validate that every exception has complete metadata — prevents "permanent exceptions".
	for name, exc := range exceptions {
		if exc.reason == "" {
			t.Errorf("exception %q missing reason", name)
		}
		if exc.target == "" {
			t.Errorf("exception %q missing migration target", name)
		}
		if exc.removeBy == "" {
			t.Errorf("exception %q missing removeBy version/milestone", name)
		}
	}

	files, err := filepath.Glob("../engine*.go")
	if err != nil {
		t.Fatalf("glob engine files: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no engine files found; was the package layout renamed?")
	}

	funcSig := regexp.MustCompile(`^func \(e \*Engine\) ([A-Za-z]\w*)\(`)
	var violations []string

	for _, filename := range files {
		if strings.HasSuffix(filename, "_test.go") {
			continue
		}

		f, err := os.Open(filename)
		if err != nil {
			t.Fatalf("open %s: %v", filename, err)
		}

		type methodInfo struct {
			name  string
			start int
			depth int
		}

		scanner := bufio.NewScanner(f)
		lineNum := 0
		var current *methodInfo

		for scanner.Scan() {
			lineNum++
			line := scanner.Text()

			if current == nil {
				if m := funcSig.FindStringSubmatch(line); m != nil {
					current = &methodInfo{
						name:  m[1],
						start: lineNum,
						depth: strings.Count(line, "{") - strings.Count(line, "}"),
					}
					continue
				}
			}

			if current != nil {
				current.depth += strings.Count(line, "{") - strings.Count(line, "}")
				if current.depth <= 0 {
					length := lineNum - current.start + 1
					limit := maxLines
					if exc, ok := exceptions[current.name]; ok {
						limit = exc.limit
					}
					if length > limit {
						violations = append(violations, current.name)
						t.Errorf("%s:%d: method %s is %d lines (limit %d); push storage or codec logic down a layer",
							filename, current.start, current.name, length, limit)
					}
					current = nil
				}
			}
		}

		closeErr := f.Close()
		if err := scanner.Err(); err != nil {
			t.Fatalf("scan %s: %v", filename, err)
		}
		if closeErr != nil {
			t.Fatalf("close %s: %v", filename, closeErr)
		}
	}

	if len(violations) > 0 {
		t.Logf("Detected %d method(s) exceeding their line budget. "+
			"Engine methods route and audit; mechanism belongs in credential/ and secret/.",
			len(violations))
	}
}
