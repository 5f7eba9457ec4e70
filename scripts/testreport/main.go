// Command testreport merges `go test -json` output with the TestPurpose /
// Scope / Security / Expected / Test Case ID headers found on test functions
// and writes JSON and Markdown reports.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const modulePath = "github.com/leadboard/leadboard"

// TestMetadata holds info parsed from Go source comments
type TestMetadata struct {
	Name       string `json:"name"`
	Purpose    string `json:"purpose,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Security   string `json:"security,omitempty"`
	Expected   string `json:"expected,omitempty"`
	TestCaseID string `json:"test_case_id,omitempty"`
	Package    string `json:"package"`
	Category   string `json:"category"`
	Type       string `json:"type"` // UT, INTEGRATION, E2E
}

// GoTestEvent represents a single event from 'go test -json'
type GoTestEvent struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"`
	Package string    `json:"Package"`
	Test    string    `json:"Test"`
	Elapsed float64   `json:"Elapsed"`
	Output  string    `json:"Output"`
}

// Result is the merged outcome of a single test
type Result struct {
	Name        string       `json:"name"`
	Status      string       `json:"status"`
	Elapsed     float64      `json:"elapsed_seconds"`
	Package     string       `json:"package"`
	Failure     string       `json:"failure_reason,omitempty"`
	Annotations TestMetadata `json:"annotations"`
}

// Summary holds top-level stats
type Summary struct {
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	Results     []Result  `json:"results"`
}

var categoryOrder = []string{"Lead", "Business", "AuthN", "Session", "Audit", "API", "Storage", "Platform", "Other"}

func main() {
	var input, outJSON, outMD, title, root string
	cmd := &cobra.Command{
		Use:   "testreport",
		Short: "Render test results with their annotations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			meta, err := scanMetadata(root)
			if err != nil {
				return err
			}
			f, err := os.Open(input)
			if err != nil {
				return fmt.Errorf("failed to open test output: %w", err)
			}
			defer f.Close()

			summary := summarize(parseEvents(f, meta), time.Now())
			if err := writeFile(outJSON, func(w io.Writer) error {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}); err != nil {
				return err
			}
			if err := writeFile(outMD, func(w io.Writer) error {
				return renderMarkdown(w, summary, title)
			}); err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d tests failed", summary.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "path to go test -json output")
	cmd.Flags().StringVar(&outJSON, "out-json", "report.json", "JSON report path")
	cmd.Flags().StringVar(&outMD, "out-md", "report.md", "Markdown report path")
	cmd.Flags().StringVar(&title, "title", "Test Report", "report title")
	cmd.Flags().StringVar(&root, "root", ".", "repository root to scan for annotations")
	_ = cmd.MarkFlagRequired("input")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func scanMetadata(root string) (map[string]TestMetadata, error) {
	out := make(map[string]TestMetadata)
	fset := token.NewFileSet()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, "_test.go") {
			return nil
		}

		node, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, filepath.Dir(path))
		if err != nil {
			return err
		}
		pkg := packagePath(rel)

		for _, decl := range node.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || !strings.HasPrefix(fn.Name.Name, "Test") {
				continue
			}
			m := TestMetadata{
				Name:     fn.Name.Name,
				Package:  pkg,
				Type:     testType(node, pkg),
				Category: category(pkg),
			}
			if fn.Doc != nil {
				parseDoc(fn.Doc, &m)
			}
			out[pkg+"."+fn.Name.Name] = m
		}
		return nil
	})
	return out, err
}

func parseDoc(doc *ast.CommentGroup, m *TestMetadata) {
	fields := map[string]*string{
		"TestPurpose:":  &m.Purpose,
		"Scope:":        &m.Scope,
		"Security:":     &m.Security,
		"Expected:":     &m.Expected,
		"Test Case ID:": &m.TestCaseID,
	}
	for _, line := range doc.List {
		text := strings.TrimSpace(strings.TrimPrefix(line.Text, "//"))
		for prefix, dst := range fields {
			if strings.HasPrefix(text, prefix) {
				*dst = strings.TrimSpace(strings.TrimPrefix(text, prefix))
			}
		}
	}
}

func packagePath(rel string) string {
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == "" {
		return modulePath
	}
	return modulePath + "/" + rel
}

// testType reads the build tag of the file: integration and e2e suites are
// tagged, everything else is a unit test.
func testType(file *ast.File, pkg string) string {
	for _, cg := range file.Comments {
		if cg.Pos() > file.Package {
			break
		}
		for _, c := range cg.List {
			if tag, ok := strings.CutPrefix(c.Text, "//go:build "); ok {
				return strings.ToUpper(strings.TrimSpace(tag))
			}
		}
	}
	if strings.Contains(pkg, "/tests/") {
		return "E2E"
	}
	return "UT"
}

func category(pkg string) string {
	rel := strings.TrimPrefix(pkg, modulePath+"/")
	switch {
	case strings.HasPrefix(rel, "internal/lead"):
		return "Lead"
	case strings.HasPrefix(rel, "internal/business"):
		return "Business"
	case strings.HasPrefix(rel, "internal/identity"):
		return "AuthN"
	case strings.HasPrefix(rel, "internal/session"):
		return "Session"
	case strings.HasPrefix(rel, "internal/audit"):
		return "Audit"
	case strings.HasPrefix(rel, "internal/transport"), strings.HasPrefix(rel, "tests/"):
		return "API"
	case strings.HasPrefix(rel, "internal/store"):
		return "Storage"
	case strings.HasPrefix(rel, "internal/"), strings.HasPrefix(rel, "cmd/"):
		return "Platform"
	}
	return "Other"
}

func parseEvents(r io.Reader, meta map[string]TestMetadata) []Result {
	states := make(map[string]*Result, len(meta))
	for key, m := range meta {
		states[key] = &Result{Name: m.Name, Package: m.Package, Status: "not run", Annotations: m}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var ev GoTestEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil || ev.Test == "" {
			continue
		}

		key := ev.Package + "." + ev.Test
		res, ok := states[key]
		if !ok {
			ann := TestMetadata{Name: ev.Test, Package: ev.Package, Type: "UT", Category: category(ev.Package)}
			parent, _, isSub := strings.Cut(ev.Test, "/")
			if pm, found := meta[ev.Package+"."+parent]; found && isSub {
				ann = pm
				ann.Name = ev.Test
			}
			res = &Result{Name: ev.Test, Package: ev.Package, Annotations: ann}
			states[key] = res
		}

		switch ev.Action {
		case "pass", "fail":
			res.Status = ev.Action
			res.Elapsed = ev.Elapsed
		case "skip":
			res.Status = "skip"
		case "output":
			if res.Status == "" || res.Status == "not run" || res.Status == "fail" {
				res.Failure += ev.Output
			}
		}
	}

	list := make([]Result, 0, len(states))
	for _, v := range states {
		if v.Status != "fail" {
			v.Failure = ""
		}
		list = append(list, *v)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Package != list[j].Package {
			return list[i].Package < list[j].Package
		}
		return list[i].Name < list[j].Name
	})
	return list
}

func summarize(results []Result, now time.Time) Summary {
	s := Summary{GeneratedAt: now, Results: results}
	for _, r := range results {
		s.Total++
		switch r.Status {
		case "pass":
			s.Passed++
		case "fail":
			s.Failed++
		case "skip":
			s.Skipped++
		}
	}
	return s
}

func statusIcon(status string) string {
	switch status {
	case "pass":
		return "✅"
	case "fail":
		return "❌"
	case "skip":
		return "⏭️"
	}
	return "⚪"
}

func renderMarkdown(w io.Writer, s Summary, title string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Leadboard %s\n\n", title)
	fmt.Fprintf(&sb, "**Generated:** %s  \n", s.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	status := "✅ PASSED"
	if s.Failed > 0 {
		status = "❌ FAILED"
	}
	fmt.Fprintf(&sb, "**Status:** %s\n\n", status)

	rate := 0.0
	if s.Total > 0 {
		rate = float64(s.Passed) / float64(s.Total) * 100
	}
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Total | Passed | Failed | Skipped | Pass Rate |\n")
	sb.WriteString("|-------|--------|--------|---------|-----------|\n")
	fmt.Fprintf(&sb, "| %d | %d | %d | %d | %.1f%% |\n\n", s.Total, s.Passed, s.Failed, s.Skipped, rate)

	byCat := make(map[string][]Result)
	for _, r := range s.Results {
		byCat[r.Annotations.Category] = append(byCat[r.Annotations.Category], r)
	}

	sb.WriteString("## Results by Category\n\n")
	for _, cat := range categoryOrder {
		tests := byCat[cat]
		if len(tests) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "### %s\n\n", cat)
		sb.WriteString("| ID | Test | Type | Status | Purpose | Security |\n")
		sb.WriteString("|----|------|------|--------|---------|----------|\n")
		for _, t := range tests {
			security := t.Annotations.Security
			if security != "" {
				security = "**" + security + "**"
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s |\n",
				t.Annotations.TestCaseID, t.Name, t.Annotations.Type, statusIcon(t.Status), t.Annotations.Purpose, security)
		}
		sb.WriteString("\n")
	}

	if s.Failed > 0 {
		sb.WriteString("## Failure Details\n\n")
		for _, t := range s.Results {
			if t.Status == "fail" {
				fmt.Fprintf(&sb, "### %s (%s)\n```\n%s\n```\n\n", t.Name, t.Package, t.Failure)
			}
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
