package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fixture = `
courses:
  - {id: 2, shortname: c2}
contexts:
  - {id: 1, level: system, path: /1}
  - {id: 5, level: course, instance: 2, path: /1/5}
categories:
  - {id: 3, name: Default, context_id: 5}
questions:
  - {id: 42, category_id: 3, name: Capital, type: short_word, prompt: "<p>Capital of France?</p>", answer: [Paris]}
users:
  - {username: ada, password: pw, role: student, courses: [2]}
`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParse(t *testing.T) {
	out, err := run(t, "x {ILQ:id=4,abc,5,;marks=2} y {ILQ:marks=0} z", "parse")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"{ILQ:id=4,abc,5,;marks=2}", "- 4\n", "- 5\n", "invalid_ids:", "- abc\n", "marks: 2", "error:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestImportFilterEvents(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ILQ_CONFIG", "")
	t.Setenv("LOG_LEVEL", "error")
	fx := filepath.Join(dir, "site.yaml")
	if err := os.WriteFile(fx, []byte(fixture), 0o600); err != nil {
		t.Fatal(err)
	}
	dsn := "--db-dsn=file:" + filepath.Join(dir, "ilq.db")

	if out, err := run(t, "", "import", fx, dsn); err != nil || !strings.Contains(out, "imported 1 questions") {
		t.Fatalf("import: %v\n%s", err, out)
	}

	text := "<p>Q:</p>{ILQ:id=42}"
	out, err := run(t, text, "filter", dsn)
	if err != nil || out != text {
		t.Fatalf("anonymous filter should leave text: %v\n%s", err, out)
	}
	if _, err := run(t, text, "filter", "--strict", dsn); err == nil {
		t.Fatal("strict anonymous filter should fail")
	}

	out, err = run(t, text, "filter", "--user=ada", "--courseid=2", dsn)
	if err != nil || !strings.Contains(out, "Capital of France?") || !strings.Contains(out, `name="sesskey"`) {
		t.Fatalf("filter as ada: %v\n%s", err, out)
	}

	out, err = run(t, "", "events", dsn)
	if err != nil || !strings.Contains(out, `"type":"usage_started"`) {
		t.Fatalf("events: %v\n%s", err, out)
	}

	if out, err := run(t, "", "migrate", dsn); err != nil || !strings.Contains(out, "schema up to date") {
		t.Fatalf("migrate: %v\n%s", err, out)
	}
}
