package curriculum_test

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-mastery/internal/curriculum"
)

const form1YAML = `
stages:
  - name: secondary
    grades:
      - name: form-1
        periods:
          - name: semester-1
            topics:
              - id: F1-01
                name: "Variables & Algebraic Expressions"
                skills: [identify-variable, write-expression]
                prerequisites: []
                difficulty: 0.2
              - id: F1-02
                name: "Linear Equations"
                skills: [isolate-variable, check-solution]
                prerequisites: [F1-01]
                difficulty: 0.4
          - name: semester-2
            topics:
              - id: F1-03
                name: "Linear Inequalities"
                skills: [inequality-notation]
                prerequisites: [F1-02]
                difficulty: 0.5
`

const form2YAML = `
stages:
  - name: secondary
    grades:
      - name: form-2
        periods:
          - name: semester-1
            topics:
              - id: F2-01
                name: "Simultaneous Equations"
                skills: [substitution, elimination]
                prerequisites: [F1-02, F1-03]
                difficulty: 0.6
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func setupTestCurriculum(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "malaysia/kssm/01-form1.yaml", form1YAML)
	writeFile(t, dir, "malaysia/kssm/02-form2.yaml", form2YAML)
	return dir
}

func TestLoad_Directory(t *testing.T) {
	g, err := curriculum.Load(setupTestCurriculum(t), curriculum.LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if g.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", g.Len())
	}

	want := []string{"F1-01", "F1-02", "F1-03", "F2-01"}
	for i, topic := range g.AllTopics() {
		if topic.ID != want[i] {
			t.Errorf("AllTopics()[%d] = %q, want %q", i, topic.ID, want[i])
		}
	}

	grades := g.Grades("secondary")
	if len(grades) != 2 || grades[0] != "form-1" || grades[1] != "form-2" {
		t.Errorf("Grades(secondary) = %v, want [form-1 form-2]", grades)
	}
}

func TestLoad_SingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "form1.yml", form1YAML)

	g, err := curriculum.Load(path, curriculum.LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	topic, ok := g.FindTopic("F1-03")
	if !ok {
		t.Fatal("FindTopic(F1-03) not found")
	}
	if topic.Period != "semester-2" || topic.Grade != "form-1" || topic.Stage != "secondary" {
		t.Errorf("location = %s/%s/%s, want secondary/form-1/semester-2", topic.Stage, topic.Grade, topic.Period)
	}
}

func TestLoad_SkipsNonCurriculumYAML(t *testing.T) {
	dir := setupTestCurriculum(t)
	writeFile(t, dir, "malaysia/kssm/01-form1.assessments.yaml", `
topic_id: F1-01
questions:
  - id: Q1
    text: "What is 3x when x=2?"
`)

	g, err := curriculum.Load(dir, curriculum.LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if g.Len() != 4 {
		t.Errorf("Len() = %d, want 4 (assessment YAML should be skipped)", g.Len())
	}
}

func TestLoad_SkipsHiddenDirectories(t *testing.T) {
	dir := setupTestCurriculum(t)
	writeFile(t, dir, ".drafts/broken.yaml", "stages: [")

	if _, err := curriculum.Load(dir, curriculum.LoadOptions{}); err != nil {
		t.Fatalf("Load() error = %v; hidden directories should be ignored", err)
	}
}

func TestLoad_EmptyDir(t *testing.T) {
	g, err := curriculum.Load(t.TempDir(), curriculum.LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if g.Len() != 0 {
		t.Errorf("Len() = %d, want 0 for empty dir", g.Len())
	}
}

func TestLoad_MissingPath(t *testing.T) {
	_, err := curriculum.Load(filepath.Join(t.TempDir(), "nope"), curriculum.LoadOptions{})
	if err == nil {
		t.Fatal("Load() should fail for a missing path")
	}
}

func TestLoad_SchemaViolation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no skills", `
stages:
  - name: s
    grades:
      - name: g
        periods:
          - name: p
            topics:
              - id: T1
                name: "No skills"
                skills: []
`},
		{"difficulty above one", `
stages:
  - name: s
    grades:
      - name: g
        periods:
          - name: p
            topics:
              - id: T1
                name: "Too hard"
                skills: [a]
                difficulty: 1.5
`},
		{"missing grades", `
stages:
  - name: s
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "bad.yaml", tt.content)
			if _, err := curriculum.Load(dir, curriculum.LoadOptions{}); err == nil {
				t.Error("Load() should reject a document that violates the schema")
			}
		})
	}
}

func TestLoad_DuplicateTopicID(t *testing.T) {
	dir := setupTestCurriculum(t)
	writeFile(t, dir, "zz-dup.yaml", `
stages:
  - name: primary
    grades:
      - name: year-6
        periods:
          - name: term-1
            topics:
              - id: F1-01
                name: "Duplicate"
                skills: [a]
`)

	if _, err := curriculum.Load(dir, curriculum.LoadOptions{}); err == nil {
		t.Fatal("Load() should reject duplicate topic ids across files")
	}
}

func TestLoad_StrictRejectsDefects(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dangling.yaml", `
stages:
  - name: s
    grades:
      - name: g
        periods:
          - name: p
            topics:
              - id: T1
                name: "Dangling"
                skills: [a]
                prerequisites: [GHOST]
`)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	if _, err := curriculum.Load(dir, curriculum.LoadOptions{Logger: logger}); err != nil {
		t.Fatalf("lenient Load() error = %v; dangling prerequisites should only warn", err)
	}
	if got := strings.Count(logs.String(), "curriculum defect"); got != 1 {
		t.Errorf("logged %d defect warnings, want 1:\n%s", got, logs.String())
	}

	_, err := curriculum.Load(dir, curriculum.LoadOptions{Strict: true})
	var dangling *curriculum.DanglingPrerequisiteError
	if !errors.As(err, &dangling) {
		t.Fatalf("strict Load() error = %v, want DanglingPrerequisiteError", err)
	}
	if dangling.PrerequisiteID != "GHOST" {
		t.Errorf("PrerequisiteID = %q, want GHOST", dangling.PrerequisiteID)
	}
}

func TestParse(t *testing.T) {
	g, err := curriculum.Parse([]byte(form1YAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if g.Len() != 3 {
		t.Errorf("Len() = %d, want 3", g.Len())
	}
}
