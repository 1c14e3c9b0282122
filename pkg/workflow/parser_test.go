package workflow

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
id: review
steps:
  - name: normalize
    kind: fixed
    fixed:
      transform: lowercase
  - name: assess
    kind: agent
    agent:
      agent: reviewer
      task: "Review: {{input}}"
      tools: [calculator, echo]
      max_iterations: 4
  - name: branch
    kind: conditional
    conditional:
      if:
        contains: approve
      then:
        kind: fixed
        fixed:
          transform: uppercase
      else:
        kind: fixed
        fixed:
          transform: echo
`

func TestParseYAML(t *testing.T) {
	wf, err := ParseYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if wf.ID != "review" || len(wf.Steps) != 3 {
		t.Fatalf("unexpected workflow: %+v", wf)
	}
	assess := wf.Steps[1]
	if assess.Kind != StepAgent || assess.Agent.Agent != "reviewer" {
		t.Fatalf("unexpected agent step: %+v", assess)
	}
	if len(assess.Agent.Tools) != 2 || assess.Agent.MaxIterations != 4 {
		t.Fatalf("unexpected agent config: %+v", assess.Agent)
	}
	branch := wf.Steps[2]
	if branch.Conditional.If.Contains != "approve" || branch.Conditional.Then == nil {
		t.Fatalf("unexpected conditional: %+v", branch.Conditional)
	}
}

func TestParseJSON(t *testing.T) {
	data := []byte(`{
		"id": "tiny",
		"steps": [
			{"name": "echo", "kind": "fixed", "fixed": {"transform": "echo"}}
		]
	}`)
	wf, err := ParseJSON(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if wf.ID != "tiny" || wf.Steps[0].Fixed.Transform != TransformEcho {
		t.Fatalf("unexpected workflow: %+v", wf)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	if _, err := ParseYAML(nil); err == nil {
		t.Fatalf("expected error for empty payload")
	}
	if _, err := ParseYAML([]byte("id: x\nsteps: []")); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := ParseJSON([]byte("{not json")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadPicksParserByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wf.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	wf, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if wf.ID != "review" {
		t.Fatalf("unexpected id: %s", wf.ID)
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestMarshalYAMLRoundTrip(t *testing.T) {
	wf, err := ParseYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	data, err := MarshalYAML(wf)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	again, err := ParseYAML(data)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if again.ID != wf.ID || len(again.Steps) != len(wf.Steps) {
		t.Fatalf("round trip mismatch")
	}
}
