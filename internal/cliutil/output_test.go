package cliutil

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestEmitJSON(t *testing.T) {
	var buf bytes.Buffer
	err := EmitJSON(&buf, map[string]interface{}{"success": true, "count": 3})
	if err != nil {
		t.Fatalf("EmitJSON: %v", err)
	}

	out := buf.String()
	if !strings.HasSuffix(out, "\n") {
		t.Error("expected trailing newline")
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if parsed["success"] != true {
		t.Errorf("unexpected output: %v", parsed)
	}
}

func TestEmitJSON_Unmarshalable(t *testing.T) {
	var buf bytes.Buffer
	if err := EmitJSON(&buf, make(chan int)); err == nil {
		t.Error("expected error for unmarshalable value")
	}
}

func TestFailureShape(t *testing.T) {
	var buf bytes.Buffer
	if err := EmitJSON(&buf, Failure{Error: "session went stale", Diagnostic: "stale_session"}); err != nil {
		t.Fatal(err)
	}

	var parsed Failure
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed.Success {
		t.Error("failure must have success false")
	}
	if parsed.Diagnostic != "stale_session" {
		t.Errorf("unexpected diagnostic: %q", parsed.Diagnostic)
	}
}
