package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestTable_EmptyPrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTableTo(&buf, "KEY", "VALUE")
	tbl.Flush()
	if buf.Len() != 0 {
		t.Errorf("empty table wrote %q", buf.String())
	}
}

func TestTable_Rows(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTableTo(&buf, "KEY", "VALUE").WithPrefix("  ")
	tbl.Row("api_url", "http://127.0.0.1:9993")
	tbl.Row("state_dir", "/var/lib/zerotier-one")
	tbl.Flush()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "  KEY") {
		t.Errorf("header line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "  ---") {
		t.Errorf("divider line = %q", lines[1])
	}
	// Columns align on the widest key plus padding.
	if idx := strings.Index(lines[2], "http"); idx != strings.Index(lines[3], "/var") {
		t.Errorf("columns not aligned:\n%s", buf.String())
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	v := map[string]any{"b": nil, "a": map[string]any{"alias": "web<1>"}}
	if err := PrintJSON(&buf, v); err != nil {
		t.Fatal(err)
	}

	want := "{\n  \"a\": {\n    \"alias\": \"web<1>\"\n  },\n  \"b\": null\n}\n"
	if buf.String() != want {
		t.Errorf("PrintJSON =\n%s\nwant\n%s", buf.String(), want)
	}

	var back map[string]any
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Errorf("output is not valid JSON: %v", err)
	}
}
