package dotenv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	in := strings.Join([]string{
		"# comment",
		"",
		"PLAIN=value",
		"export EXPORTED=yes",
		`DOUBLE="quoted value"`,
		"SINGLE='single quoted'",
		"SPACED =  padded  ",
		"EQUALS=a=b=c",
	}, "\n")

	vars, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := map[string]string{
		"PLAIN":    "value",
		"EXPORTED": "yes",
		"DOUBLE":   "quoted value",
		"SINGLE":   "single quoted",
		"SPACED":   "padded",
		"EQUALS":   "a=b=c",
	}
	for k, v := range want {
		if vars[k] != v {
			t.Errorf("%s = %q, want %q", k, vars[k], v)
		}
	}
}

func TestParseRejectsMalformedLine(t *testing.T) {
	if _, err := Parse(strings.NewReader("NOEQUALS")); err == nil {
		t.Fatal("expected error for a line without '='")
	}
	if _, err := Parse(strings.NewReader("=novalue")); err == nil {
		t.Fatal("expected error for an empty key")
	}
}

func TestLoadFileDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("DOTENV_KEEP=file\nDOTENV_NEW=file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOTENV_KEEP", "env")
	os.Unsetenv("DOTENV_NEW")
	defer os.Unsetenv("DOTENV_NEW")

	if err := LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := os.Getenv("DOTENV_KEEP"); got != "env" {
		t.Fatalf("DOTENV_KEEP = %q, want env", got)
	}
	if got := os.Getenv("DOTENV_NEW"); got != "file" {
		t.Fatalf("DOTENV_NEW = %q, want file", got)
	}
}

func TestLoadFileMissingIsNoError(t *testing.T) {
	if err := LoadFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing file should be tolerated, got %v", err)
	}
}
