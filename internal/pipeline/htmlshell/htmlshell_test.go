package htmlshell

import (
	"regexp"
	"strings"
	"testing"
)

const sample = `<!doctype html><html><head><title>Hi</title></head><body>Hello</body></html>`

func TestPrepareForMobileShell_InsertsAllThreeTags(t *testing.T) {
	out := PrepareForMobileShell(sample)
	if !strings.Contains(out, "viewport") {
		t.Error("missing viewport meta")
	}
	if !strings.Contains(out, "Content-Security-Policy") {
		t.Error("missing CSP meta")
	}
	if !strings.Contains(out, "cordova.js") {
		t.Error("missing cordova.js script")
	}
}

func TestPrepareForMobileShell_Idempotent(t *testing.T) {
	once := PrepareForMobileShell(sample)
	twice := PrepareForMobileShell(once)
	if once != twice {
		t.Fatalf("not idempotent:\nonce=%s\ntwice=%s", once, twice)
	}
}

func TestPrepareForMobileShell_ExactlyOneOfEach(t *testing.T) {
	out := PrepareForMobileShell(PrepareForMobileShell(sample))

	viewportCount := regexp.MustCompile(`(?i)name=["']viewport["']`).FindAllString(out, -1)
	if len(viewportCount) != 1 {
		t.Fatalf("expected exactly one viewport meta, got %d", len(viewportCount))
	}
	cspCount := regexp.MustCompile(`(?i)Content-Security-Policy`).FindAllString(out, -1)
	if len(cspCount) != 1 {
		t.Fatalf("expected exactly one CSP meta, got %d", len(cspCount))
	}
	cordovaCount := regexp.MustCompile(`(?i)cordova\.js`).FindAllString(out, -1)
	if len(cordovaCount) != 1 {
		t.Fatalf("expected exactly one cordova.js tag, got %d", len(cordovaCount))
	}
}

func TestStripEntryName(t *testing.T) {
	if StripEntryName("index.html") {
		t.Error("index.html should not need renaming")
	}
	if !StripEntryName("hello.html") {
		t.Error("hello.html should need renaming to index.html")
	}
}
