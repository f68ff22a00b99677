package log

import (
	"bytes"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T, name string) (*Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	SetOutput(buf)
	return ForService(name), buf
}

func TestPrefixAndLevel(t *testing.T) {
	SetGlobalDebug(false)

	l, buf := newTestLogger(t, "prefix_test")
	l.Infof("opened %d indexes", 3)

	out := buf.String()
	if !strings.Contains(out, "INFO [prefix_test>] opened 3 indexes") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestForServiceMemoized(t *testing.T) {
	a := ForService("memo_test")
	b := ForService("memo_test")
	if a != b {
		t.Fatal("expected the same logger instance")
	}
	if ForService("") != ForService("unknown") {
		t.Fatal("empty name should map to unknown")
	}
}

func TestDebugPerService(t *testing.T) {
	SetGlobalDebug(false)

	const name = "debug_service_test"
	DisableDebugFor(name)
	l, buf := newTestLogger(t, name)

	l.Debugf("hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatal("debug line printed while disabled")
	}

	EnableDebugFor(name)
	defer DisableDebugFor(name)
	l.Debugf("visible")
	if !strings.Contains(buf.String(), "DEBUG [debug_service_test>] visible") {
		t.Fatalf("expected debug line, got %q", buf.String())
	}
}

func TestDebugGlobal(t *testing.T) {
	l, buf := newTestLogger(t, "debug_global_test")

	SetGlobalDebug(true)
	defer SetGlobalDebug(false)

	l.Debugf("global")
	if !strings.Contains(buf.String(), "global") {
		t.Fatalf("expected debug line, got %q", buf.String())
	}
}

func TestWithRequest(t *testing.T) {
	l, buf := newTestLogger(t, "request_test")

	l.WithRequest("abc123").Warnf("slow backend")
	if !strings.Contains(buf.String(), "WARN [request_test>] req=abc123 slow backend") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
