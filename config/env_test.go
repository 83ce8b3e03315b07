package config

import (
	"testing"
	"time"
)

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("FISHAI_TEST_STR", "x")
	t.Setenv("FISHAI_TEST_INT", "42")
	t.Setenv("FISHAI_TEST_BAD_INT", "many")
	t.Setenv("FISHAI_TEST_DUR", "250ms")
	t.Setenv("FISHAI_TEST_BOOL", "yes")

	if got := EnvOrDefault("FISHAI_TEST_STR", "d"); got != "x" {
		t.Fatalf("str=%q", got)
	}
	if got := EnvOrDefault("FISHAI_TEST_UNSET", "d"); got != "d" {
		t.Fatalf("unset str=%q", got)
	}
	if got := EnvIntOrDefault("FISHAI_TEST_INT", 1); got != 42 {
		t.Fatalf("int=%d", got)
	}
	if got := EnvIntOrDefault("FISHAI_TEST_BAD_INT", 1); got != 1 {
		t.Fatalf("bad int=%d", got)
	}
	if got := EnvDurationOrDefault("FISHAI_TEST_DUR", time.Second); got != 250*time.Millisecond {
		t.Fatalf("duration=%v", got)
	}
	if got := EnvBoolOrDefault("FISHAI_TEST_BOOL", false); !got {
		t.Fatalf("bool=%v", got)
	}
}
