package passphrase

import "testing"

func TestSourceUsesEnvironment(t *testing.T) {
	t.Setenv("STABLECHAIN_TEST_PASS", "hunter2")
	src := NewSource("STABLECHAIN_TEST_PASS", "")
	got, err := src.Get()
	if err != nil || got != "hunter2" {
		t.Fatalf("got %q, %v", got, err)
	}
	t.Setenv("STABLECHAIN_TEST_PASS", "changed")
	if again, _ := src.Get(); again != "hunter2" {
		t.Fatalf("expected cached passphrase, got %q", again)
	}
}

func TestSourceAcceptsEmptyEnvironment(t *testing.T) {
	t.Setenv("STABLECHAIN_TEST_PASS", "")
	got, err := NewSource("STABLECHAIN_TEST_PASS", "").Get()
	if err != nil || got != "" {
		t.Fatalf("got %q, %v", got, err)
	}
}
