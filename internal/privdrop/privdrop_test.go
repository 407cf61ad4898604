package privdrop

import "testing"

func TestToIsNoopWithoutUsername(t *testing.T) {
	spec, err := To("")
	if err != nil {
		t.Fatalf("To(\"\") returned an error: %v", err)
	}
	if spec != nil {
		t.Fatalf("To(\"\") should be a no-op, got %+v", spec)
	}
}

func TestToIsNoopWhenNotRoot(t *testing.T) {
	// The test process is never running as root in CI, so this exercises
	// the early-return guard without requiring privileges.
	spec, err := To("nobody")
	if err != nil {
		t.Fatalf("To as non-root should not error, got: %v", err)
	}
	if spec != nil {
		t.Fatalf("To as non-root should be a no-op, got %+v", spec)
	}
}
