package logger

import "testing"

func TestMaskCardNumber(t *testing.T) {
	got := MaskCardNumber("LOY-001-A1B2C3")
	want := "****-A1B2C3"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMaskCardNumberWithoutSeparator(t *testing.T) {
	got := MaskCardNumber("9876543210")
	want := "****3210"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMaskAPIKeyShortValue(t *testing.T) {
	got := MaskAPIKey("abc")
	want := "****abc"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
