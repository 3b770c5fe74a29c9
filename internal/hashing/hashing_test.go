package hashing

import (
	"testing"

	"pgregory.net/rapid"
)

func TestSum_KnownValue(t *testing.T) {
	// sha256("")
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(); got != empty {
		t.Errorf("Sum() = %s, want %s", got, empty)
	}
	if got := Sum([]byte("a"), []byte("b")); got != Sum([]byte("ab")) {
		t.Errorf("Sum(a, b) = %s, want Sum(ab)", got)
	}
}

func TestSumStrings_LengthPrefixed(t *testing.T) {
	if SumStrings("ab", "c") == SumStrings("a", "bc") {
		t.Error("SumStrings does not separate elements")
	}
	if SumStrings() == SumStrings("") {
		t.Error("SumStrings() equals SumStrings(\"\")")
	}
}

func TestSum_FixedLength(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")
		got := Sum(data)
		if len(got) != 64 {
			t.Fatalf("len(Sum()) = %d, want 64", len(got))
		}
		if got != Sum(data) {
			t.Fatal("Sum() is not deterministic")
		}
		if !Verify(got, data) {
			t.Fatal("Verify() rejected its own digest")
		}
	})
}

func TestVerify_Rejects(t *testing.T) {
	if Verify(Sum([]byte("a")), []byte("b")) {
		t.Error("Verify() accepted mismatching data")
	}
	if Verify("not-a-digest", []byte("a")) {
		t.Error("Verify() accepted a malformed digest")
	}
}
