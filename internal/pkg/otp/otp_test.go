package otp

import "testing"

func TestGenerateCodeFormat(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code := GenerateCode()
		if len(code) != CodeLength {
			t.Fatalf("expected %d digits, got %q", CodeLength, code)
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("non-digit in code %q", code)
			}
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 190 {
		t.Fatalf("codes look far from random: %d distinct out of 200", len(seen))
	}
}

func TestHashAndCompare(t *testing.T) {
	code := GenerateCode()
	hash, err := HashCode(code)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !CompareCode(hash, code) {
		t.Fatal("code must match its own hash")
	}
	if CompareCode(hash, "000000") && code != "000000" {
		t.Fatal("wrong code must not match")
	}
}
