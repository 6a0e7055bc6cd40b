package hash

import "testing"

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if h == "s3cret" {
		t.Fatalf("hash must not equal the plain password")
	}
	if !CheckPasswordHash("s3cret", h) {
		t.Fatalf("CheckPasswordHash rejected the right password")
	}
	if CheckPasswordHash("wrong", h) {
		t.Fatalf("CheckPasswordHash accepted a wrong password")
	}
	if CheckPasswordHash("s3cret", "") {
		t.Fatalf("empty hash must never match")
	}
}
