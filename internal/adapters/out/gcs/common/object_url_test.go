package common

import "testing"

func TestObjectURLs(t *testing.T) {
	u := PublicURL("booknest-proofs", "/payment-proofs/42/a b.jpg")
	if u != "https://storage.googleapis.com/booknest-proofs/payment-proofs/42/a b.jpg" {
		t.Fatalf("unexpected url %q", u)
	}

	b, obj, ok := ParseURL("https://storage.cloud.google.com/booknest-proofs/payment-proofs/42/a%20b.jpg")
	if !ok || b != "booknest-proofs" || obj != "payment-proofs/42/a b.jpg" {
		t.Fatalf("got (%q, %q, %v)", b, obj, ok)
	}

	for _, bad := range []string{"https://example.com/b/o", "https://storage.googleapis.com/bucket", "::"} {
		if _, _, ok := ParseURL(bad); ok {
			t.Errorf("ParseURL(%q) should fail", bad)
		}
	}
}
