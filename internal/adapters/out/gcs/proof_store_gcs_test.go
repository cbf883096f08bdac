package gcs

import "testing"

func TestProofObjectPath(t *testing.T) {
	cases := map[[2]string]string{
		{"42", "abc"}:        "payment-proofs/42/abc.jpg",
		{"../evil/x", "abc"}: "payment-proofs/_evil_x/abc.jpg",
		{"  ", "abc"}:        "payment-proofs/unknown/abc.jpg",
	}
	for in, want := range cases {
		if got := ProofObjectPath(in[0], in[1]); got != want {
			t.Errorf("ProofObjectPath(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}
