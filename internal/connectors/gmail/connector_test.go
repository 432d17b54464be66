package gmail

import (
	"encoding/base64"
	"testing"
)

func TestBuildQuery(t *testing.T) {
	cases := []struct {
		subjects []string
		want     string
	}{
		{nil, ""},
		{[]string{}, ""},
		{[]string{"solar"}, "subject:(solar) OR filename:pdf"},
		{[]string{"solar", "proposal", "quote"}, "subject:(solar OR proposal OR quote) OR filename:pdf"},
	}
	for _, tc := range cases {
		if got := buildQuery(tc.subjects); got != tc.want {
			t.Errorf("buildQuery(%v) = %q, want %q", tc.subjects, got, tc.want)
		}
	}
}

func TestDecodeBase64URLBothEncodings(t *testing.T) {
	payload := []byte("Subject: Solar Proposal\r\n\r\nbody")

	raw, err := decodeBase64URL(base64.RawURLEncoding.EncodeToString(payload))
	if err != nil || string(raw) != string(payload) {
		t.Fatalf("raw url encoding: %q, %v", raw, err)
	}
	padded, err := decodeBase64URL(base64.URLEncoding.EncodeToString(payload))
	if err != nil || string(padded) != string(payload) {
		t.Fatalf("padded url encoding: %q, %v", padded, err)
	}
	if _, err := decodeBase64URL("!!not-base64!!"); err == nil {
		t.Fatal("garbage input must error")
	}
}

func TestMailDateFormats(t *testing.T) {
	for _, value := range []string{
		"Mon, 10 Aug 2026 09:30:00 +1000",
		"Mon, 10 Aug 2026 09:30:00 AEST",
		"10 Aug 26 09:30 +1000",
	} {
		if _, err := mailDate(value); err != nil {
			t.Errorf("mailDate(%q) failed: %v", value, err)
		}
	}
	if _, err := mailDate("not a date"); err == nil {
		t.Fatal("unparseable date must error")
	}
}
