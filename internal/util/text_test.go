package util

import (
	"reflect"
	"testing"
)

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"uppercase and collapse", "GoodWe  GW6000-EH\tinverter", "GOODWE GW6000-EH INVERTER"},
		{"hyphen line break rejoined", "EG-440NT54-HL/BF-\nDG panel", "EG-440NT54-HL/BFDG PANEL"},
		{"hyphen break with indent", "GW6000-\r\n   EH", "GW6000EH"},
		{"dash variants folded", "Tesla Powerwall–2", "TESLA POWERWALL-2"},
		{"trim", "  13.5kWh  ", "13.5KWH"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeText(tc.in); got != tc.want {
				t.Fatalf("NormalizeText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestStripSeparators(t *testing.T) {
	if got := StripSeparators("EG-440NT54-HL/BF-DG"); got != "EG440NT54HLBFDG" {
		t.Fatalf("got %q", got)
	}
	// Dots carry meaning in capacity designators.
	if got := StripSeparators("FORCE H2 F12.8"); got != "FORCEH2F12.8" {
		t.Fatalf("got %q", got)
	}
}

func TestOCRFold(t *testing.T) {
	in := "GOODWE GW6OOO-EH LUNA2000"
	want := "G00DWE GW6000-EH 1UNA2000"
	got := OCRFold(in)
	if got != want {
		t.Fatalf("OCRFold(%q) = %q, want %q", in, got, want)
	}
	if len(got) != len(in) {
		t.Fatalf("fold changed length: %d != %d", len(got), len(in))
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("SUNGROW SH5.0RS hybrid 5kW")
	want := []string{"SUNGROW", "SH5.0RS", "HYBRID", "5KW"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
