package pipeline

import "testing"

func TestExtractFields(t *testing.T) {
	raw := `Your 6.6kW Solar System
Total Price: $12,990.00
Installed at Sydney NSW 2000
Installer: Bright Spark Energy`

	size, cost, postcode, installer := extractFields(raw)

	if size == nil || size.Value != 6.6 {
		t.Fatalf("size = %+v", size)
	}
	if cost == nil || cost.Value != 12990 || cost.Confidence != 0.8 {
		t.Fatalf("cost = %+v", cost)
	}
	if postcode == nil || postcode.Value != "2000" {
		t.Fatalf("postcode = %+v", postcode)
	}
	if installer == nil || installer.Value != "Bright Spark Energy" {
		t.Fatalf("installer = %+v", installer)
	}
}

func TestExtractFieldsAbsentStayNil(t *testing.T) {
	size, cost, postcode, installer := extractFields("nothing relevant in this text at all")
	if size != nil || cost != nil || postcode != nil || installer != nil {
		t.Fatalf("expected all nil, got %v %v %v %v", size, cost, postcode, installer)
	}
}

func TestFirstMatchWinsPerField(t *testing.T) {
	raw := "Total cost $8,500\nTotal price $9,999"
	_, cost, _, _ := extractFields(raw)
	if cost == nil || cost.Value != 8500 {
		t.Fatalf("cost = %+v", cost)
	}
}

func TestPostcodeRejects(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"wattage with space", "panel output 4000 W"},
		{"energy figure", "battery holds 5000 kWh over life"},
		{"dollar fragment", "deposit $2500 due"},
		{"decimal fragment", "total 12.9900 adjusted"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := matchPostcode(tc.line); got != nil {
				t.Fatalf("matchPostcode(%q) = %+v, want nil", tc.line, got)
			}
		})
	}

	if got := matchPostcode("Melbourne VIC 3000"); got == nil || got.Value != "3000" {
		t.Fatalf("plain postcode should match, got %+v", got)
	}
}

func TestSystemSizeBound(t *testing.T) {
	if got := matchSystemSize("999kW solar system"); got != nil {
		t.Fatalf("implausible size should be rejected, got %+v", got)
	}
}

func TestInstallerSuffixPattern(t *testing.T) {
	got := matchInstaller("Proudly installed by Sunny Coast Solar for you")
	if got == nil || got.Value != "Sunny Coast Solar" {
		t.Fatalf("installer = %+v", got)
	}
}
