package catalog

import "testing"

func TestBrandResolveTiers(t *testing.T) {
	table := NewBrandAliasTable()

	cases := []struct {
		raw       string
		canonical string
		tier      BrandTier
	}{
		{"goodwe", "GOODWE", TierExact},
		{"GoodWe", "GOODWE", TierExact},
		{"ja solar", "JA SOLAR", TierExact},
		{"goodwe australia pty ltd", "GOODWE", TierAlias},
		{"gooodwe", "GOODWE", TierFuzzy},
		{"g00dwe", "GOODWE", TierExact},
		{"trina soalr", "TRINA", TierAlias},
		{"tr1na", "TRINA", TierExact},
		{"nonexistent brand xyz", "", TierNone},
		{"", "", TierNone},
	}

	for _, tc := range cases {
		got := table.Resolve(tc.raw)
		if got.Canonical != tc.canonical || got.Tier != tc.tier {
			t.Fatalf("Resolve(%q) = %+v, want canonical=%q tier=%q", tc.raw, got, tc.canonical, tc.tier)
		}
	}
}

func TestBrandResolveDeterministic(t *testing.T) {
	table := NewBrandAliasTable()
	first := table.Resolve("solar")
	for i := 0; i < 10; i++ {
		if got := table.Resolve("solar"); got != first {
			t.Fatalf("resolution not stable: %+v vs %+v", got, first)
		}
	}
}

func TestCustomAliasTable(t *testing.T) {
	table := NewBrandAliasTableFrom(map[string][]string{
		"ACME": {"acme solar", "acmee"},
	})
	if got := table.Resolve("ACME"); got.Tier != TierExact || got.Canonical != "ACME" {
		t.Fatalf("canonical name must always resolve: %+v", got)
	}
	if got := table.Resolve("acmee"); got.Tier != TierExact {
		t.Fatalf("listed alias must resolve exact: %+v", got)
	}
}
