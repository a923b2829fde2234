package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSiteYAML(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write site config: %v", err)
	}
}

func TestLoadSiteConfigs(t *testing.T) {
	dir := t.TempDir()
	writeSiteYAML(t, dir, "saanich.yaml", `
id: saanich
name: Saanich Prospero
variant: prospero
base_url: https://online.saanich.ca
start_path: Tempest/OurCity/Prospero/Search.aspx
city_name: Saanich
region_name: Victoria
recency: weekday_snap
filter_payload:
  ctl00$FeaturedContent$hdn_filterFolderStatusSelected: ACTIVE
exclude_types:
  - Temporary Use Permit
`)
	writeSiteYAML(t, dir, "notes.txt", "not a site config")
	t.Setenv("SITES_DIR", dir)

	cfg := &Config{Sites: make(map[string]*SiteConfig)}
	if err := cfg.loadSiteConfigs(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if err := cfg.validateSites(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	site, ok := cfg.Sites["saanich"]
	if !ok {
		t.Fatalf("saanich not loaded; sites: %v", cfg.Sites)
	}
	if site.Variant != VariantProspero {
		t.Fatalf("unexpected variant %q", site.Variant)
	}
	if site.FilterPayload["ctl00$FeaturedContent$hdn_filterFolderStatusSelected"] != "ACTIVE" {
		t.Fatalf("filter payload not parsed: %v", site.FilterPayload)
	}
	if len(site.ExcludeTypes) != 1 || site.ExcludeTypes[0] != "Temporary Use Permit" {
		t.Fatalf("exclude types not parsed: %v", site.ExcludeTypes)
	}
}

func TestValidateSites_ProsperoNeedsTypeList(t *testing.T) {
	cfg := &Config{Sites: map[string]*SiteConfig{
		"bad": {ID: "bad", Variant: VariantProspero, BaseURL: "https://example.ca"},
	}}
	if err := cfg.validateSites(); err == nil {
		t.Fatalf("prospero site without type lists must fail validation")
	}
}

func TestValidateSites_UnknownVariant(t *testing.T) {
	cfg := &Config{Sites: map[string]*SiteConfig{
		"bad": {ID: "bad", Variant: "ftp", BaseURL: "https://example.ca"},
	}}
	if err := cfg.validateSites(); err == nil {
		t.Fatalf("unknown variant must fail validation")
	}
}

func TestValidateSites_MissingBaseURL(t *testing.T) {
	cfg := &Config{Sites: map[string]*SiteConfig{
		"bad": {ID: "bad", Variant: VariantPIP},
	}}
	if err := cfg.validateSites(); err == nil {
		t.Fatalf("site without base_url must fail validation")
	}
}

func TestIsTenderVariant(t *testing.T) {
	cases := []struct {
		variant string
		want    bool
	}{
		{VariantProspero, false},
		{VariantPIP, false},
		{VariantPIPReport, false},
		{VariantBonfire, true},
		{VariantBidsTenders, true},
	}
	for _, tc := range cases {
		s := &SiteConfig{Variant: tc.variant}
		if got := s.IsTenderVariant(); got != tc.want {
			t.Fatalf("IsTenderVariant(%s) = %v, want %v", tc.variant, got, tc.want)
		}
	}
}
