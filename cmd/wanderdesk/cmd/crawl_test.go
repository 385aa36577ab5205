package cmd

import (
	"strings"
	"testing"

	"github.com/wanderdesk/wanderdesk/internal/config"
)

func TestBuildRegistry(t *testing.T) {
	cfg := config.Defaults()
	cfg.Sources = []config.Source{
		{Name: "reddit-travel", Kind: "reddit", Subreddits: []string{"travel", "AirBnB"}},
		{Name: "airbnb-help", Kind: "helpcenter", Platform: "airbnb", URLs: []string{"https://www.airbnb.com/help"}},
		{Name: "so-travel", Kind: "stackexchange", Site: "travel", Tags: []string{"visas"}},
	}

	registry, browser, byName, err := buildRegistry(cfg)
	if err != nil {
		t.Fatalf("buildRegistry() error = %v", err)
	}
	if browser != nil {
		t.Error("browser launched without any community source")
	}
	for cfgName, adapterName := range map[string]string{
		"reddit-travel": "reddit",
		"airbnb-help":   "helpcenter-airbnb",
		"so-travel":     "stackoverflow",
	} {
		if byName[cfgName] != adapterName {
			t.Errorf("byName[%q] = %q, want %q", cfgName, byName[cfgName], adapterName)
		}
		if _, err := registry.Lookup(adapterName); err != nil {
			t.Errorf("Lookup(%q) error = %v", adapterName, err)
		}
	}
}

func TestBuildRegistryRejectsUnknownKind(t *testing.T) {
	cfg := config.Defaults()
	cfg.Sources = []config.Source{{Name: "feeds", Kind: "rss"}}

	if _, _, _, err := buildRegistry(cfg); err == nil {
		t.Fatal("buildRegistry() accepted an unknown source kind")
	}
}

func TestBuildRegistryRejectsShadowedAdapters(t *testing.T) {
	cfg := config.Defaults()
	cfg.Sources = []config.Source{
		{Name: "reddit-travel", Kind: "reddit", Subreddits: []string{"travel"}},
		{Name: "reddit-hosting", Kind: "reddit", Subreddits: []string{"airbnb_hosts"}},
	}

	_, _, _, err := buildRegistry(cfg)
	if err == nil {
		t.Fatal("buildRegistry() accepted two sources mapping to the same adapter")
	}
	if !strings.Contains(err.Error(), "reddit-hosting") {
		t.Errorf("error %q should name the colliding source", err)
	}
}
