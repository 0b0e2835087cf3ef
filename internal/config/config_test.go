// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MylesMCook/bloomberg-daily/internal/testutil"
)

const validYAML = `
version: "1.0"
base_url: https://mylesmcook.github.io/bloomberg-daily/
sources:
  bloomberg:
    name: Bloomberg
    type: calibre_recipe
    recipe: bloomberg.recipe
    schedule: "30 5 * * *"
    sections: [ai, technology, industries, latest]
    device_profiles:
      crosspoint:
        strip_images: true
        skip_pages: [1, 2]
  gutenberg-scifi:
    name: Gutenberg Sci-Fi
    type: gutenberg
    mode: on_demand
    search_query: science fiction
    rate_limit:
      requests_per_second: 0.5
      cache_hours: 48
`

func TestParse(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatal(err)
	}

	testutil.AssertEqual(t, len(c.Sources), 2)

	b := c.Sources["bloomberg"]
	testutil.AssertEqual(t, b.Type, TypeCalibreRecipe)
	testutil.AssertEqual(t, b.IsEnabled(), true)
	testutil.AssertEqual(t, b.Mode, ModeScheduled)
	// Defaults trickle down from the root.
	testutil.AssertEqual(t, b.RetentionDays, 7)
	testutil.AssertEqual(t, b.RateLimit.RequestsPerSecond, 1.0)
	testutil.AssertEqual(t, b.DeviceProfiles["crosspoint"].FontSizeAdjust, 1.0)
	testutil.AssertEqual(t, b.DeviceProfiles["crosspoint"].CSSTheme, "default")

	g := c.Sources["gutenberg-scifi"]
	testutil.AssertEqual(t, g.Mode, ModeOnDemand)
	testutil.AssertEqual(t, g.RateLimit.CacheHours, 48)
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		yaml    string
		wantErr string
	}{
		"calibre without recipe": {
			yaml: `
sources:
  b:
    name: B
    type: calibre_recipe
    schedule: "0 6 * * *"
`,
			wantErr: "needs a recipe",
		},
		"scheduled without cron": {
			yaml: `
sources:
  b:
    name: B
    type: gutenberg
    search_query: whales
`,
			wantErr: "needs a cron schedule",
		},
		"bad cron": {
			yaml: `
sources:
  b:
    name: B
    type: gutenberg
    search_query: whales
    schedule: "hourly"
`,
			wantErr: "invalid cron expression",
		},
		"unknown type": {
			yaml: `
sources:
  b:
    name: B
    type: osmosis
    schedule: "0 6 * * *"
`,
			wantErr: `unknown type "osmosis"`,
		},
		"feed without feeds": {
			yaml: `
sources:
  b:
    name: B
    type: feed
    schedule: "0 6 * * *"
`,
			wantErr: "needs at least one feed",
		},
		"rate limit out of range": {
			yaml: `
sources:
  b:
    name: B
    type: gutenberg
    search_query: whales
    mode: on_demand
    rate_limit:
      requests_per_second: 50
      cache_hours: 24
`,
			wantErr: "requests_per_second",
		},
		"font size out of range": {
			yaml: `
sources:
  b:
    name: B
    type: gutenberg
    search_query: whales
    mode: on_demand
    device_profiles:
      huge:
        font_size_adjust: 3
`,
			wantErr: "font_size_adjust",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("want error, got none")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("want error containing %q, got: %v", tc.wantErr, err)
			}
		})
	}
}

func TestShippedConfig(t *testing.T) {
	t.Parallel()

	c, err := Load(filepath.Join("..", "..", "config", "sources.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	b, ok := c.Sources["bloomberg"]
	if !ok {
		t.Fatal("shipped config has no bloomberg source")
	}
	// The example recipe must be resolvable on a bare CI checkout, so it
	// has to name a builtin Calibre recipe, not a file in the repository.
	if strings.Contains(b.Recipe, "/") {
		t.Errorf("recipe %q must be a builtin recipe name, not a path", b.Recipe)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	c, err := Load(filepath.Join(t.TempDir(), "sources.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, c.Version, "1.0")
	testutil.AssertEqual(t, len(c.Sources), 0)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sources.yaml")

	c, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Save(path); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, got, c)
}

func TestEnabledSources(t *testing.T) {
	t.Parallel()

	disabled := false
	c := Default()
	c.Sources = map[string]Source{
		"a": {Name: "A", Type: TypeGutenberg, SearchQuery: "x", Mode: ModeOnDemand},
		"b": {Name: "B", Type: TypeGutenberg, SearchQuery: "x", Mode: ModeScheduled, Schedule: "0 6 * * *"},
		"c": {Name: "C", Type: TypeGutenberg, SearchQuery: "x", Mode: ModeScheduled, Schedule: "0 6 * * *", Enabled: &disabled},
	}

	all := c.EnabledSources("")
	testutil.AssertEqual(t, len(all), 2)
	testutil.AssertEqual(t, c.EnabledSources(ModeScheduled), []string{"b"})
	testutil.AssertEqual(t, c.EnabledSources(ModeOnDemand), []string{"a"})
}

func TestLoadEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, c.DefaultRetentionDays, 7)
}
