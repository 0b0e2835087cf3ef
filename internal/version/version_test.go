// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package version

import (
	"strings"
	"testing"

	"github.com/MylesMCook/bloomberg-daily/internal/testutil"
)

func TestInfoString(t *testing.T) {
	t.Parallel()

	i := Info{
		Name:    "newsfetch",
		Version: "devel",
		Go:      "go1.24",
		OS:      "linux",
		Arch:    "amd64",
	}
	testutil.AssertEqual(t, i.String(), "newsfetch devel (go1.24, linux/amd64)\n")

	i.Commit = "deadbeef"
	i.BuiltAt = "2026-08-26T00:00:00Z"
	s := i.String()
	for _, want := range []string{"commit deadbeef", "built at 2026-08-26T00:00:00Z"} {
		if !strings.Contains(s, want) {
			t.Errorf("Info.String() = %q, must contain %q", s, want)
		}
	}
}

func TestVersion(t *testing.T) {
	t.Parallel()

	v := Version()
	if v.Name == "" {
		t.Error("Version().Name is empty")
	}
	if v.Go == "" {
		t.Error("Version().Go is empty")
	}
	testutil.AssertEqual(t, v.Name, CmdName())
}
