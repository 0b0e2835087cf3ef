// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/MylesMCook/bloomberg-daily/internal/cli"
	"github.com/MylesMCook/bloomberg-daily/internal/config"
	"github.com/MylesMCook/bloomberg-daily/internal/epub"
)

func main() { cli.Main(new(app)) }

type app struct {
	skipPages  int
	keepImages bool
	cssPath    string
	configPath string
	source     string
	device     string
}

func (a *app) Flags(fs *flag.FlagSet) {
	fs.IntVar(&a.skipPages, "skip-pages", -1, "Drop the first `N` pages; 0 keeps everything. Defaults to the device profile's setting, or 2.")
	fs.BoolVar(&a.keepImages, "keep-images", false, "Keep images instead of stripping them.")
	fs.StringVar(&a.cssPath, "css", "", "Replace the stylesheet with the one at `path` instead of the built-in e-ink stylesheet.")
	fs.StringVar(&a.configPath, "config", "config/sources.yaml", "Read device profiles from the configuration at `path`.")
	fs.StringVar(&a.source, "source", "", "Source `ID` whose device profile to apply.")
	fs.StringVar(&a.device, "device", "", "Device profile `name` to apply (requires -source).")
}

func (a *app) Run(ctx context.Context, env *cli.Env) error {
	if len(env.Args) != 2 {
		return fmt.Errorf("%w: usage: epubproc [flags...] <input.epub> <output.epub>", cli.ErrInvalidArgs)
	}
	input, output := env.Args[0], env.Args[1]

	skip, keepImages := a.skipPages, a.keepImages
	if a.device != "" {
		if a.source == "" {
			return fmt.Errorf("%w: -device requires -source", cli.ErrInvalidArgs)
		}
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		src, ok := cfg.Sources[a.source]
		if !ok {
			return fmt.Errorf("%w: unknown source %q", cli.ErrInvalidArgs, a.source)
		}
		p, ok := src.DeviceProfiles[a.device]
		if !ok {
			return fmt.Errorf("%w: source %q has no device profile %q", cli.ErrInvalidArgs, a.source, a.device)
		}
		// Explicit flags win over the profile.
		if skip < 0 {
			skip = len(p.SkipPages)
		}
		if !p.StripImages {
			keepImages = true
		}
	}

	opts := &epub.ProcessOptions{
		KeepImages:    keepImages,
		WorkflowRunID: env.Getenv("WORKFLOW_RUN_ID"),
		GitSHA:        env.Getenv("GIT_SHA"),
		Logf:          env.Logf,
	}
	if skip >= 0 {
		opts.SkipPages = &skip
	}
	if a.cssPath != "" {
		css, err := os.ReadFile(a.cssPath)
		if err != nil {
			return err
		}
		opts.CSS = css
	}

	res, err := epub.Process(input, output, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(env.Stdout, "%s: %d articles, %d images removed, %d titles shortened, %.1f MB\n",
		output, res.ArticleCount, res.ImagesRemoved, res.TitlesShortened, float64(res.OutputSize)/(1<<20))
	return nil
}
