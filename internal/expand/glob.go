// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package expand

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/aleutianshell/ash/internal/shellopt"
)

// globPath performs phase 5 pathname expansion for one field, honoring
// dotglob, nullglob (handled by the caller), nocaseglob, and globstar.
func globPath(pattern string, opts *shellopt.Options) ([]string, error) {
	abs := strings.HasPrefix(pattern, "/")
	segs := strings.Split(pattern, "/")
	if abs {
		segs = segs[1:]
	}
	segs = dropEmpty(segs)
	dotglob := opts.GetShopt(shellopt.Dotglob)
	nocase := opts.GetShopt(shellopt.Nocaseglob)
	globstar := opts.GetShopt(shellopt.Globstar)

	start := "."
	if abs {
		start = "/"
	}
	matches := matchSegments(start, segs, dotglob, nocase, globstar)
	return matches, nil
}

func dropEmpty(segs []string) []string {
	out := segs[:0:0]
	for _, s := range segs {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func matchSegments(dir string, segs []string, dotglob, nocase, globstar bool) []string {
	if len(segs) == 0 {
		return []string{dir}
	}
	seg := segs[0]
	rest := segs[1:]

	if seg == "**" && globstar {
		var out []string
		out = append(out, matchSegments(dir, rest, dotglob, nocase, globstar)...)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return out
		}
		for _, ent := range entries {
			if !ent.IsDir() {
				continue
			}
			if !dotglob && strings.HasPrefix(ent.Name(), ".") {
				continue
			}
			sub := joinPath(dir, ent.Name())
			out = append(out, matchSegments(sub, segs, dotglob, nocase, globstar)...)
		}
		return out
	}

	if !HasGlobMeta(seg) {
		next := joinPath(dir, seg)
		if len(rest) == 0 {
			if _, err := os.Lstat(next); err != nil {
				return nil
			}
			return []string{next}
		}
		if info, err := os.Stat(next); err == nil && info.IsDir() {
			return matchSegments(next, rest, dotglob, nocase, globstar)
		}
		return nil
	}

	pat, err := CompilePattern(seg, nocase)
	if err != nil {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, ent := range entries {
		name := ent.Name()
		if !dotglob && strings.HasPrefix(name, ".") && !strings.HasPrefix(seg, ".") {
			continue
		}
		if !pat.MatchFull(name) {
			continue
		}
		next := joinPath(dir, name)
		if len(rest) == 0 {
			out = append(out, next)
			continue
		}
		if ent.IsDir() {
			out = append(out, matchSegments(next, rest, dotglob, nocase, globstar)...)
		}
	}
	return out
}

func joinPath(dir, name string) string {
	if dir == "." {
		return name
	}
	return filepath.Join(dir, name)
}
