// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package shellopt holds the canonical shell option set (set -o / set
// -x style single-letter and long options) and the separate shopt
// feature table, per §6. Both are plain bitsets/maps consulted by
// every other component (lexer command-position is unaffected, but
// expansion, parsing mode, and the executor all read these flags).
package shellopt

// Option is a single `set -o name` / `set -X` toggle.
type Option int

const (
	Errexit Option = iota
	Nounset
	Xtrace
	Pipefail
	Noexec
	Noglob
	Noclobber
	Notify
	Allexport
	Hashcmds
	Monitor
	Verbose
	Ignoreeof
	Nolog
	Posix
	Braceexpand
	Histexpand
	optionCount
)

// letterToOption maps the single-letter `set -e` style flags to Option.
var letterToOption = map[byte]Option{
	'e': Errexit,
	'u': Nounset,
	'x': Xtrace,
	'n': Noexec,
	'f': Noglob,
	'a': Allexport,
	'C': Noclobber,
	'b': Notify,
	'm': Monitor,
	'v': Verbose,
	'h': Hashcmds,
}

// nameToOption maps `set -o name` long names to Option.
var nameToOption = map[string]Option{
	"errexit":     Errexit,
	"nounset":     Nounset,
	"xtrace":      Xtrace,
	"pipefail":    Pipefail,
	"noexec":      Noexec,
	"noglob":      Noglob,
	"noclobber":   Noclobber,
	"notify":      Notify,
	"allexport":   Allexport,
	"hashcmds":    Hashcmds,
	"monitor":     Monitor,
	"verbose":     Verbose,
	"ignoreeof":   Ignoreeof,
	"nolog":       Nolog,
	"posix":       Posix,
	"braceexpand": Braceexpand,
	"histexpand":  Histexpand,
	"physical":    -1, // reserved; never set, kept so `set -o physical` doesn't error
}

func (o Option) String() string {
	for name, opt := range nameToOption {
		if opt == o {
			return name
		}
	}
	return "unknown"
}

// ByLetter resolves a single-letter flag (without its leading -/+) to an Option.
func ByLetter(c byte) (Option, bool) {
	o, ok := letterToOption[c]
	return o, ok
}

// ByName resolves a long `-o name` option to an Option.
func ByName(name string) (Option, bool) {
	o, ok := nameToOption[name]
	if !ok || o < 0 {
		return 0, false
	}
	return o, true
}

// Shopt is a bash-style `shopt` feature toggle (§6 shopt list).
type Shopt int

const (
	Dotglob Shopt = iota
	Nullglob
	Extglob
	Nocaseglob
	Globstar
	shoptCount
)

var shoptNames = map[string]Shopt{
	"dotglob":    Dotglob,
	"nullglob":   Nullglob,
	"extglob":    Extglob,
	"nocaseglob": Nocaseglob,
	"globstar":   Globstar,
}

// ShoptByName resolves a shopt name to a Shopt.
func ShoptByName(name string) (Shopt, bool) {
	s, ok := shoptNames[name]
	return s, ok
}

// ShoptNames lists every recognized shopt name, sorted for `shopt` with no args.
func ShoptNames() []string {
	return []string{"dotglob", "extglob", "globstar", "nocaseglob", "nullglob"}
}

// OptionNames lists every canonical `set -o` long name, in the order
// given by §6, for `set -o` with no argument.
func OptionNames() []string {
	return []string{
		"errexit", "nounset", "xtrace", "pipefail", "noexec", "noglob",
		"noclobber", "notify", "allexport", "hashcmds", "monitor", "verbose",
		"ignoreeof", "nolog", "posix", "braceexpand", "histexpand",
	}
}

// Options is the mutable bitset of every canonical option plus the
// shopt table, threaded through the executor and expansion engine.
type Options struct {
	opts   [optionCount]bool
	shopts [shoptCount]bool
}

// New returns an Options with bash's interactive defaults: braceexpand
// and histexpand on, everything else off.
func New() *Options {
	o := &Options{}
	o.opts[Braceexpand] = true
	o.opts[Histexpand] = true
	return o
}

// Clone returns an independent copy, for subshells and non-leaf
// pipeline stages that must not let option changes (`set`/`shopt`)
// leak back to the parent shell.
func (o *Options) Clone() *Options {
	c := &Options{}
	c.opts = o.opts
	c.shopts = o.shopts
	return c
}

func (o *Options) Get(opt Option) bool  { return o.opts[opt] }
func (o *Options) Set(opt Option, v bool) { o.opts[opt] = v }

func (o *Options) GetShopt(s Shopt) bool  { return o.shopts[s] }
func (o *Options) SetShopt(s Shopt, v bool) { o.shopts[s] = v }

// Letters renders the currently-set single-letter options for `$-`.
func (o *Options) Letters() string {
	order := []byte{'e', 'u', 'x', 'n', 'f', 'a', 'C', 'b', 'm', 'v', 'h'}
	out := make([]byte, 0, len(order))
	for _, c := range order {
		opt, ok := letterToOption[c]
		if ok && o.opts[opt] {
			out = append(out, c)
		}
	}
	return string(out)
}
