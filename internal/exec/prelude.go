// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package exec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aleutianshell/ash/internal/ast"
	"github.com/aleutianshell/ash/internal/astprint"
	"github.com/aleutianshell/ash/internal/shellopt"
	"github.com/aleutianshell/ash/internal/vars"
)

// buildPrelude renders every variable, function, and option currently
// visible into shell source text, so a self-reexec'd child (see the
// package doc) starts with the same state a true fork would have
// handed it by copying memory, even though it only inherits argv/envp.
func (ex *Executor) buildPrelude() string {
	var sb strings.Builder
	for _, name := range ex.Vars.NamesWithPrefix("") {
		// LookupDirect: a nameref must serialize as the reference itself,
		// not as a second copy of its target's value.
		v, ok := ex.Vars.LookupDirect(name)
		if !ok || !vars.ValidIdentifier(name) {
			continue
		}
		writePreludeVar(&sb, name, v)
	}
	for _, name := range ex.Vars.FunctionNames() {
		body, ok := ex.Vars.GetFunction(name)
		if !ok {
			continue
		}
		if node, ok := body.(ast.Node); ok {
			fmt.Fprintf(&sb, "%s() %s\n", name, astprint.Node(node))
		}
	}
	aliasNames := make([]string, 0, len(ex.Aliases))
	for name := range ex.Aliases {
		aliasNames = append(aliasNames, name)
	}
	sort.Strings(aliasNames)
	for _, name := range aliasNames {
		fmt.Fprintf(&sb, "alias %s=%s\n", name, astprint.Quote(ex.Aliases[name]))
	}
	for _, name := range shellopt.OptionNames() {
		opt, ok := shellopt.ByName(name)
		if !ok {
			continue
		}
		if ex.Opts.Get(opt) {
			fmt.Fprintf(&sb, "set -o %s\n", name)
		}
	}
	for _, name := range shellopt.ShoptNames() {
		s, _ := shellopt.ShoptByName(name)
		if ex.Opts.GetShopt(s) {
			fmt.Fprintf(&sb, "shopt -s %s\n", name)
		}
	}
	if len(ex.Positional) > 0 {
		quoted := make([]string, len(ex.Positional))
		for i, p := range ex.Positional {
			quoted[i] = astprint.Quote(p)
		}
		fmt.Fprintf(&sb, "set -- %s\n", strings.Join(quoted, " "))
	}
	return sb.String()
}

func writePreludeVar(sb *strings.Builder, name string, v *vars.Variable) {
	if v.Attrs.Has(vars.AttrNameref) {
		fmt.Fprintf(sb, "declare -n %s=%s\n", name, v.Scalar)
		return
	}
	switch v.Kind {
	case vars.KindIndexedArray:
		keys := v.IndexedKeys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("[%d]=%s", k, astprint.Quote(v.Indexed[k]))
		}
		fmt.Fprintf(sb, "%s=(%s)\n", name, strings.Join(parts, " "))
	case vars.KindAssocArray:
		fmt.Fprintf(sb, "declare -A %s\n", name)
		for _, k := range v.AssocKeys() {
			fmt.Fprintf(sb, "%s[%s]=%s\n", name, astprint.Quote(k), astprint.Quote(v.Assoc[k]))
		}
	default:
		fmt.Fprintf(sb, "%s=%s\n", name, astprint.Quote(v.Scalar))
		if v.Attrs.Has(vars.AttrExported) {
			fmt.Fprintf(sb, "export %s\n", name)
		}
		if v.Attrs.Has(vars.AttrReadonly) {
			fmt.Fprintf(sb, "readonly %s\n", name)
		}
	}
}
