// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package vars implements the variable/scope/array data model: an
// attributed variable store with dynamic scoping, indexed arrays, and
// associative arrays, per the shell's data model.
package vars

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/aleutianshell/ash/internal/arith"
	"github.com/aleutianshell/ash/internal/shellerr"
)

// identifierPattern validates variable and function names.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidIdentifier reports whether name is a legal variable/function name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Attr is a bit in a Variable's attribute set. Attributes are
// orthogonal except where noted (lowercase/uppercase and
// indexed/assoc are mutually exclusive; enforced by Store.SetAttr).
type Attr uint16

const (
	AttrReadonly Attr = 1 << iota
	AttrExported
	AttrInteger
	AttrLowercase
	AttrUppercase
	AttrIndexedArray
	AttrAssocArray
	AttrNameref
	AttrTrace
	// AttrTombstone marks a local scope's shadowing of an outer variable
	// after `unset` within a function; lookup stops here and reports unset.
	AttrTombstone
)

func (a Attr) Has(flag Attr) bool { return a&flag != 0 }

// Kind distinguishes the three possible value shapes a Variable holds.
type Kind int

const (
	KindScalar Kind = iota
	KindIndexedArray
	KindAssocArray
)

// Variable is a named binding: a value of exactly one Kind, an
// attribute bitset, and implicitly a scope (its containing Scope's map).
type Variable struct {
	Name    string
	Attrs   Attr
	Kind    Kind
	Scalar  string
	Indexed map[int]string
	Assoc   map[string]string
}

func newScalar(name, value string) *Variable {
	return &Variable{Name: name, Kind: KindScalar, Scalar: value}
}

// IndexedKeys returns the defined indices of an indexed array, sorted ascending.
func (v *Variable) IndexedKeys() []int {
	keys := make([]int, 0, len(v.Indexed))
	for k := range v.Indexed {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// AssocKeys returns the keys of an associative array in insertion-agnostic
// (sorted) order, since Go maps have no stable order of their own.
func (v *Variable) AssocKeys() []string {
	keys := make([]string, 0, len(v.Assoc))
	for k := range v.Assoc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Length returns the scalar string length or array element count,
// backing ${#v}.
func (v *Variable) Length() int {
	switch v.Kind {
	case KindIndexedArray:
		return len(v.Indexed)
	case KindAssocArray:
		return len(v.Assoc)
	default:
		return len([]rune(v.Scalar))
	}
}

// MaxIndex returns the highest defined index of an indexed array, or -1
// if empty, so append-at-highest-index+1 (name+=(...)) has a base.
func (v *Variable) MaxIndex() int {
	max := -1
	for k := range v.Indexed {
		if k > max {
			max = k
		}
	}
	return max
}

// IndexedAt resolves a read at idx, supporting negative indices counted
// from the logical end (highest defined index).
func (v *Variable) IndexedAt(idx int) (string, bool) {
	if idx < 0 {
		idx = v.MaxIndex() + 1 + idx
	}
	s, ok := v.Indexed[idx]
	return s, ok
}

// Scope is a named frame holding local variables, functions, and a
// parent pointer. Scopes form a stack during function calls; the
// global scope is the bottom of the stack and lives for the process.
type Scope struct {
	Name      string
	vars      map[string]*Variable
	functions map[string]any
	parent    *Scope
}

func newScope(name string, parent *Scope) *Scope {
	return &Scope{Name: name, vars: make(map[string]*Variable), functions: make(map[string]any), parent: parent}
}

// Store is the shell-wide variable store: a scope stack plus the
// positional-parameter frames functions push and pop.
type Store struct {
	global  *Scope
	stack   []*Scope
	options map[string]bool // allexport etc., consulted on assignment
}

// New creates a Store with only the global scope on the stack.
func New() *Store {
	g := newScope("global", nil)
	return &Store{global: g, stack: []*Scope{g}, options: make(map[string]bool)}
}

// Current returns the top-of-stack scope: the "current" scope per §3.
func (s *Store) Current() *Scope { return s.stack[len(s.stack)-1] }

// Global returns the bottom-of-stack scope.
func (s *Store) Global() *Scope { return s.global }

// PushScope pushes a new named frame (function entry).
func (s *Store) PushScope(name string) *Scope {
	sc := newScope(name, s.Current())
	s.stack = append(s.stack, sc)
	return sc
}

// PopScope pops and destroys the current frame's locals (function exit).
// It is a no-op (and returns false) if only the global scope remains.
func (s *Store) PopScope() bool {
	if len(s.stack) <= 1 {
		return false
	}
	s.stack = s.stack[:len(s.stack)-1]
	return true
}

// Depth returns the number of scopes currently pushed, including global.
func (s *Store) Depth() int { return len(s.stack) }

// Clone deep-copies the entire scope stack, functions table, and
// option set. Subshells (§4.5.5) and non-leaf pipeline stages run
// against a clone rather than a real forked address space, so
// mutations never escape to the caller — see internal/exec's package
// doc for why a real fork isn't used here.
func (s *Store) Clone() *Store {
	opts := make(map[string]bool, len(s.options))
	for k, v := range s.options {
		opts[k] = v
	}
	stack := make([]*Scope, len(s.stack))
	var parent *Scope
	for i, sc := range s.stack {
		nc := &Scope{Name: sc.Name, vars: make(map[string]*Variable, len(sc.vars)), functions: make(map[string]any, len(sc.functions)), parent: parent}
		for name, v := range sc.vars {
			nv := *v
			if v.Indexed != nil {
				nv.Indexed = make(map[int]string, len(v.Indexed))
				for k, val := range v.Indexed {
					nv.Indexed[k] = val
				}
			}
			if v.Assoc != nil {
				nv.Assoc = make(map[string]string, len(v.Assoc))
				for k, val := range v.Assoc {
					nv.Assoc[k] = val
				}
			}
			nc.vars[name] = &nv
		}
		for name, fn := range sc.functions {
			nc.functions[name] = fn
		}
		stack[i] = nc
		parent = nc
	}
	return &Store{global: stack[0], stack: stack, options: opts}
}

// SetAllExport toggles whether new/updated scalar assignments are
// automatically exported (the `set -a`/allexport option).
func (s *Store) SetAllExport(on bool) { s.options["allexport"] = on }

// maxNamerefDepth bounds nameref chains so `declare -n a=b; declare -n
// b=a` resolves to "unset" instead of looping.
const maxNamerefDepth = 8

// Lookup walks the scope stack from top to bottom, stopping at the
// first binding found, and follows nameref bindings to their target
// (§3 nameref attribute). A tombstone terminates the walk and reports
// "unset" (found=false).
func (s *Store) Lookup(name string) (*Variable, bool) {
	v, ok := s.lookupRaw(s.resolveNameref(name))
	if ok && v.Attrs.Has(AttrNameref) && ValidIdentifier(v.Scalar) {
		// Still a reference after the depth-bounded walk: a circular
		// chain, which reads as unset.
		return nil, false
	}
	return v, ok
}

// LookupDirect is Lookup without nameref dereferencing, for callers
// that need the reference binding itself (`declare -p`, prelude
// serialization).
func (s *Store) LookupDirect(name string) (*Variable, bool) {
	return s.lookupRaw(name)
}

func (s *Store) lookupRaw(name string) (*Variable, bool) {
	for sc := s.Current(); sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			if v.Attrs.Has(AttrTombstone) {
				return nil, false
			}
			return v, true
		}
	}
	return nil, false
}

// resolveNameref follows a chain of nameref bindings from name to the
// final target name. A nameref whose stored target is empty or not a
// legal identifier resolves to itself, which is what gives bash's
// "first assignment to an empty nameref sets its target" behavior for
// free: the write lands in the reference's own Scalar.
func (s *Store) resolveNameref(name string) string {
	for depth := 0; depth < maxNamerefDepth; depth++ {
		v, ok := s.lookupRaw(name)
		if !ok || !v.Attrs.Has(AttrNameref) {
			return name
		}
		if !ValidIdentifier(v.Scalar) {
			return name
		}
		name = v.Scalar
	}
	return name
}

// resolveWriteScope chooses, per §3, the frame a bare (non-local)
// assignment writes to: the nearest enclosing scope that already has a
// non-tombstone binding, else global.
func (s *Store) resolveWriteScope(name string) *Scope {
	for sc := s.Current(); sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok && !v.Attrs.Has(AttrTombstone) {
			return sc
		}
	}
	return s.global
}

// Set performs a bare assignment (dynamic-scope rules): write to the
// nearest enclosing scope with an existing binding, else global, after
// following any nameref chain to its target. Applies
// integer/upper/lowercase coercions and rejects readonly targets.
func (s *Store) Set(name, value string) error {
	name = s.resolveNameref(name)
	sc := s.resolveWriteScope(name)
	return s.setIn(sc, name, value)
}

// SetLocal always writes to the current scope, backing `local`/`declare`
// within a function.
func (s *Store) SetLocal(name, value string) error {
	return s.setIn(s.Current(), name, value)
}

func (s *Store) setIn(sc *Scope, name, value string) error {
	existing, hadExisting := sc.vars[name]
	if hadExisting && existing.Attrs.Has(AttrReadonly) {
		return shellerr.New(shellerr.KindReadonly, "%s: readonly variable", name)
	}
	v := existing
	if v == nil || v.Attrs.Has(AttrTombstone) {
		v = newScalar(name, "")
		if existing != nil {
			v.Attrs = existing.Attrs &^ AttrTombstone
		}
	}
	v.Kind = KindScalar
	if v.Attrs.Has(AttrInteger) {
		n, err := arith.Eval(value, s)
		if err != nil {
			return shellerr.Wrap(shellerr.KindArith, err, "%s: invalid arithmetic assignment", name)
		}
		v.Scalar = strconv.FormatInt(n, 10)
	} else {
		v.Scalar = applyCaseAttrs(v.Attrs, value)
	}
	sc.vars[name] = v
	if v.Attrs.Has(AttrExported) || s.options["allexport"] {
		v.Attrs |= AttrExported
	}
	return nil
}

func applyCaseAttrs(attrs Attr, value string) string {
	switch {
	case attrs.Has(AttrUppercase):
		return toUpper(value)
	case attrs.Has(AttrLowercase):
		return toLower(value)
	default:
		return value
	}
}

// toUpper/toLower avoid importing strings twice across the package for
// a single call site each; kept local since only case-attribute
// coercion needs them here (expand handles the general ^ ^^ , ,, operators).
func toUpper(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'a' && r <= 'z' {
			out[i] = r - ('a' - 'A')
		}
	}
	return string(out)
}

func toLower(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'A' && r <= 'Z' {
			out[i] = r + ('a' - 'A')
		}
	}
	return string(out)
}

// SetAttr adds flag to name's attribute set in the current scope,
// creating an unset scalar binding if none exists. Enforces the
// mutually-exclusive attribute pairs by clearing the opposite bit.
func (s *Store) SetAttr(name string, flag Attr) {
	sc := s.Current()
	v, ok := sc.vars[name]
	if !ok {
		v = newScalar(name, "")
		sc.vars[name] = v
	}
	switch flag {
	case AttrUppercase:
		v.Attrs &^= AttrLowercase
	case AttrLowercase:
		v.Attrs &^= AttrUppercase
	case AttrIndexedArray:
		v.Attrs &^= AttrAssocArray
	case AttrAssocArray:
		v.Attrs &^= AttrIndexedArray
	}
	v.Attrs |= flag
}

// Unset removes name. Inside a non-global scope it writes a tombstone
// instead of deleting, so an outer binding of the same name stays
// hidden until the current function returns (§3, §4.5.4). Returns a
// ReadonlyError if the binding (wherever found) is readonly.
func (s *Store) Unset(name string) error {
	name = s.resolveNameref(name)
	if v, ok := s.Lookup(name); ok && v.Attrs.Has(AttrReadonly) {
		return shellerr.New(shellerr.KindReadonly, "%s: readonly variable", name)
	}
	if s.Current() == s.global {
		delete(s.global.vars, name)
		return nil
	}
	s.Current().vars[name] = &Variable{Name: name, Kind: KindScalar, Attrs: AttrTombstone}
	return nil
}

// DeclareIndexedArray creates or replaces name as an indexed array in
// the current scope (name=(e1 e2 ...) or local -a name).
func (s *Store) DeclareIndexedArray(name string, elements []string, attrs Attr) {
	v := &Variable{Name: name, Kind: KindIndexedArray, Indexed: make(map[int]string), Attrs: attrs | AttrIndexedArray}
	for i, e := range elements {
		v.Indexed[i] = e
	}
	s.Current().vars[name] = v
}

// DeclareAssocArray creates or replaces name as an associative array.
func (s *Store) DeclareAssocArray(name string, entries map[string]string, attrs Attr) {
	v := &Variable{Name: name, Kind: KindAssocArray, Assoc: make(map[string]string, len(entries)), Attrs: attrs | AttrAssocArray}
	for k, val := range entries {
		v.Assoc[k] = val
	}
	s.Current().vars[name] = v
}

// SetIndexed sets a single element of an indexed array, auto-vivifying
// the array if name is unset (§4.6).
func (s *Store) SetIndexed(name string, idx int, value string) error {
	name = s.resolveNameref(name)
	sc := s.resolveWriteScope(name)
	v, ok := sc.vars[name]
	if !ok || v.Kind != KindIndexedArray {
		if ok && v.Attrs.Has(AttrReadonly) {
			return shellerr.New(shellerr.KindReadonly, "%s: readonly variable", name)
		}
		v = &Variable{Name: name, Kind: KindIndexedArray, Indexed: make(map[int]string), Attrs: AttrIndexedArray}
		sc.vars[name] = v
	}
	if v.Attrs.Has(AttrReadonly) {
		return shellerr.New(shellerr.KindReadonly, "%s: readonly variable", name)
	}
	if idx < 0 {
		idx = v.MaxIndex() + 1 + idx
	}
	v.Indexed[idx] = value
	return nil
}

// SetAssoc sets a single key of an associative array, auto-vivifying it.
func (s *Store) SetAssoc(name, key, value string) error {
	name = s.resolveNameref(name)
	sc := s.resolveWriteScope(name)
	v, ok := sc.vars[name]
	if !ok || v.Kind != KindAssocArray {
		if ok && v.Attrs.Has(AttrReadonly) {
			return shellerr.New(shellerr.KindReadonly, "%s: readonly variable", name)
		}
		v = &Variable{Name: name, Kind: KindAssocArray, Assoc: make(map[string]string), Attrs: AttrAssocArray}
		sc.vars[name] = v
	}
	if v.Attrs.Has(AttrReadonly) {
		return shellerr.New(shellerr.KindReadonly, "%s: readonly variable", name)
	}
	v.Assoc[key] = value
	return nil
}

// AppendIndexed extends an indexed array from max(index)+1 (name+=(...)),
// auto-vivifying it if unset.
func (s *Store) AppendIndexed(name string, elements []string) error {
	name = s.resolveNameref(name)
	sc := s.resolveWriteScope(name)
	v, ok := sc.vars[name]
	if !ok {
		v = &Variable{Name: name, Kind: KindIndexedArray, Indexed: make(map[int]string), Attrs: AttrIndexedArray}
		sc.vars[name] = v
	}
	if v.Attrs.Has(AttrReadonly) {
		return shellerr.New(shellerr.KindReadonly, "%s: readonly variable", name)
	}
	next := v.MaxIndex() + 1
	for _, e := range elements {
		v.Indexed[next] = e
		next++
	}
	return nil
}

// ExportedEnviron renders every exported variable in the full scope
// chain as KEY=VALUE pairs, for passing to child processes.
func (s *Store) ExportedEnviron() []string {
	seen := make(map[string]bool)
	var out []string
	for sc := s.Current(); sc != nil; sc = sc.parent {
		for name, v := range sc.vars {
			if seen[name] {
				continue
			}
			seen[name] = true
			if v.Attrs.Has(AttrTombstone) || !v.Attrs.Has(AttrExported) {
				continue
			}
			out = append(out, name+"="+v.Scalar)
		}
	}
	return out
}

// NamesWithPrefix lists variable names visible from the current scope
// that start with prefix, for ${!prefix*} / ${!prefix@}.
func (s *Store) NamesWithPrefix(prefix string) []string {
	seen := make(map[string]bool)
	var out []string
	for sc := s.Current(); sc != nil; sc = sc.parent {
		for name, v := range sc.vars {
			if seen[name] || v.Attrs.Has(AttrTombstone) {
				continue
			}
			seen[name] = true
			if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

// GetArith returns name's scalar value for use inside an arithmetic
// expression, satisfying internal/arith.Vars. An unset or array
// variable reads as "" (the evaluator then treats it as 0).
func (s *Store) GetArith(name string) (string, bool) {
	v, ok := s.Lookup(name)
	if !ok || v.Kind != KindScalar {
		return "", ok
	}
	return v.Scalar, true
}

// SetArith assigns name from within an arithmetic expression (`x = 3`
// inside `((...))`), satisfying internal/arith.Vars. Follows the same
// dynamic-scope write rule as Set.
func (s *Store) SetArith(name, value string) error {
	return s.Set(name, value)
}

// GetArithIndex reads one array element for an arithmetic `name[expr]`
// operand, satisfying internal/arith.IndexedVars. An indexed array uses
// the evaluated subscript directly (negative counts from the end); an
// associative array uses its decimal rendering as the key; a scalar
// reads as itself at subscript 0.
func (s *Store) GetArithIndex(name string, index int64) (string, bool) {
	v, ok := s.Lookup(name)
	if !ok {
		return "", false
	}
	switch v.Kind {
	case KindIndexedArray:
		return v.IndexedAt(int(index))
	case KindAssocArray:
		el, ok := v.Assoc[strconv.FormatInt(index, 10)]
		return el, ok
	default:
		if index == 0 {
			return v.Scalar, true
		}
		return "", false
	}
}

// SetArithIndex assigns one array element from an arithmetic
// `name[expr] = value`, auto-vivifying an indexed array the way
// `name[k]=v` does (§4.6).
func (s *Store) SetArithIndex(name string, index int64, value string) error {
	if v, ok := s.Lookup(name); ok && v.Kind == KindAssocArray {
		return s.SetAssoc(name, strconv.FormatInt(index, 10), value)
	}
	return s.SetIndexed(name, int(index), value)
}

// DeclareNameref binds name in the current scope as a nameref to
// target (`declare -n name=target`). The target name is stored without
// dereferencing — the one write on a nameref that must not resolve
// through it.
func (s *Store) DeclareNameref(name, target string) error {
	if !ValidIdentifier(target) {
		return shellerr.New(shellerr.KindExpansion, "%s: invalid variable name for name reference", target)
	}
	sc := s.Current()
	if existing, ok := sc.vars[name]; ok {
		if existing.Attrs.Has(AttrReadonly) {
			return shellerr.New(shellerr.KindReadonly, "%s: readonly variable", name)
		}
		existing.Kind = KindScalar
		existing.Scalar = target
		existing.Attrs = (existing.Attrs &^ AttrTombstone) | AttrNameref
		return nil
	}
	v := newScalar(name, target)
	v.Attrs = AttrNameref
	sc.vars[name] = v
	return nil
}

// SetFunction defines or replaces a function body in the global scope.
// Bash functions are visible process-wide once defined, unlike
// variables, so they bypass the scope stack entirely.
func (s *Store) SetFunction(name string, body any) {
	s.global.functions[name] = body
}

// GetFunction looks up a function body by name.
func (s *Store) GetFunction(name string) (any, bool) {
	v, ok := s.global.functions[name]
	return v, ok
}

// UnsetFunction removes a function definition (`unset -f`).
func (s *Store) UnsetFunction(name string) {
	delete(s.global.functions, name)
}

// FunctionNames lists every defined function name, sorted, for `declare -F`.
func (s *Store) FunctionNames() []string {
	out := make([]string, 0, len(s.global.functions))
	for name := range s.global.functions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ParseIndex parses an array subscript that is already a plain decimal
// integer (arithmetic-expression subscripts are evaluated upstream by
// internal/arith before SetIndexed/IndexedAt are called).
func ParseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, shellerr.New(shellerr.KindExpansion, "bad array subscript %q", s)
	}
	return n, nil
}
