// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package arith

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// mapVars is a minimal Vars implementation for tests.
type mapVars map[string]string

func (m mapVars) GetArith(name string) (string, bool) { v, ok := m[name]; return v, ok }
func (m mapVars) SetArith(name, value string) error   { m[name] = value; return nil }

func TestEval_BasicPrecedence(t *testing.T) {
	v, err := Eval("2 + 3 * 4", mapVars{})
	require.NoError(t, err)
	require.Equal(t, int64(14), v)
}

func TestEval_Ternary(t *testing.T) {
	vars := mapVars{"a": "1", "b": "2"}
	v, err := Eval("a<b ? a : b", vars)
	require.NoError(t, err)
	require.Equal(t, int64(1), v)
}

func TestEval_CommaAssignsVarsAndReturnsRight(t *testing.T) {
	vars := mapVars{}
	v, err := Eval("x = 3, y = 4, x + y", vars)
	require.NoError(t, err)
	require.Equal(t, int64(7), v)
	require.Equal(t, "3", vars["x"])
	require.Equal(t, "4", vars["y"])
}

func TestEval_DivisionByZero(t *testing.T) {
	_, err := Eval("1/0", mapVars{})
	require.Error(t, err)
}

func TestEval_HexOctalBase(t *testing.T) {
	v, err := Eval("0x1F", mapVars{})
	require.NoError(t, err)
	require.Equal(t, int64(31), v)

	v, err = Eval("010", mapVars{})
	require.NoError(t, err)
	require.Equal(t, int64(8), v)

	v, err = Eval("2#1010", mapVars{})
	require.NoError(t, err)
	require.Equal(t, int64(10), v)
}

func TestEval_ShiftMasksCountTo63(t *testing.T) {
	v, err := Eval("1 << 64", mapVars{})
	require.NoError(t, err)
	require.Equal(t, int64(1), v, "shift count masks with & 63, so <<64 behaves like <<0")
}

func TestEval_PrePostIncrement(t *testing.T) {
	vars := mapVars{"i": "5"}
	v, err := Eval("i++", vars)
	require.NoError(t, err)
	require.Equal(t, int64(5), v, "postfix returns the old value")
	require.Equal(t, "6", vars["i"])

	v, err = Eval("++i", vars)
	require.NoError(t, err)
	require.Equal(t, int64(7), v, "prefix returns the new value")
}

func TestEval_CompoundAssignment(t *testing.T) {
	vars := mapVars{"x": "10"}
	v, err := Eval("x += 5", vars)
	require.NoError(t, err)
	require.Equal(t, int64(15), v)
}

func TestEval_LogicalShortCircuit(t *testing.T) {
	v, err := Eval("0 && 1/0", mapVars{})
	require.NoError(t, err)
	require.Equal(t, int64(0), v)
}

func TestEval_UnsetVariableIsZero(t *testing.T) {
	v, err := Eval("x + 1", mapVars{})
	require.NoError(t, err)
	require.Equal(t, int64(1), v)
}

func TestEval_TooDeepExpressionFails(t *testing.T) {
	expr := ""
	for i := 0; i < 300; i++ {
		expr += "("
	}
	expr += "1"
	for i := 0; i < 300; i++ {
		expr += ")"
	}
	_, err := Eval(expr, mapVars{})
	require.Error(t, err)
}

func TestEval_PowerRightAssociative(t *testing.T) {
	v, err := Eval("2 ** 3 ** 2", mapVars{})
	require.NoError(t, err)
	require.Equal(t, int64(512), v, "2**(3**2) == 512, not (2**3)**2 == 64")
}

// arrayVars adds IndexedVars on top of mapVars, modeling one indexed
// array per name.
type arrayVars struct {
	scalars mapVars
	arrays  map[string]map[int64]string
}

func newArrayVars() *arrayVars {
	return &arrayVars{scalars: mapVars{}, arrays: make(map[string]map[int64]string)}
}

func (a *arrayVars) GetArith(name string) (string, bool) { return a.scalars.GetArith(name) }
func (a *arrayVars) SetArith(name, value string) error   { return a.scalars.SetArith(name, value) }

func (a *arrayVars) GetArithIndex(name string, index int64) (string, bool) {
	arr, ok := a.arrays[name]
	if !ok {
		return "", false
	}
	v, ok := arr[index]
	return v, ok
}

func (a *arrayVars) SetArithIndex(name string, index int64, value string) error {
	if a.arrays[name] == nil {
		a.arrays[name] = make(map[int64]string)
	}
	a.arrays[name][index] = value
	return nil
}

func TestEval_ArrayElementRead(t *testing.T) {
	vars := newArrayVars()
	require.NoError(t, vars.SetArithIndex("a", 2, "7"))
	v, err := Eval("a[1+1] * 3", vars)
	require.NoError(t, err)
	require.Equal(t, int64(21), v)
}

func TestEval_ArrayElementAssignment(t *testing.T) {
	vars := newArrayVars()
	vars.scalars["i"] = "4"
	v, err := Eval("a[i+1] = 9", vars)
	require.NoError(t, err)
	require.Equal(t, int64(9), v)
	got, ok := vars.GetArithIndex("a", 5)
	require.True(t, ok)
	require.Equal(t, "9", got)
}

func TestEval_ArrayElementCompoundAssignAndIncrement(t *testing.T) {
	vars := newArrayVars()
	require.NoError(t, vars.SetArithIndex("a", 0, "10"))
	v, err := Eval("a[0] += 5", vars)
	require.NoError(t, err)
	require.Equal(t, int64(15), v)

	v, err = Eval("a[0]++", vars)
	require.NoError(t, err)
	require.Equal(t, int64(15), v, "postfix returns the old value")
	got, _ := vars.GetArithIndex("a", 0)
	require.Equal(t, "16", got)

	v, err = Eval("++a[0]", vars)
	require.NoError(t, err)
	require.Equal(t, int64(17), v)
}

func TestEval_ArraySubscriptSideEffectRunsOnce(t *testing.T) {
	vars := newArrayVars()
	vars.scalars["i"] = "0"
	require.NoError(t, vars.SetArithIndex("a", 1, "3"))
	// A read-only element reference whose subscript mutates: the
	// speculative assignment-lvalue parse must not evaluate it twice.
	v, err := Eval("a[++i] + i", vars)
	require.NoError(t, err)
	require.Equal(t, int64(4), v)
	require.Equal(t, "1", vars.scalars["i"])
}

func TestEval_MissingBracketFails(t *testing.T) {
	_, err := Eval("a[1 + 2", newArrayVars())
	require.Error(t, err)
}
