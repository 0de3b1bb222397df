// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package vars

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidIdentifier(t *testing.T) {
	require.True(t, ValidIdentifier("_foo"))
	require.True(t, ValidIdentifier("FOO_1"))
	require.False(t, ValidIdentifier("1foo"))
	require.False(t, ValidIdentifier("foo-bar"))
}

func TestSet_And_Lookup_Global(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("x", "1"))
	v, ok := s.Lookup("x")
	require.True(t, ok)
	require.Equal(t, "1", v.Scalar)
}

func TestReadonly_RejectsMutationAndUnset(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("RO", "v"))
	s.SetAttr("RO", AttrReadonly)
	require.Error(t, s.Set("RO", "other"))
	require.Error(t, s.Unset("RO"))
	v, ok := s.Lookup("RO")
	require.True(t, ok)
	require.Equal(t, "v", v.Scalar, "readonly variable must keep its original value")
}

func TestUppercaseAttr_CoercesOnAssignment(t *testing.T) {
	s := New()
	s.SetAttr("U", AttrUppercase)
	require.NoError(t, s.Set("U", "abc"))
	v, _ := s.Lookup("U")
	require.Equal(t, "ABC", v.Scalar)
}

func TestIntegerAttr_EvaluatesRHSArithmetically(t *testing.T) {
	s := New()
	s.SetAttr("N", AttrInteger)
	require.NoError(t, s.Set("N", "2+3"))
	v, _ := s.Lookup("N")
	require.Equal(t, "5", v.Scalar, "declare -i must store the arithmetic result, not the literal text")
}

func TestIntegerAttr_RejectsUnparseableExpression(t *testing.T) {
	s := New()
	s.SetAttr("N", AttrInteger)
	require.Error(t, s.Set("N", "2+"))
}

func TestReadonly_UnsetFromNestedScope_WalksToOuterBinding(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("RO", "1"))
	s.SetAttr("RO", AttrReadonly)
	s.PushScope("f")
	require.Error(t, s.Unset("RO"), "unset must reject a name that resolves to a readonly binding in an outer scope")
	s.PopScope()
	v, ok := s.Lookup("RO")
	require.True(t, ok)
	require.Equal(t, "1", v.Scalar)
}

func TestFunctionScope_DynamicWrite_ResolvesOuterBinding(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("x", "outer"))
	s.PushScope("f")
	require.NoError(t, s.Set("x", "inner"))
	v, ok := s.Lookup("x")
	require.True(t, ok)
	require.Equal(t, "inner", v.Scalar)
	s.PopScope()
	v, ok = s.Lookup("x")
	require.True(t, ok)
	require.Equal(t, "inner", v.Scalar, "bare assignment in function writes through to the outer scope")
}

func TestLocal_ShadowsOuterBinding(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("x", "outer"))
	s.PushScope("f")
	require.NoError(t, s.SetLocal("x", "inner"))
	v, _ := s.Lookup("x")
	require.Equal(t, "inner", v.Scalar)
	s.PopScope()
	v, _ = s.Lookup("x")
	require.Equal(t, "outer", v.Scalar, "local binding must not leak to the outer scope on return")
}

func TestUnset_InFunction_InsertsTombstone(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("x", "outer"))
	s.PushScope("f")
	require.NoError(t, s.Unset("x"))
	_, ok := s.Lookup("x")
	require.False(t, ok, "tombstone must hide the outer binding until function exit")
	s.PopScope()
	v, ok := s.Lookup("x")
	require.True(t, ok)
	require.Equal(t, "outer", v.Scalar)
}

func TestIndexedArray_NegativeIndexReadsFromEnd(t *testing.T) {
	s := New()
	s.DeclareIndexedArray("arr", []string{"a", "b", "c"}, 0)
	v, _ := s.Lookup("arr")
	got, ok := v.IndexedAt(-1)
	require.True(t, ok)
	require.Equal(t, "c", got)
}

func TestAppendIndexed_ExtendsFromMaxPlusOne(t *testing.T) {
	s := New()
	s.DeclareIndexedArray("arr", []string{"a", "b"}, 0)
	require.NoError(t, s.AppendIndexed("arr", []string{"c", "d"}))
	v, _ := s.Lookup("arr")
	require.Equal(t, 4, v.Length())
	got, _ := v.IndexedAt(3)
	require.Equal(t, "d", got)
}

func TestAssocArray_SetAndKeys(t *testing.T) {
	s := New()
	require.NoError(t, s.SetAssoc("m", "k1", "v1"))
	require.NoError(t, s.SetAssoc("m", "k2", "v2"))
	v, _ := s.Lookup("m")
	require.ElementsMatch(t, []string{"k1", "k2"}, v.AssocKeys())
}

func TestNamesWithPrefix(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("FOO_A", "1"))
	require.NoError(t, s.Set("FOO_B", "2"))
	require.NoError(t, s.Set("BAR", "3"))
	require.ElementsMatch(t, []string{"FOO_A", "FOO_B"}, s.NamesWithPrefix("FOO_"))
}

func TestExportedEnviron_OnlyIncludesExported(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("E", "1"))
	s.SetAttr("E", AttrExported)
	require.NoError(t, s.Set("N", "2"))
	env := s.ExportedEnviron()
	require.Contains(t, env, "E=1")
	require.NotContains(t, env, "N=2")
}

func TestNameref_ReadAndWriteIndirect(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("target", "before"))
	require.NoError(t, s.DeclareNameref("ref", "target"))

	v, ok := s.Lookup("ref")
	require.True(t, ok)
	require.Equal(t, "before", v.Scalar)

	require.NoError(t, s.Set("ref", "after"))
	v, ok = s.Lookup("target")
	require.True(t, ok)
	require.Equal(t, "after", v.Scalar)

	direct, ok := s.LookupDirect("ref")
	require.True(t, ok)
	require.True(t, direct.Attrs.Has(AttrNameref))
	require.Equal(t, "target", direct.Scalar)
}

func TestNameref_UnsetGoesThroughReference(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("target", "v"))
	require.NoError(t, s.DeclareNameref("ref", "target"))
	require.NoError(t, s.Unset("ref"))
	_, ok := s.Lookup("target")
	require.False(t, ok)
}

func TestNameref_CircularChainReadsAsUnset(t *testing.T) {
	s := New()
	require.NoError(t, s.DeclareNameref("a", "b"))
	require.NoError(t, s.DeclareNameref("b", "a"))
	_, ok := s.Lookup("a")
	require.False(t, ok, "a circular nameref chain must not loop and must read as unset")
}

func TestNameref_FirstAssignmentSetsTargetValue(t *testing.T) {
	s := New()
	s.SetAttr("ref", AttrNameref)
	require.NoError(t, s.Set("ref", "target"))
	require.NoError(t, s.Set("ref", "value"))
	v, ok := s.Lookup("target")
	require.True(t, ok)
	require.Equal(t, "value", v.Scalar)
}

func TestArithIndex_ReadWriteElements(t *testing.T) {
	s := New()
	s.DeclareIndexedArray("arr", []string{"1", "2", "3"}, 0)
	got, ok := s.GetArithIndex("arr", 1)
	require.True(t, ok)
	require.Equal(t, "2", got)

	require.NoError(t, s.SetArithIndex("arr", 1, "20"))
	got, ok = s.GetArithIndex("arr", 1)
	require.True(t, ok)
	require.Equal(t, "20", got)

	require.NoError(t, s.Set("sc", "7"))
	got, ok = s.GetArithIndex("sc", 0)
	require.True(t, ok)
	require.Equal(t, "7", got)
}
