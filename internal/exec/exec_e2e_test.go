// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package exec

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aleutianshell/ash/internal/parser"
	"github.com/aleutianshell/ash/internal/shellio"
)

// runScript drives one program through the full lexer -> parser ->
// expander -> executor pipeline in-process and returns its captured
// stdout and exit status. Constructs that self-reexec onto a fresh
// `ash` binary (multi-stage pipelines, subshells used as a pipeline
// stage, backgrounded jobs — see the package doc) are out of reach of an
// in-process test and are exercised by shell-script integration tests
// run against the built binary instead; everything below stays within
// what a single Executor can run in one goroutine.
func runScript(t *testing.T, src string) (stdout string, status int) {
	t.Helper()

	outFile, err := os.CreateTemp(t.TempDir(), "stdout")
	require.NoError(t, err)
	defer outFile.Close()

	streams := shellio.Streams{Stdin: os.Stdin, Stdout: outFile, Stderr: os.Stderr}
	ex := New("ash-test", nil, streams, int(os.Stdin.Fd()))

	top, err := parser.Parse(src, parser.ModeBash)
	require.NoError(t, err, "parse: %s", src)

	status, runErr := ex.Run(top)
	require.NoError(t, runErr, "run: %s", src)

	_, err = outFile.Seek(0, 0)
	require.NoError(t, err)
	buf := make([]byte, 64*1024)
	n, _ := outFile.Read(buf)
	return string(buf[:n]), status
}

func TestE2E_SimpleCommandAndExitStatus(t *testing.T) {
	out, status := runScript(t, `echo hello world`)
	require.Equal(t, "hello world\n", out)
	require.Equal(t, 0, status)
}

func TestE2E_AndOrShortCircuit(t *testing.T) {
	out, status := runScript(t, `false || echo fallback`)
	require.Equal(t, "fallback\n", out)
	require.Equal(t, 0, status)

	out, status = runScript(t, `true && echo ok`)
	require.Equal(t, "ok\n", out)
	require.Equal(t, 0, status)
}

func TestE2E_IfElifElse(t *testing.T) {
	out, _ := runScript(t, `
x=2
if [ "$x" -eq 1 ]; then
  echo one
elif [ "$x" -eq 2 ]; then
  echo two
else
  echo other
fi`)
	require.Equal(t, "two\n", out)
}

func TestE2E_ForLoopOverWords(t *testing.T) {
	out, _ := runScript(t, `
for w in a b c; do
  echo "$w"
done`)
	require.Equal(t, "a\nb\nc\n", out)
}

func TestE2E_WhileLoopWithBreak(t *testing.T) {
	out, _ := runScript(t, `
i=0
while true; do
  i=$((i+1))
  if [ "$i" -ge 3 ]; then
    break
  fi
  echo "$i"
done`)
	require.Equal(t, "1\n2\n", out)
}

func TestE2E_CaseStatement(t *testing.T) {
	out, _ := runScript(t, `
for w in cat dog fish; do
  case "$w" in
    cat|dog) echo pet ;;
    *) echo other ;;
  esac
done`)
	require.Equal(t, "pet\npet\nother\n", out)
}

func TestE2E_FunctionDefAndCall(t *testing.T) {
	out, status := runScript(t, `
greet() {
  echo "hi $1"
  return 3
}
greet world
echo "status=$?"`)
	require.Equal(t, "hi world\nstatus=3\n", out)
	require.Equal(t, 0, status)
}

func TestE2E_FuncNameStack(t *testing.T) {
	out, _ := runScript(t, `
inner() { echo "$FUNCNAME"; }
outer() { inner; echo "$FUNCNAME"; }
outer
echo "top=[$FUNCNAME]"`)
	require.Equal(t, "inner\nouter\ntop=[]\n", out)
}

func TestE2E_ArithmeticEvaluation(t *testing.T) {
	out, _ := runScript(t, `
declare -i n
n=2+3
echo "$n"
(( n = n * 2 ))
echo "$n"`)
	require.Equal(t, "5\n10\n", out)
}

func TestE2E_ParameterExpansionDefaults(t *testing.T) {
	out, _ := runScript(t, `
unset UNSET_VAR
echo "${UNSET_VAR:-fallback}"
set -- one two three
echo "$#: $@"`)
	require.Equal(t, "fallback\n3: one two three\n", out)
}

func TestE2E_ReadonlyRejectsAssignmentAndUnset(t *testing.T) {
	out, status := runScript(t, `
readonly RO=locked
RO=other 2>/dev/null
echo "$RO"
unset RO 2>/dev/null
echo "$RO"`)
	require.Equal(t, "locked\nlocked\n", out)
	require.Equal(t, 0, status)
}

func TestE2E_ReadonlyAcrossFunctionScope(t *testing.T) {
	_, status := runScript(t, `
readonly RO=locked
f() { unset RO; }
f
exit $?`)
	require.NotEqual(t, 0, status, "unset of an outer readonly binding from inside a function must fail")
}

func TestE2E_GetoptsParsesFlags(t *testing.T) {
	out, _ := runScript(t, `
parse() {
  local opt
  while getopts "ab:" opt "$@"; do
    case "$opt" in
      a) echo "a" ;;
      b) echo "b=$OPTARG" ;;
    esac
  done
}
parse -a -b val`)
	require.Equal(t, "a\nb=val\n", out)
}

func TestE2E_TestBuiltinStringAndFileOps(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "test-op")
	require.NoError(t, err)
	f.Close()

	out, _ := runScript(t, `
if [ -f "`+f.Name()+`" ]; then echo exists; fi
if [ "" = "" ]; then echo eq; fi
if [ 1 -lt 2 ]; then echo lt; fi`)
	require.Equal(t, "exists\neq\nlt\n", out)
}

func TestE2E_TrapRunsOnExit(t *testing.T) {
	out, _ := runScript(t, `
trap 'echo cleanup' EXIT
echo body`)
	require.True(t, strings.HasSuffix(out, "cleanup\n"), "expected EXIT trap output, got %q", out)
	require.Contains(t, out, "body\n")
}

func TestE2E_ArrayInitElementAndAppend(t *testing.T) {
	out, _ := runScript(t, `
arr=(a b c)
echo "${#arr[@]} ${arr[@]}"
arr[1]=B
arr+=(d)
echo "${arr[@]}"
echo "${arr[0]} ${arr[-1]}"`)
	require.Equal(t, "3 a b c\na B c d\na d\n", out)
}

func TestE2E_ArrayInitExplicitIndices(t *testing.T) {
	out, _ := runScript(t, `
arr=([2]=two three [10]=ten)
echo "${!arr[@]}"
echo "${arr[3]}"`)
	require.Equal(t, "2 3 10\nthree\n", out)
}

func TestE2E_BracedPositionalParameters(t *testing.T) {
	out, _ := runScript(t, `
set -- alpha beta gamma
echo "${1} ${3}"
echo "${2:-missing} ${9:-missing}"`)
	require.Equal(t, "alpha gamma\nbeta missing\n", out)
}

func TestE2E_ArraySliceOperator(t *testing.T) {
	out, _ := runScript(t, `
arr=(a b c d e)
echo "${arr[@]:1:2}"
set -- one two three
echo "${@:2}"`)
	require.Equal(t, "b c\ntwo three\n", out)
}

func TestE2E_AssignmentValueExpands(t *testing.T) {
	out, _ := runScript(t, `
base=/usr
dir=$base/local
echo "$dir"
msg='a  literal'
echo "$msg"`)
	require.Equal(t, "/usr/local\na  literal\n", out)
}

func TestE2E_HereDocFeedsRead(t *testing.T) {
	out, _ := runScript(t, "read first <<EOF\nhello world\nEOF\necho \"got=$first\"")
	require.Equal(t, "got=hello world\n", out)
}

func TestE2E_HereStringSplitsIntoVars(t *testing.T) {
	out, _ := runScript(t, `
read a b <<< "one two three"
echo "$a|$b"`)
	require.Equal(t, "one|two three\n", out)
}

func TestE2E_CompoundCommandRedirect(t *testing.T) {
	path := t.TempDir() + "/out"
	out, _ := runScript(t, `
{ echo first; echo second; } > `+path+`
read line < `+path+`
echo "read=$line"`)
	require.Equal(t, "read=first\n", out)
}

func TestE2E_NoclobberRefusesOverwrite(t *testing.T) {
	path := t.TempDir() + "/guarded"
	require.NoError(t, os.WriteFile(path, []byte("keep\n"), 0o644))
	out, _ := runScript(t, `
set -C
echo replaced > `+path+` 2>/dev/null
echo "status=$?"
echo forced >| `+path+`
read line < `+path+`
echo "now=$line"`)
	require.Equal(t, "status=1\nnow=forced\n", out)
}

func TestE2E_EchoEscapeInterpretation(t *testing.T) {
	out, _ := runScript(t, `echo -e 'a\tb\x41\0101'`)
	require.Equal(t, "a\tbAA\n", out)
}

func TestE2E_ArithmeticArrayElements(t *testing.T) {
	out, _ := runScript(t, `
arr=(1 2 3)
(( arr[1] = arr[1] * 10 ))
echo "${arr[1]}"
(( arr[2]++ ))
i=0
(( arr[i+2] += 5 ))
echo "${arr[2]}"
echo $((arr[0] + arr[1] + arr[2]))`)
	require.Equal(t, "20\n9\n30\n", out)
}

func TestE2E_NamerefIndirection(t *testing.T) {
	out, _ := runScript(t, `
x=1
declare -n ref=x
ref=5
echo "$x $ref"
setvar() {
  local -n out=$1
  out=assigned
}
setvar y
echo "$y"`)
	require.Equal(t, "5 5\nassigned\n", out)
}

func TestE2E_CaseContinueMatching(t *testing.T) {
	out, _ := runScript(t, `
case abc in
  a*) echo one ;;&
  *c) echo two ;;
  *) echo three ;;
esac`)
	require.Equal(t, "one\ntwo\n", out)
}
