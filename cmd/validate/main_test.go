package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ReportsCounts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A.txt"),
		[]byte("19850101\t-22\t-128\t-9999\n19850101\t10\t0\t0\nshort line\n"), 0o644))
	yield := filepath.Join(dir, "yield.dat")
	require.NoError(t, os.WriteFile(yield, []byte("1985\t225447\n"), 0o644))

	var out bytes.Buffer
	code := run(&out, dir, yield)

	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "[PASS] A.txt lines=3 parsed=2 skipped=1 sentinels=1 repeated_dates=1")
	assert.Contains(t, out.String(), "[PASS] yield.dat lines=1 parsed=1")
	assert.Contains(t, out.String(), "2 files checked, 0 failed")
}

func TestRun_MalformedFieldFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "B.txt"),
		[]byte("19850101\tabc\t0\t0\n"), 0o644))

	var out bytes.Buffer
	code := run(&out, dir, "")

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "[FAIL] B.txt")
	assert.Contains(t, out.String(), "line 1: malformed field")
}

func TestRun_MissingYieldFile(t *testing.T) {
	var out bytes.Buffer
	code := run(&out, "", filepath.Join(t.TempDir(), "nope.txt"))

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "source not found")
}
