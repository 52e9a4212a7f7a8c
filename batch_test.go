package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBatchFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseBatchFile(t *testing.T) {
	path := writeBatchFile(t, "3 1 2\n1 2 3\n5 4\n4 5\n")

	cases, err := parseBatchFile(path)
	require.NoError(t, err)
	require.Len(t, cases, 2)

	assert.Equal(t, []string{"3", "1", "2"}, cases[0].args)
	assert.Equal(t, "1 2 3", cases[0].expected)
	assert.Equal(t, []string{"5", "4"}, cases[1].args)
	assert.Equal(t, "4 5", cases[1].expected)
}

func TestParseBatchFileTruncatesArgs(t *testing.T) {
	path := writeBatchFile(t, "1 2 3 4 5 6 7 8 9 10\nexpected\n")

	cases, err := parseBatchFile(path)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Len(t, cases[0].args, maxBatchArgs)
}

func TestParseBatchFileOddLineCount(t *testing.T) {
	path := writeBatchFile(t, "1 2 3\nexpected\ndangling args\n")

	_, err := parseBatchFile(path)
	assert.Error(t, err)
}

func TestParseBatchFileMissing(t *testing.T) {
	_, err := parseBatchFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

// suspicious = fail_lines \ success_lines, exactly.
func TestSuspiciousLines(t *testing.T) {
	d := NewBatchDriver("prog")
	for _, l := range []int{3, 4, 5, 9} {
		d.success[l] = struct{}{}
	}
	for _, l := range []int{3, 4, 7, 9, 12} {
		d.fail[l] = struct{}{}
	}

	assert.Equal(t, []int{7, 12}, d.suspiciousLines())
}

func TestSuspiciousLinesEmptyWhenAllPass(t *testing.T) {
	d := NewBatchDriver("prog")
	d.success[1] = struct{}{}
	d.success[2] = struct{}{}

	assert.Empty(t, d.suspiciousLines())
}

func TestSuspiciousLinesAllFailing(t *testing.T) {
	d := NewBatchDriver("prog")
	d.fail[8] = struct{}{}
	d.fail[2] = struct{}{}

	assert.Equal(t, []int{2, 8}, d.suspiciousLines())
}

func TestReadFirstLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.txt")
	require.NoError(t, os.WriteFile(path, []byte("42\nrest\n"), 0o644))

	assert.Equal(t, "42", readFirstLine(path))
	assert.Equal(t, "", readFirstLine(path+".missing"))
}
