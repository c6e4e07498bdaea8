package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBillFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestIngestCmd_Use(t *testing.T) {
	assert.Equal(t, "ingest [file...]", ingestCmd.Use)
}

func TestIngestCmd_Short(t *testing.T) {
	assert.Equal(t, "Chunk, embed and index bill files", ingestCmd.Short)
}

func TestIngestCmd_RequiresAtLeastOneArg(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestIngestCmd_ExecutesWithTextFile(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	path := writeBillFile(t, "hr1-119.txt", "Mock Act\n\nSEC. 1. Short title.")

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ingest", path})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Ingested hr1-119")
	assert.Contains(t, buf.String(), "3 chunks")
}

func TestIngestCmd_IDOverride(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	path := writeBillFile(t, "download.txt", "Mock Act\ntext")

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ingest", "--id", "hr99-119", path})
	defer func() {
		rootCmd.SetArgs(nil)
		ingestID = ""
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Ingested hr99-119")
}

func TestIngestCmd_IDOverrideRejectedForMultipleFiles(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	a := writeBillFile(t, "a.txt", "A\ntext")
	b := writeBillFile(t, "b.txt", "B\ntext")

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest", "--id", "x", a, b})
	defer func() {
		rootCmd.SetArgs(nil)
		ingestID = ""
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "single file only")
}

func TestIngestCmd_MissingFile(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest", "/non/existent/bill.txt"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
}

func TestIngestCmd_ServiceNotConfigured(t *testing.T) {
	oldService := pipelineService
	pipelineService = nil
	defer func() {
		pipelineService = oldService
	}()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest", "bill.txt"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline service not configured")
}
