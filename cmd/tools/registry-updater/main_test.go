package main

import (
	"os"
	"path/filepath"
	"testing"

	"webhook-search/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRegistry(t *testing.T) string {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "activities.json")
	require.NoError(t, saveRegistry(reg, path))
	return path
}

func TestUpdateActivity(t *testing.T) {
	registryPath = writeRegistry(t)

	require.NoError(t, updateActivity(registry.SearchActivityID, "timeout", "45s"))
	require.NoError(t, updateActivity(registry.SearchActivityID, "retries", "1"))

	reg, err := registry.LoadRegistry(registryPath)
	require.NoError(t, err)
	act, err := reg.Find(registry.SearchActivityID)
	require.NoError(t, err)
	assert.Equal(t, "45s", act.Timeout)
	assert.Equal(t, 1, act.Retries)
}

func TestUpdateActivity_Rejected(t *testing.T) {
	registryPath = writeRegistry(t)
	before, err := os.ReadFile(registryPath)
	require.NoError(t, err)

	assert.ErrorContains(t, updateActivity(registry.SearchActivityID, "timeout", "soon"), "invalid timeout")
	assert.ErrorContains(t, updateActivity(registry.SearchActivityID, "retries", "-1"), "negative retries")
	assert.ErrorContains(t, updateActivity(registry.SearchActivityID, "color", "red"), "unknown field")
	assert.ErrorContains(t, updateActivity("missing", "version", "2"), "not found")

	after, err := os.ReadFile(registryPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
