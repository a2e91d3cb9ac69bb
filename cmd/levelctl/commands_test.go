package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"level-publish-system/docstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const publishBody = "### Action Type\npublish_level\n\n### Payload\n```json\n{\"data\":{\"title\":\"Sky\"}}\n```\n"

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate_PrintsAction(t *testing.T) {
	out, err := execute(t, publishBody, "validate")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "publish_level", got["kind"])
}

func TestValidate_RejectsUnknownAction(t *testing.T) {
	_, err := execute(t, "### Action Type\nfoo\n\n### Payload\n{}\n", "validate")
	assert.ErrorContains(t, err, "unknown action type")
}

func TestIngest_WritesDocument(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "levels.json")
	bodyPath := filepath.Join(dir, "issue.md")
	require.NoError(t, os.WriteFile(bodyPath, []byte(publishBody), 0o644))
	t.Setenv("DOCSTORE_BACKEND", "file")
	t.Setenv("DOCSTORE_PATH", docPath)

	_, err := execute(t, "", "ingest", "--body-file", bodyPath, "--author", "octo", "--number", "42")
	require.NoError(t, err)

	raw, err := os.ReadFile(docPath)
	require.NoError(t, err)
	doc, err := docstore.Decode(raw)
	require.NoError(t, err)
	entry, ok := doc["octo"].Find("42")
	require.True(t, ok)
	assert.Equal(t, "Sky", entry["title"])
}

func TestIngest_RequiresAuthor(t *testing.T) {
	_, err := execute(t, publishBody, "ingest", "--body-file", "-", "--number", "1")
	assert.ErrorContains(t, err, "author")
}
