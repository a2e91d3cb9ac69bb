package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_ScanVariants(t *testing.T) {
	var j JSON
	require.NoError(t, j.Scan([]byte(`{"a":1}`)))
	assert.Equal(t, `{"a":1}`, string(j))

	require.NoError(t, j.Scan(`[1,2]`))
	assert.Equal(t, `[1,2]`, string(j))

	require.NoError(t, j.Scan(int64(5)))
	assert.Equal(t, `5`, string(j))

	require.NoError(t, j.Scan(nil))
	assert.Nil(t, j)
}

func TestJSON_EmbedsRawInLevel(t *testing.T) {
	l := Level{ID: "1", Data: JSON(`{"title":"Hill"}`)}
	out, err := json.Marshal(l)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"data":{"title":"Hill"}`)

	var back Level
	require.NoError(t, json.Unmarshal(out, &back))
	assert.JSONEq(t, `{"title":"Hill"}`, string(back.Data))
}

func TestJSON_EmptyMarshalsAsNull(t *testing.T) {
	out, err := json.Marshal(struct {
		Data JSON `json:"data"`
	}{})
	require.NoError(t, err)
	assert.Equal(t, `{"data":null}`, string(out))
}

func TestJSON_Object(t *testing.T) {
	obj, ok := JSON(` {"title":"Hill"}`).Object()
	require.True(t, ok)
	assert.Equal(t, "Hill", obj["title"])

	_, ok = JSON(`"hello"`).Object()
	assert.False(t, ok)
}
