package docstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_EmptyInput(t *testing.T) {
	doc, err := Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, doc)

	doc, err = Decode([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestDecode_NormalizesMissingLevels(t *testing.T) {
	doc, err := Decode([]byte(`{"alice": {"avatar": "a.png"}, "bob": null}`))
	require.NoError(t, err)

	require.Contains(t, doc, "alice")
	assert.Equal(t, "a.png", doc["alice"].Avatar)
	assert.NotNil(t, doc["alice"].Levels)
	require.Contains(t, doc, "bob")
	assert.NotNil(t, doc["bob"].Levels)
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	assert.Error(t, err)
}

func TestEncodeDecode_KeepsNumbersExact(t *testing.T) {
	in := []byte(`{"alice":{"avatar":"","levels":[{"id":"7","seed":12345678901234567890}]}}`)
	doc, err := Decode(in)
	require.NoError(t, err)

	out, err := Encode(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), "12345678901234567890")
	assert.Equal(t, byte('\n'), out[len(out)-1])
}

func TestLevelEntry_ID(t *testing.T) {
	assert.Equal(t, "12", LevelEntry{FieldID: "12"}.ID())
	assert.Equal(t, "12", LevelEntry{FieldID: json.Number("12")}.ID())
	assert.Equal(t, "12", LevelEntry{FieldID: float64(12)}.ID())
	assert.Equal(t, "12", LevelEntry{FieldID: 12}.ID())
	assert.Equal(t, "", LevelEntry{}.ID())
}

func TestLevelEntry_DataDropsBookkeeping(t *testing.T) {
	e := LevelEntry{FieldID: "1", FieldPublishAt: "x", FieldUpdatedAt: "y", "title": "Hill"}
	assert.Equal(t, map[string]any{"title": "Hill"}, e.Data())
	assert.False(t, e.Unpublished())

	e[FieldUnpublishedAt] = "z"
	assert.Equal(t, map[string]any{"title": "Hill"}, e.Data())
	assert.True(t, e.Unpublished())
}

func TestUserEntry_UpsertReplacesInPlace(t *testing.T) {
	u := &UserEntry{}
	assert.False(t, u.Upsert(LevelEntry{FieldID: "1", "v": 1}))
	assert.False(t, u.Upsert(LevelEntry{FieldID: "2", "v": 1}))
	assert.True(t, u.Upsert(LevelEntry{FieldID: "1", "v": 2}))

	require.Len(t, u.Levels, 2)
	assert.Equal(t, "1", u.Levels[0].ID())
	assert.Equal(t, 2, u.Levels[0]["v"])
	assert.Equal(t, "2", u.Levels[1].ID())
}

func TestUserEntry_RemoveAllMatches(t *testing.T) {
	u := &UserEntry{Levels: []LevelEntry{
		{FieldID: "1"}, {FieldID: "2"}, {FieldID: "1"},
	}}

	assert.Equal(t, 2, u.Remove("1"))
	require.Len(t, u.Levels, 1)
	assert.Equal(t, "2", u.Levels[0].ID())

	assert.Equal(t, 0, u.Remove("missing"))
}

func TestDocument_EnsureUserAndUsernames(t *testing.T) {
	doc := Document{}
	a := doc.EnsureUser("zed")
	a.Avatar = "z.png"
	doc.EnsureUser("amy")

	assert.Same(t, a, doc.EnsureUser("zed"))
	assert.Equal(t, []string{"amy", "zed"}, doc.Usernames())
}
