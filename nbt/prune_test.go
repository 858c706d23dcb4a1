package nbt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPruneDefaultRules(t *testing.T) {
	root := testChunkTree()
	rules := DefaultRules()

	// Two sections carry light arrays, so 2x SkyLight + 2x BlockLight
	// plus Heightmaps and isLightOn.
	removed := Prune(root, rules)
	assert.Equal(t, 6, removed)

	assert.Nil(t, root.Get("Heightmaps"))
	assert.Nil(t, root.Get("isLightOn"))
	for _, section := range root.Get("sections").List {
		assert.Nil(t, section.Get("SkyLight"))
		assert.Nil(t, section.Get("BlockLight"))
	}
}

func TestPrunePreservesPrimaryData(t *testing.T) {
	root := testChunkTree()
	Prune(root, DefaultRules())

	assert.NotNil(t, root.Get("DataVersion"))
	assert.NotNil(t, root.Get("Status"))
	assert.NotNil(t, root.Get("InhabitedTime"))
	require.NotNil(t, root.Get("sections"))
	for _, section := range root.Get("sections").List {
		assert.NotNil(t, section.Get("Y"))
		assert.NotNil(t, section.Get("block_states"))
		assert.NotNil(t, section.Get("biomes"))
	}
}

func TestPruneIdempotent(t *testing.T) {
	root := testChunkTree()
	rules := DefaultRules()

	first := Prune(root, rules)
	require.Positive(t, first)

	onceEncoded, err := Encode("", root)
	require.NoError(t, err)

	second := Prune(root, rules)
	assert.Zero(t, second)

	twiceEncoded, err := Encode("", root)
	require.NoError(t, err)
	assert.Equal(t, onceEncoded, twiceEncoded)
}

func TestPruneMissingKeysIsNoOp(t *testing.T) {
	root := testChunkTree()
	rules, err := ParseRules([]string{"NoSuchKey", "sections.*.NoSuchLight", "a.b.c.d"})
	require.NoError(t, err)

	before, err := Encode("", root)
	require.NoError(t, err)
	removed := Prune(root, rules)
	assert.Zero(t, removed)
	after, err := Encode("", root)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestPruneCaseSensitive(t *testing.T) {
	root := testChunkTree()
	rules, err := ParseRules([]string{"heightmaps", "ISLIGHTON"})
	require.NoError(t, err)

	removed := Prune(root, rules)
	assert.Zero(t, removed)
	assert.NotNil(t, root.Get("Heightmaps"))
	assert.NotNil(t, root.Get("isLightOn"))
}

func TestPruneWildcardOnlyMatchesLists(t *testing.T) {
	root := testChunkTree()
	rules, err := ParseRules([]string{"*.SkyLight", "Heightmaps.*"})
	require.NoError(t, err)

	removed := Prune(root, rules)
	assert.Zero(t, removed)
	assert.Equal(t, 2, root.Get("Heightmaps").Len())
}

func TestPruneNestedPathIntoCompound(t *testing.T) {
	root := testChunkTree()
	rules, err := ParseRules([]string{"Heightmaps.WORLD_SURFACE"})
	require.NoError(t, err)

	removed := Prune(root, rules)
	assert.Equal(t, 1, removed)
	assert.Nil(t, root.Get("Heightmaps").Get("WORLD_SURFACE"))
	assert.NotNil(t, root.Get("Heightmaps").Get("MOTION_BLOCKING"))
}

func TestParsePathErrors(t *testing.T) {
	for _, s := range []string{"", ".", "a..b", "a."} {
		_, err := ParsePath(s)
		assert.Error(t, err, "path %q", s)
	}
}

func TestPruneShrinksEncodedSize(t *testing.T) {
	root := testChunkTree()
	before, err := Encode("", root)
	require.NoError(t, err)

	Prune(root, DefaultRules())
	after, err := Encode("", root)
	require.NoError(t, err)

	// The light arrays alone are 4 KiB per section.
	assert.Less(t, len(after), len(before))
}
