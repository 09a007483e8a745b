package block

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogResolvesTerrainTypes(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	for _, name := range []string{NameBedrock, NameStone, NameIronOre, NameDiamondOre, NameDirt, NameGrass, NameSand, NameWater} {
		bt, err := c.ResolveName(name)
		require.NoError(t, err, name)

		byID, err := c.Resolve(bt.ID)
		require.NoError(t, err)
		// Типы интернированы: один и тот же указатель
		assert.Same(t, bt, byID)
	}

	water := c.MustResolveName(NameWater)
	assert.True(t, water.Transparent)
	assert.True(t, water.Liquid)
	assert.False(t, water.Opaque())
	assert.False(t, c.MustResolveName(NameStone).Transparent)
	assert.True(t, c.MustResolveName(NameStone).Opaque())
}

func TestResolveUnknown(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	_, err = c.Resolve(999)
	assert.ErrorIs(t, err, ErrUnknownBlockType)

	_, err = c.ResolveName("Unobtainium")
	assert.ErrorIs(t, err, ErrUnknownBlockType)

	assert.Panics(t, func() { c.MustResolveName("Unobtainium") })
	assert.Panics(t, func() { c.MustResolve(999) })
	assert.Equal(t, NameStone, c.MustResolve(2).Name)
}

func TestCatalogCell(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	cell, err := c.Cell(0, false)
	require.NoError(t, err)
	assert.True(t, cell.IsEmpty())

	stone := c.MustResolveName(NameStone)
	cell, err = c.Cell(stone.ID, true)
	require.NoError(t, err)
	bt, ok := cell.Type()
	require.True(t, ok)
	assert.Same(t, stone, bt)

	_, err = c.Cell(4242, true)
	assert.ErrorIs(t, err, ErrUnknownBlockType)
}

func TestAtlasFor(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	grass := c.MustResolveName(NameGrass)
	assert.Equal(t, AtlasCell{X: 0, Y: 0}, grass.AtlasFor(0))
	assert.Equal(t, AtlasCell{X: 2, Y: 0}, grass.AtlasFor(1))

	stone := c.MustResolveName(NameStone)
	for face := 0; face < FaceCount; face++ {
		assert.Equal(t, stone.Atlas[0], stone.AtlasFor(face))
	}
}

func TestNewCatalogRejectsInvalid(t *testing.T) {
	atlas := []AtlasCell{{X: 0, Y: 0}}

	_, err := NewCatalog([]BlockType{{ID: 0, Name: "Air", Atlas: atlas}})
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	_, err = NewCatalog([]BlockType{{ID: 1, Name: "A", Atlas: atlas}, {ID: 1, Name: "B", Atlas: atlas}})
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	_, err = NewCatalog([]BlockType{{ID: 1, Name: "A", Atlas: atlas}, {ID: 2, Name: "A", Atlas: atlas}})
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	_, err = NewCatalog([]BlockType{{ID: 1, Name: "A", Atlas: make([]AtlasCell, 3)}})
	assert.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestParseCatalogSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"missing blocks":   `{"version": 1}`,
		"atlas of three":   `{"version": 1, "blocks": [{"id": 1, "name": "A", "atlas": [{"x":0,"y":0},{"x":0,"y":0},{"x":0,"y":0}]}]}`,
		"unknown property": `{"version": 1, "blocks": [{"id": 1, "name": "A", "atlas": [{"x":0,"y":0}], "hardness": 3}]}`,
		"bad colour":       `{"version": 1, "blocks": [{"id": 1, "name": "A", "atlas": [{"x":0,"y":0}], "break_colors": ["red"]}]}`,
		"not json":         `{`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestCellSemantics(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	stone := Occupied(c.MustResolveName(NameStone))
	water := Occupied(c.MustResolveName(NameWater))

	assert.True(t, Empty.IsEmpty())
	assert.True(t, Empty.SeeThrough())
	assert.Equal(t, AirID, Empty.ID())
	assert.Equal(t, "air", Empty.String())
	assert.True(t, Occupied(nil).IsEmpty())

	assert.False(t, stone.SeeThrough())
	assert.True(t, water.SeeThrough())
	assert.True(t, water.SameType(Occupied(c.MustResolveName(NameWater))))
	assert.False(t, water.SameType(stone))
	assert.False(t, Empty.SameType(stone))
}

func TestFetchAndLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src", "blocks.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0755))
	require.NoError(t, os.WriteFile(src, defaultCatalogJSON, 0644))

	dst := filepath.Join(dir, "assets", "blocks.json")
	require.NoError(t, FetchCatalog(context.Background(), src, dst))

	c, err := LoadCatalog(dst)
	require.NoError(t, err)
	assert.Equal(t, 10, c.Len())
	assert.Len(t, c.Types(), 10)
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
