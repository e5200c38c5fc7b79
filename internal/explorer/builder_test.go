package explorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBuilderDefaults(t *testing.T) {
	e := NewBuilder().Build()
	assert.Equal(t, SortByName, e.sortMode)
	assert.Nil(t, e.groupDirs)
	assert.Equal(t, 16, e.stackSize)
}

func TestBuilderWithAllOptions(t *testing.T) {
	g := GroupDirsLast
	e := NewBuilder().
		WithHiddenFiles(true).
		WithFileSorting(SortByModifyTime).
		WithGroupDirs(&g).
		WithStackSize(4).
		WithFormatter("{NAME}").
		Build()

	assert.True(t, e.showHidden)
	assert.Equal(t, SortByModifyTime, e.sortMode)
	assert.Equal(t, &g, e.groupDirs)
	assert.Equal(t, 4, e.stackSize)
	assert.NotNil(t, e.formatter)
}

func TestBuilderWithEmptyFormatterLeavesItUnset(t *testing.T) {
	e := NewBuilder().WithFormatter("").Build()
	assert.Nil(t, e.formatter)
}
