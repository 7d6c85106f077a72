package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeItems(n int) []PageItem {
	items := make([]PageItem, n)
	for i := range items {
		items[i] = PageItem{ID: fmt.Sprintf("MED%03d", i+1), Label: fmt.Sprintf("Item %d", i+1)}
	}
	return items
}

func TestNewPageCursor(t *testing.T) {
	cursor := NewPageCursor(makeItems(12), 5)
	assert.Equal(t, 1, cursor.CurrentPage)
	assert.Equal(t, 3, cursor.TotalPages)
	assert.Len(t, cursor.PageItems(), 5)

	// An empty list still renders one (empty) page
	empty := NewPageCursor(nil, 5)
	assert.Equal(t, 1, empty.TotalPages)
	assert.Empty(t, empty.PageItems())
}

func TestCursorNavigation(t *testing.T) {
	cursor := NewPageCursor(makeItems(12), 5)

	// "previous" on page 1 is rejected and the page is unchanged
	require.Error(t, cursor.Back())
	assert.Equal(t, 1, cursor.CurrentPage)

	// "next" advances and the snapshot reflects items 6-10
	require.NoError(t, cursor.Advance())
	assert.Equal(t, 2, cursor.CurrentPage)
	page := cursor.PageItems()
	require.Len(t, page, 5)
	assert.Equal(t, "Item 6", page[0].Label)
	assert.Equal(t, "Item 10", page[4].Label)

	// Last page is short and a further "next" is rejected
	require.NoError(t, cursor.Advance())
	assert.Len(t, cursor.PageItems(), 2)
	require.Error(t, cursor.Advance())
	assert.Equal(t, 3, cursor.CurrentPage)
}

func TestCursorSelection(t *testing.T) {
	cursor := NewPageCursor(makeItems(12), 5)

	// Selection is positional on the current page, not a global index
	item, err := cursor.Select(3)
	require.NoError(t, err)
	assert.Equal(t, "Item 3", item.Label)

	require.NoError(t, cursor.Advance())
	item, err = cursor.Select(3)
	require.NoError(t, err)
	assert.Equal(t, "Item 8", item.Label)

	// Out-of-range picks are rejected
	_, err = cursor.Select(0)
	assert.Error(t, err)
	_, err = cursor.Select(6)
	assert.Error(t, err)

	// The short last page only accepts its own two rows
	require.NoError(t, cursor.Advance())
	_, err = cursor.Select(3)
	assert.Error(t, err)
	item, err = cursor.Select(2)
	require.NoError(t, err)
	assert.Equal(t, "Item 12", item.Label)
}

func TestParsePageCommand(t *testing.T) {
	tests := []struct {
		input string
		want  PageCommand
		ok    bool
	}{
		{input: "next", want: PageCommand{Kind: PageCommandNext}, ok: true},
		{input: "N", want: PageCommand{Kind: PageCommandNext}, ok: true},
		{input: "previous", want: PageCommand{Kind: PageCommandPrevious}, ok: true},
		{input: "prev", want: PageCommand{Kind: PageCommandPrevious}, ok: true},
		{input: " P ", want: PageCommand{Kind: PageCommandPrevious}, ok: true},
		{input: "3", want: PageCommand{Kind: PageCommandSelect, Selection: 3}, ok: true},
		{input: "12", want: PageCommand{Kind: PageCommandSelect, Selection: 12}, ok: true},
		{input: "-1", ok: false},
		{input: "nope", ok: false},
		{input: "show me more", ok: false},
		{input: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParsePageCommand(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
