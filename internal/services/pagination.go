package services

import (
	"fmt"
	"strconv"
	"strings"
)

// Cursor namespaces. Only one cursor is authoritative per turn; starting a
// new top-level listing clears the others.
const (
	CursorProducts    = "products"
	CursorHealthcare  = "healthcare"
	CursorCart        = "cart"
	CursorDoctors     = "doctors"
	CursorSpecialties = "specialties"
	CursorLabTests    = "labtests"
)

// PageItem is one selectable row of a rendered list. Selection resolves
// against these snapshot rows, not a fresh query.
type PageItem struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Detail string  `json:"detail,omitempty"`
	Price  float64 `json:"price,omitempty"`
}

// PageCursor tracks a rendered list inside session data. Items holds the
// full cached snapshot; PageItems slices out the page currently on screen.
type PageCursor struct {
	CurrentPage int        `json:"current_page"`
	TotalPages  int        `json:"total_pages"`
	PageSize    int        `json:"page_size"`
	Items       []PageItem `json:"items"`
}

// NewPageCursor builds a cursor positioned on page 1.
func NewPageCursor(items []PageItem, pageSize int) *PageCursor {
	if pageSize < 1 {
		pageSize = 5
	}
	totalPages := (len(items) + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	return &PageCursor{
		CurrentPage: 1,
		TotalPages:  totalPages,
		PageSize:    pageSize,
		Items:       items,
	}
}

// PageItems returns the rows of the current page.
func (c *PageCursor) PageItems() []PageItem {
	start := (c.CurrentPage - 1) * c.PageSize
	if start >= len(c.Items) {
		return nil
	}
	end := start + c.PageSize
	if end > len(c.Items) {
		end = len(c.Items)
	}
	return c.Items[start:end]
}

// Advance moves to the next page, or errors when already on the last one.
func (c *PageCursor) Advance() error {
	if c.CurrentPage >= c.TotalPages {
		return fmt.Errorf("already on the last page (%d of %d)", c.CurrentPage, c.TotalPages)
	}
	c.CurrentPage++
	return nil
}

// Back moves to the previous page, or errors when already on the first one.
func (c *PageCursor) Back() error {
	if c.CurrentPage <= 1 {
		return fmt.Errorf("already on the first page")
	}
	c.CurrentPage--
	return nil
}

// Select resolves a 1-based position against the current page snapshot.
// Position 3 always means the third row on screen, never a global index.
func (c *PageCursor) Select(n int) (PageItem, error) {
	page := c.PageItems()
	if n < 1 || n > len(page) {
		return PageItem{}, fmt.Errorf("pick a number between 1 and %d", len(page))
	}
	return page[n-1], nil
}

// Page command kinds produced by ParsePageCommand.
const (
	PageCommandNext     = "next"
	PageCommandPrevious = "previous"
	PageCommandSelect   = "select"
)

// PageCommand is a parsed navigation or selection reply.
type PageCommand struct {
	Kind      string
	Selection int // 1-based, only for PageCommandSelect
}

// ParsePageCommand interprets text as a pagination command. Anything that is
// not next/previous/bare-integer falls through to the intent classifier.
func ParsePageCommand(text string) (PageCommand, bool) {
	msg := normalizeText(text)
	switch msg {
	case "next", "n":
		return PageCommand{Kind: PageCommandNext}, true
	case "previous", "prev", "p":
		return PageCommand{Kind: PageCommandPrevious}, true
	}
	if n, err := strconv.Atoi(strings.TrimSpace(msg)); err == nil && n >= 0 {
		return PageCommand{Kind: PageCommandSelect, Selection: n}, true
	}
	return PageCommand{}, false
}
