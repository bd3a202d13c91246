package models

import "fmt"

// Category is one of the fixed Hacker News listing types. It doubles as
// the listing-endpoint keyword and as the stored-item filter profile.
type Category string

const (
	CategoryTop  Category = "top"
	CategoryNew  Category = "new"
	CategoryBest Category = "best"
	CategoryAsk  Category = "ask"
	CategoryShow Category = "show"
	CategoryJob  Category = "job"
)

// Categories lists every category in ingestion order.
var Categories = []Category{
	CategoryNew,
	CategoryTop,
	CategoryBest,
	CategoryAsk,
	CategoryShow,
	CategoryJob,
}

// ParseCategory validates a user-supplied category string.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryTop, CategoryNew, CategoryBest, CategoryAsk, CategoryShow, CategoryJob:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// ListingPath returns the listing-endpoint path for the category,
// e.g. "topstories.json".
func (c Category) ListingPath() string {
	return fmt.Sprintf("/%sstories.json", string(c))
}

// StoredType maps the category to the item type persisted in the store.
// The top/new/best listings all contain plain stories; ask/show/job items
// keep their own type.
func (c Category) StoredType() string {
	switch c {
	case CategoryAsk, CategoryShow, CategoryJob:
		return string(c)
	default:
		return "story"
	}
}
