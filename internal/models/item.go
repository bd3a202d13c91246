package models

import "time"

// Item is a unit of Hacker News content persisted together with its
// Chinese translation. Source fields are written once at ingestion time
// and never updated afterwards.
type Item struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	TitleZh     string    `json:"titleZh"`
	URL         *string   `json:"url,omitempty"`
	Text        *string   `json:"text,omitempty"`
	TextZh      *string   `json:"textZh,omitempty"`
	By          string    `json:"by"`
	Score       int       `json:"score"`
	Descendants int       `json:"descendants"`
	Time        time.Time `json:"time"`
	Type        string    `json:"type"`
	Dead        bool      `json:"dead"`
	Deleted     bool      `json:"deleted"`
	Kids        []int64   `json:"kids,omitempty"`
	Translated  bool      `json:"translated"`
}

// DisplayTitle prefers the translated title and falls back to the original.
func (i *Item) DisplayTitle() string {
	if i.TitleZh != "" {
		return i.TitleZh
	}
	return i.Title
}

// Translation holds the localized counterparts of an item's title and body.
// TextZh stays nil when the source item has no body text.
type Translation struct {
	TitleZh string
	TextZh  *string
}
