package models

import "time"

// Category is one of the fixed tally dimensions configured for a deployment
// (for example "lysy" and "pawel"). Validation against the configured set
// happens once at the API boundary; everything past that boundary receives an
// already-checked value.
type Category string

func (c Category) String() string { return string(c) }

// ImageRef points at a stored image: the public URL clients render, and the
// storage-side identifier needed to delete the object again.
type ImageRef struct {
	URL string `json:"url"`
	ID  string `json:"id"`
}

// Location is an optional geotag. Both coordinates are present or neither is.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Entry is a single journal submission. Immutable after creation; the only
// transition is deletion.
type Entry struct {
	ID          string     `json:"id"`
	Category    Category   `json:"category"`
	Title       string     `json:"title,omitempty"`
	Text        string     `json:"text,omitempty"`
	Image       *ImageRef  `json:"image,omitempty"`
	Gallery     []ImageRef `json:"gallery,omitempty"`
	Location    *Location  `json:"location,omitempty"`
	DisplayDate string     `json:"date"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Images returns every image referenced by the entry, primary first.
func (e *Entry) Images() []ImageRef {
	refs := make([]ImageRef, 0, 1+len(e.Gallery))
	if e.Image != nil {
		refs = append(refs, *e.Image)
	}
	refs = append(refs, e.Gallery...)
	return refs
}

// CounterSet maps each configured category to its running count.
type CounterSet map[Category]int64

// DisplayDateFormat renders timestamps the way the web client has always
// shown them (Polish day.month.year order).
const DisplayDateFormat = "02.01.2006, 15:04:05"
