package models

// DataResponse is the payload of GET /api/data: current counters plus the
// bounded most-recent window of entries.
type DataResponse struct {
	OK       bool             `json:"ok"`
	Counters map[string]int64 `json:"counters"`
	Entries  []Entry          `json:"entries"`
	IsAdmin  bool             `json:"isAdmin"`
}

// CreateEntryResponse wraps the entry created by POST /api/entries.
type CreateEntryResponse struct {
	OK    bool  `json:"ok"`
	Entry Entry `json:"entry"`
}

// DeleteEntryResponse reports an (idempotent) admin delete.
type DeleteEntryResponse struct {
	OK      bool   `json:"ok"`
	Deleted string `json:"deleted"`
}

// OKResponse is the bare success envelope.
type OKResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse is the uniform failure envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
