package model

import "github.com/google/uuid"

// Chapter is an ordered segment of a document.
type Chapter struct {
	ID              uuid.UUID
	SurrogateID     int64
	DocumentID      uuid.UUID
	Title           string
	Body            string
	OrderInDocument int
	TokenStart      int
	TokenEnd        int
	TokenCount      int
	Metadata        map[string]any
}

// Tokens returns the chapter's token count: TokenCount when it is positive,
// otherwise token_end - token_start.
func (c Chapter) Tokens() int {
	if c.TokenCount > 0 {
		return c.TokenCount
	}
	return c.TokenEnd - c.TokenStart
}
