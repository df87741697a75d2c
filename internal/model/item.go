package model

import "strings"

// Item is a unit of news content waiting for industry labels
type Item struct {
	ID      string `json:"id" db:"id"`
	Content string `json:"content" db:"content"`
}

// Validate checks that an item can be scored at all
func (i Item) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return &ContentError{ItemID: i.ID, Reason: "missing id"}
	}
	if strings.TrimSpace(i.Content) == "" {
		return &ContentError{ItemID: i.ID, Reason: "empty content"}
	}
	return nil
}
