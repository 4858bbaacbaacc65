package domain

// DocumentEvent describes one successful upsert.
type DocumentEvent struct {
	RunID      string
	Collection string
	ID         string
	Document   Document
	Merge      bool
}
