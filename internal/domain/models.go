package domain

import (
	"strings"
	"time"
)

// Job is one upload's extraction lifecycle, keyed by its identifier.
// Its status record and artifacts live in the job store under ID.
type Job struct {
	ID         string
	SourcePath string // uploaded PDF, read-only to the engine
}

// Page is one page of an opened document
type Page struct {
	Number int // 1-based
	Text   string
}

// Table is a grid of optional text cells extracted from one page
type Table [][]*string

// Cell returns a present cell holding s
func Cell(s string) *string {
	return &s
}

// EmptyCell reports whether a cell is absent or blank
func EmptyCell(c *string) bool {
	return c == nil || strings.TrimSpace(*c) == ""
}

// NonEmptyCells counts the cells of a row that are neither absent nor blank
func NonEmptyCells(row []*string) int {
	n := 0
	for _, c := range row {
		if !EmptyCell(c) {
			n++
		}
	}
	return n
}

// Records converts the table to string records; absent cells become empty strings
func (t Table) Records() [][]string {
	records := make([][]string, len(t))
	for i, row := range t {
		rec := make([]string, len(row))
		for j, c := range row {
			if c != nil {
				rec[j] = *c
			}
		}
		records[i] = rec
	}
	return records
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart          EventType = "start"
	EventPageProcessing EventType = "page_processing"
	EventTableWritten   EventType = "table_written"
	EventPageComplete   EventType = "page_complete"
	EventError          EventType = "error"
	EventComplete       EventType = "complete"
)

// StreamEvent represents an event emitted during extraction
type StreamEvent struct {
	Type       EventType   `json:"type"`
	JobID      string      `json:"job_id,omitempty"`
	PageNumber int         `json:"page_number,omitempty"`
	Payload    interface{} `json:"payload,omitempty"` // status message or artifact name
	Timestamp  time.Time   `json:"timestamp"`
}
