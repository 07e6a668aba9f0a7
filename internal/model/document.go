package model

import "time"

// Document represents a stored PDF file in the system.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
//
// Filepath holds the generated storage key and is never serialized to clients.
type Document struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Filepath  string    `json:"-"`
	Size      int64     `json:"filesize"`
	CreatedAt time.Time `json:"created_at"`
}
