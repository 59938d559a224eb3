package models

import "encoding/json"

// Envelope is the server's standard response wrapper.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Errors  json.RawMessage `json:"errors,omitempty"`
}

// Outcome is the server's verdict on a stateless operation.
type Outcome struct {
	Success bool
	Message string
}
