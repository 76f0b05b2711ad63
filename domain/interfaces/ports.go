package interfaces

import (
	"context"

	"autocloudskill/domain/entities"
)

// Transcriber converts raw challenge audio into text.
type Transcriber interface {
	// Transcribe returns the recognized text for the given audio bytes.
	// format is a short tag such as "mp3" or "wav".
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
}

// AddressProvider manages disposable e-mail addresses (relay masks).
type AddressProvider interface {
	// CreateAddress provisions a fresh disposable address.
	CreateAddress(ctx context.Context, description string) (Address, error)

	// ListAddresses returns all addresses owned by the account.
	ListAddresses(ctx context.Context) ([]Address, error)

	// DeleteAddress removes an address by its provider ID.
	DeleteAddress(ctx context.Context, id string) error
}

// Address is one disposable e-mail address.
type Address struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Enabled bool   `json:"enabled"`
}

// MailboxSearcher queries a mailbox for messages and their links.
type MailboxSearcher interface {
	// Search returns messages matching the query parameters.
	Search(ctx context.Context, q MailQuery) ([]MailMessage, error)
}

// MailQuery narrows a mailbox search.
type MailQuery struct {
	Recipient string `json:"recipient,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Sender    string `json:"sender,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// MailMessage is one matched message with its extracted links.
type MailMessage struct {
	ID      string   `json:"id"`
	Subject string   `json:"subject"`
	Sender  string   `json:"sender"`
	Links   []string `json:"links,omitempty"`
}

// ProfileSource produces registration identities.
type ProfileSource interface {
	// GenerateProfile returns a ready-to-validate profile record.
	GenerateProfile(ctx context.Context) (entities.ProfileRecord, error)
}
