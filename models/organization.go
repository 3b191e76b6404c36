package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is the root entity; every other entity is owned by one
// organization and keyed under it.
type Organization struct {
	ID        uuid.UUID         `json:"id" db:"id"`
	Name      string            `json:"name" db:"name"`
	Metadata  map[string]string `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

// NewOrganization creates a new Organization instance
func NewOrganization(name string, metadata map[string]string) *Organization {
	if metadata == nil {
		metadata = make(map[string]string)
	}
	return &Organization{
		ID:        uuid.New(),
		Name:      name,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
}
