// internal/model/fields.go
package model

import "time"

// Orthogonal field groups composed into the newsletter entities.

// Activable marks a record that can be switched off without deleting it.
type Activable struct {
	IsActive bool `db:"is_active" json:"is_active"`
}

// TimeStamped carries the audit timestamps.
type TimeStamped struct {
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// CreatedModifiedBy carries the editor references.
type CreatedModifiedBy struct {
	CreatedBy  *int `db:"created_by" json:"created_by,omitempty"`
	ModifiedBy *int `db:"modified_by" json:"modified_by,omitempty"`
}

// Sortable carries the manual ordering index.
type Sortable struct {
	Order int `db:"ord" json:"order"`
}
