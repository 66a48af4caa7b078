package models

import "time"

// Employee represents a fingerprint-scanner user stored in the employees table.
// The fingerprint code is encrypted at rest; CodeDigest is a SHA-256 digest of
// the plaintext code used for scanner lookups.
type Employee struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Phone      *string   `db:"phone" json:"phone,omitempty"`
	Title      *string   `db:"title" json:"title,omitempty"`
	CodeCipher string    `db:"code_cipher" json:"-"`
	CodeDigest string    `db:"code_digest" json:"-"`
	PunchedIn  bool      `db:"punched_in" json:"punched_in"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// EmployeeRecord extends an employee row with account metadata for listings.
type EmployeeRecord struct {
	Employee
	Email    string `db:"email" json:"email"`
	FullName string `db:"full_name" json:"full_name"`
}

// EmployeeFilter scopes roster listing queries.
type EmployeeFilter struct {
	Search    string
	PunchedIn *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
