package api

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TemporaryIDPrefix marks IDs generated locally for optimistic creates.
const TemporaryIDPrefix = "temp-"

// PendingUserID is the placeholder owner of a provisional entity until the server assigns the real one.
const PendingUserID = "pending-user"

// NewTemporaryID returns a collision free client side ID.
func NewTemporaryID() string {
	return TemporaryIDPrefix + uuid.NewString()
}

// IsTemporaryID reports whether the ID was generated locally and is not yet known to the server.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TemporaryIDPrefix)
}

// Entity is implemented by every resource that is cached locally.
//
// ParentID returns the owning resource (the dataset of a version, the experiment of a run,
// the run of a test result) or "" for top level resources. SortKey is the numeric key
// used for range queries within a parent.
type Entity interface {
	GetID() string
	ParentID() string
	SortKey() int64
}

// Timestamps are the server maintained creation and modification times.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrorResponse is the error body returned by the API.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
