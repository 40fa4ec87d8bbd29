package pipeline

import (
	"crypto/rand"
	"strings"

	"github.com/oklog/ulid/v2"
)

// NewRunID returns a globally unique, filesystem-safe, lexically
// sortable run identifier.
func NewRunID() (string, error) {
	id, err := ulid.New(ulid.Now(), rand.Reader)
	if err != nil {
		return "", err
	}
	return strings.ToLower(id.String()), nil
}
