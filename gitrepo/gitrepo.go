// Package gitrepo provisions the Git repositories Workbench clones projects from.
package gitrepo

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrRepositoryNotFound is returned for operations on unknown repositories
var ErrRepositoryNotFound = errors.New("git repository not found")

// Provider hosts Git repositories
type Provider interface {
	// CreateRepository creates name, pushes the content of sourceDir to it
	// and returns its clone URL.
	CreateRepository(ctx context.Context, name, sourceDir string) (string, error)
	DeleteRepository(ctx context.Context, name string) error
	RepositoryURL(ctx context.Context, name string) (string, error)
}

// GenerateName returns prefix followed by a dash and 8 random hex characters
func GenerateName(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}
