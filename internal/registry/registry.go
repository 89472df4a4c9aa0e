package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/asedra/lonage-ai-platform/internal/backend"
	"github.com/asedra/lonage-ai-platform/internal/models"
)

// ErrModelNotFound is returned by Find when no credential has the given id
var ErrModelNotFound = errors.New("model not found")

// Backend is the subset of backend.Client the registry needs
type Backend interface {
	ListModels(ctx context.Context) ([]models.ModelCredential, error)
	CreateModel(ctx context.Context, req models.NewModelCredential) (*models.ModelCredential, error)
}

// Accessor reads and registers model credentials on the backend.
type Accessor struct {
	backend Backend
}

// New creates a registry accessor
func New(b Backend) *Accessor {
	return &Accessor{backend: b}
}

// ListModels returns every credential in backend order. Zero models is
// not an error.
func (a *Accessor) ListModels(ctx context.Context) ([]models.ModelCredential, error) {
	list, err := a.backend.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.ModelCredential{}
	}
	return list, nil
}

// CreateModel validates the request locally and registers it
func (a *Accessor) CreateModel(ctx context.Context, req models.NewModelCredential) (*models.ModelCredential, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	return a.backend.CreateModel(ctx, req)
}

// Find lists the credentials and returns the one with the given id.
func (a *Accessor) Find(ctx context.Context, id string) (*models.ModelCredential, error) {
	list, err := a.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	return FindIn(list, id)
}

// FindIn looks up a credential by id in an already fetched list
func FindIn(list []models.ModelCredential, id string) (*models.ModelCredential, error) {
	id = strings.TrimSpace(id)
	for i := range list {
		if list[i].ID == id {
			found := list[i]
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrModelNotFound, id)
}

var _ Backend = (*backend.Client)(nil)
