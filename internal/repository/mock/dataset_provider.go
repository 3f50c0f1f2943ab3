// Package mock provides mock implementations of repository interfaces for testing.
// These mocks allow tests to run without a real database and provide
// configurable behavior for testing error conditions and edge cases.
//
// Error injection fields (e.g., ReadAllError) and hooks (e.g., OnReplaceAll)
// should be set BEFORE any concurrent operations begin; they are not
// protected by the mutex.
package mock

import (
	"context"
	"sync"

	"github.com/crenwick/taxonvault/internal/repository"
)

// DatasetProvider is a mock implementation of repository.DatasetProvider.
// It holds an in-memory dataset and counts calls for assertions.
type DatasetProvider struct {
	mu      sync.RWMutex
	dataset repository.Dataset

	ReadAllCalls    int
	ReplaceAllCalls int

	// Error injection
	ReadAllError    error
	ReplaceAllError error

	// Custom behavior hooks
	OnReadAll    func(ctx context.Context) (*repository.Dataset, error)
	OnReplaceAll func(ctx context.Context, ds *repository.Dataset) error
}

// NewDatasetProvider creates a mock provider seeded with the given dataset.
func NewDatasetProvider(ds repository.Dataset) *DatasetProvider {
	return &DatasetProvider{dataset: ds}
}

// ReadAll returns a copy of the in-memory dataset.
func (p *DatasetProvider) ReadAll(ctx context.Context) (*repository.Dataset, error) {
	p.mu.Lock()
	p.ReadAllCalls++
	p.mu.Unlock()

	if p.OnReadAll != nil {
		return p.OnReadAll(ctx)
	}
	if p.ReadAllError != nil {
		return nil, p.ReadAllError
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	ds := copyDataset(&p.dataset)
	return ds, nil
}

// ReplaceAll swaps the in-memory dataset.
func (p *DatasetProvider) ReplaceAll(ctx context.Context, ds *repository.Dataset) error {
	p.mu.Lock()
	p.ReplaceAllCalls++
	p.mu.Unlock()

	if p.OnReplaceAll != nil {
		return p.OnReplaceAll(ctx, ds)
	}
	if p.ReplaceAllError != nil {
		return p.ReplaceAllError
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dataset = *copyDataset(ds)
	return nil
}

// Dataset returns a copy of the current in-memory dataset for assertions.
func (p *DatasetProvider) Dataset() *repository.Dataset {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyDataset(&p.dataset)
}

// SetDataset replaces the in-memory dataset directly.
func (p *DatasetProvider) SetDataset(ds repository.Dataset) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dataset = *copyDataset(&ds)
}

func copyDataset(src *repository.Dataset) *repository.Dataset {
	dst := &repository.Dataset{}
	dst.Products = append(dst.Products, src.Products...)
	dst.Suppliers = append(dst.Suppliers, src.Suppliers...)
	dst.TreeNodes = append(dst.TreeNodes, src.TreeNodes...)
	dst.CustomFieldDefinitions = append(dst.CustomFieldDefinitions, src.CustomFieldDefinitions...)
	dst.AppSettings = append(dst.AppSettings, src.AppSettings...)
	return dst
}

// Ensure DatasetProvider implements repository.DatasetProvider.
var _ repository.DatasetProvider = (*DatasetProvider)(nil)
