// Package harness exposes the lifecycle hooks the generic test framework
// dispatches to, keyed by driver identifier.
package harness

import (
	"context"
	"fmt"
	"sync"

	"github.com/quarterlake/bqfixture/pkg/fixture"
	"github.com/quarterlake/bqfixture/pkg/lifecycle"
)

// DriverName is the identifier this harness registers under.
const DriverName = "bigquery"

// Driver is the per-warehouse contract the test framework dispatches on.
type Driver interface {
	// CreateDatabase runs the full provision-and-load sequence and returns
	// the warehouse-side name the database was provisioned under.
	CreateDatabase(ctx context.Context, databaseName string, tables []fixture.Table) (string, error)
	DestroyDatabase(ctx context.Context, databaseName string) error
	// QualifyName produces the dataset-qualified identifier tuple for a
	// database name, optionally narrowed to a table and a field.
	QualifyName(databaseName string, parts ...string) ([]string, error)
	FormatIdentifier(name string) string
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Driver{}
)

// Register makes a driver available under the given identifier. Registering
// the same identifier twice panics, matching database/sql convention.
func Register(name string, d Driver) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("harness: driver %q registered twice", name))
	}
	registry[name] = d
}

// Lookup returns the driver registered under name.
func Lookup(name string) (Driver, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("harness: no driver registered as %q", name)
	}
	return d, nil
}

// Harness implements Driver on top of the dataset lifecycle manager.
type Harness struct {
	manager *lifecycle.Manager
}

func New(manager *lifecycle.Manager) *Harness {
	return &Harness{manager: manager}
}

func (h *Harness) CreateDatabase(ctx context.Context, databaseName string, tables []fixture.Table) (string, error) {
	return h.manager.CreateDatabase(ctx, databaseName, tables)
}

func (h *Harness) DestroyDatabase(ctx context.Context, databaseName string) error {
	return h.manager.DestroyDatabase(ctx, databaseName)
}

func (h *Harness) QualifyName(databaseName string, parts ...string) ([]string, error) {
	datasetID, err := h.manager.DatasetID(databaseName)
	if err != nil {
		return nil, err
	}
	qualified := make([]string, 0, len(parts)+1)
	qualified = append(qualified, datasetID)
	for _, part := range parts {
		qualified = append(qualified, fixture.FormatIdentifier(part))
	}
	return qualified, nil
}

func (h *Harness) FormatIdentifier(name string) string {
	return fixture.FormatIdentifier(name)
}
