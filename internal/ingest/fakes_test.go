package ingest

import (
	"context"
	"slices"
	"sync"

	"github.com/JonMunkholm/dataloader/internal/core"
)

// memRegistrar keeps tables in memory.
type memRegistrar struct {
	mu          sync.Mutex
	tables      map[string][]string
	existsCalls int
	createCalls int
	existsErr   error
	loseRace    bool // Create reports the table as created elsewhere
}

func newMemRegistrar() *memRegistrar {
	return &memRegistrar{tables: make(map[string][]string)}
}

func (m *memRegistrar) Exists(_ context.Context, table string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsCalls++
	if m.existsErr != nil {
		return false, core.SchemaError(core.CodeTableLookup, "check table "+table, m.existsErr)
	}
	_, ok := m.tables[table]
	return ok, nil
}

func (m *memRegistrar) Create(_ context.Context, table string, columns []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.loseRace {
		return false, nil
	}
	if _, ok := m.tables[table]; ok {
		return false, nil
	}
	m.tables[table] = columns
	return true, nil
}

// memLoader records committed chunks and fails the ones listed in fail.
type memLoader struct {
	mu      sync.Mutex
	chunks  map[int][]core.Row
	fail    map[int]error
	calls   int
	onLoad  func(ctx context.Context, chunk core.Chunk) error
	columns []string
}

func newMemLoader() *memLoader {
	return &memLoader{chunks: make(map[int][]core.Row), fail: make(map[int]error)}
}

func (m *memLoader) Load(ctx context.Context, _ string, columns []string, chunk core.Chunk) error {
	m.mu.Lock()
	m.calls++
	m.columns = columns
	failErr := m.fail[chunk.Index]
	hook := m.onLoad
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, chunk); err != nil {
			return err
		}
	}
	if failErr != nil {
		return failErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[chunk.Index] = chunk.Rows
	return nil
}

// rows returns every committed row in chunk order.
func (m *memLoader) rows() []core.Row {
	var out []core.Row
	for _, i := range m.committed() {
		m.mu.Lock()
		out = append(out, m.chunks[i]...)
		m.mu.Unlock()
	}
	return out
}

// committed returns the indexes of committed chunks in order.
func (m *memLoader) committed() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := make([]int, 0, len(m.chunks))
	for i := range m.chunks {
		idx = append(idx, i)
	}
	slices.Sort(idx)
	return idx
}
