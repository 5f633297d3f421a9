package render

import (
	"fmt"
	"os"
	"sync"

	"modernc.org/quickjs"
)

// module is one loaded server bundle: a VM that has evaluated the bundle
// source. A VM is single-threaded, so renders against the same module are
// serialized by its mutex.
type module struct {
	mu     sync.Mutex
	vm     *quickjs.VM
	path   string
	closed bool
}

func (m *module) eval(js string) error {
	v, err := m.vm.EvalValue(js, quickjs.EvalGlobal)
	if err != nil {
		return err
	}
	v.Free()
	return nil
}

func (m *module) evalString(js string) (string, error) {
	result, err := m.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return fmt.Sprint(result), nil
}

// Cache keys loaded server bundles by file path. It replaces reliance on an
// ambient module registry with an explicit invalidate operation: the dev
// middleware evicts the bundle's entry before each render so edits are
// picked up from the freshest build output.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*module
}

func newCache() *Cache {
	return &Cache{entries: make(map[string]*module)}
}

// acquireLocked returns the module for path with its mutex held and its VM
// guaranteed open. A module evicted between lookup and lock is retried, so
// callers never see a closed VM.
func (c *Cache) acquireLocked(path string) (*module, error) {
	for {
		m, err := c.acquire(path)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		if !m.closed {
			return m, nil
		}
		m.mu.Unlock()
	}
}

// acquire returns the loaded module for path, reading and evaluating the
// bundle on first use.
func (c *Cache) acquire(path string) (*module, error) {
	c.mu.Lock()
	if m, ok := c.entries[path]; ok {
		c.mu.Unlock()
		return m, nil
	}
	c.mu.Unlock()

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read server bundle: %w", err)
	}

	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("failed to create render VM: %w", err)
	}

	m := &module{vm: vm, path: path}
	if err := m.eval(string(source)); err != nil {
		vm.Close()
		return nil, fmt.Errorf("failed to evaluate server bundle: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[path]; ok {
		// Lost a load race; keep the first one.
		vm.Close()
		return existing, nil
	}
	c.entries[path] = m
	return m, nil
}

// Invalidate evicts the cached module for path, closing its VM. The next
// acquire reloads the bundle from disk.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	m, ok := c.entries[path]
	if ok {
		delete(c.entries, path)
	}
	c.mu.Unlock()

	if ok {
		m.mu.Lock()
		m.closed = true
		m.vm.Close()
		m.mu.Unlock()
	}
}

// Close evicts everything.
func (c *Cache) Close() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*module)
	c.mu.Unlock()

	for _, m := range entries {
		m.mu.Lock()
		m.closed = true
		m.vm.Close()
		m.mu.Unlock()
	}
}
