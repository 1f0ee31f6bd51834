package directory

import (
	"context"
	"sync"

	"github.com/harborlight-org/tokend/internal/core"
)

var _ core.Directory = (*InMemoryDirectory)(nil)

type InMemoryDirectory struct {
	mu      sync.RWMutex
	records map[string]core.OrgRecord // subject -> record
}

func NewInMemoryDirectory(records map[string]core.OrgRecord) *InMemoryDirectory {
	if records == nil {
		records = make(map[string]core.OrgRecord)
	}
	return &InMemoryDirectory{records: records}
}

func (d *InMemoryDirectory) Lookup(_ context.Context, subject string) (*core.OrgRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	record, ok := d.records[subject]
	if !ok {
		return nil, core.ErrRecordNotFound
	}
	return &record, nil
}

func (d *InMemoryDirectory) Put(subject string, record core.OrgRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.records[subject] = record
}
