package tenants

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/vocacrm/vocacrm-go/internal/errors"
)

// Directory holds the loaded memberships and the current selection.
type Directory struct {
	source Source
	logger zerolog.Logger

	lock    sync.RWMutex
	tenants []*Tenant
	current string
}

func NewDirectory(source Source, logger zerolog.Logger) *Directory {
	return &Directory{
		source: source,
		logger: logger,
	}
}

// Load replaces the list from the source and picks the current tenant: the
// previous selection if it is still listed, else defaultID, else the first.
// A failing source leaves an empty list.
func (d *Directory) Load(ctx context.Context, defaultID string) []*Tenant {
	list, err := d.source.MyTenants(ctx)
	if err != nil {
		d.logger.Warn().Err(err).Msg("loading business places failed")
		list = nil
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	d.tenants = list
	switch {
	case d.indexOf(d.current) >= 0:
	case d.indexOf(defaultID) >= 0:
		d.current = defaultID
	case len(list) > 0:
		d.current = list[0].ID
	default:
		d.current = ""
	}
	d.logger.Debug().Int("count", len(list)).Str("current", d.current).Msg("business places loaded")
	return copyList(list)
}

func (d *Directory) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, t := range d.tenants {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (d *Directory) List() []*Tenant {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return copyList(d.tenants)
}

// Current returns the selected tenant, or nil when none is loaded.
func (d *Directory) Current() *Tenant {
	d.lock.RLock()
	defer d.lock.RUnlock()
	if i := d.indexOf(d.current); i >= 0 {
		t := *d.tenants[i]
		return &t
	}
	return nil
}

func (d *Directory) Get(id string) (*Tenant, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	i := d.indexOf(id)
	if i < 0 {
		return nil, errors.ErrTenantNotFound
	}
	t := *d.tenants[i]
	return &t, nil
}

// Select makes id the current tenant.
func (d *Directory) Select(id string) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.indexOf(id) < 0 {
		return errors.Wrapf(errors.ErrTenantNotFound, "select %q", id)
	}
	d.current = id
	return nil
}

// Clear forgets the list and the selection.
func (d *Directory) Clear() {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.tenants = nil
	d.current = ""
}

func copyList(list []*Tenant) []*Tenant {
	out := make([]*Tenant, 0, len(list))
	for _, t := range list {
		c := *t
		out = append(out, &c)
	}
	return out
}
