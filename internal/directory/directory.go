// Package directory maps company ids to the spreadsheets that hold their
// books. The mapping lives on the first tab of a master spreadsheet and is
// cached for a short TTL.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.alis.build/alog"
	"golang.org/x/sync/singleflight"

	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/grid"
	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/store"
)

// DefaultTTL is how long a loaded company list is served from memory.
const DefaultTTL = 60 * time.Second

// loadTimeout bounds a shared refresh of the master config, which runs
// detached from the request that started it.
const loadTimeout = 30 * time.Second

var (
	ErrCompanyNotFound    = errors.New("company not found")
	ErrSpreadsheetMissing = errors.New("spreadsheet id missing in master config")
)

// Company is one row of the master config.
type Company struct {
	CompanyId     string `json:"CompanyId"`
	CompanyName   string `json:"CompanyName"`
	SpreadsheetId string `json:"SpreadsheetId"`
}

// Listable reports whether the row carries both an id and a spreadsheet.
func (c Company) Listable() bool {
	return c.CompanyId != "" && c.SpreadsheetId != ""
}

// Directory loads companies from the master spreadsheet and caches them.
type Directory struct {
	store    store.Store
	masterID string
	ttl      time.Duration
	now      func() time.Time

	group singleflight.Group

	mu       sync.Mutex
	cached   []Company
	loadedAt time.Time
}

// Option configures a Directory.
type Option func(*Directory)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(d *Directory) { d.ttl = ttl }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

// New returns a Directory reading the master spreadsheet masterID.
func New(s store.Store, masterID string, opts ...Option) *Directory {
	d := &Directory{
		store:    s,
		masterID: masterID,
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Companies returns every row of the master config, served from the cache
// while it is younger than the TTL. A failed load is returned as an error
// and leaves the previous cache untouched. Concurrent callers share one
// load; a caller whose ctx ends stops waiting without failing the others.
func (d *Directory) Companies(ctx context.Context) ([]Company, error) {
	if cached, ok := d.fresh(); ok {
		return cached, nil
	}
	ch := d.group.DoChan("companies", func() (any, error) {
		if cached, ok := d.fresh(); ok {
			return cached, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		companies, err := d.load(loadCtx)
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		d.cached, d.loadedAt = companies, d.now()
		d.mu.Unlock()
		alog.Debugf(loadCtx, "directory: loaded %d companies from %s", len(companies), d.masterID)
		return companies, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("master config: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return append([]Company(nil), res.Val.([]Company)...), nil
	}
}

func (d *Directory) fresh() ([]Company, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cached == nil || d.now().Sub(d.loadedAt) >= d.ttl {
		return nil, false
	}
	return append([]Company(nil), d.cached...), true
}

// Lookup returns the company with the given id. It fails with
// ErrCompanyNotFound for unknown ids and ErrSpreadsheetMissing when the row
// has no spreadsheet.
func (d *Directory) Lookup(ctx context.Context, companyID string) (Company, error) {
	companies, err := d.Companies(ctx)
	if err != nil {
		return Company{}, err
	}
	for _, c := range companies {
		if companyID != "" && c.CompanyId == companyID {
			if c.SpreadsheetId == "" {
				return c, ErrSpreadsheetMissing
			}
			return c, nil
		}
	}
	return Company{}, ErrCompanyNotFound
}

func (d *Directory) load(ctx context.Context) ([]Company, error) {
	sp, err := d.store.Open(ctx, d.masterID)
	if err != nil {
		return nil, fmt.Errorf("master config: %w", err)
	}
	ws, err := sp.WorksheetAt(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("master config: %w", err)
	}
	values, err := ws.Values(ctx)
	if err != nil {
		return nil, fmt.Errorf("master config: %w", err)
	}
	return parseRecords(values), nil
}

// parseRecords reads rows below a header row. Cells missing from short
// rows read as empty.
func parseRecords(values grid.Grid) []Company {
	companies := []Company{}
	if len(values) == 0 {
		return companies
	}
	col := make(map[string]int, len(values[0]))
	for i, h := range values[0] {
		h = strings.TrimSpace(h)
		if _, dup := col[h]; !dup {
			col[h] = i
		}
	}
	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
	for _, row := range values[1:] {
		companies = append(companies, Company{
			CompanyId:     field(row, "CompanyId"),
			CompanyName:   field(row, "CompanyName"),
			SpreadsheetId: field(row, "SpreadsheetId"),
		})
	}
	return companies
}
