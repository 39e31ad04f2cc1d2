package data

import (
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// MmdbReader implements CountryLookup using a MaxMind MMDB file. The
// underlying reader can be swapped at runtime via Reload, so lookups keep
// working while the database file is replaced on disk.
type MmdbReader struct {
	path string

	mu sync.RWMutex
	db *geoip2.Reader
}

// NewMmdbReader opens the MMDB file at the given path and returns a reader.
func NewMmdbReader(path string) (*MmdbReader, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MMDB file: %w", err)
	}
	return &MmdbReader{path: path, db: db}, nil
}

// LookupCountry returns the ISO 3166-1 alpha-2 country code for the given IP
// address. Addresses not present in the database yield an empty code and a
// nil error.
func (r *MmdbReader) LookupCountry(ip net.IP) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, err := r.db.Country(ip)
	if err != nil {
		return "", fmt.Errorf("country lookup failed: %w", err)
	}
	return record.Country.IsoCode, nil
}

// Reload reopens the MMDB file and swaps it in. The old reader is closed
// only after the swap, once no lookup can still be reading it: Close unmaps
// the file, so closing while a lookup is mid-traversal would pull the
// mapping out from under it. On failure the previous reader stays active.
func (r *MmdbReader) Reload() error {
	db, err := geoip2.Open(r.path)
	if err != nil {
		return fmt.Errorf("failed to reload MMDB file: %w", err)
	}

	r.mu.Lock()
	old := r.db
	r.db = db
	r.mu.Unlock()

	return old.Close()
}

// Close releases the MMDB reader resources.
func (r *MmdbReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.Close()
}
