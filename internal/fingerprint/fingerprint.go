// Package fingerprint derives the deduplication identity of a flight deal
// and maintains an index of fingerprints already present in the store.
package fingerprint

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"farewire/internal/deal"
	"farewire/internal/sheet"
)

// Compute hashes the six identity fields of a deal. Two offers for the same
// route, dates, airline, and stop count collapse to the same fingerprint
// regardless of price or capitalization.
func Compute(origin, destination, outboundDate, returnDate, airline string, stops int) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%s|%d",
		origin, destination, outboundDate, returnDate, airline, stops)
	raw = strings.ToLower(strings.TrimSpace(raw))
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Index is the set of fingerprints seen in the store. Loaded once per run;
// it does not observe rows appended by concurrent workers.
type Index struct {
	seen map[string]struct{}
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{seen: make(map[string]struct{})}
}

// LoadIndex scans the fingerprint column of a snapshot. A store without the
// column yields an empty index, leaving dedup to the caller's discretion.
func LoadIndex(snap *sheet.Snapshot) *Index {
	idx := NewIndex()
	if snap == nil || !snap.HasColumn(deal.ColFingerprint) {
		return idx
	}
	for _, rec := range snap.Records {
		if fp := strings.TrimSpace(rec.Get(deal.ColFingerprint)); fp != "" {
			idx.seen[strings.ToLower(fp)] = struct{}{}
		}
	}
	return idx
}

// Load reads the store through the adapter and builds the index.
func Load(ctx context.Context, adapter *sheet.Adapter) (*Index, error) {
	snap, err := adapter.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return LoadIndex(snap), nil
}

// Contains reports whether the fingerprint was present when the index loaded.
func (i *Index) Contains(fp string) bool {
	_, ok := i.seen[strings.ToLower(strings.TrimSpace(fp))]
	return ok
}

// Add marks a fingerprint as seen so duplicates within one discovery batch
// are also suppressed.
func (i *Index) Add(fp string) {
	i.seen[strings.ToLower(strings.TrimSpace(fp))] = struct{}{}
}

// Len returns the number of distinct fingerprints indexed.
func (i *Index) Len() int {
	return len(i.seen)
}
