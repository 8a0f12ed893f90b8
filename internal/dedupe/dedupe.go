// Package dedupe filters one extraction run against itself and against
// the user's previously persisted ledger, using content hashes as
// identity. Running the same statement through extraction twice for the
// same user persists zero new rows the second time.
package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/cardspark/spendmatch/internal/canonical"
	"github.com/cardspark/spendmatch/internal/domain"
	"github.com/cardspark/spendmatch/internal/logger"
)

// amountToleranceMinor is the intra-batch amount tolerance, expressed
// in minor units (0.01 currency units).
const amountToleranceMinor = 1

// LedgerStore is the slice of the persistence contract this package
// needs: bulk hash lookup, bulk insert of new rows and occurrence
// increments for repeats. Upsert-by-hash semantics are expected from
// the implementation.
type LedgerStore interface {
	// LookupHashes returns the subset of hashes already persisted for
	// the user, as a set.
	LookupHashes(ctx context.Context, userID string, hashes []string) (map[string]bool, error)

	// InsertEntries bulk-inserts first-sighting rows. Rows are
	// immutable once stored.
	InsertEntries(ctx context.Context, entries []*domain.LedgerEntry) error

	// IncrementOccurrences bumps the occurrence counter for repeat
	// sightings of the given hashes.
	IncrementOccurrences(ctx context.Context, userID string, hashes []string) error
}

// Result reports one dedup run. New and duplicate counts are always
// both present so a partially-duplicate statement is reported
// accurately rather than as a binary success or failure.
type Result struct {
	Inserted       []*domain.LedgerEntry
	NewCount       int
	DuplicateCount int
	// IntraBatchDropped counts rows discarded by the same-batch filter
	// before hashing.
	IntraBatchDropped int
}

// Run deduplicates one extraction run for a user and persists the
// first sightings.
//
// Two concurrent batches with overlapping transactions can each see
// "not found" in the lookup and both insert, leaving two rows with the
// same hash. The race is benign for correctness (both rows describe
// the same real-world event) and is accepted here; see the storage
// layer's MERGE-based upsert for the stricter alternative.
func Run(ctx context.Context, store LedgerStore, userID, batchID string, raw []domain.RawTransaction) (*Result, error) {
	log := logger.FromContext(ctx)

	survivors, dropped := dedupeWithinBatch(raw)

	entries := make([]*domain.LedgerEntry, 0, len(survivors))
	hashes := make([]string, 0, len(survivors))
	now := time.Now().UTC()

	for _, rt := range survivors {
		can, err := canonical.Canonicalize(rt)
		if err != nil {
			return nil, fmt.Errorf("dedupe.Run: line %d: %w", rt.LineNo, err)
		}
		hash := canonical.TransactionHash(can.PostedDate, can.AmountMinor, can.NormalizedMerchant)
		entries = append(entries, &domain.LedgerEntry{
			TransactionID:   canonical.TransactionID(userID, batchID, can.PostedDate, can.AmountMinor, can.NormalizedMerchant, rt.LineNo),
			TransactionHash: hash,
			UserID:          userID,
			BatchID:         batchID,
			PostedDate:      can.PostedDate,
			Merchant:        rt.Merchant,
			AmountMinor:     can.AmountMinor,
			Direction:       rt.Direction,
			Category:        rt.Category,
			OccurrenceCount: 1,
			FirstSeenAt:     now,
		})
		hashes = append(hashes, hash)
	}

	seen, err := store.LookupHashes(ctx, userID, hashes)
	if err != nil {
		return nil, fmt.Errorf("dedupe.Run: hash lookup: %w", err)
	}

	var fresh []*domain.LedgerEntry
	var repeats []string
	for _, e := range entries {
		if seen[e.TransactionHash] {
			repeats = append(repeats, e.TransactionHash)
			continue
		}
		fresh = append(fresh, e)
	}

	if len(fresh) > 0 {
		if err := store.InsertEntries(ctx, fresh); err != nil {
			return nil, fmt.Errorf("dedupe.Run: insert: %w", err)
		}
	}
	if len(repeats) > 0 {
		if err := store.IncrementOccurrences(ctx, userID, repeats); err != nil {
			return nil, fmt.Errorf("dedupe.Run: increment occurrences: %w", err)
		}
	}

	log.Info().
		Str("user_id", userID).
		Str("batch_id", batchID).
		Int("new", len(fresh)).
		Int("duplicates", len(repeats)).
		Int("intra_batch_dropped", dropped).
		Msg("Dedup run completed")

	return &Result{
		Inserted:          fresh,
		NewCount:          len(fresh),
		DuplicateCount:    len(repeats),
		IntraBatchDropped: dropped,
	}, nil
}

// dedupeWithinBatch keeps only the first occurrence of each
// (date, merchant, ~amount) triple, in input order. Merchant and date
// compare exactly; amounts compare within 0.01 currency units.
func dedupeWithinBatch(raw []domain.RawTransaction) ([]domain.RawTransaction, int) {
	type key struct {
		date     string
		merchant string
	}
	seen := make(map[key][]int64)
	out := make([]domain.RawTransaction, 0, len(raw))
	dropped := 0

	for _, rt := range raw {
		k := key{date: rt.Date, merchant: rt.Merchant}
		minor := canonical.AmountToMinor(rt.Amount)
		dup := false
		for _, prev := range seen[k] {
			if diff := prev - minor; diff >= -amountToleranceMinor && diff <= amountToleranceMinor {
				dup = true
				break
			}
		}
		if dup {
			dropped++
			continue
		}
		seen[k] = append(seen[k], minor)
		out = append(out, rt)
	}

	return out, dropped
}
