package engine

import "IndiCache/internal/domain/models"

// Decision is the scheduler's verdict for one (symbol, family) pair.
type Decision struct {
	Action  models.Action
	NewBars []models.Bar // trailing bars to compute; whole series on FULL
}

// Classify decides whether cached output can be reused, extended, or must
// be rebuilt. Checks run in order:
//
//  1. no cache entry            -> FULL
//  2. forced flag               -> FULL
//  3. whole-series hash match   -> SKIP
//  4. prefix hash match through the cached last_date, with newer bars
//     trailing it              -> APPEND of the trailing bars
//  5. anything else (a historical row was corrected, backfilled, or
//     removed)                 -> FULL
//
// The stored fingerprint is always the hash of the series as of last_date,
// so step 3 and step 4 compare against the same value. Correct reuse hangs
// on the prefix comparison of step 4, not on a bare whole-hash mismatch.
func Classify(series *models.SymbolSeries, entry *models.CacheEntry, force bool) Decision {
	if entry == nil {
		return Decision{Action: models.ActionFull, NewBars: series.Bars}
	}
	if force {
		return Decision{Action: models.ActionFull, NewBars: series.Bars}
	}

	if Fingerprint(series.Bars) == entry.Fingerprint {
		return Decision{Action: models.ActionSkip}
	}

	newBars := series.BarsAfter(entry.LastDate)
	if len(newBars) > 0 && FingerprintThrough(series, entry.LastDate) == entry.Fingerprint {
		return Decision{Action: models.ActionAppend, NewBars: newBars}
	}

	return Decision{Action: models.ActionFull, NewBars: series.Bars}
}
