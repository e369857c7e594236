package models

import (
	"encoding/json"
	"time"
)

// CacheEntry is the persisted per-(symbol, indicator family) compute state.
// It is owned exclusively by the cache store: created on first successful
// compute, updated after every successful compute, deleted and recreated on
// full invalidation.
//
// Fingerprint is always the fingerprint of the source series as of LastDate,
// so a single stored hash serves both the unchanged (skip) check and the
// prefix-match (append) check.
type CacheEntry struct {
	Code         string          `json:"code"`
	Family       string          `json:"family"`
	Fingerprint  string          `json:"fingerprint"`
	LastDate     string          `json:"last_date"`
	RowCount     int             `json:"row_count"`
	PluginState  json.RawMessage `json:"plugin_state,omitempty"`
	LastCalcTime time.Time       `json:"last_calc_time"`
}
