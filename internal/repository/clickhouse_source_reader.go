package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"IndiCache/internal/domain/models"
	pkgch "IndiCache/pkg/clickhouse"
	applogger "IndiCache/pkg/logger"
)

// CHSourceReader reads per-symbol daily bars out of ClickHouse, ordered
// ascending by date. Ordering is delegated to the query; Validate on the
// returned series still guards against duplicates upstream.
type CHSourceReader struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewCHSourceReader wraps an established client for one bar table.
func NewCHSourceReader(ch *pkgch.Client, table string) *CHSourceReader {
	if table == "" {
		table = "daily_bars"
	}
	return &CHSourceReader{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (r *CHSourceReader) SetLogger(l *applogger.Logger) { r.l = l }

// ReadSeries returns the full ordered history for one symbol.
func (r *CHSourceReader) ReadSeries(ctx context.Context, code string) (*models.SymbolSeries, error) {
	start := time.Now()
	const qtpl = `
        SELECT toString(trade_date), open, high, low, close, volume
        FROM %s
        WHERE code = ?
        ORDER BY trade_date ASC
    `
	q := fmt.Sprintf(qtpl, r.table)
	rows, err := r.db.QueryContext(ctx, q, code)
	if err != nil {
		if r.l != nil {
			r.l.Error("clickhouse read_series query error",
				applogger.String("table", r.table),
				applogger.String("symbol", code),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("read series: %w", err)
	}
	defer rows.Close()

	bars := make([]models.Bar, 0, 1024)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			if r.l != nil {
				r.l.Error("clickhouse read_series scan error",
					applogger.String("table", r.table),
					applogger.String("symbol", code),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		if r.l != nil {
			r.l.Error("clickhouse read_series rows error",
				applogger.String("table", r.table),
				applogger.String("symbol", code),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("rows: %w", err)
	}
	if r.l != nil {
		r.l.Debug("clickhouse read_series ok",
			applogger.String("table", r.table),
			applogger.String("symbol", code),
			applogger.Int("bars", len(bars)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return &models.SymbolSeries{Code: code, Bars: bars}, nil
}
