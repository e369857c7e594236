package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"IndiCache/internal/domain/models"
)

type countingReader struct {
	calls int
	fail  bool
}

func (r *countingReader) ReadSeries(_ context.Context, code string) (*models.SymbolSeries, error) {
	r.calls++
	if r.fail {
		return nil, errors.New("source down")
	}
	return &models.SymbolSeries{Code: code, Bars: []models.Bar{{Date: "2024-03-08", Close: 10}}}, nil
}

func TestCachedSourceReaderMemoizes(t *testing.T) {
	inner := &countingReader{}
	reader := NewCachedSourceReader(inner, 16, time.Minute)
	ctx := context.Background()

	first, err := reader.ReadSeries(ctx, "600000")
	require.NoError(t, err)
	second, err := reader.ReadSeries(ctx, "600000")
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)
	require.Same(t, first, second)

	_, err = reader.ReadSeries(ctx, "600001")
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestCachedSourceReaderDoesNotCacheErrors(t *testing.T) {
	inner := &countingReader{fail: true}
	reader := NewCachedSourceReader(inner, 16, time.Minute)
	ctx := context.Background()

	_, err := reader.ReadSeries(ctx, "600000")
	require.Error(t, err)
	inner.fail = false
	series, err := reader.ReadSeries(ctx, "600000")
	require.NoError(t, err)
	require.Equal(t, "600000", series.Code)
	require.Equal(t, 2, inner.calls)
}
