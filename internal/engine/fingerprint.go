package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"IndiCache/internal/domain/models"
)

// Fingerprint content-hashes a bar sequence. Equal content yields an equal
// fingerprint; any change anywhere yields a different one. The same
// function fingerprints whole series and date-bounded prefixes, which is
// what the append/dirty distinction rests on.
func Fingerprint(bars []models.Bar) string {
	h := sha256.New()
	buf := make([]byte, 0, 96)
	for _, b := range bars {
		buf = buf[:0]
		buf = append(buf, b.Date...)
		for _, f := range [...]float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
			buf = append(buf, ',')
			buf = strconv.AppendFloat(buf, f, 'g', -1, 64)
		}
		buf = append(buf, '\n')
		h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FingerprintThrough hashes the series prefix up to and including date.
func FingerprintThrough(s *models.SymbolSeries, date string) string {
	return Fingerprint(s.PrefixThrough(date))
}

// shortFP abbreviates a fingerprint for log output.
func shortFP(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
