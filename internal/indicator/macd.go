package indicator

import (
	"encoding/json"
	"fmt"

	"IndiCache/internal/domain/models"
)

// Standard MACD parameters.
const (
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

var macdFields = []string{"DIF", "DEA", "MACD"}

// MACD computes DIF (fast EMA minus slow EMA), DEA (signal EMA of DIF) and
// the MACD histogram 2*(DIF-DEA).
type MACD struct{}

type macdState struct {
	Count    int     `json:"count"`
	LastDate string  `json:"last_date"`
	Fast     float64 `json:"fast"`
	Slow     float64 `json:"slow"`
	DEA      float64 `json:"dea"`
	DEACount int     `json:"dea_count"` // bars seen by the signal accumulator
}

func (s *macdState) Encode() ([]byte, error) { return json.Marshal(s) }

// NewMACD builds the MACD plugin with the standard 12/26/9 parameters.
func NewMACD() *MACD { return &MACD{} }

func (m *MACD) Name() string         { return "macd" }
func (m *MACD) FieldNames() []string { return macdFields }

// MinLookback spans the slow EMA warmup plus the signal warmup.
func (m *MACD) MinLookback() int { return macdSlow + macdSignal - 1 }

func (m *MACD) NewState() State { return &macdState{} }

func (m *MACD) DecodeState(data []byte) (State, error) {
	st := &macdState{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decode macd state: %w", err)
	}
	return st, nil
}

func (m *MACD) Compute(bars []models.Bar, st State) ([]models.IndicatorRow, State, error) {
	ms, ok := st.(*macdState)
	if !ok {
		return nil, nil, fmt.Errorf("macd: unexpected state type %T", st)
	}
	if err := checkOrder(ms.LastDate, bars); err != nil {
		return nil, nil, err
	}

	look := m.MinLookback()
	rows := make([]models.IndicatorRow, 0, len(bars))
	for _, b := range bars {
		ms.Count++
		ms.LastDate = b.Date
		ms.Fast = emaStep(ms.Fast, b.Close, macdFast, ms.Count)
		ms.Slow = emaStep(ms.Slow, b.Close, macdSlow, ms.Count)
		dif := ms.Fast - ms.Slow

		// The signal line only starts accumulating once the slow EMA is warm.
		if ms.Count >= macdSlow {
			ms.DEACount++
			ms.DEA = emaStep(ms.DEA, dif, macdSignal, ms.DEACount)
		}

		if ms.Count < look {
			continue
		}
		hist := 2 * (dif - ms.DEA)
		rows = append(rows, models.IndicatorRow{
			Date:   b.Date,
			Values: []models.Value{models.Num(dif), models.Num(ms.DEA), models.Num(hist)},
		})
	}
	return rows, ms, nil
}
