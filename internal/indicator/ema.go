package indicator

import (
	"encoding/json"
	"fmt"

	"IndiCache/internal/domain/models"
)

// DefaultEMAPeriods are the MACD standard fast/slow windows.
var DefaultEMAPeriods = []int{12, 26}

// EMA computes exponential moving averages of the close. The recursive
// accumulator lives in the carried state, so an append never replays the
// historical series.
type EMA struct {
	periods []int
	fields  []string
}

type emaState struct {
	Count    int       `json:"count"`
	LastDate string    `json:"last_date"`
	Values   []float64 `json:"values"` // one accumulator per period, seeded by the first close
}

func (s *emaState) Encode() ([]byte, error) { return json.Marshal(s) }

// NewEMA builds an EMA plugin; empty periods fall back to the defaults.
func NewEMA(periods []int) *EMA {
	if len(periods) == 0 {
		periods = DefaultEMAPeriods
	}
	fields := make([]string, len(periods))
	for i, p := range periods {
		fields[i] = fmt.Sprintf("EMA%d", p)
	}
	return &EMA{periods: periods, fields: fields}
}

func (e *EMA) Name() string         { return "ema" }
func (e *EMA) FieldNames() []string { return e.fields }
func (e *EMA) MinLookback() int     { return maxPeriod(e.periods) }

func (e *EMA) NewState() State { return &emaState{} }

func (e *EMA) DecodeState(data []byte) (State, error) {
	st := &emaState{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decode ema state: %w", err)
	}
	if n := len(st.Values); st.Count > 0 && n != len(e.periods) {
		return nil, fmt.Errorf("ema state has %d accumulators, plugin has %d periods", n, len(e.periods))
	}
	return st, nil
}

// step advances one accumulator: seeded with the first close, recursive
// alpha smoothing afterwards.
func emaStep(prev, close float64, period, count int) float64 {
	if count == 1 {
		return close
	}
	alpha := 2.0 / (float64(period) + 1.0)
	return alpha*close + (1-alpha)*prev
}

func (e *EMA) Compute(bars []models.Bar, st State) ([]models.IndicatorRow, State, error) {
	es, ok := st.(*emaState)
	if !ok {
		return nil, nil, fmt.Errorf("ema: unexpected state type %T", st)
	}
	if err := checkOrder(es.LastDate, bars); err != nil {
		return nil, nil, err
	}
	if es.Values == nil {
		es.Values = make([]float64, len(e.periods))
	}

	look := e.MinLookback()
	rows := make([]models.IndicatorRow, 0, len(bars))
	for _, b := range bars {
		es.Count++
		es.LastDate = b.Date
		for i, p := range e.periods {
			es.Values[i] = emaStep(es.Values[i], b.Close, p, es.Count)
		}
		if es.Count < look {
			continue
		}
		values := make([]models.Value, len(e.periods))
		for i := range e.periods {
			values[i] = models.Num(es.Values[i])
		}
		rows = append(rows, models.IndicatorRow{Date: b.Date, Values: values})
	}
	return rows, es, nil
}
