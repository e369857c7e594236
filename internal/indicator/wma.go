package indicator

import (
	"encoding/json"
	"fmt"

	"IndiCache/internal/domain/models"
)

// DefaultWMAPeriods favor the short end where linear weighting matters most.
var DefaultWMAPeriods = []int{3, 5, 10, 20}

// WMA computes linearly weighted moving averages of the close: the newest
// bar carries weight p, the oldest weight 1.
type WMA struct {
	periods []int
	fields  []string
}

type wmaState struct {
	Count    int       `json:"count"`
	LastDate string    `json:"last_date"`
	Closes   []float64 `json:"closes"`
}

func (s *wmaState) Encode() ([]byte, error) { return json.Marshal(s) }

// NewWMA builds a WMA plugin; empty periods fall back to the defaults.
func NewWMA(periods []int) *WMA {
	if len(periods) == 0 {
		periods = DefaultWMAPeriods
	}
	fields := make([]string, len(periods))
	for i, p := range periods {
		fields[i] = fmt.Sprintf("WMA%d", p)
	}
	return &WMA{periods: periods, fields: fields}
}

func (w *WMA) Name() string         { return "wma" }
func (w *WMA) FieldNames() []string { return w.fields }
func (w *WMA) MinLookback() int     { return maxPeriod(w.periods) }

func (w *WMA) NewState() State { return &wmaState{} }

func (w *WMA) DecodeState(data []byte) (State, error) {
	st := &wmaState{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decode wma state: %w", err)
	}
	return st, nil
}

func weightedMean(buf []float64, p int) float64 {
	window := buf[len(buf)-p:]
	var sum, wsum float64
	for i, v := range window {
		weight := float64(i + 1)
		sum += v * weight
		wsum += weight
	}
	return sum / wsum
}

func (w *WMA) Compute(bars []models.Bar, st State) ([]models.IndicatorRow, State, error) {
	ws, ok := st.(*wmaState)
	if !ok {
		return nil, nil, fmt.Errorf("wma: unexpected state type %T", st)
	}
	if err := checkOrder(ws.LastDate, bars); err != nil {
		return nil, nil, err
	}

	look := w.MinLookback()
	rows := make([]models.IndicatorRow, 0, len(bars))
	for _, b := range bars {
		ws.Closes = pushCap(ws.Closes, b.Close, look)
		ws.Count++
		ws.LastDate = b.Date
		if ws.Count < look {
			continue
		}
		values := make([]models.Value, len(w.periods))
		for i, p := range w.periods {
			values[i] = models.Num(weightedMean(ws.Closes, p))
		}
		rows = append(rows, models.IndicatorRow{Date: b.Date, Values: values})
	}
	return rows, ws, nil
}
