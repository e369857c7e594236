package indicator

import (
	"encoding/json"
	"fmt"

	"IndiCache/internal/domain/models"
)

// DefaultSMAPeriods mirror the common short/medium/long trend windows.
var DefaultSMAPeriods = []int{5, 10, 20, 60}

// SMA computes simple moving averages of the close over several periods.
type SMA struct {
	periods []int
	fields  []string
}

type smaState struct {
	Count    int       `json:"count"`
	LastDate string    `json:"last_date"`
	Closes   []float64 `json:"closes"`
}

func (s *smaState) Encode() ([]byte, error) { return json.Marshal(s) }

// NewSMA builds an SMA plugin; empty periods fall back to the defaults.
func NewSMA(periods []int) *SMA {
	if len(periods) == 0 {
		periods = DefaultSMAPeriods
	}
	fields := make([]string, len(periods))
	for i, p := range periods {
		fields[i] = fmt.Sprintf("SMA%d", p)
	}
	return &SMA{periods: periods, fields: fields}
}

func (s *SMA) Name() string         { return "sma" }
func (s *SMA) FieldNames() []string { return s.fields }
func (s *SMA) MinLookback() int     { return maxPeriod(s.periods) }

func (s *SMA) NewState() State { return &smaState{} }

func (s *SMA) DecodeState(data []byte) (State, error) {
	st := &smaState{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decode sma state: %w", err)
	}
	return st, nil
}

func (s *SMA) Compute(bars []models.Bar, st State) ([]models.IndicatorRow, State, error) {
	ss, ok := st.(*smaState)
	if !ok {
		return nil, nil, fmt.Errorf("sma: unexpected state type %T", st)
	}
	if err := checkOrder(ss.LastDate, bars); err != nil {
		return nil, nil, err
	}

	look := s.MinLookback()
	rows := make([]models.IndicatorRow, 0, len(bars))
	for _, b := range bars {
		ss.Closes = pushCap(ss.Closes, b.Close, look)
		ss.Count++
		ss.LastDate = b.Date
		if ss.Count < look {
			continue
		}
		values := make([]models.Value, len(s.periods))
		for i, p := range s.periods {
			values[i] = models.Num(mean(ss.Closes, p))
		}
		rows = append(rows, models.IndicatorRow{Date: b.Date, Values: values})
	}
	return rows, ss, nil
}
