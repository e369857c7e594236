package indicator

import (
	"encoding/json"
	"fmt"
	"math"

	"IndiCache/internal/domain/models"
)

// DefaultRSIPeriod is the conventional Wilder smoothing window.
const DefaultRSIPeriod = 14

// RSI computes Wilder's relative strength index over one period.
type RSI struct {
	period int
	fields []string
}

type rsiState struct {
	Count     int     `json:"count"`
	LastDate  string  `json:"last_date"`
	PrevClose float64 `json:"prev_close"`
	AvgGain   float64 `json:"avg_gain"`
	AvgLoss   float64 `json:"avg_loss"`
}

func (s *rsiState) Encode() ([]byte, error) { return json.Marshal(s) }

// NewRSI builds an RSI plugin; period <= 0 falls back to the default.
func NewRSI(period int) *RSI {
	if period <= 0 {
		period = DefaultRSIPeriod
	}
	return &RSI{period: period, fields: []string{fmt.Sprintf("RSI%d", period)}}
}

func (r *RSI) Name() string         { return "rsi" }
func (r *RSI) FieldNames() []string { return r.fields }

// MinLookback is period+1: the first delta needs a prior close.
func (r *RSI) MinLookback() int { return r.period + 1 }

func (r *RSI) NewState() State { return &rsiState{} }

func (r *RSI) DecodeState(data []byte) (State, error) {
	st := &rsiState{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decode rsi state: %w", err)
	}
	return st, nil
}

func (r *RSI) Compute(bars []models.Bar, st State) ([]models.IndicatorRow, State, error) {
	rs, ok := st.(*rsiState)
	if !ok {
		return nil, nil, fmt.Errorf("rsi: unexpected state type %T", st)
	}
	if err := checkOrder(rs.LastDate, bars); err != nil {
		return nil, nil, err
	}

	n := float64(r.period)
	rows := make([]models.IndicatorRow, 0, len(bars))
	for _, b := range bars {
		rs.Count++
		rs.LastDate = b.Date
		if rs.Count == 1 {
			rs.PrevClose = b.Close
			continue
		}

		gain, loss := 0.0, 0.0
		delta := b.Close - rs.PrevClose
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		rs.PrevClose = b.Close

		// Wilder smoothing: plain average for the seed window, recursive after.
		deltas := rs.Count - 1
		switch {
		case deltas < r.period:
			rs.AvgGain += gain / n
			rs.AvgLoss += loss / n
			continue
		case deltas == r.period:
			rs.AvgGain += gain / n
			rs.AvgLoss += loss / n
		default:
			rs.AvgGain = (rs.AvgGain*(n-1) + gain) / n
			rs.AvgLoss = (rs.AvgLoss*(n-1) + loss) / n
		}

		var v models.Value
		if math.Abs(rs.AvgLoss) < 1e-12 {
			v = models.Num(100)
		} else {
			v = models.Num(100 - 100/(1+rs.AvgGain/rs.AvgLoss))
		}
		rows = append(rows, models.IndicatorRow{Date: b.Date, Values: []models.Value{v}})
	}
	return rows, rs, nil
}
