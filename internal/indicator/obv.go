package indicator

import (
	"encoding/json"
	"fmt"

	"IndiCache/internal/domain/models"
)

const obvMAPeriod = 10

var obvFields = []string{"OBV", fmt.Sprintf("OBV_MA%d", obvMAPeriod)}

// OBV computes on-balance volume plus a short moving average of it. The
// moving-average field stays null until its own window fills; the row
// itself exists from the first bar.
type OBV struct{}

type obvState struct {
	Count     int       `json:"count"`
	LastDate  string    `json:"last_date"`
	Total     float64   `json:"total"`
	PrevClose float64   `json:"prev_close"`
	Recent    []float64 `json:"recent"` // trailing OBV values for the MA
}

func (s *obvState) Encode() ([]byte, error) { return json.Marshal(s) }

// NewOBV builds the OBV plugin.
func NewOBV() *OBV { return &OBV{} }

func (o *OBV) Name() string         { return "obv" }
func (o *OBV) FieldNames() []string { return obvFields }
func (o *OBV) MinLookback() int     { return 1 }

func (o *OBV) NewState() State { return &obvState{} }

func (o *OBV) DecodeState(data []byte) (State, error) {
	st := &obvState{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decode obv state: %w", err)
	}
	return st, nil
}

func (o *OBV) Compute(bars []models.Bar, st State) ([]models.IndicatorRow, State, error) {
	os, ok := st.(*obvState)
	if !ok {
		return nil, nil, fmt.Errorf("obv: unexpected state type %T", st)
	}
	if err := checkOrder(os.LastDate, bars); err != nil {
		return nil, nil, err
	}

	rows := make([]models.IndicatorRow, 0, len(bars))
	for _, b := range bars {
		os.Count++
		if os.Count > 1 {
			switch {
			case b.Close > os.PrevClose:
				os.Total += b.Volume
			case b.Close < os.PrevClose:
				os.Total -= b.Volume
			}
		}
		os.PrevClose = b.Close
		os.LastDate = b.Date
		os.Recent = pushCap(os.Recent, os.Total, obvMAPeriod)

		ma := models.Null()
		if len(os.Recent) == obvMAPeriod {
			ma = models.Num(mean(os.Recent, obvMAPeriod))
		}
		rows = append(rows, models.IndicatorRow{
			Date:   b.Date,
			Values: []models.Value{models.Num(os.Total), ma},
		})
	}
	return rows, os, nil
}
