package indicator

import (
	"encoding/json"
	"fmt"
	"math"

	"IndiCache/internal/domain/models"
)

// DefaultPVPeriods are the price-volume correlation analysis windows.
var DefaultPVPeriods = []int{10, 20, 30}

const volumeRatioPeriod = 20

// PV measures price-volume agreement: Pearson correlation between close
// and volume over several windows, plus the current volume relative to its
// moving average. Degenerate windows (flat price or volume) yield nulls.
type PV struct {
	periods []int
	fields  []string
}

type pvState struct {
	Count    int       `json:"count"`
	LastDate string    `json:"last_date"`
	Closes   []float64 `json:"closes"`
	Volumes  []float64 `json:"volumes"`
}

func (s *pvState) Encode() ([]byte, error) { return json.Marshal(s) }

// NewPV builds a PV plugin; empty periods fall back to the defaults.
func NewPV(periods []int) *PV {
	if len(periods) == 0 {
		periods = DefaultPVPeriods
	}
	fields := make([]string, 0, len(periods)+1)
	for _, p := range periods {
		fields = append(fields, fmt.Sprintf("PVCORR%d", p))
	}
	fields = append(fields, fmt.Sprintf("VR%d", volumeRatioPeriod))
	return &PV{periods: periods, fields: fields}
}

func (p *PV) Name() string         { return "pv" }
func (p *PV) FieldNames() []string { return p.fields }

func (p *PV) MinLookback() int {
	m := maxPeriod(p.periods)
	if volumeRatioPeriod > m {
		m = volumeRatioPeriod
	}
	return m
}

func (p *PV) NewState() State { return &pvState{} }

func (p *PV) DecodeState(data []byte) (State, error) {
	st := &pvState{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decode pv state: %w", err)
	}
	return st, nil
}

// correlation computes the Pearson coefficient over the trailing n pairs,
// returning null when either side has zero variance.
func correlation(xs, ys []float64, n int) models.Value {
	x := xs[len(xs)-n:]
	y := ys[len(ys)-n:]
	var sx, sy float64
	for i := 0; i < n; i++ {
		sx += x[i]
		sy += y[i]
	}
	mx, my := sx/float64(n), sy/float64(n)

	var cov, vx, vy float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-mx, y[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	return models.Ratio(cov, math.Sqrt(vx*vy))
}

func (p *PV) Compute(bars []models.Bar, st State) ([]models.IndicatorRow, State, error) {
	ps, ok := st.(*pvState)
	if !ok {
		return nil, nil, fmt.Errorf("pv: unexpected state type %T", st)
	}
	if err := checkOrder(ps.LastDate, bars); err != nil {
		return nil, nil, err
	}

	look := p.MinLookback()
	rows := make([]models.IndicatorRow, 0, len(bars))
	for _, b := range bars {
		ps.Closes = pushCap(ps.Closes, b.Close, look)
		ps.Volumes = pushCap(ps.Volumes, b.Volume, look)
		ps.Count++
		ps.LastDate = b.Date
		if ps.Count < look {
			continue
		}
		values := make([]models.Value, 0, len(p.periods)+1)
		for _, n := range p.periods {
			values = append(values, correlation(ps.Closes, ps.Volumes, n))
		}
		values = append(values, models.Ratio(b.Volume, mean(ps.Volumes, volumeRatioPeriod)))
		rows = append(rows, models.IndicatorRow{Date: b.Date, Values: values})
	}
	return rows, ps, nil
}
