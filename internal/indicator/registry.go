package indicator

import (
	"fmt"
	"sort"
)

// Params carries per-family tuning taken from configuration. Zero values
// select each family's defaults.
type Params struct {
	SMAPeriods []int
	EMAPeriods []int
	WMAPeriods []int
	RSIPeriod  int
	PVPeriods  []int
}

var factories = map[string]func(Params) Plugin{
	"sma":  func(p Params) Plugin { return NewSMA(p.SMAPeriods) },
	"ema":  func(p Params) Plugin { return NewEMA(p.EMAPeriods) },
	"wma":  func(p Params) Plugin { return NewWMA(p.WMAPeriods) },
	"macd": func(Params) Plugin { return NewMACD() },
	"rsi":  func(p Params) Plugin { return NewRSI(p.RSIPeriod) },
	"obv":  func(Params) Plugin { return NewOBV() },
	"pv":   func(p Params) Plugin { return NewPV(p.PVPeriods) },
}

// Known lists the registered family names, sorted.
func Known() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build instantiates the named families. The scheduler and orchestrator
// never special-case a formula; this is the only place names are resolved.
func Build(names []string, p Params) ([]Plugin, error) {
	plugins := make([]Plugin, 0, len(names))
	for _, name := range names {
		factory, ok := factories[name]
		if !ok {
			return nil, fmt.Errorf("unknown indicator family %q (known: %v)", name, Known())
		}
		plugins = append(plugins, factory(p))
	}
	return plugins, nil
}
