package engine

import (
	"testing"

	"IndiCache/internal/indicator"
)

func TestSelfTestAllFamiliesPass(t *testing.T) {
	plugins, err := indicator.Build(indicator.Known(), indicator.Params{})
	if err != nil {
		t.Fatalf("build plugins: %v", err)
	}

	for _, r := range SelfTest(plugins) {
		if !r.Pass {
			t.Errorf("%s: %s", r.Family, r.Reason)
		}
	}
}
