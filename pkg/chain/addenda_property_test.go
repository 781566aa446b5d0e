//go:build property
// +build property

package chain_test

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/greywatch/driftwatch/pkg/chain"
)

// TestChainVerifyHoldsForAnyValidSequence verifies invariant 4's first
// half: any chain built purely through Append verifies clean from genesis.
func TestChainVerifyHoldsForAnyValidSequence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("a chain built only through Append always verifies", prop.ForAll(
		func(values []string) bool {
			c := chain.New()
			var entries []chain.Entry
			for i, v := range values {
				e, err := c.Append(map[string]any{"v": v}, timestampText(i))
				if err != nil {
					return false
				}
				entries = append(entries, e)
			}
			ok, bad := chain.Verify(entries)
			return ok && bad == -1
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// TestChainVerifyDetectsSingleEntryTamper verifies invariant 4's second
// half: corrupting any one entry's data breaks verification at or after
// that index.
func TestChainVerifyDetectsSingleEntryTamper(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("tampering entry i fails verification at index >= i", prop.ForAll(
		func(values []string, tamperAt int) bool {
			if len(values) == 0 {
				return true
			}
			c := chain.New()
			var entries []chain.Entry
			for i, v := range values {
				e, _ := c.Append(map[string]any{"v": v}, timestampText(i))
				entries = append(entries, e)
			}
			idx := ((tamperAt % len(entries)) + len(entries)) % len(entries)
			entries[idx].Data = map[string]any{"v": "TAMPERED"}

			ok, bad := chain.Verify(entries)
			return !ok && bad >= idx
		},
		gen.SliceOf(gen.AlphaString()),
		gen.Int(),
	))

	properties.TestingRun(t)
}

func timestampText(i int) string {
	return strconv.Itoa(1000 + i)
}
