package records_test

import (
	"testing"

	"github.com/Mindburn-Labs/thawgate/pkg/records"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: every valid list config decodes to exactly what was encoded.
func TestListConfigRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("mode, seed and counter survive encoding", prop.ForAll(
		func(mode uint8, count uint64, seed []byte, auth []byte) bool {
			cfg := records.ListConfig{MemberCount: count, Mode: records.Mode(mode)}
			copy(cfg.Seed[:], seed)
			copy(cfg.Authority[:], auth)

			got, err := records.Load[records.ListConfig](records.Encode(&cfg))
			if err != nil {
				return false
			}
			return *got == cfg
		},
		gen.UInt8Range(0, 2),
		gen.UInt64(),
		gen.SliceOfN(32, gen.UInt8()),
		gen.SliceOfN(32, gen.UInt8()),
	))

	properties.TestingRun(t)
}

// Property: n increments followed by n decrements restore the counter.
func TestMemberCounterRestoresProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("add then remove is identity", prop.ForAll(
		func(start uint64, n int) bool {
			cfg := records.ListConfig{MemberCount: start}
			for i := 0; i < n; i++ {
				if err := cfg.IncrementMembers(); err != nil {
					return false
				}
			}
			for i := 0; i < n; i++ {
				if err := cfg.DecrementMembers(); err != nil {
					return false
				}
			}
			return cfg.MemberCount == start
		},
		gen.UInt64Range(0, 1<<40),
		gen.IntRange(0, 64),
	))

	properties.TestingRun(t)
}
