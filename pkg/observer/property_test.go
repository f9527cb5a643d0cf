//go:build property
// +build property

package observer_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/helmward/agentgov/pkg/model"
	"github.com/helmward/agentgov/pkg/observer"
)

func testKey(agentID string) ([]byte, error) {
	return []byte("prop-test-key-" + agentID), nil
}

// TestChainNeverSkipsOrDuplicatesSequence verifies that for any sequence
// of appends, VerifyChain always reports a gap-free, unbroken chain.
func TestChainNeverSkipsOrDuplicatesSequence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("appending N events yields a verifiable gap-free chain", prop.ForAll(
		func(eventTypes []string) bool {
			if len(eventTypes) == 0 {
				return true
			}
			log := observer.New(testKey)
			for _, et := range eventTypes {
				if _, err := log.Append("test", et, model.RiskLow, "agent-1", "", nil); err != nil {
					return false
				}
			}
			return log.VerifyChain() == nil && log.Len() == len(eventTypes)
		},
		gen.SliceOfN(20, gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// TestEveryAppendedEventSignatureVerifies checks the HMAC signature
// integrity invariant: any event just appended must verify against its
// own agent's key.
func TestEveryAppendedEventSignatureVerifies(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("appended events always verify their own signature", prop.ForAll(
		func(agentID, eventType string) bool {
			if agentID == "" {
				agentID = "agent-default"
			}
			log := observer.New(testKey)
			event, err := log.Append("test", eventType, model.RiskLow, agentID, "", nil)
			if err != nil {
				return false
			}
			ok, err := log.VerifySignature(event)
			return err == nil && ok
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
