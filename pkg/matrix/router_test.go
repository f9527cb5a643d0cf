package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helmward/agentgov/pkg/model"
)

func TestRoute_InfoAlwaysGreen(t *testing.T) {
	result := Route(model.BandUntrusted, model.RiskInfo)
	assert.Equal(t, model.PathGreen, result.Path)
	assert.False(t, result.RequiresCouncil)
}

func TestRoute_UntrustedHighRiskRoutesRedAndRequiresHuman(t *testing.T) {
	result := Route(model.BandUntrusted, model.RiskHigh)
	assert.Equal(t, model.PathRed, result.Path)
	assert.True(t, result.RequiresCouncil)
	assert.True(t, result.RequiresHuman)
}

func TestRoute_CertifiedLowRiskRoutesGreenWithoutCouncil(t *testing.T) {
	result := Route(model.BandCertified, model.RiskLow)
	assert.Equal(t, model.PathGreen, result.Path)
	assert.False(t, result.RequiresCouncil)
}

func TestRoute_MonotonicAcrossBandsForFixedRisk(t *testing.T) {
	bands := []model.Band{
		model.BandUntrusted, model.BandProvisional, model.BandEstablished,
		model.BandTrusted, model.BandVerified, model.BandCertified,
	}
	pathRank := map[model.RoutingPath]int{model.PathRed: 0, model.PathYellow: 1, model.PathGreen: 2}

	prev := -1
	for _, b := range bands {
		r := Route(b, model.RiskHigh)
		rank := pathRank[r.Path]
		assert.GreaterOrEqual(t, rank, prev, "higher trust band should never route to a worse path for the same risk")
		prev = rank
	}
}

func TestRoute_VerifiedCriticalRiskRoutesRedAndRequiresHuman(t *testing.T) {
	result := Route(model.BandVerified, model.RiskCritical)
	assert.Equal(t, model.PathRed, result.Path)
	assert.True(t, result.RequiresCouncil)
	assert.True(t, result.RequiresHuman)
}

func TestRoute_UnknownRiskFailsClosed(t *testing.T) {
	result := Route(model.BandCertified, model.RiskLevel("unknown"))
	assert.Equal(t, model.PathRed, result.Path)
	assert.True(t, result.RequiresHuman)
}
