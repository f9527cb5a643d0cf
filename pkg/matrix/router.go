// Package matrix implements the Matrix Router (spec §4.2a): a 6x4 lookup
// from trust band x risk level to a routing path, plus the lexicographic
// hierarchy-of-concerns evaluator (§4.2b) layered on top of it. Neither
// has a direct teacher analogue; both are written in the idiom of
// pkg/governance/risk_envelope.go (small struct-returning pure functions
// over an explicit RiskLevel enum) and pkg/governance/swarm_pdp.go's
// enum-keyed routing tables.
package matrix

import "github.com/helmward/agentgov/pkg/model"

// cell is one entry of the trust-band x risk-level routing table.
type cell struct {
	path            model.RoutingPath
	maxLatencyMs    int64
	requiresCouncil bool
	requiresHuman   bool
}

// table is the 6 (band) x 4 (risk, excluding info) routing matrix of spec
// §4.2a. RiskInfo always routes green regardless of band and is handled
// as a fast path in Route rather than a table row.
var table = map[model.Band]map[model.RiskLevel]cell{
	model.BandUntrusted: {
		model.RiskLow:      {model.PathRed, 750, true, true},
		model.RiskMedium:   {model.PathRed, 500, true, true},
		model.RiskHigh:     {model.PathRed, 500, true, true},
		model.RiskCritical: {model.PathRed, 250, true, true},
	},
	model.BandProvisional: {
		model.RiskLow:      {model.PathYellow, 1500, true, false},
		model.RiskMedium:   {model.PathRed, 750, true, true},
		model.RiskHigh:     {model.PathRed, 500, true, true},
		model.RiskCritical: {model.PathRed, 250, true, true},
	},
	model.BandEstablished: {
		model.RiskLow:      {model.PathGreen, 3000, false, false},
		model.RiskMedium:   {model.PathYellow, 1500, true, false},
		model.RiskHigh:     {model.PathRed, 500, true, true},
		model.RiskCritical: {model.PathRed, 250, true, true},
	},
	model.BandTrusted: {
		model.RiskLow:      {model.PathGreen, 4000, false, false},
		model.RiskMedium:   {model.PathYellow, 2000, true, false},
		model.RiskHigh:     {model.PathYellow, 1000, true, false},
		model.RiskCritical: {model.PathRed, 500, true, true},
	},
	model.BandVerified: {
		model.RiskLow:      {model.PathGreen, 5000, false, false},
		model.RiskMedium:   {model.PathGreen, 4000, false, false},
		model.RiskHigh:     {model.PathYellow, 2000, true, false},
		model.RiskCritical: {model.PathRed, 750, true, true},
	},
	model.BandCertified: {
		model.RiskLow:      {model.PathGreen, 5000, false, false},
		model.RiskMedium:   {model.PathGreen, 5000, false, false},
		model.RiskHigh:     {model.PathYellow, 3000, true, false},
		model.RiskCritical: {model.PathRed, 1000, true, true},
	},
}

// Route looks up the routing cell for a band/risk pair and renders it as
// a RoutingResult with an explanatory reasoning trail.
func Route(band model.Band, risk model.RiskLevel) model.RoutingResult {
	if risk == model.RiskInfo {
		return model.RoutingResult{
			Path:         model.PathGreen,
			MaxLatencyMs: 5000,
			Reasoning:    []string{"info-level risk always routes green"},
		}
	}

	row, ok := table[model.ClampBand(band)]
	if !ok {
		return failClosed(band, risk)
	}
	c, ok := row[risk]
	if !ok {
		return failClosed(band, risk)
	}

	return model.RoutingResult{
		Path:            c.path,
		MaxLatencyMs:    c.maxLatencyMs,
		RequiresCouncil: c.requiresCouncil,
		RequiresHuman:   c.requiresHuman,
		Reasoning:       []string{"matrix[" + band.String() + "][" + string(risk) + "] -> " + string(c.path)},
	}
}

// failClosed is the matrix's default-deny cell for any band/risk
// combination it does not recognize (e.g. a future risk level added
// without a matching table row).
func failClosed(band model.Band, risk model.RiskLevel) model.RoutingResult {
	return model.RoutingResult{
		Path:            model.PathRed,
		MaxLatencyMs:    250,
		RequiresCouncil: true,
		RequiresHuman:   true,
		Reasoning:       []string{"no matrix entry for band/risk combination, failing closed"},
	}
}
