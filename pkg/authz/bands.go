// Package authz implements the Authorization Engine (spec §4.1): it turns
// an Intent plus an agent's TrustProfile into a Decision, applying the
// band/reversibility/sensitivity rules and the CEL pre/post-authorize
// hooks.
package authz

import "github.com/helmward/agentgov/pkg/model"

// bandForSensitivity is the per-sensitivity floor of spec §4.1 step 4,
// independent of reversibility and action type.
var bandForSensitivity = map[model.DataSensitivity]model.Band{
	model.SensitivityPublic:       model.BandUntrusted,
	model.SensitivityInternal:     model.BandProvisional,
	model.SensitivityConfidential: model.BandTrusted,
	model.SensitivityRestricted:   model.BandVerified,
}

// bandForAction is the per-action-type floor of spec §4.1 step 4. Actions
// that are hard to undo (delete, transfer) sit at a higher floor than
// read-only or communicative ones.
var bandForAction = map[model.ActionType]model.Band{
	model.ActionRead:        model.BandUntrusted,
	model.ActionCommunicate: model.BandUntrusted,
	model.ActionWrite:       model.BandProvisional,
	model.ActionExecute:     model.BandEstablished,
	model.ActionTransfer:    model.BandTrusted,
	model.ActionDelete:      model.BandVerified,
}

// reversibilityBump is spec §4.1 step 4's bump: irreversible actions add
// one band to the requirement, partial and reversible add none.
func reversibilityBump(r model.Reversibility) model.Band {
	if r == model.ReversibilityIrreversible {
		return 1
	}
	return 0
}

// bandScopes is the allowed-scope preset each band grants, per spec §4.1
// step 6's "band's allowed scope set". Only Certified carries a wildcard;
// every band below it must be named explicitly, including Verified,
// which is deliberately short of "restricted" so the scope check can
// still bind a restricted-sensitivity intent to Certified even though
// RequiredBandFor alone would clear at Verified.
var bandScopes = map[model.Band]map[string]bool{
	model.BandUntrusted:   scopeSet("read"),
	model.BandProvisional: scopeSet("read", "write"),
	model.BandEstablished: scopeSet("read", "write", "execute"),
	model.BandTrusted:     scopeSet("read", "write", "execute", "transfer"),
	model.BandVerified:    scopeSet("read", "write", "execute", "transfer", "delete"),
	model.BandCertified:   scopeSet("wildcard"),
}

func scopeSet(scopes ...string) map[string]bool {
	set := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		set[s] = true
	}
	return set
}

// ScopeAllowed reports whether a band's preset grants the named scope;
// "wildcard" in a band's preset satisfies any scope.
func ScopeAllowed(band model.Band, scope string) bool {
	set, ok := bandScopes[band]
	if !ok {
		return false
	}
	return set[scope] || set["wildcard"]
}

// RequiredBandFor returns the minimum band needed to permit an intent,
// per spec §4.1 step 4: max(bandFor(actionType), bandFor(sensitivity))
// plus the reversibility bump, clamped to the top band.
func RequiredBandFor(action model.ActionType, sensitivity model.DataSensitivity, reversibility model.Reversibility) model.Band {
	actionBand, ok := bandForAction[action]
	if !ok {
		actionBand = model.BandCertified // unknown action type fails closed
	}
	sensitivityBand, ok := bandForSensitivity[sensitivity]
	if !ok {
		sensitivityBand = model.BandCertified // unknown sensitivity fails closed
	}
	required := actionBand
	if sensitivityBand > required {
		required = sensitivityBand
	}
	return model.ClampBand(required + reversibilityBump(reversibility))
}

// CheckContext enforces spec §4.1 step 7's absolute context floors:
// environment=production requires band >= trusted; handlesPii requires
// band >= provisional (the glossary's ingestion-view "constrained" tier);
// handlesPhi requires band >= trusted. Each floor is independent and does
// not combine additively with RequiredBandFor — a band that clears
// RequiredBandFor can still fail here, and vice versa.
func CheckContext(intent model.Intent, band model.Band) (ok bool, reason string) {
	if intent.ContextString(model.CtxEnvironment) == model.EnvironmentProduction && band < model.BandTrusted {
		return false, "environment=production requires band >= trusted"
	}
	if intent.ContextBool(model.CtxHandlesPII) && band < model.BandProvisional {
		return false, "handlesPii requires band >= provisional"
	}
	if intent.ContextBool(model.CtxHandlesPHI) && band < model.BandTrusted {
		return false, "handlesPhi requires band >= trusted"
	}
	return true, ""
}

// CheckScope enforces spec §4.1 step 6: a restricted-sensitivity intent
// is denied unless the band's allowed scope set includes "restricted" or
// "wildcard", independent of whether RequiredBandFor was cleared.
func CheckScope(intent model.Intent, band model.Band) (ok bool, reason string) {
	if intent.DataSensitivity != model.SensitivityRestricted {
		return true, ""
	}
	if ScopeAllowed(band, "restricted") {
		return true, ""
	}
	return false, "band's allowed scope set excludes restricted and wildcard"
}

// CanPerform reports whether a profile's band clears the base requirement
// for an intent, ignoring context floors, scope, hooks, and council
// review.
func CanPerform(profile model.TrustProfile, intent model.Intent) bool {
	return profile.Band() >= RequiredBandFor(intent.ActionType, intent.DataSensitivity, intent.Reversibility)
}

// CanAccess is the data-sensitivity-only variant of CanPerform, for
// callers that only need a classification ceiling check.
func CanAccess(band model.Band, sensitivity model.DataSensitivity) bool {
	return band >= bandForSensitivity[sensitivity]
}
