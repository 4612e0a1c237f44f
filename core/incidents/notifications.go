package incidents

import "aeria-sms/core/store"

// DetermineNotifications maps an incident's attributes to the set of
// regulatory bodies that must be told about it. The rules are independent;
// any combination can be true at once.
//
// The internal (Aeria) record is a process-completion flag, not a
// requirement: it applies to every incident and always starts un-notified.
//
// Requirements are resolved once at creation and are not recomputed when the
// incident is later edited.
func DetermineNotifications(inc *store.Incident) store.IncidentNotifications {
	var n store.IncidentNotifications

	anyHospitalized := false
	for _, p := range inc.InvolvedPersons {
		if p.Hospitalized {
			anyHospitalized = true
			break
		}
	}

	// TSB: fatalities, serious injuries with hospitalization, and aircraft
	// proximity events.
	if inc.Severity == SeverityFatal {
		n.TSB.Required = true
	}
	if inc.Severity == SeveritySerious && anyHospitalized {
		n.TSB.Required = true
	}
	if inc.RPASType == RPASCollision || inc.RPASType == RPASNearMissAircraft {
		n.TSB.Required = true
	}

	// Transport Canada: loss-of-control class occurrences and anything
	// classified as an aircraft incident.
	switch inc.RPASType {
	case RPASFlyAway, RPASLossOfControl, RPASBoundaryViolation, RPASAirspaceIncursion, RPASNearMissAircraft:
		n.TransportCanada.Required = true
	}
	if inc.Type == TypeAircraft {
		n.TransportCanada.Required = true
	}

	// WorkSafeBC: fatal or serious injuries, or any hospitalization.
	if inc.Severity == SeverityFatal || inc.Severity == SeveritySerious || anyHospitalized {
		n.WorkSafeBC.Required = true
	}

	n.Aeria.Required = true
	return n
}
