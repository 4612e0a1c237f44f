package incidents

import (
	"testing"

	"aeria-sms/core/store"
)

func TestDetermineNotificationsFatal(t *testing.T) {
	n := DetermineNotifications(&store.Incident{Type: TypeLostTime, Severity: SeverityFatal})
	if !n.TSB.Required {
		t.Error("fatal severity must require TSB notification")
	}
	if !n.WorkSafeBC.Required {
		t.Error("fatal severity must require WorkSafeBC notification")
	}
	if n.TransportCanada.Required {
		t.Error("fatal injury with no airspace factor should not require Transport Canada")
	}
}

func TestDetermineNotificationsSeriousHospitalized(t *testing.T) {
	inc := &store.Incident{
		Type:     TypeMedicalAid,
		Severity: SeveritySerious,
		InvolvedPersons: []store.InvolvedPerson{
			{Name: "Sam", Hospitalized: true},
		},
	}
	n := DetermineNotifications(inc)
	if !n.TSB.Required {
		t.Error("serious + hospitalized must require TSB")
	}
	if !n.WorkSafeBC.Required {
		t.Error("serious injury must require WorkSafeBC")
	}
}

func TestDetermineNotificationsSeriousNotHospitalized(t *testing.T) {
	n := DetermineNotifications(&store.Incident{Type: TypeMedicalAid, Severity: SeveritySerious})
	if n.TSB.Required {
		t.Error("serious without hospitalization should not require TSB")
	}
	if !n.WorkSafeBC.Required {
		t.Error("serious injury must require WorkSafeBC even without hospitalization")
	}
}

func TestDetermineNotificationsAirspace(t *testing.T) {
	n := DetermineNotifications(&store.Incident{Type: TypeNearMiss, Severity: SeverityNearMiss, RPASType: RPASNearMissAircraft})
	if !n.TSB.Required {
		t.Error("near miss with aircraft must require TSB")
	}
	if !n.TransportCanada.Required {
		t.Error("near miss with aircraft must require Transport Canada")
	}
	if n.WorkSafeBC.Required {
		t.Error("no injury, no WorkSafeBC requirement")
	}

	for _, rpas := range []string{RPASFlyAway, RPASLossOfControl, RPASBoundaryViolation, RPASAirspaceIncursion} {
		n := DetermineNotifications(&store.Incident{Type: TypePropertyDamage, Severity: SeverityMinor, RPASType: rpas})
		if !n.TransportCanada.Required {
			t.Errorf("rpas type %q must require Transport Canada", rpas)
		}
	}
}

func TestDetermineNotificationsHospitalizationAlone(t *testing.T) {
	inc := &store.Incident{
		Type:     TypeFirstAid,
		Severity: SeverityMinor,
		InvolvedPersons: []store.InvolvedPerson{
			{Name: "Lee", Hospitalized: true},
		},
	}
	n := DetermineNotifications(inc)
	if !n.WorkSafeBC.Required {
		t.Error("hospitalization must require WorkSafeBC regardless of severity")
	}
	if n.TSB.Required {
		t.Error("minor severity with hospitalization should not require TSB")
	}
}

func TestDetermineNotificationsInternalAlwaysApplies(t *testing.T) {
	n := DetermineNotifications(&store.Incident{Type: TypeNearMiss, Severity: SeverityNearMiss})
	if !n.Aeria.Required {
		t.Error("internal notification applies to every incident")
	}
	if n.Aeria.Notified {
		t.Error("internal notification starts un-notified")
	}
}
