package catalog

import "testing"

func TestStatusFallsBackForUnknownCodes(t *testing.T) {
	tests := []struct {
		name    string
		service Service
		code    string
		known   bool
		label   string
	}{
		{name: "known travel status", service: ServiceTravel, code: StatusRegistration, known: true, label: "Registration"},
		{name: "known vap status", service: ServiceVAP, code: StatusJuryScheduled, known: true, label: "Jury scheduled"},
		{name: "status edited in database", service: ServiceTravel, code: "waiting_for_embassy", known: false, label: unknownStatusLabel},
		{name: "empty code", service: ServiceVAP, code: "", known: false, label: unknownStatusLabel},
		{name: "unknown service", service: Service("cv"), code: StatusRegistration, known: false, label: unknownStatusLabel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Status(tt.service, tt.code)
			if info.Known != tt.known {
				t.Errorf("Status(%q, %q).Known = %v; want %v", tt.service, tt.code, info.Known, tt.known)
			}
			if info.Label != tt.label {
				t.Errorf("Status(%q, %q).Label = %q; want %q", tt.service, tt.code, info.Label, tt.label)
			}
			if !tt.known && (info.Color != neutralColor || info.Ordinal != 0) {
				t.Errorf("unknown status should be gray with ordinal 0, got %q/%d", info.Color, info.Ordinal)
			}
			if info.Code != tt.code {
				t.Errorf("Status code = %q; want %q", info.Code, tt.code)
			}
		})
	}
}

func TestStageOrdering(t *testing.T) {
	if got := FirstStage(ServiceTravel); got != StageEvaluation {
		t.Fatalf("FirstStage(travel) = %q", got)
	}
	if got := FirstStage(ServiceVAP); got != StageAdvance {
		t.Fatalf("FirstStage(vap) = %q", got)
	}
	if !StageBefore(ServiceTravel, StageEvaluation, StageTranche2) {
		t.Error("evaluation should come before tranche2")
	}
	if StageBefore(ServiceTravel, StageCompleted, StageTranche1) {
		t.Error("completed should not come before tranche1")
	}
	if StageBefore(ServiceVAP, StageTranche1, StageBalance) {
		t.Error("stages of another service are not ordered")
	}
	if info := StageOf(ServiceVAP, "deposit"); info.Known || info.Label != unknownStageLabel {
		t.Errorf("unknown stage = %+v", info)
	}
	if info := StageOf(ServiceTravel, StageCompleted); !info.Terminal || info.Ordinal != 4 {
		t.Errorf("completed stage = %+v", info)
	}
}

func TestParseStatus(t *testing.T) {
	if raw, ok := ParseStatus(ServiceTravel, StatusRejected); !ok || raw != StatusRejected {
		t.Errorf("ParseStatus(rejected) = %q, %v", raw, ok)
	}
	if raw, ok := ParseStatus(ServiceTravel, "Rejected "); ok || raw != "Rejected " {
		t.Errorf("ParseStatus should keep raw unknown values, got %q, %v", raw, ok)
	}
}

func TestProgramAndTiers(t *testing.T) {
	p := Program(ServiceTravel, "general")
	if !p.Known || p.InitialStatus != StatusRegistration || len(p.RequiredFields) == 0 {
		t.Errorf("Program(travel, general) = %+v", p)
	}
	if p := Program(ServiceTravel, "space"); p.Known {
		t.Errorf("unknown program reported as known: %+v", p)
	}

	tier, ok := DefaultTier(ServiceTravel, "general", "tourism", "")
	if !ok || tier.BaseFee.IntPart() != 10000 {
		t.Errorf("DefaultTier(tourism) = %+v, %v", tier, ok)
	}
	if _, ok := DefaultTier(ServiceVAP, "vae", "", "doctorate"); ok {
		t.Error("DefaultTier should miss unknown levels")
	}

	tiers := DefaultTiers()
	tiers[0].BaseFee = idr(1)
	if again, _ := DefaultTier(ServiceTravel, "general", "tourism", ""); again.BaseFee.IntPart() != 10000 {
		t.Error("DefaultTiers must return a copy")
	}
}
