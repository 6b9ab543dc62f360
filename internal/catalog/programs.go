package catalog

import "github.com/shopspring/decimal"

func idr(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

var travelFields = []string{"passport_number", "passport_expiry", "nationality", "destination_country", "date_of_birth"}

var programs = map[Service]map[string]ProgramInfo{
	ServiceTravel: {
		"general": {
			Label:             "General visa assistance",
			BaseFee:           idr(10000),
			RequiredDocuments: []string{"passport", "photo", "bank_statements"},
			RequiredFields:    travelFields,
			InitialStatus:     StatusRegistration,
		},
		"study": {
			Label:             "Study abroad",
			BaseFee:           idr(25000),
			RequiredDocuments: []string{"passport", "photo", "bank_statements", "transcripts", "admission_letter"},
			RequiredFields:    append(append([]string{}, travelFields...), "desired_field"),
			InitialStatus:     StatusRegistration,
		},
		"work": {
			Label:             "Work permit",
			BaseFee:           idr(30000),
			RequiredDocuments: []string{"passport", "photo", "bank_statements", "cv", "job_offer"},
			RequiredFields:    append(append([]string{}, travelFields...), "profession"),
			InitialStatus:     StatusRegistration,
		},
	},
	ServiceVAP: {
		"vap": {
			Label:             "VAP - prior studies accreditation",
			BaseFee:           idr(900000),
			RequiredDocuments: []string{"cv", "id_card", "diplomas", "transcripts"},
			RequiredFields:    []string{"date_of_birth", "nationality", "last_diploma", "target_diploma"},
			InitialStatus:     StatusRegistration,
		},
		"vae": {
			Label:             "VAE - work experience accreditation",
			BaseFee:           idr(1200000),
			RequiredDocuments: []string{"cv", "id_card", "diplomas", "work_certificates"},
			RequiredFields:    []string{"date_of_birth", "nationality", "current_position", "years_of_experience", "target_diploma"},
			InitialStatus:     StatusRegistration,
		},
	},
}

// defaultTiers is keyed by service/program/project/level
var defaultTiers = []Tier{
	{Service: ServiceTravel, ProgramType: "general", ProjectType: "tourism", BaseFee: idr(10000), Tranche1Fee: idr(150000), ProgramFee: idr(300000)},
	{Service: ServiceTravel, ProgramType: "general", ProjectType: "family", BaseFee: idr(10000), Tranche1Fee: idr(200000), ProgramFee: idr(400000)},
	{Service: ServiceTravel, ProgramType: "general", ProjectType: "business", BaseFee: idr(15000), Tranche1Fee: idr(250000), ProgramFee: idr(500000)},
	{Service: ServiceTravel, ProgramType: "study", ProjectType: "bachelor", BaseFee: idr(25000), Tranche1Fee: idr(500000), ProgramFee: idr(1200000)},
	{Service: ServiceTravel, ProgramType: "study", ProjectType: "master", BaseFee: idr(25000), Tranche1Fee: idr(600000), ProgramFee: idr(1500000)},
	{Service: ServiceTravel, ProgramType: "work", ProjectType: "skilled", BaseFee: idr(30000), Tranche1Fee: idr(700000), ProgramFee: idr(1800000)},

	{Service: ServiceVAP, ProgramType: "vap", Level: "bts", BaseFee: idr(700000), AdvanceFee: idr(350000)},
	{Service: ServiceVAP, ProgramType: "vap", Level: "licence", BaseFee: idr(900000), AdvanceFee: idr(450000)},
	{Service: ServiceVAP, ProgramType: "vap", Level: "master", BaseFee: idr(1200000), AdvanceFee: idr(600000)},
	{Service: ServiceVAP, ProgramType: "vae", Level: "bts", BaseFee: idr(900000), AdvanceFee: idr(450000)},
	{Service: ServiceVAP, ProgramType: "vae", Level: "licence", BaseFee: idr(1200000), AdvanceFee: idr(600000)},
	{Service: ServiceVAP, ProgramType: "vae", Level: "master", BaseFee: idr(1500000), AdvanceFee: idr(750000)},

	{Service: ServiceWriting, ProjectType: "report", Level: "licence", BaseFee: idr(150000)},
	{Service: ServiceWriting, ProjectType: "memoir", Level: "licence", BaseFee: idr(350000)},
	{Service: ServiceWriting, ProjectType: "memoir", Level: "master", BaseFee: idr(500000)},
	{Service: ServiceWriting, ProjectType: "thesis", Level: "doctorate", BaseFee: idr(1500000)},
}

// Program returns the program definition, or an empty value with Known=false
func Program(service Service, programType string) ProgramInfo {
	info, ok := programs[service][programType]
	if !ok {
		return ProgramInfo{Service: service, Type: programType, InitialStatus: StatusRegistration}
	}
	info.Service = service
	info.Type = programType
	info.Known = true
	return info
}

// DefaultTier looks up the static price of a program combination
func DefaultTier(service Service, programType, projectType, level string) (Tier, bool) {
	for _, t := range defaultTiers {
		if t.Service == service && t.ProgramType == programType && t.ProjectType == projectType && t.Level == level {
			return t, true
		}
	}
	return Tier{}, false
}

// DefaultTiers returns a copy of every static tier
func DefaultTiers() []Tier {
	out := make([]Tier, len(defaultTiers))
	copy(out, defaultTiers)
	return out
}
