// Package catalog holds the static reference data of the portal: request
// statuses, payment stages, programs and default pricing tiers.
//
// Every lookup is total. Codes that are not in the tables resolve to a
// neutral default so that rows edited directly in the database never break
// rendering.
package catalog

import "github.com/shopspring/decimal"

// Service identifies a product line of the portal
type Service string

const (
	ServiceTravel  Service = "travel"
	ServiceVAP     Service = "vap"
	ServiceWriting Service = "writing"
)

// Stage is a step of a request's payment sequence
type Stage string

const (
	StageEvaluation Stage = "evaluation"
	StageTranche1   Stage = "tranche1"
	StageTranche2   Stage = "tranche2"
	StageAdvance    Stage = "advance"
	StageBalance    Stage = "balance"
	StageCompleted  Stage = "completed"
)

// EvaluationStatus gates the first travel tranche
type EvaluationStatus string

const (
	EvaluationPending  EvaluationStatus = "pending"
	EvaluationApproved EvaluationStatus = "approved"
	EvaluationRejected EvaluationStatus = "rejected"
)

// StatusInfo describes how a request status is presented
type StatusInfo struct {
	Code        string `json:"code"`
	Label       string `json:"label"`
	Color       string `json:"color"`
	Description string `json:"description"`
	Ordinal     int    `json:"ordinal"`
	Known       bool   `json:"known"`
}

// StageInfo describes a payment stage
type StageInfo struct {
	Code        Stage  `json:"code"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Ordinal     int    `json:"ordinal"`
	Terminal    bool   `json:"terminal"`
	Known       bool   `json:"known"`
}

// ProgramInfo describes a program/project type offered by a service
type ProgramInfo struct {
	Service           Service         `json:"service"`
	Type              string          `json:"type"`
	Label             string          `json:"label"`
	BaseFee           decimal.Decimal `json:"base_fee"`
	RequiredDocuments []string        `json:"required_documents"`
	RequiredFields    []string        `json:"required_fields"`
	InitialStatus     string          `json:"initial_status"`
	Known             bool            `json:"known"`
}

// Tier is a price point for one program/project/level combination
type Tier struct {
	Service     Service         `json:"service"`
	ProgramType string          `json:"program_type"`
	ProjectType string          `json:"project_type"`
	Level       string          `json:"level"`
	BaseFee     decimal.Decimal `json:"base_fee"`
	Tranche1Fee decimal.Decimal `json:"tranche1_fee"`
	ProgramFee  decimal.Decimal `json:"program_fee"`
	AdvanceFee  decimal.Decimal `json:"advance_fee"`
}

const (
	unknownStatusLabel = "Unknown status"
	unknownStageLabel  = "Unknown stage"
	neutralColor       = "gray"
)

// Services lists the services that run the staged payment lifecycle
func Services() []Service {
	return []Service{ServiceTravel, ServiceVAP}
}

// NumberPrefix returns the request number prefix of a service
func NumberPrefix(service Service) string {
	switch service {
	case ServiceTravel:
		return "TRV"
	case ServiceVAP:
		return "VAP"
	case ServiceWriting:
		return "WRT"
	}
	return "REQ"
}

// Status returns the presentation data of a status code. Unrecognized codes
// yield a generic gray label with ordinal 0.
func Status(service Service, code string) StatusInfo {
	if table, ok := statusTables[service]; ok {
		if info, ok := table[code]; ok {
			info.Code = code
			info.Known = true
			return info
		}
	}
	return StatusInfo{
		Code:        code,
		Label:       unknownStatusLabel,
		Color:       neutralColor,
		Description: "This status is not recognized.",
	}
}

// ParseStatus reports whether raw is a status the service knows about. The
// raw value is always returned so callers can keep it.
func ParseStatus(service Service, raw string) (string, bool) {
	table, ok := statusTables[service]
	if !ok {
		return raw, false
	}
	_, known := table[raw]
	return raw, known
}

// Statuses returns the known statuses of a service ordered by ordinal
func Statuses(service Service) []StatusInfo {
	var out []StatusInfo
	for _, code := range statusOrder[service] {
		out = append(out, Status(service, code))
	}
	return out
}

// StageOf returns the description of a stage code for a service
func StageOf(service Service, code Stage) StageInfo {
	for i, st := range stageSequences[service] {
		if st.Code == code {
			st.Ordinal = i + 1
			st.Known = true
			return st
		}
	}
	return StageInfo{Code: code, Label: unknownStageLabel}
}

// Stages returns the ordered stage sequence of a service
func Stages(service Service) []StageInfo {
	seq := stageSequences[service]
	out := make([]StageInfo, 0, len(seq))
	for _, st := range seq {
		out = append(out, StageOf(service, st.Code))
	}
	return out
}

// FirstStage is the stage a new request starts at
func FirstStage(service Service) Stage {
	seq := stageSequences[service]
	if len(seq) == 0 {
		return StageCompleted
	}
	return seq[0].Code
}

// StageBefore reports whether a comes strictly before b in the service's sequence
func StageBefore(service Service, a, b Stage) bool {
	ia, ib := StageOf(service, a), StageOf(service, b)
	if !ia.Known || !ib.Known {
		return false
	}
	return ia.Ordinal < ib.Ordinal
}
