package catalog

// Travel statuses
const (
	StatusRegistration      = "registration"
	StatusDocumentsReceived = "documents_received"
	StatusUnderEvaluation   = "under_evaluation"
	StatusEvaluationOK      = "evaluation_approved"
	StatusVisaProcessing    = "visa_processing"
	StatusVisaGranted       = "visa_granted"
	StatusCompleted         = "completed"
	StatusRejected          = "rejected"
	StatusCancelled         = "cancelled"
)

// VAP/VAE statuses not shared with travel
const (
	StatusAdvancePaid   = "advance_paid"
	StatusFileReview    = "file_review"
	StatusJuryScheduled = "jury_scheduled"
	StatusValidated     = "validated"
)

var statusTables = map[Service]map[string]StatusInfo{
	ServiceTravel: {
		StatusRegistration:      {Label: "Registration", Color: "blue", Description: "Your file has been registered.", Ordinal: 1},
		StatusDocumentsReceived: {Label: "Documents received", Color: "indigo", Description: "We received your documents.", Ordinal: 2},
		StatusUnderEvaluation:   {Label: "Under evaluation", Color: "yellow", Description: "Our team is evaluating your profile.", Ordinal: 3},
		StatusEvaluationOK:      {Label: "Evaluation approved", Color: "teal", Description: "Your profile was approved, the first tranche is due.", Ordinal: 4},
		StatusVisaProcessing:    {Label: "Visa processing", Color: "purple", Description: "Your visa application is being processed.", Ordinal: 5},
		StatusVisaGranted:       {Label: "Visa granted", Color: "green", Description: "Your visa has been granted.", Ordinal: 6},
		StatusCompleted:         {Label: "Completed", Color: "green", Description: "All stages are paid and the file is closed.", Ordinal: 7},
		StatusRejected:          {Label: "Rejected", Color: "red", Description: "The request was rejected.", Ordinal: 0},
		StatusCancelled:         {Label: "Cancelled", Color: "gray", Description: "The request was cancelled.", Ordinal: 0},
	},
	ServiceVAP: {
		StatusRegistration:      {Label: "Registration", Color: "blue", Description: "Your accreditation file has been registered.", Ordinal: 1},
		StatusDocumentsReceived: {Label: "Documents received", Color: "indigo", Description: "We received your supporting documents.", Ordinal: 2},
		StatusAdvancePaid:       {Label: "Advance paid", Color: "teal", Description: "The advance is paid, your file is queued for review.", Ordinal: 3},
		StatusFileReview:        {Label: "File review", Color: "yellow", Description: "The academic board is reviewing your file.", Ordinal: 4},
		StatusJuryScheduled:     {Label: "Jury scheduled", Color: "purple", Description: "A jury date has been scheduled.", Ordinal: 5},
		StatusValidated:         {Label: "Validated", Color: "green", Description: "Your experience was validated.", Ordinal: 6},
		StatusCompleted:         {Label: "Completed", Color: "green", Description: "All stages are paid and the file is closed.", Ordinal: 7},
		StatusRejected:          {Label: "Rejected", Color: "red", Description: "The request was rejected.", Ordinal: 0},
		StatusCancelled:         {Label: "Cancelled", Color: "gray", Description: "The request was cancelled.", Ordinal: 0},
	},
}

var statusOrder = map[Service][]string{
	ServiceTravel: {
		StatusRegistration, StatusDocumentsReceived, StatusUnderEvaluation, StatusEvaluationOK,
		StatusVisaProcessing, StatusVisaGranted, StatusCompleted, StatusRejected, StatusCancelled,
	},
	ServiceVAP: {
		StatusRegistration, StatusDocumentsReceived, StatusAdvancePaid, StatusFileReview,
		StatusJuryScheduled, StatusValidated, StatusCompleted, StatusRejected, StatusCancelled,
	},
}

var stageSequences = map[Service][]StageInfo{
	ServiceTravel: {
		{Code: StageEvaluation, Label: "Evaluation fee", Description: "Profile evaluation by our consultants."},
		{Code: StageTranche1, Label: "First tranche", Description: "Due once the evaluation is approved."},
		{Code: StageTranche2, Label: "Second tranche", Description: "Settles the remaining balance."},
		{Code: StageCompleted, Label: "Completed", Description: "Nothing left to pay.", Terminal: true},
	},
	ServiceVAP: {
		{Code: StageAdvance, Label: "Advance", Description: "Opens the accreditation file."},
		{Code: StageBalance, Label: "Balance", Description: "Settles the remaining balance."},
		{Code: StageCompleted, Label: "Completed", Description: "Nothing left to pay.", Terminal: true},
	},
}
