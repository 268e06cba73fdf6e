package models

// ResultStatus is the closed set of verdict labels shown to users.
type ResultStatus string

const (
	StatusPass               ResultStatus = "ناجح"
	StatusSupplementary      ResultStatus = "مكمل"
	StatusFail               ResultStatus = "راسب"
	StatusPending            ResultStatus = "قيد الانتظار"
	StatusEligible           ResultStatus = "مؤهل"
	StatusIneligible         ResultStatus = "غير مؤهل"
	StatusEligibleByDecision ResultStatus = "مؤهل بقرار"
)

// CalculatedGrade is derived on every read from SubjectGrade plus school
// policy. It is never persisted as a primary record.
type CalculatedGrade struct {
	SubjectID              string   `json:"subject_id"`
	SubjectName            string   `json:"subject_name,omitempty"`
	AnnualPursuit          *float64 `json:"annual_pursuit"`
	FinalGrade1st          *float64 `json:"final_grade_1st"`
	FinalGradeWithDecision *float64 `json:"final_grade_with_decision"`
	DecisionApplied        int      `json:"decision_applied"`
	FinalGrade2nd          *float64 `json:"final_grade_2nd"`
	IsExempt               bool     `json:"is_exempt"`

	AnnualPursuitWithDecision *float64 `json:"annual_pursuit_with_decision,omitempty"`
	DecisionAppliedOnPursuit  int      `json:"decision_applied_on_pursuit,omitempty"`
}

// StudentResult is the overall verdict for one student across subjects.
type StudentResult struct {
	Status          ResultStatus `json:"status"`
	Message         string       `json:"message"`
	FailingSubjects []string     `json:"failing_subjects,omitempty"`
}

// StudentSheet bundles the recomputed grades and verdict for display.
type StudentSheet struct {
	Student     Student           `json:"student"`
	Grades      []CalculatedGrade `json:"grades"`
	Result      StudentResult     `json:"result"`
	Eligibility StudentResult     `json:"eligibility"`
}
