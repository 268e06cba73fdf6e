package grading

import (
	"fmt"
	"math"
	"sort"

	"github.com/madrasati/madrasati-api/internal/models"
	appErrors "github.com/madrasati/madrasati-api/pkg/errors"
)

// Policy is the school-wide grading configuration. The decision-point pool
// is a shared per-student budget, not a per-subject allowance.
type Policy struct {
	Level                      models.SchoolLevel
	PassingThreshold           float64
	MaxScore                   float64
	PursuitWeight              float64
	ExamWeight                 float64
	DecisionPoints             int
	SupplementarySubjectsCount int
}

// DefaultPolicy returns the ministerial defaults for a school level.
func DefaultPolicy(level models.SchoolLevel) Policy {
	return Policy{
		Level:                      level,
		PassingThreshold:           50,
		MaxScore:                   100,
		PursuitWeight:              0.5,
		ExamWeight:                 0.5,
		DecisionPoints:             10,
		SupplementarySubjectsCount: 3,
	}
}

// Validate rejects structurally invalid policy configuration. This is the
// only place the engine fails loudly; malformed student records never do.
func (p Policy) Validate() error {
	if p.DecisionPoints < 0 {
		return appErrors.Clone(appErrors.ErrInvalidPolicy, "decision point pool must not be negative")
	}
	if p.SupplementarySubjectsCount < 0 {
		return appErrors.Clone(appErrors.ErrInvalidPolicy, "supplementary subjects count must not be negative")
	}
	if p.PassingThreshold <= 0 || p.MaxScore <= 0 || p.PassingThreshold > p.MaxScore {
		return appErrors.Clone(appErrors.ErrInvalidPolicy, "passing threshold must be positive and not exceed the maximum score")
	}
	if p.PursuitWeight < 0 || p.ExamWeight < 0 || math.Abs(p.PursuitWeight+p.ExamWeight-1) > 1e-9 {
		return appErrors.Clone(appErrors.ErrInvalidPolicy, "pursuit and exam weights must be non-negative and sum to 1")
	}
	return nil
}

// Budget tracks the remaining decision points for one student while the
// engine walks their subjects.
type Budget struct {
	remaining int
}

// Remaining reports unspent decision points.
func (b *Budget) Remaining() int {
	if b == nil {
		return 0
	}
	return b.remaining
}

func (b *Budget) spend(deficit float64) int {
	if b == nil || b.remaining <= 0 || deficit <= 0 {
		return 0
	}
	needed := int(math.Ceil(deficit))
	if needed > b.remaining {
		needed = b.remaining
	}
	b.remaining -= needed
	return needed
}

// Engine is a pure, deterministic grade calculator. It performs no I/O and
// holds no mutable state besides the policy.
type Engine struct {
	policy Policy
	round  func(float64) float64
}

// New validates the policy and constructs an Engine.
func New(policy Policy) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		policy: policy,
		round:  func(v float64) float64 { return math.RoundToEven(v*100) / 100 },
	}, nil
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// NewBudget returns a fresh per-student decision-point budget.
func (e *Engine) NewBudget() *Budget {
	return &Budget{remaining: e.policy.DecisionPoints}
}

// AnnualPursuit averages the recorded period scores for the school level.
// Nil cells are excluded from the mean; recorded zeros count. Returns nil
// when no recognized period has been entered.
func (e *Engine) AnnualPursuit(g models.SubjectGrade) *float64 {
	var periods []*float64
	if e.policy.Level.IsPrimary() {
		periods = []*float64{g.FirstTerm, g.MidYear, g.SecondTerm}
	} else {
		periods = append(g.MonthlyScores(), g.MidYear)
	}
	return e.mean(periods)
}

func (e *Engine) mean(values []*float64) *float64 {
	sum := 0.0
	count := 0
	for _, v := range values {
		if v == nil {
			continue
		}
		sum += *v
		count++
	}
	if count == 0 {
		return nil
	}
	avg := e.round(sum / float64(count))
	return &avg
}

func (e *Engine) combine(pursuit, exam *float64) *float64 {
	if pursuit == nil || exam == nil {
		return nil
	}
	v := e.round(e.policy.PursuitWeight**pursuit + e.policy.ExamWeight**exam)
	return &v
}

// applyDecision spends from the budget to lift a failing grade toward the
// passing threshold. The spend is min(remaining pool, deficit); a partial
// spend leaves the grade genuinely failing.
func (e *Engine) applyDecision(grade *float64, budget *Budget) (*float64, int) {
	if grade == nil {
		return nil, 0
	}
	if *grade >= e.policy.PassingThreshold {
		v := *grade
		return &v, 0
	}
	applied := budget.spend(e.policy.PassingThreshold - *grade)
	lifted := *grade + float64(applied)
	if lifted > e.policy.MaxScore {
		lifted = e.policy.MaxScore
	}
	return &lifted, applied
}

// ComputeSubject derives the full CalculatedGrade for one subject, spending
// decision points from the shared student budget as needed.
func (e *Engine) ComputeSubject(g models.SubjectGrade, budget *Budget) models.CalculatedGrade {
	calc := models.CalculatedGrade{SubjectID: g.SubjectID}

	calc.AnnualPursuit = e.AnnualPursuit(g)
	calc.FinalGrade1st = e.combine(calc.AnnualPursuit, g.FinalExam1st)

	withDecision, applied := e.applyDecision(calc.FinalGrade1st, budget)
	calc.FinalGradeWithDecision = withDecision
	calc.DecisionApplied = applied

	calc.IsExempt = e.exempt(calc)
	if calc.IsExempt {
		// Exempt subjects skip the second cycle entirely.
		calc.FinalGrade2nd = calc.FinalGradeWithDecision
		return calc
	}

	if g.FinalExam2nd != nil {
		second := e.combine(calc.AnnualPursuit, g.FinalExam2nd)
		second, appliedSecond := e.applyDecision(second, budget)
		calc.FinalGrade2nd = second
		calc.DecisionApplied += appliedSecond
	}
	return calc
}

// exempt applies the level-specific exemption rule: a first-cycle result at
// or above the threshold releases the subject from the second exam. Primary
// levels additionally require a passing pursuit.
func (e *Engine) exempt(calc models.CalculatedGrade) bool {
	if calc.FinalGradeWithDecision == nil {
		return false
	}
	if *calc.FinalGradeWithDecision < e.policy.PassingThreshold {
		return false
	}
	if e.policy.Level.IsPrimary() {
		return calc.AnnualPursuit != nil && *calc.AnnualPursuit >= e.policy.PassingThreshold
	}
	return true
}

// SubjectInput pairs a raw grade record with its display name.
type SubjectInput struct {
	SubjectID   string
	SubjectName string
	Grade       models.SubjectGrade
}

// ComputeStudent derives every subject's CalculatedGrade and the overall
// verdict. Decision points are spent in ascending subject-ID order so the
// outcome is deterministic regardless of input order.
func (e *Engine) ComputeStudent(subjects []SubjectInput) ([]models.CalculatedGrade, models.StudentResult) {
	ordered := make([]SubjectInput, len(subjects))
	copy(ordered, subjects)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].SubjectID < ordered[j].SubjectID })

	budget := e.NewBudget()
	grades := make([]models.CalculatedGrade, 0, len(ordered))
	var incomplete, failing []string

	for _, sub := range ordered {
		calc := e.ComputeSubject(sub.Grade, budget)
		calc.SubjectName = sub.SubjectName
		grades = append(grades, calc)

		final := effectiveFinal(calc)
		switch {
		case final == nil:
			incomplete = append(incomplete, sub.SubjectName)
		case *final < e.policy.PassingThreshold:
			failing = append(failing, sub.SubjectName)
		}
	}

	return grades, e.verdict(len(ordered), incomplete, failing)
}

// effectiveFinal picks the grade the verdict is judged on: the second-cycle
// result when one exists, the decision-adjusted first-cycle result otherwise.
func effectiveFinal(calc models.CalculatedGrade) *float64 {
	if calc.FinalGrade2nd != nil {
		return calc.FinalGrade2nd
	}
	return calc.FinalGradeWithDecision
}

func (e *Engine) verdict(total int, incomplete, failing []string) models.StudentResult {
	if total == 0 || len(incomplete) > 0 {
		return models.StudentResult{
			Status:  models.StatusPending,
			Message: pendingMessage(incomplete),
		}
	}
	switch {
	case len(failing) == 0:
		return models.StudentResult{Status: models.StatusPass, Message: "ناجح في جميع المواد"}
	case len(failing) <= e.policy.SupplementarySubjectsCount:
		return models.StudentResult{
			Status:          models.StatusSupplementary,
			Message:         fmt.Sprintf("مكمل في: %s", joinArabic(failing)),
			FailingSubjects: failing,
		}
	default:
		return models.StudentResult{
			Status:          models.StatusFail,
			Message:         fmt.Sprintf("راسب لتجاوز عدد مواد الإكمال المسموح (%d)", e.policy.SupplementarySubjectsCount),
			FailingSubjects: failing,
		}
	}
}

// ComputeEligibility judges exam-sitting eligibility from pursuit alone,
// spending decision points on pursuit from a fresh budget.
func (e *Engine) ComputeEligibility(subjects []SubjectInput) ([]models.CalculatedGrade, models.StudentResult) {
	ordered := make([]SubjectInput, len(subjects))
	copy(ordered, subjects)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].SubjectID < ordered[j].SubjectID })

	budget := e.NewBudget()
	grades := make([]models.CalculatedGrade, 0, len(ordered))
	var incomplete, below []string
	decisionUsed := false

	for _, sub := range ordered {
		calc := models.CalculatedGrade{SubjectID: sub.SubjectID, SubjectName: sub.SubjectName}
		calc.AnnualPursuit = e.AnnualPursuit(sub.Grade)
		withDecision, applied := e.applyDecision(calc.AnnualPursuit, budget)
		calc.AnnualPursuitWithDecision = withDecision
		calc.DecisionAppliedOnPursuit = applied
		if applied > 0 {
			decisionUsed = true
		}
		grades = append(grades, calc)

		switch {
		case calc.AnnualPursuit == nil:
			incomplete = append(incomplete, sub.SubjectName)
		case *calc.AnnualPursuitWithDecision < e.policy.PassingThreshold:
			below = append(below, sub.SubjectName)
		}
	}

	if len(ordered) == 0 || len(incomplete) > 0 {
		return grades, models.StudentResult{Status: models.StatusPending, Message: pendingMessage(incomplete)}
	}
	if len(below) > 0 {
		return grades, models.StudentResult{
			Status:          models.StatusIneligible,
			Message:         fmt.Sprintf("غير مؤهل في: %s", joinArabic(below)),
			FailingSubjects: below,
		}
	}
	if decisionUsed {
		return grades, models.StudentResult{Status: models.StatusEligibleByDecision, Message: "مؤهل بقرار"}
	}
	return grades, models.StudentResult{Status: models.StatusEligible, Message: "مؤهل لأداء الامتحان"}
}

func pendingMessage(incomplete []string) string {
	if len(incomplete) == 0 {
		return "قيد الانتظار: لم يتم إدخال الدرجات بعد"
	}
	return fmt.Sprintf("قيد الانتظار: درجات غير مكتملة في %s", joinArabic(incomplete))
}

func joinArabic(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += "، "
		}
		out += n
	}
	return out
}
