package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madrasati/madrasati-api/internal/models"
)

func f(v float64) *float64 {
	return &v
}

func newEngine(t *testing.T, mutate func(*Policy)) *Engine {
	t.Helper()
	policy := DefaultPolicy(models.LevelMiddle)
	if mutate != nil {
		mutate(&policy)
	}
	engine, err := New(policy)
	require.NoError(t, err)
	return engine
}

func TestPolicyValidation(t *testing.T) {
	policy := DefaultPolicy(models.LevelMiddle)
	policy.DecisionPoints = -1
	_, err := New(policy)
	require.Error(t, err)

	policy = DefaultPolicy(models.LevelMiddle)
	policy.PursuitWeight = 0.7
	_, err = New(policy)
	require.Error(t, err)

	policy = DefaultPolicy(models.LevelMiddle)
	policy.PassingThreshold = 120
	_, err = New(policy)
	require.Error(t, err)
}

func TestAnnualPursuitExcludesNulls(t *testing.T) {
	engine := newEngine(t, nil)

	grade := models.SubjectGrade{October: f(80), December: f(60)}
	pursuit := engine.AnnualPursuit(grade)
	require.NotNil(t, pursuit)
	assert.Equal(t, 70.0, *pursuit)
}

func TestAnnualPursuitCountsRecordedZero(t *testing.T) {
	engine := newEngine(t, nil)

	grade := models.SubjectGrade{October: f(80), November: f(0)}
	pursuit := engine.AnnualPursuit(grade)
	require.NotNil(t, pursuit)
	assert.Equal(t, 40.0, *pursuit)
}

func TestAnnualPursuitAllNull(t *testing.T) {
	engine := newEngine(t, nil)

	assert.Nil(t, engine.AnnualPursuit(models.SubjectGrade{}))
}

func TestAnnualPursuitPrimaryUsesTermAggregates(t *testing.T) {
	engine := newEngine(t, func(p *Policy) { p.Level = models.LevelPrimary })

	grade := models.SubjectGrade{
		October:    f(10), // ignored for primary
		FirstTerm:  f(60),
		MidYear:    f(70),
		SecondTerm: f(80),
	}
	pursuit := engine.AnnualPursuit(grade)
	require.NotNil(t, pursuit)
	assert.Equal(t, 70.0, *pursuit)
}

func TestComputeSubjectPassingNeedsNoDecision(t *testing.T) {
	engine := newEngine(t, nil)
	budget := engine.NewBudget()

	grade := models.SubjectGrade{October: f(60), FinalExam1st: f(70)}
	calc := engine.ComputeSubject(grade, budget)

	require.NotNil(t, calc.FinalGrade1st)
	assert.Equal(t, 65.0, *calc.FinalGrade1st)
	assert.Equal(t, 0, calc.DecisionApplied)
	assert.Equal(t, engine.Policy().DecisionPoints, budget.Remaining())
	assert.True(t, calc.IsExempt)
	require.NotNil(t, calc.FinalGrade2nd)
	assert.Equal(t, *calc.FinalGradeWithDecision, *calc.FinalGrade2nd)
}

func TestComputeSubjectDecisionLiftsToThreshold(t *testing.T) {
	engine := newEngine(t, nil)
	budget := engine.NewBudget()

	// pursuit 48, exam 46 -> final 47, deficit 3.
	grade := models.SubjectGrade{October: f(48), FinalExam1st: f(46)}
	calc := engine.ComputeSubject(grade, budget)

	require.NotNil(t, calc.FinalGradeWithDecision)
	assert.Equal(t, 3, calc.DecisionApplied)
	assert.Equal(t, 50.0, *calc.FinalGradeWithDecision)
	assert.GreaterOrEqual(t, *calc.FinalGradeWithDecision, *calc.FinalGrade1st)
	assert.Equal(t, 7, budget.Remaining())
	assert.True(t, calc.IsExempt)
}

func TestComputeSubjectDecisionExhaustionStillFails(t *testing.T) {
	engine := newEngine(t, func(p *Policy) { p.DecisionPoints = 2 })
	budget := engine.NewBudget()

	grade := models.SubjectGrade{October: f(40), FinalExam1st: f(40)}
	calc := engine.ComputeSubject(grade, budget)

	assert.Equal(t, 2, calc.DecisionApplied)
	require.NotNil(t, calc.FinalGradeWithDecision)
	assert.Equal(t, 42.0, *calc.FinalGradeWithDecision)
	assert.False(t, calc.IsExempt)
	assert.Equal(t, 0, budget.Remaining())
}

func TestComputeSubjectMissingExamIsPendingNotZero(t *testing.T) {
	engine := newEngine(t, nil)
	budget := engine.NewBudget()

	grade := models.SubjectGrade{October: f(90)}
	calc := engine.ComputeSubject(grade, budget)

	assert.Nil(t, calc.FinalGrade1st)
	assert.Nil(t, calc.FinalGradeWithDecision)
	assert.Equal(t, 0, calc.DecisionApplied)
	assert.Equal(t, engine.Policy().DecisionPoints, budget.Remaining())
}

func TestSecondCycleSpendsFromSameBudget(t *testing.T) {
	engine := newEngine(t, func(p *Policy) { p.DecisionPoints = 5 })
	budget := engine.NewBudget()

	// First cycle fails badly even with the full pool, second exam recovers
	// to a small deficit covered by the leftovers.
	grade := models.SubjectGrade{
		October:      f(40),
		FinalExam1st: f(30), // final 35, spends all 5, still failing
		FinalExam2nd: f(56), // second final 48, pool exhausted
	}
	calc := engine.ComputeSubject(grade, budget)

	assert.False(t, calc.IsExempt)
	assert.Equal(t, 5, calc.DecisionApplied)
	require.NotNil(t, calc.FinalGrade2nd)
	assert.Equal(t, 48.0, *calc.FinalGrade2nd)
	assert.Equal(t, 0, budget.Remaining())
}

func TestComputeStudentAllPassing(t *testing.T) {
	engine := newEngine(t, nil)

	subjects := []SubjectInput{
		{SubjectID: "s1", SubjectName: "الرياضيات", Grade: models.SubjectGrade{October: f(70), FinalExam1st: f(80)}},
		{SubjectID: "s2", SubjectName: "العلوم", Grade: models.SubjectGrade{October: f(60), FinalExam1st: f(60)}},
	}
	grades, result := engine.ComputeStudent(subjects)

	require.Len(t, grades, 2)
	assert.Equal(t, models.StatusPass, result.Status)
	assert.Empty(t, result.FailingSubjects)
}

func TestComputeStudentSupplementaryNamesSubjects(t *testing.T) {
	engine := newEngine(t, func(p *Policy) {
		p.DecisionPoints = 0
		p.SupplementarySubjectsCount = 2
	})

	subjects := []SubjectInput{
		{SubjectID: "s1", SubjectName: "الرياضيات", Grade: models.SubjectGrade{October: f(30), FinalExam1st: f(30)}},
		{SubjectID: "s2", SubjectName: "العلوم", Grade: models.SubjectGrade{October: f(80), FinalExam1st: f(80)}},
		{SubjectID: "s3", SubjectName: "اللغة العربية", Grade: models.SubjectGrade{October: f(20), FinalExam1st: f(20)}},
	}
	_, result := engine.ComputeStudent(subjects)

	assert.Equal(t, models.StatusSupplementary, result.Status)
	assert.ElementsMatch(t, []string{"الرياضيات", "اللغة العربية"}, result.FailingSubjects)
	assert.Contains(t, result.Message, "الرياضيات")
	assert.Contains(t, result.Message, "اللغة العربية")
}

func TestComputeStudentFailBeyondSupplementaryLimit(t *testing.T) {
	engine := newEngine(t, func(p *Policy) {
		p.DecisionPoints = 0
		p.SupplementarySubjectsCount = 1
	})

	failing := models.SubjectGrade{October: f(20), FinalExam1st: f(20)}
	subjects := []SubjectInput{
		{SubjectID: "s1", SubjectName: "أ", Grade: failing},
		{SubjectID: "s2", SubjectName: "ب", Grade: failing},
	}
	_, result := engine.ComputeStudent(subjects)

	assert.Equal(t, models.StatusFail, result.Status)
}

func TestComputeStudentPendingOnMissingInputs(t *testing.T) {
	engine := newEngine(t, nil)

	subjects := []SubjectInput{
		{SubjectID: "s1", SubjectName: "الرياضيات", Grade: models.SubjectGrade{}},
	}
	_, result := engine.ComputeStudent(subjects)

	assert.Equal(t, models.StatusPending, result.Status)
}

func TestComputeStudentBudgetSharedAcrossSubjects(t *testing.T) {
	engine := newEngine(t, func(p *Policy) {
		p.DecisionPoints = 5
		p.SupplementarySubjectsCount = 5
	})

	// Each subject needs 4 points; the pool covers the first fully and
	// leaves only 1 for the second. Spending order is ascending subject ID.
	needy := models.SubjectGrade{October: f(46), FinalExam1st: f(46)}
	subjects := []SubjectInput{
		{SubjectID: "b", SubjectName: "ب", Grade: needy},
		{SubjectID: "a", SubjectName: "أ", Grade: needy},
	}
	grades, _ := engine.ComputeStudent(subjects)

	require.Len(t, grades, 2)
	assert.Equal(t, "a", grades[0].SubjectID)
	assert.Equal(t, 4, grades[0].DecisionApplied)
	assert.Equal(t, 1, grades[1].DecisionApplied)

	total := grades[0].DecisionApplied + grades[1].DecisionApplied
	assert.LessOrEqual(t, total, engine.Policy().DecisionPoints)
}

func TestComputeEligibility(t *testing.T) {
	engine := newEngine(t, func(p *Policy) { p.DecisionPoints = 3 })

	subjects := []SubjectInput{
		{SubjectID: "s1", SubjectName: "الرياضيات", Grade: models.SubjectGrade{October: f(48)}},
		{SubjectID: "s2", SubjectName: "العلوم", Grade: models.SubjectGrade{October: f(90)}},
	}
	grades, result := engine.ComputeEligibility(subjects)

	require.Len(t, grades, 2)
	assert.Equal(t, models.StatusEligibleByDecision, result.Status)
	assert.Equal(t, 2, grades[0].DecisionAppliedOnPursuit)

	// Without decision usage the status is a plain eligible.
	subjects[0].Grade.October = f(75)
	_, result = engine.ComputeEligibility(subjects)
	assert.Equal(t, models.StatusEligible, result.Status)

	// A hopeless pursuit beyond the pool is ineligible.
	subjects[0].Grade.October = f(10)
	_, result = engine.ComputeEligibility(subjects)
	assert.Equal(t, models.StatusIneligible, result.Status)
	assert.Contains(t, result.FailingSubjects, "الرياضيات")
}
