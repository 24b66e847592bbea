package credit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"lms/coursekey"
	"lms/database/dbtest"
	creditModels "lms/models/credit"
)

const testCourse = "edX/DemoX/Demo_Course"

var gradeRequirement = RequirementInput{
	Namespace:   "grade",
	Name:        "grade",
	DisplayName: "Grade",
	Criteria:    map[string]interface{}{"min_grade": 0.8},
}

type recordingNotifier struct {
	calls []string
	err   error
}

func (r *recordingNotifier) NotifyRequestStatus(_ context.Context, req *creditModels.CreditRequest, status string) error {
	r.calls = append(r.calls, req.UUID+":"+status)
	return r.err
}

func newTestService(t *testing.T, opts ...Option) (*Service, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	return NewService(db, opts...), db
}

func enableCourse(t *testing.T, s *Service) {
	t.Helper()
	_, err := s.EnableCreditCourse(context.Background(), testCourse, true)
	require.NoError(t, err)
}

// eligibleLearner sets up a credit course with provider "hogwarts" and a
// learner "bob" who satisfied the grade requirement.
func eligibleLearner(t *testing.T, s *Service, db *gorm.DB) {
	t.Helper()
	ctx := context.Background()
	enableCourse(t, s)
	_, err := s.UpsertCreditProvider(ctx, ProviderInput{
		ProviderID:  "hogwarts",
		DisplayName: "Hogwarts School of Witchcraft and Wizardry",
		ProviderURL: "https://credit.example.com/request",
	})
	require.NoError(t, err)
	require.NoError(t, s.AddProviderToCourse(ctx, testCourse, "hogwarts"))
	require.NoError(t, s.SetCreditRequirements(ctx, testCourse, []RequirementInput{gradeRequirement}))
	dbtest.CreateUser(t, db, "bob")
	require.NoError(t, s.SetCreditRequirementStatus(ctx, "bob", testCourse, "grade", "grade", "satisfied",
		map[string]interface{}{"final_grade": 0.95}))
}

func countRequirements(t *testing.T, db *gorm.DB, activeOnly bool) int64 {
	t.Helper()
	q := db.Model(&creditModels.CreditRequirement{})
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var n int64
	require.NoError(t, q.Count(&n).Error)
	return n
}

func TestSetCreditRequirementsRejectsInvalidEntries(t *testing.T) {
	s, db := newTestService(t)
	enableCourse(t, s)

	err := s.SetCreditRequirements(context.Background(), testCourse, []RequirementInput{
		gradeRequirement,
		{Name: "grade", DisplayName: "Grade", Criteria: map[string]interface{}{}},
		{Namespace: "proctored_exam", Name: "final"},
	})

	var invalid *InvalidCreditRequirementsError
	require.ErrorAs(t, err, &invalid)
	require.Len(t, invalid.Messages, 2)
	assert.Contains(t, invalid.Messages[0], "[namespace]")
	assert.Contains(t, invalid.Messages[1], "[display_name, criteria]")
	assert.Zero(t, countRequirements(t, db, false))
}

func TestSetCreditRequirementsRequiresCreditCourse(t *testing.T) {
	s, db := newTestService(t)

	err := s.SetCreditRequirements(context.Background(), testCourse, []RequirementInput{gradeRequirement})
	assert.ErrorIs(t, err, ErrInvalidCreditCourse)

	_, err = s.EnableCreditCourse(context.Background(), testCourse, false)
	require.NoError(t, err)
	err = s.SetCreditRequirements(context.Background(), testCourse, []RequirementInput{gradeRequirement})
	assert.ErrorIs(t, err, ErrInvalidCreditCourse)
	assert.Zero(t, countRequirements(t, db, false))
}

func TestSetCreditRequirementsLastCriteriaWins(t *testing.T) {
	s, db := newTestService(t)
	enableCourse(t, s)
	ctx := context.Background()

	first := gradeRequirement
	second := gradeRequirement
	second.Criteria = map[string]interface{}{"min_grade": 0.5}
	require.NoError(t, s.SetCreditRequirements(ctx, testCourse, []RequirementInput{first}))
	require.NoError(t, s.SetCreditRequirements(ctx, testCourse, []RequirementInput{second}))

	reqs, err := s.GetCreditRequirements(ctx, testCourse, "")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, 0.5, reqs[0].Criteria["min_grade"])
	assert.EqualValues(t, 1, countRequirements(t, db, false))

	// Duplicates inside one list resolve to the later entry.
	third := gradeRequirement
	third.Criteria = map[string]interface{}{"min_grade": 0.9}
	require.NoError(t, s.SetCreditRequirements(ctx, testCourse, []RequirementInput{second, third}))
	reqs, err = s.GetCreditRequirements(ctx, testCourse, "grade")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, 0.9, reqs[0].Criteria["min_grade"])
}

func TestSetCreditRequirementsDisablesMissing(t *testing.T) {
	s, db := newTestService(t)
	enableCourse(t, s)
	ctx := context.Background()

	exam := RequirementInput{Namespace: "proctored_exam", Name: "final", DisplayName: "Final Exam", Criteria: map[string]interface{}{}}
	require.NoError(t, s.SetCreditRequirements(ctx, testCourse, []RequirementInput{gradeRequirement, exam}))
	assert.EqualValues(t, 2, countRequirements(t, db, true))

	require.NoError(t, s.SetCreditRequirements(ctx, testCourse, []RequirementInput{exam}))
	assert.EqualValues(t, 1, countRequirements(t, db, true))
	assert.EqualValues(t, 2, countRequirements(t, db, false))

	reqs, err := s.GetCreditRequirements(ctx, testCourse, "")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "proctored_exam", reqs[0].Namespace)

	// Resubmitting brings the requirement back without a new row.
	require.NoError(t, s.SetCreditRequirements(ctx, testCourse, []RequirementInput{gradeRequirement, exam}))
	assert.EqualValues(t, 2, countRequirements(t, db, true))
	assert.EqualValues(t, 2, countRequirements(t, db, false))

	reqs, err = s.GetCreditRequirements(ctx, testCourse, "proctored_exam")
	require.NoError(t, err)
	assert.Len(t, reqs, 1)
}

func TestSetCreditRequirementsIdempotent(t *testing.T) {
	s, db := newTestService(t)
	enableCourse(t, s)
	ctx := context.Background()

	require.NoError(t, s.SetCreditRequirements(ctx, testCourse, []RequirementInput{gradeRequirement}))
	var before creditModels.CreditRequirement
	require.NoError(t, db.First(&before).Error)

	require.NoError(t, s.SetCreditRequirements(ctx, testCourse, []RequirementInput{gradeRequirement}))
	var after creditModels.CreditRequirement
	require.NoError(t, db.First(&after).Error)

	assert.Equal(t, before.ID, after.ID)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
}

func TestEligibilityFollowsRequirementStatus(t *testing.T) {
	s, db := newTestService(t)
	enableCourse(t, s)
	ctx := context.Background()
	dbtest.CreateUser(t, db, "bob")

	exam := RequirementInput{Namespace: "proctored_exam", Name: "final", DisplayName: "Final Exam", Criteria: map[string]interface{}{}}
	require.NoError(t, s.SetCreditRequirements(ctx, testCourse, []RequirementInput{gradeRequirement, exam}))

	err := s.SetCreditRequirementStatus(ctx, "bob", testCourse, "grade", "grade", "passed", nil)
	assert.ErrorIs(t, err, ErrInvalidRequirementStatus)
	err = s.SetCreditRequirementStatus(ctx, "bob", testCourse, "grade", "missing", "satisfied", nil)
	assert.ErrorIs(t, err, ErrRequirementNotFound)

	require.NoError(t, s.SetCreditRequirementStatus(ctx, "bob", testCourse, "grade", "grade", "satisfied",
		map[string]interface{}{"final_grade": 0.91}))
	eligible, err := s.IsUserEligibleForCredit(ctx, "bob", testCourse)
	require.NoError(t, err)
	assert.False(t, eligible)

	require.NoError(t, s.SetCreditRequirementStatus(ctx, "bob", testCourse, "proctored_exam", "final", "failed", nil))
	eligible, err = s.IsUserEligibleForCredit(ctx, "bob", testCourse)
	require.NoError(t, err)
	assert.False(t, eligible)

	require.NoError(t, s.SetCreditRequirementStatus(ctx, "bob", testCourse, "proctored_exam", "final", "satisfied", nil))
	eligible, err = s.IsUserEligibleForCredit(ctx, "bob", testCourse)
	require.NoError(t, err)
	assert.True(t, eligible)

	rows, err := s.GetCreditEligibility(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, testCourse, rows[0].CourseKey)
}

func TestCreateCreditRequestReturnsSameToken(t *testing.T) {
	s, db := newTestService(t)
	eligibleLearner(t, s, db)
	ctx := context.Background()
	key := coursekey.MustParse(testCourse)

	first, err := s.CreateCreditRequest(ctx, key, "hogwarts", "bob")
	require.NoError(t, err)
	token := first.Parameters["request_uuid"].(string)
	assert.Len(t, token, 32)
	assert.Equal(t, "edX", first.Parameters["course_org"])
	assert.Equal(t, "DemoX", first.Parameters["course_num"])
	assert.Equal(t, "Demo_Course", first.Parameters["course_run"])
	assert.Equal(t, 0.95, first.Parameters["final_grade"])
	assert.Equal(t, "bob@example.com", first.Parameters["user_email"])
	assert.Equal(t, "Full bob", first.Parameters["user_full_name"])
	assert.Equal(t, "123 Main St", first.Parameters["user_mailing_address"])
	assert.Equal(t, "US", first.Parameters["user_country"])
	assert.Equal(t, "hogwarts", first.Provider.ProviderID)

	// A changed mailing address shows up in the refreshed snapshot.
	require.NoError(t, db.Exec("UPDATE user_profiles SET mailing_address = NULL").Error)
	second, err := s.CreateCreditRequest(ctx, key, "hogwarts", "bob")
	require.NoError(t, err)
	assert.Equal(t, token, second.Parameters["request_uuid"])
	assert.Equal(t, "", second.Parameters["user_mailing_address"])

	var requests, statuses int64
	require.NoError(t, db.Model(&creditModels.CreditRequest{}).Count(&requests).Error)
	require.NoError(t, db.Model(&creditModels.CreditRequestStatus{}).Count(&statuses).Error)
	assert.EqualValues(t, 1, requests)
	assert.EqualValues(t, 2, statuses)

	var stored creditModels.CreditRequest
	require.NoError(t, db.First(&stored).Error)
	assert.Equal(t, "", stored.Parameters["user_mailing_address"])
}

func TestCreateCreditRequestFailures(t *testing.T) {
	s, db := newTestService(t)
	eligibleLearner(t, s, db)
	ctx := context.Background()
	key := coursekey.MustParse(testCourse)

	_, err := s.CreateCreditRequest(ctx, key, "durmstrang", "bob")
	assert.ErrorIs(t, err, ErrCreditProviderNotFound)

	_, err = s.CreateCreditRequest(ctx, coursekey.MustParse("edX/Other/2015"), "hogwarts", "bob")
	assert.ErrorIs(t, err, ErrInvalidCreditCourse)

	_, err = s.UpsertCreditProvider(ctx, ProviderInput{ProviderID: "beauxbatons", DisplayName: "Beauxbatons", ProviderURL: "https://b.example.com"})
	require.NoError(t, err)
	_, err = s.CreateCreditRequest(ctx, key, "beauxbatons", "bob")
	assert.ErrorIs(t, err, ErrCreditProviderNotConfigured)

	dbtest.CreateUser(t, db, "alice")
	_, err = s.CreateCreditRequest(ctx, key, "hogwarts", "alice")
	assert.ErrorIs(t, err, ErrUserIsNotEligible)

	var requests int64
	require.NoError(t, db.Model(&creditModels.CreditRequest{}).Count(&requests).Error)
	assert.Zero(t, requests)
}

func TestCreateCreditRequestNeedsFinalGrade(t *testing.T) {
	s, db := newTestService(t)
	eligibleLearner(t, s, db)
	ctx := context.Background()

	require.NoError(t, s.SetCreditRequirementStatus(ctx, "bob", testCourse, "grade", "grade", "satisfied",
		map[string]interface{}{"note": "no grade"}))
	_, err := s.CreateCreditRequest(ctx, coursekey.MustParse(testCourse), "hogwarts", "bob")
	assert.ErrorIs(t, err, ErrUserIsNotEligible)
}

func TestCreditRequestLifecycle(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	s, db := newTestService(t, WithNotifier(notifier))
	eligibleLearner(t, s, db)
	ctx := context.Background()
	key := coursekey.MustParse(testCourse)

	desc, err := s.CreateCreditRequest(ctx, key, "hogwarts", "bob")
	require.NoError(t, err)
	token := desc.Parameters["request_uuid"].(string)

	requests, err := s.GetCreditRequestsForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "pending", requests[0].Status)

	assert.ErrorIs(t, s.UpdateCreditRequestStatus(ctx, token, "pending"), ErrInvalidCreditStatus)
	assert.ErrorIs(t, s.UpdateCreditRequestStatus(ctx, token, "unknown"), ErrInvalidCreditStatus)
	assert.ErrorIs(t, s.UpdateCreditRequestStatus(ctx, "0000", "approved"), ErrCreditRequestNotFound)

	require.NoError(t, s.UpdateCreditRequestStatus(ctx, token, "approved"))
	require.NoError(t, s.UpdateCreditRequestStatus(ctx, token, "approved"))
	assert.ErrorIs(t, s.UpdateCreditRequestStatus(ctx, token, "rejected"), ErrRequestAlreadyCompleted)
	assert.Equal(t, []string{token + ":approved", token + ":approved"}, notifier.calls)

	_, err = s.CreateCreditRequest(ctx, key, "hogwarts", "bob")
	assert.ErrorIs(t, err, ErrRequestAlreadyCompleted)

	requests, err = s.GetCreditRequestsForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, token, requests[0].UUID)
	assert.Equal(t, testCourse, requests[0].CourseKey)
	assert.Equal(t, ProviderSummary{ID: "hogwarts", DisplayName: "Hogwarts School of Witchcraft and Wizardry"}, requests[0].Provider)
	assert.Equal(t, "approved", requests[0].Status)

	var statuses []creditModels.CreditRequestStatus
	require.NoError(t, db.Order("id asc").Find(&statuses).Error)
	require.Len(t, statuses, 3)
	assert.Equal(t, "pending", statuses[0].Status)
}

func TestGetCreditRequestsForUserOrdering(t *testing.T) {
	s, db := newTestService(t)
	eligibleLearner(t, s, db)
	ctx := context.Background()
	key := coursekey.MustParse(testCourse)

	_, err := s.UpsertCreditProvider(ctx, ProviderInput{ProviderID: "asu", DisplayName: "ASU", ProviderURL: "https://asu.example.com"})
	require.NoError(t, err)
	require.NoError(t, s.AddProviderToCourse(ctx, testCourse, "asu"))

	_, err = s.CreateCreditRequest(ctx, key, "hogwarts", "bob")
	require.NoError(t, err)
	_, err = s.CreateCreditRequest(ctx, key, "asu", "bob")
	require.NoError(t, err)

	requests, err := s.GetCreditRequestsForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, "asu", requests[0].Provider.ID)
	assert.Equal(t, "hogwarts", requests[1].Provider.ID)

	none, err := s.GetCreditRequestsForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDashboardStats(t *testing.T) {
	s, db := newTestService(t, WithClock(func() time.Time { return time.Now() }))
	eligibleLearner(t, s, db)
	ctx := context.Background()

	desc, err := s.CreateCreditRequest(ctx, coursekey.MustParse(testCourse), "hogwarts", "bob")
	require.NoError(t, err)

	stats, err := s.DashboardStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.CreditCourses)
	assert.EqualValues(t, 1, stats.Providers)
	assert.EqualValues(t, 1, stats.Eligibilities)
	assert.EqualValues(t, 1, stats.Requests)
	assert.EqualValues(t, 1, stats.RequestsToday)
	assert.EqualValues(t, 1, stats.PendingDecisions)

	require.NoError(t, s.UpdateCreditRequestStatus(ctx, desc.Parameters["request_uuid"].(string), "rejected"))
	stats, err = s.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.PendingDecisions)
}

func TestStoredJSONReadsBackAsPlainNumbers(t *testing.T) {
	s, db := newTestService(t)
	eligibleLearner(t, s, db)
	ctx := context.Background()

	reqs, err := s.GetCreditRequirements(ctx, testCourse, "grade")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.IsType(t, float64(0), reqs[0].Criteria["min_grade"])
	assert.Equal(t, map[string]interface{}{"min_grade": 0.8}, reqs[0].Criteria)

	desc, err := s.CreateCreditRequest(ctx, coursekey.MustParse(testCourse), "hogwarts", "bob")
	require.NoError(t, err)
	assert.IsType(t, float64(0), desc.Parameters["final_grade"])
	assert.Equal(t, 0.95, desc.Parameters["final_grade"])
}

func TestConcurrentDecisionsSettleOnce(t *testing.T) {
	s, db := newTestService(t)
	eligibleLearner(t, s, db)
	ctx := context.Background()

	desc, err := s.CreateCreditRequest(ctx, coursekey.MustParse(testCourse), "hogwarts", "bob")
	require.NoError(t, err)
	token := desc.Parameters["request_uuid"].(string)

	outcomes := []string{"approved", "rejected"}
	errs := make([]error, len(outcomes))
	var wg sync.WaitGroup
	for i, status := range outcomes {
		wg.Add(1)
		go func(i int, status string) {
			defer wg.Done()
			errs[i] = s.UpdateCreditRequestStatus(ctx, token, status)
		}(i, status)
	}
	wg.Wait()

	var ok, completed int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrRequestAlreadyCompleted):
			completed++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, completed)

	var terminal int64
	require.NoError(t, db.Model(&creditModels.CreditRequestStatus{}).
		Where("status <> ?", creditModels.RequestStatusPending).
		Count(&terminal).Error)
	assert.EqualValues(t, 1, terminal)
}

func TestDashboardPendingUsesNewestStatusByTime(t *testing.T) {
	s, db := newTestService(t)
	eligibleLearner(t, s, db)
	ctx := context.Background()

	_, err := s.CreateCreditRequest(ctx, coursekey.MustParse(testCourse), "hogwarts", "bob")
	require.NoError(t, err)

	var req creditModels.CreditRequest
	require.NoError(t, db.First(&req).Error)
	var pending creditModels.CreditRequestStatus
	require.NoError(t, db.Where("credit_request_id = ?", req.ID).First(&pending).Error)

	// A later row id carrying an older timestamp does not supersede pending.
	require.NoError(t, db.Create(&creditModels.CreditRequestStatus{
		CreditRequestID: req.ID,
		Status:          creditModels.RequestStatusApproved,
		CreatedAt:       pending.CreatedAt.Add(-time.Hour),
	}).Error)

	current, err := currentStatus(db, req.ID)
	require.NoError(t, err)
	assert.Equal(t, creditModels.RequestStatusPending, current)

	stats, err := s.DashboardStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.PendingDecisions)
}

func TestCreateCreditRequestSurfacesProviderLookupErrors(t *testing.T) {
	s, db := newTestService(t)
	eligibleLearner(t, s, db)

	require.NoError(t, db.Migrator().DropTable("credit_course_providers"))
	_, err := s.CreateCreditRequest(context.Background(), coursekey.MustParse(testCourse), "hogwarts", "bob")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCreditProviderNotConfigured)
}
