package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"commerce-app/subscription-service/internal/models"
)

func TestSaveInsertsNewRecord(t *testing.T) {
	repo := newFakeRepo()
	publisher := &capturePublisher{}
	svc := newTestService(repo, &fakeBilling{}, publisher)

	sub := testSubscription("user-1", "premium plan")
	saved, err := svc.Save(context.Background(), &sub)

	require.NoError(t, err)
	assert.False(t, saved.ID.IsZero(), "insert must assign an id")
	assert.False(t, saved.Dates.DateUpdated.IsZero())
	assert.Equal(t, 1, repo.count())
	assert.Equal(t, []ChangeKind{ChangeCreated}, publisher.kinds())
}

func TestSaveValidationFailureAbortsWrite(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeBilling{}, &capturePublisher{})

	sub := testSubscription("user-1", "premium plan")
	sub.UserID = "" // required

	_, err := svc.Save(context.Background(), &sub)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, repo.count(), "nothing may be written on validation failure")
}

func TestSaveRejectsActiveScheduleBeyondEnd(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeBilling{}, &capturePublisher{})

	sub := testSubscription("user-1", "premium plan")
	sub.Dates.DateEnd = sub.Dates.DateOrderNext.AddDate(0, 0, -1)

	_, err := svc.Save(context.Background(), &sub)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr, "an active record may not schedule an order past its end date")
	assert.Equal(t, 0, repo.count())

	// the bound applies to active records only
	finished := testSubscription("user-1", "premium plan")
	finished.Status = models.StatusFinished
	finished.Dates.DateEnd = finished.Dates.DateOrderNext.AddDate(0, 0, -1)

	_, err = svc.Save(context.Background(), &finished)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.count())
}

func TestSaveUpdatesExistingRecord(t *testing.T) {
	existing := testSubscription("user-1", "premium plan")
	repo := newFakeRepo(existing)
	publisher := &capturePublisher{}
	svc := newTestService(repo, &fakeBilling{}, publisher)

	var stored models.Subscription
	for _, s := range repo.store {
		stored = s
	}
	stored.Price = 19.99

	saved, err := svc.Save(context.Background(), &stored)

	require.NoError(t, err)
	assert.Equal(t, stored.ID, saved.ID)
	assert.Equal(t, 19.99, repo.get(stored.ID).Price)
	assert.Equal(t, 1, repo.count())
	require.NotNil(t, saved.Dates.DateSynced)
	assert.Equal(t, []ChangeKind{ChangeUpdated}, publisher.kinds())
}

func TestSaveDuplicateIsAdvisoryOnly(t *testing.T) {
	existing := testSubscription("user-1", "premium plan")
	repo := newFakeRepo(existing)
	svc := newTestService(repo, &fakeBilling{}, &capturePublisher{})

	dup := testSubscription("user-1", "premium plan")
	_, err := svc.Save(context.Background(), &dup)

	require.NoError(t, err, "duplicates are warned about, never rejected")
	assert.Equal(t, 2, repo.count())
}

func TestListConstrainsToOwner(t *testing.T) {
	repo := newFakeRepo(
		testSubscription("user-1", "premium plan"),
		testSubscription("user-1", "storage addon"),
		testSubscription("user-2", "premium plan"),
	)
	svc := newTestService(repo, &fakeBilling{}, &capturePublisher{})

	mine := svc.List(context.Background(), ListParams{UserID: "user-1"})
	assert.Len(t, mine, 2)
	for _, s := range mine {
		assert.Equal(t, "user-1", s.UserID)
	}

	// full data without the admin role still only shows own records
	stillMine := svc.List(context.Background(), ListParams{UserID: "user-1", FullData: true})
	assert.Len(t, stillMine, 2)

	all := svc.List(context.Background(), ListParams{UserID: "user-1", FullData: true, IsAdmin: true})
	assert.Len(t, all, 3)
}

func TestListStripsHistoryFromCollections(t *testing.T) {
	repo := newFakeRepo(
		testSubscription("user-1", "premium plan"),
		testSubscription("user-1", "storage addon"),
	)
	svc := newTestService(repo, &fakeBilling{}, &capturePublisher{})

	subs := svc.List(context.Background(), ListParams{UserID: "user-1"})
	require.Len(t, subs, 2)
	for _, s := range subs {
		assert.Nil(t, s.History)
	}
}

func TestListByIDKeepsHistory(t *testing.T) {
	existing := testSubscription("user-1", "premium plan")
	repo := newFakeRepo(existing)
	svc := newTestService(repo, &fakeBilling{}, &capturePublisher{})

	var id string
	for _, s := range repo.store {
		id = s.ID.Hex()
	}

	subs := svc.List(context.Background(), ListParams{
		UserID: "user-1",
		Query:  bson.M{"_id": id},
		Limit:  10, // the id pin overrides the requested page size
	})

	require.Len(t, subs, 1)
	assert.NotEmpty(t, subs[0].History)
}

func TestImportRequiresAdmin(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeBilling{}, &capturePublisher{})
	sub := testSubscription("user-1", "premium plan")

	_, err := svc.Import(context.Background(), "user", []*models.Subscription{&sub})
	assert.ErrorIs(t, err, models.ErrPermissionDenied)
	assert.Equal(t, 0, repo.count())

	saved, err := svc.Import(context.Background(), "admin", []*models.Subscription{&sub})
	require.NoError(t, err)
	assert.Len(t, saved, 1)
	assert.Equal(t, 1, repo.count())
}

func TestSuspendHappyPath(t *testing.T) {
	existing := testSubscription("user-1", "premium plan")
	existing.History = append(existing.History, paidEvent("AGR-7"))
	repo := newFakeRepo(existing)
	billing := &fakeBilling{}
	svc := newTestService(repo, billing, &capturePublisher{})

	var id string
	for _, s := range repo.store {
		id = s.ID.Hex()
	}

	res, err := svc.Suspend(context.Background(), id, "user-1", false)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"AGR-7"}, billing.suspended)
	require.NotNil(t, res.Agreement)
	assert.Equal(t, "AGR-7", res.Agreement.ID)
	assert.Nil(t, res.Subscription.History, "transition responses omit the audit trail")

	for _, s := range repo.store {
		assert.Equal(t, models.StatusSuspended, s.Status)
		assert.Equal(t, models.ActionSuspended, s.History[len(s.History)-1].Action)
	}
}

func TestSuspendWithoutAgreementRecordsError(t *testing.T) {
	existing := testSubscription("user-1", "premium plan")
	repo := newFakeRepo(existing)
	billing := &fakeBilling{}
	svc := newTestService(repo, billing, &capturePublisher{})

	var id string
	for _, s := range repo.store {
		id = s.ID.Hex()
	}

	res, err := svc.Suspend(context.Background(), id, "user-1", false)

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "agreementId not found", res.Error)
	assert.Empty(t, billing.suspended)

	for _, s := range repo.store {
		assert.Equal(t, models.StatusActive, s.Status, "the stored record stays active")
		last := s.History[len(s.History)-1]
		assert.Equal(t, models.ActionError, last.Action)
		assert.Equal(t, "agreementId not found", last.Data.ErrorMsg)
	}
}

func TestSuspendRejectedWhenNotActive(t *testing.T) {
	existing := testSubscription("user-1", "premium plan")
	existing.Status = models.StatusSuspended
	existing.History = append(existing.History, paidEvent("AGR-7"))
	repo := newFakeRepo(existing)
	svc := newTestService(repo, &fakeBilling{}, &capturePublisher{})

	var id string
	for _, s := range repo.store {
		id = s.ID.Hex()
	}

	_, err := svc.Suspend(context.Background(), id, "user-1", false)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestSuspendForeignRecordNotFound(t *testing.T) {
	existing := testSubscription("user-1", "premium plan")
	existing.History = append(existing.History, paidEvent("AGR-7"))
	repo := newFakeRepo(existing)
	svc := newTestService(repo, &fakeBilling{}, &capturePublisher{})

	var id string
	for _, s := range repo.store {
		id = s.ID.Hex()
	}

	_, err := svc.Suspend(context.Background(), id, "user-2", false)
	assert.ErrorIs(t, err, models.ErrNotFound)

	// an admin is not constrained to ownership
	res, err := svc.Suspend(context.Background(), id, "user-2", true)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestReactivateHappyPath(t *testing.T) {
	existing := testSubscription("user-1", "premium plan")
	existing.Status = models.StatusSuspended
	existing.History = append(existing.History, paidEvent("AGR-7"))
	repo := newFakeRepo(existing)
	billing := &fakeBilling{}
	svc := newTestService(repo, billing, &capturePublisher{})

	var id string
	for _, s := range repo.store {
		id = s.ID.Hex()
	}

	res, err := svc.Reactivate(context.Background(), id, "user-1", false)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"AGR-7"}, billing.reactivated)

	for _, s := range repo.store {
		assert.Equal(t, models.StatusActive, s.Status)
	}
}

func TestSuspendAgreementCallFailure(t *testing.T) {
	existing := testSubscription("user-1", "premium plan")
	existing.History = append(existing.History, paidEvent("AGR-7"))
	repo := newFakeRepo(existing)
	svc := newTestService(repo, &fakeBilling{failSuspend: true}, &capturePublisher{})

	var id string
	for _, s := range repo.store {
		id = s.ID.Hex()
	}

	res, err := svc.Suspend(context.Background(), id, "user-1", false)

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "suspendAgreement", res.Error)

	for _, s := range repo.store {
		assert.Equal(t, models.StatusActive, s.Status)
		assert.Equal(t, models.ActionError, s.History[len(s.History)-1].Action)
	}
}
