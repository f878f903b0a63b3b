package repo

import (
	"context"
	"os"
	"testing"
	"time"

	"CareerBot/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getenvOrSkip(t *testing.T, key string) string {
	t.Helper()
	v := os.Getenv(key)
	if v == "" {
		t.Skipf("env %s not set", key)
	}
	return v
}

func emulatorConnector(t *testing.T) *FirebaseConnector {
	t.Helper()
	getenvOrSkip(t, "FIRESTORE_EMULATOR_HOST")
	project := os.Getenv("FIREBASE_PROJECT_ID")
	if project == "" {
		project = "careerbot-test"
	}
	fc, err := NewFirebaseConnector(context.Background(), "", project, "")
	require.NoError(t, err)
	t.Cleanup(func() { fc.Close() })
	return fc
}

func TestFirestoreToggleSavedArtifact(t *testing.T) {
	fc := emulatorConnector(t)
	ctx := context.Background()
	userID := "u_" + uuid.NewString()
	a := model.SavedArtifact{ID: "1700000000000", Type: "career", Title: "Architect", SavedAt: time.Now().UTC().Truncate(time.Millisecond)}

	saved, err := fc.ToggleSavedArtifact(ctx, userID, a)
	require.NoError(t, err)
	assert.True(t, saved, "missing list is initialised with the item")

	b := model.SavedArtifact{ID: "1700000000001", Type: "career", Title: "Designer"}
	saved, err = fc.ToggleSavedArtifact(ctx, userID, b)
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = fc.ToggleSavedArtifact(ctx, userID, a)
	require.NoError(t, err)
	assert.False(t, saved)

	u, err := fc.GetUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, u.SavedBusinessIdeas, 1)
	assert.Equal(t, b.ID, u.SavedBusinessIdeas[0].ID)
}

func TestFirestoreCompleteTestOnce(t *testing.T) {
	fc := emulatorConnector(t)
	ctx := context.Background()

	test, err := fc.CreateTest(ctx, model.AssignedTest{TeacherID: "t_" + uuid.NewString(), Subject: "Science"})
	require.NoError(t, err)

	require.NoError(t, fc.CompleteTest(ctx, test.ID, model.TestSubmission{StudentID: "s1"}))
	assert.ErrorIs(t, fc.CompleteTest(ctx, test.ID, model.TestSubmission{StudentID: "s2"}), model.ErrTestAlreadyCompleted)
}

func TestFirestoreRecordPaymentActivatesPlan(t *testing.T) {
	fc := emulatorConnector(t)
	ctx := context.Background()
	userID := "u_" + uuid.NewString()

	require.NoError(t, fc.RecordPayment(ctx, model.Payment{OrderID: "order_" + uuid.NewString(), UserID: userID, Plan: "parent", Status: model.PaymentPaid}))
	u, err := fc.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.True(t, u.IsSubscribed)
	assert.Equal(t, model.PlanParent, u.SubscriptionModel)
}
