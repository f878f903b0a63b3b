package repo

import (
	"context"
	"math/rand/v2"
	"strings"

	"CareerBot/model"
)

// FirestoreConnector is the persistence surface the bot and the HTTP API share.
type FirestoreConnector interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	UpsertProfile(ctx context.Context, userID string, p model.Profile) error
	SetProfilePicture(ctx context.Context, userID string, data []byte, contentType string) (string, error)

	// ToggleSavedArtifact adds a when no stored artifact has its id and removes
	// every stored entry with that id otherwise. It reports whether a is saved afterwards.
	ToggleSavedArtifact(ctx context.Context, userID string, a model.SavedArtifact) (bool, error)
	ToggleSavedAcademy(ctx context.Context, userID string, a model.SavedAcademy) (bool, error)
	ActivateSubscription(ctx context.Context, userID string, plan model.SubscriptionModel) error

	CreateTest(ctx context.Context, test model.AssignedTest) (*model.AssignedTest, error)
	FindTestByPassword(ctx context.Context, password string) (*model.AssignedTest, error)
	CompleteTest(ctx context.Context, testID string, sub model.TestSubmission) error
	TestsByTeacher(ctx context.Context, teacherID string) ([]model.AssignedTest, error)

	RecordPayment(ctx context.Context, p model.Payment) error
	WatchPayment(ctx context.Context, orderID string) (<-chan model.Payment, error)

	Subjects(ctx context.Context, path []string) ([]string, error)
}

const (
	usersCollection      = "users"
	testsCollection      = "tests"
	paymentsCollection   = "payments"
	curriculumCollection = "curriculum"

	savedArtifactsField = "saved_business_ideas"
	savedAcademiesField = "saved_academies"

	passwordAttempts = 5
)

const passwordChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GeneratePassword returns a random uppercase alphanumeric test password.
func GeneratePassword() string {
	var b strings.Builder
	b.Grow(model.PasswordLength)
	for i := 0; i < model.PasswordLength; i++ {
		b.WriteByte(passwordChars[rand.IntN(len(passwordChars))])
	}
	return b.String()
}

// curriculumKey maps a hierarchy path to a curriculum document id, e.g.
// ["12", "Science (PCM)"] -> "12_Science (PCM)". Slashes are not allowed in ids.
func curriculumKey(path []string) string {
	return strings.ReplaceAll(strings.Join(path, "_"), "/", "-")
}
