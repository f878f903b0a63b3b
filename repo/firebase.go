package repo

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"CareerBot/model"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirebaseConnector struct to hold the Firebase app and its service clients
type FirebaseConnector struct {
	app    *firebase.App
	client *firestore.Client
	bucket string

	authOnce sync.Once
	auth     *auth.Client
	authErr  error
}

// NewFirebaseConnector creates a new Firebase connector
func NewFirebaseConnector(ctx context.Context, serviceAccountKeyPath, projectID, storageBucket string) (*FirebaseConnector, error) {
	var opts []option.ClientOption
	if serviceAccountKeyPath != "" {
		opts = append(opts, option.WithCredentialsFile(serviceAccountKeyPath))
	}

	config := &firebase.Config{
		ProjectID:     projectID,
		StorageBucket: storageBucket,
	}
	app, err := firebase.NewApp(ctx, config, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}

	return &FirebaseConnector{
		app:    app,
		client: client,
		bucket: storageBucket,
	}, nil
}

// InitializeFirebase creates the connector from the service account settings.
func InitializeFirebase(ctx context.Context, serviceAccountKeyPath, projectID, storageBucket string) (*FirebaseConnector, error) {
	if serviceAccountKeyPath == "" && projectID == "" {
		return nil, fmt.Errorf("FIREBASE_SERVICE_ACCOUNT_KEY_PATH or FIREBASE_PROJECT_ID must be set")
	}
	fc, err := NewFirebaseConnector(ctx, serviceAccountKeyPath, projectID, storageBucket)
	if err != nil {
		return nil, fmt.Errorf("error creating Firebase connector: %w", err)
	}
	return fc, nil
}

// Close closes the Firestore client
func (fc *FirebaseConnector) Close() error {
	return fc.client.Close()
}

// VerifyIDToken checks a Firebase ID token and returns the uid it was issued to.
func (fc *FirebaseConnector) VerifyIDToken(ctx context.Context, idToken string) (string, error) {
	fc.authOnce.Do(func() {
		fc.auth, fc.authErr = fc.app.Auth(context.Background())
	})
	if fc.authErr != nil {
		return "", fmt.Errorf("error getting auth client: %w", fc.authErr)
	}
	token, err := fc.auth.VerifyIDToken(ctx, idToken)
	if err != nil {
		return "", fmt.Errorf("error verifying id token: %w", err)
	}
	return token.UID, nil
}

func notFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (fc *FirebaseConnector) user(userID string) *firestore.DocumentRef {
	return fc.client.Collection(usersCollection).Doc(userID)
}

// GetUser reads users/{userID}
func (fc *FirebaseConnector) GetUser(ctx context.Context, userID string) (*model.User, error) {
	snap, err := fc.user(userID).Get(ctx)
	if notFound(err) {
		return nil, model.ErrUserDoesNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("error reading user: %w", err)
	}
	var u model.User
	if err := snap.DataTo(&u); err != nil {
		return nil, fmt.Errorf("error decoding user: %w", err)
	}
	u.ID = userID
	return &u, nil
}

// UpsertProfile writes the contact fields, creating the user when needed
func (fc *FirebaseConnector) UpsertProfile(ctx context.Context, userID string, p model.Profile) error {
	_, err := fc.user(userID).Set(ctx, map[string]interface{}{
		"name":  p.Name,
		"email": p.Email,
		"phone": p.Phone,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("error updating profile: %w", err)
	}
	return nil
}

// SetProfilePicture uploads the image to the default bucket and records its URL on the user
func (fc *FirebaseConnector) SetProfilePicture(ctx context.Context, userID string, data []byte, contentType string) (string, error) {
	storageClient, err := fc.app.Storage(ctx)
	if err != nil {
		return "", fmt.Errorf("error getting storage client: %w", err)
	}
	bucket, err := storageClient.DefaultBucket()
	if err != nil {
		return "", fmt.Errorf("error opening bucket: %w", err)
	}

	object := path.Join("profile_pics", userID, fmt.Sprintf("%d.jpg", time.Now().UnixMilli()))
	w := bucket.Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("error uploading profile picture: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("error uploading profile picture: %w", err)
	}

	url := fmt.Sprintf("https://storage.googleapis.com/%s/%s", fc.bucket, object)
	if _, err := fc.user(userID).Set(ctx, map[string]interface{}{"profile_pic": url}, firestore.MergeAll); err != nil {
		return "", fmt.Errorf("error recording profile picture: %w", err)
	}
	return url, nil
}

// toggleArrayItem flips membership of an id in an array-of-maps field inside a transaction.
func (fc *FirebaseConnector) toggleArrayItem(ctx context.Context, userID, field, id string, item interface{}) (bool, error) {
	ref := fc.user(userID)
	var saved bool
	err := fc.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && !notFound(err) {
			return err
		}

		var stored []interface{}
		if snap != nil && snap.Exists() {
			if raw, err := snap.DataAt(field); err == nil {
				stored, _ = raw.([]interface{})
			}
		}

		var matches []interface{}
		for _, elem := range stored {
			if m, ok := elem.(map[string]interface{}); ok && m["id"] == id {
				matches = append(matches, elem)
			}
		}

		if len(matches) > 0 {
			saved = false
			return tx.Update(ref, []firestore.Update{{Path: field, Value: firestore.ArrayRemove(matches...)}})
		}
		saved = true
		if stored == nil {
			return tx.Set(ref, map[string]interface{}{field: []interface{}{item}}, firestore.MergeAll)
		}
		return tx.Update(ref, []firestore.Update{{Path: field, Value: firestore.ArrayUnion(item)}})
	})
	if err != nil {
		return false, fmt.Errorf("error toggling %s: %w", field, err)
	}
	return saved, nil
}

func (fc *FirebaseConnector) ToggleSavedArtifact(ctx context.Context, userID string, a model.SavedArtifact) (bool, error) {
	return fc.toggleArrayItem(ctx, userID, savedArtifactsField, a.ID, a)
}

func (fc *FirebaseConnector) ToggleSavedAcademy(ctx context.Context, userID string, a model.SavedAcademy) (bool, error) {
	return fc.toggleArrayItem(ctx, userID, savedAcademiesField, a.ID, a)
}

// ActivateSubscription marks the user subscribed to plan
func (fc *FirebaseConnector) ActivateSubscription(ctx context.Context, userID string, plan model.SubscriptionModel) error {
	_, err := fc.user(userID).Set(ctx, subscriptionFields(plan), firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("error activating subscription: %w", err)
	}
	return nil
}

func subscriptionFields(plan model.SubscriptionModel) map[string]interface{} {
	return map[string]interface{}{
		"is_subscribed":      true,
		"subscription_model": string(plan),
	}
}

// CreateTest stores a pending test under a fresh, unused password
func (fc *FirebaseConnector) CreateTest(ctx context.Context, test model.AssignedTest) (*model.AssignedTest, error) {
	for attempt := 0; attempt < passwordAttempts; attempt++ {
		password := GeneratePassword()
		_, err := fc.FindTestByPassword(ctx, password)
		if err == nil {
			log.Debug().Int("attempt", attempt).Msg("test password collision")
			continue
		}
		if !errors.Is(err, model.ErrTestDoesNotExist) {
			return nil, err
		}

		ref := fc.client.Collection(testsCollection).NewDoc()
		test.ID = ref.ID
		test.Password = password
		test.Status = model.TestPending
		if test.CreatedAt.IsZero() {
			test.CreatedAt = time.Now()
		}
		if _, err := ref.Create(ctx, test); err != nil {
			return nil, fmt.Errorf("error creating test: %w", err)
		}
		return &test, nil
	}
	return nil, fmt.Errorf("error creating test: no free password after %d attempts", passwordAttempts)
}

func (fc *FirebaseConnector) FindTestByPassword(ctx context.Context, password string) (*model.AssignedTest, error) {
	docs, err := fc.client.Collection(testsCollection).Where("password", "==", password).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("error finding test: %w", err)
	}
	if len(docs) == 0 {
		return nil, model.ErrTestDoesNotExist
	}
	var test model.AssignedTest
	if err := docs[0].DataTo(&test); err != nil {
		return nil, fmt.Errorf("error decoding test: %w", err)
	}
	test.ID = docs[0].Ref.ID
	return &test, nil
}

// CompleteTest moves a test from pending to completed exactly once
func (fc *FirebaseConnector) CompleteTest(ctx context.Context, testID string, sub model.TestSubmission) error {
	ref := fc.client.Collection(testsCollection).Doc(testID)
	err := fc.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if notFound(err) {
			return model.ErrTestDoesNotExist
		}
		if err != nil {
			return err
		}
		var test model.AssignedTest
		if err := snap.DataTo(&test); err != nil {
			return err
		}
		if test.Status == model.TestCompleted {
			return model.ErrTestAlreadyCompleted
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(model.TestCompleted)},
			{Path: "submission", Value: sub},
		})
	})
	if err != nil {
		return fmt.Errorf("error completing test: %w", err)
	}
	return nil
}

func (fc *FirebaseConnector) TestsByTeacher(ctx context.Context, teacherID string) ([]model.AssignedTest, error) {
	docs, err := fc.client.Collection(testsCollection).Where("teacherID", "==", teacherID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("error listing tests: %w", err)
	}
	tests := make([]model.AssignedTest, 0, len(docs))
	for _, doc := range docs {
		var test model.AssignedTest
		if err := doc.DataTo(&test); err != nil {
			log.Warn().Err(err).Str("test", doc.Ref.ID).Msg("skipping undecodable test")
			continue
		}
		test.ID = doc.Ref.ID
		tests = append(tests, test)
	}
	sort.Slice(tests, func(i, j int) bool { return tests[i].CreatedAt.After(tests[j].CreatedAt) })
	return tests, nil
}

// RecordPayment writes payments/{orderID}; a paid order also activates the plan
func (fc *FirebaseConnector) RecordPayment(ctx context.Context, p model.Payment) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	ref := fc.client.Collection(paymentsCollection).Doc(p.OrderID)
	err := fc.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(ref, p); err != nil {
			return err
		}
		if p.Status != model.PaymentPaid || p.UserID == "" {
			return nil
		}
		return tx.Set(fc.user(p.UserID), subscriptionFields(model.SubscriptionModel(p.Plan)), firestore.MergeAll)
	})
	if err != nil {
		return fmt.Errorf("error recording payment: %w", err)
	}
	return nil
}

// WatchPayment streams payments/{orderID} until ctx is done or the listener fails
func (fc *FirebaseConnector) WatchPayment(ctx context.Context, orderID string) (<-chan model.Payment, error) {
	it := fc.client.Collection(paymentsCollection).Doc(orderID).Snapshots(ctx)
	out := make(chan model.Payment)
	go func() {
		defer close(out)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil {
					log.Error().Err(err).Str("order", orderID).Msg("payment listener stopped")
				}
				return
			}
			if !snap.Exists() {
				continue
			}
			var p model.Payment
			if err := snap.DataTo(&p); err != nil {
				log.Warn().Err(err).Str("order", orderID).Msg("undecodable payment snapshot")
				continue
			}
			select {
			case out <- p:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Subjects reads curriculum/{class[_stream]}
func (fc *FirebaseConnector) Subjects(ctx context.Context, hierarchy []string) ([]string, error) {
	if len(hierarchy) == 0 {
		return nil, nil
	}
	snap, err := fc.client.Collection(curriculumCollection).Doc(curriculumKey(hierarchy)).Get(ctx)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading curriculum: %w", err)
	}
	var doc struct {
		Subjects []string `firestore:"subjects"`
	}
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("error decoding curriculum: %w", err)
	}
	return doc.Subjects, nil
}
