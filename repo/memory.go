package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"CareerBot/model"

	"github.com/google/uuid"
)

// MemoryStore is an in-process FirestoreConnector for local runs and tests.
type MemoryStore struct {
	mu         sync.Mutex
	users      map[string]*model.User
	tests      map[string]*model.AssignedTest
	payments   map[string]model.Payment
	curriculum map[string][]string
	pictures   map[string][]byte
	watchers   map[string][]chan model.Payment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]*model.User),
		tests:      make(map[string]*model.AssignedTest),
		payments:   make(map[string]model.Payment),
		curriculum: make(map[string][]string),
		pictures:   make(map[string][]byte),
		watchers:   make(map[string][]chan model.Payment),
	}
}

// SetSubjects seeds curriculum/{path}.
func (m *MemoryStore) SetSubjects(path []string, subjects []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.curriculum[curriculumKey(path)] = subjects
}

func (m *MemoryStore) userLocked(userID string) *model.User {
	u, ok := m.users[userID]
	if !ok {
		u = &model.User{ID: userID}
		m.users[userID] = u
	}
	return u
}

func (m *MemoryStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, model.ErrUserDoesNotExist
	}
	cp := *u
	cp.SavedAcademies = append([]model.SavedAcademy(nil), u.SavedAcademies...)
	cp.SavedBusinessIdeas = append([]model.SavedArtifact(nil), u.SavedBusinessIdeas...)
	return &cp, nil
}

func (m *MemoryStore) UpsertProfile(ctx context.Context, userID string, p model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.userLocked(userID)
	u.Name, u.Email, u.Phone = p.Name, p.Email, p.Phone
	return nil
}

func (m *MemoryStore) SetProfilePicture(ctx context.Context, userID string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pictures[userID] = append([]byte(nil), data...)
	url := fmt.Sprintf("memory://profile_pics/%s", userID)
	m.userLocked(userID).ProfilePic = url
	return url, nil
}

func (m *MemoryStore) ToggleSavedArtifact(ctx context.Context, userID string, a model.SavedArtifact) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.userLocked(userID)
	kept := u.SavedBusinessIdeas[:0:0]
	for _, existing := range u.SavedBusinessIdeas {
		if existing.ID != a.ID {
			kept = append(kept, existing)
		}
	}
	if len(kept) != len(u.SavedBusinessIdeas) {
		u.SavedBusinessIdeas = kept
		return false, nil
	}
	u.SavedBusinessIdeas = append(u.SavedBusinessIdeas, a)
	return true, nil
}

func (m *MemoryStore) ToggleSavedAcademy(ctx context.Context, userID string, a model.SavedAcademy) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.userLocked(userID)
	kept := u.SavedAcademies[:0:0]
	for _, existing := range u.SavedAcademies {
		if existing.ID != a.ID {
			kept = append(kept, existing)
		}
	}
	if len(kept) != len(u.SavedAcademies) {
		u.SavedAcademies = kept
		return false, nil
	}
	u.SavedAcademies = append(u.SavedAcademies, a)
	return true, nil
}

func (m *MemoryStore) ActivateSubscription(ctx context.Context, userID string, plan model.SubscriptionModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.userLocked(userID)
	u.IsSubscribed = true
	u.SubscriptionModel = plan
	return nil
}

func (m *MemoryStore) CreateTest(ctx context.Context, test model.AssignedTest) (*model.AssignedTest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for attempt := 0; attempt < passwordAttempts; attempt++ {
		password := GeneratePassword()
		if m.findLocked(password) != nil {
			continue
		}
		test.ID = uuid.NewString()
		test.Password = password
		test.Status = model.TestPending
		if test.CreatedAt.IsZero() {
			test.CreatedAt = time.Now()
		}
		stored := test
		m.tests[test.ID] = &stored
		return &test, nil
	}
	return nil, fmt.Errorf("error creating test: no free password after %d attempts", passwordAttempts)
}

func (m *MemoryStore) findLocked(password string) *model.AssignedTest {
	for _, t := range m.tests {
		if t.Password == password {
			return t
		}
	}
	return nil
}

func (m *MemoryStore) FindTestByPassword(ctx context.Context, password string) (*model.AssignedTest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.findLocked(password)
	if t == nil {
		return nil, model.ErrTestDoesNotExist
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) CompleteTest(ctx context.Context, testID string, sub model.TestSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[testID]
	if !ok {
		return model.ErrTestDoesNotExist
	}
	if t.Status == model.TestCompleted {
		return fmt.Errorf("error completing test: %w", model.ErrTestAlreadyCompleted)
	}
	t.Status = model.TestCompleted
	t.Submission = &sub
	return nil
}

func (m *MemoryStore) TestsByTeacher(ctx context.Context, teacherID string) ([]model.AssignedTest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AssignedTest
	for _, t := range m.tests {
		if t.TeacherID == teacherID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) RecordPayment(ctx context.Context, p model.Payment) error {
	if p.OrderID == "" {
		return errors.New("error recording payment: missing order id")
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	m.mu.Lock()
	m.payments[p.OrderID] = p
	if p.Status == model.PaymentPaid && p.UserID != "" {
		u := m.userLocked(p.UserID)
		u.IsSubscribed = true
		u.SubscriptionModel = model.SubscriptionModel(p.Plan)
	}
	watchers := append([]chan model.Payment(nil), m.watchers[p.OrderID]...)
	m.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- p:
		default:
		}
	}
	return nil
}

// WatchPayment delivers the current payment, if any, then every later write.
func (m *MemoryStore) WatchPayment(ctx context.Context, orderID string) (<-chan model.Payment, error) {
	ch := make(chan model.Payment, 8)
	m.mu.Lock()
	if p, ok := m.payments[orderID]; ok {
		ch <- p
	}
	m.watchers[orderID] = append(m.watchers[orderID], ch)
	m.mu.Unlock()

	out := make(chan model.Payment)
	go func() {
		defer close(out)
		defer m.unwatch(orderID, ch)
		for {
			select {
			case p := <-ch:
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (m *MemoryStore) unwatch(orderID string, ch chan model.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.watchers[orderID]
	for i, c := range list {
		if c == ch {
			m.watchers[orderID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(m.watchers[orderID]) == 0 {
		delete(m.watchers, orderID)
	}
}

func (m *MemoryStore) Subjects(ctx context.Context, path []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.curriculum[curriculumKey(path)]...), nil
}
