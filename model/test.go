package model

import "time"

type TestStatus string

const (
	TestPending   TestStatus = "pending"
	TestCompleted TestStatus = "completed"
)

// PasswordLength is the length of a teacher generated test password.
const PasswordLength = 6

type QuizQuestion struct {
	Question string   `firestore:"question" json:"question"`
	Options  []string `firestore:"options" json:"options"`
	Answer   string   `firestore:"answer" json:"answer"`
}

type AssignedTest struct {
	ID         string          `firestore:"id"`
	TeacherID  string          `firestore:"teacherID"`
	Password   string          `firestore:"password"`
	Subject    string          `firestore:"subject"`
	ClassLevel string          `firestore:"classLevel"`
	Topic      string          `firestore:"topic"`
	Questions  []QuizQuestion  `firestore:"questions"`
	Status     TestStatus      `firestore:"status"`
	CreatedAt  time.Time       `firestore:"createdAt"`
	Submission *TestSubmission `firestore:"submission"`
}

type TestSubmission struct {
	StudentID   string    `firestore:"studentID"`
	StudentName string    `firestore:"studentName"`
	Answers     []string  `firestore:"answers"`
	Score       int       `firestore:"score"`
	CompletedAt time.Time `firestore:"completedAt"`
}

// Grade counts answers matching the stored key.
func (t *AssignedTest) Grade(answers []string) int {
	score := 0
	for i, q := range t.Questions {
		if i < len(answers) && answers[i] == q.Answer {
			score++
		}
	}
	return score
}
