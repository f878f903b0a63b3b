package questionnaire

import (
	"fmt"
	"regexp"

	"CareerBot/model"
)

// Shared field and flag names.
const (
	FieldName       = "name"
	FieldClass      = "class"
	FieldStream     = "stream"
	FieldSubjects   = "subjects"
	FieldInterests  = "interests"
	FieldSkills     = "skills"
	FieldWorkStyle  = "workStyle"
	FieldLocation   = "location"
	FieldGoal       = "goal"
	FieldBudget     = "budget"
	FieldIndustries = "industries"
	FieldExperience = "experience"
	FieldCommitment = "commitment"
	FieldChildName  = "childName"
	FieldChildAge   = "childAge"
	FieldStrengths  = "strengths"
	FieldHobbies    = "hobbies"
	FieldConcerns   = "concerns"
	FieldSport      = "sport"
	FieldAge        = "age"
	FieldSubject    = "subject"
	FieldTopic      = "topic"
	FieldCount      = "count"
	FieldEmail      = "email"
	FieldPhone      = "phone"

	FlagRequiresStream = "requiresStream"
)

var (
	ClassLevels      = []string{"8", "9", "10", "11", "12", "UG", "PG"}
	Streams          = []string{"Science (PCM)", "Science (PCB)", "Commerce", "Arts/Humanities", "Vocational"}
	TeachingSubjects = []string{"Mathematics", "Science", "English", "Social Studies", "Computer Science"}

	streamClasses = []string{"11", "12", "UG", "PG"}

	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9]{10,13}$`)
)

// RequiresStream reports whether the class level needs a stream.
func RequiresStream(a Answers) bool {
	return contains(streamClasses, a.Text(FieldClass))
}

func CareerPath() *Flow {
	return &Flow{
		Name: "Career Path",
		Kind: model.KindCareer,
		Steps: []Step{
			{Title: "About you", Fields: []Field{
				{Name: FieldName, Label: "Your name", Kind: FieldText, Required: true},
				{Name: FieldClass, Label: "your class", Kind: FieldSingle, Options: ClassLevels, Required: true},
			}},
			{Title: "Academics", Fields: []Field{
				{Name: FieldStream, Label: "your stream", Kind: FieldSingle, Options: Streams, RequiredWhen: FlagRequiresStream},
				{Name: FieldSubjects, Label: "favourite subjects", Kind: FieldMulti, Limit: 3, Required: true},
			}},
			{Title: "Interests", Fields: []Field{
				{Name: FieldInterests, Label: "your interests", Kind: FieldMulti, Limit: 5, Required: true, Options: []string{
					"Technology", "Art & Design", "Healthcare", "Business", "Law", "Science & Research",
					"Sports", "Media", "Teaching", "Public Service", "Environment",
				}},
			}},
			{Title: "Strengths", Fields: []Field{
				{Name: FieldSkills, Label: "your strengths", Kind: FieldMulti, Limit: 3, Required: true, Options: []string{
					"Problem solving", "Communication", "Creativity", "Leadership", "Numbers", "Empathy", "Hands-on work",
				}},
				{Name: FieldWorkStyle, Label: "a work style", Kind: FieldSingle, Required: true, Options: []string{"Independent", "Team", "Mixed"}},
			}},
			{Title: "Preferences", Fields: []Field{
				{Name: FieldGoal, Label: "Your career goal", Kind: FieldText, Required: true},
				{Name: FieldLocation, Label: "Preferred location", Kind: FieldText},
			}},
		},
		Branches:       map[string]func(Answers) bool{FlagRequiresStream: RequiresStream},
		ChangePathStep: 3,
	}
}

func BusinessBlaster() *Flow {
	return &Flow{
		Name: "Business Blaster",
		Kind: model.KindBusiness,
		Steps: []Step{
			{Title: "Budget", Fields: []Field{
				{Name: FieldBudget, Label: "Budget (INR)", Kind: FieldNumber, Required: true, Min: 1000},
			}},
			{Title: "Industries", Fields: []Field{
				{Name: FieldIndustries, Label: "industries", Kind: FieldMulti, Limit: 3, Required: true, Options: []string{
					"Food & Beverage", "Retail", "Education", "Technology", "Health & Fitness",
					"Tourism", "Agriculture", "Fashion", "Services",
				}},
			}},
			{Title: "Experience", Fields: []Field{
				{Name: FieldExperience, Label: "your experience", Kind: FieldSingle, Required: true, Options: []string{"None", "Under 2 years", "2-5 years", "5+ years"}},
				{Name: FieldCommitment, Label: "a commitment", Kind: FieldSingle, Required: true, Options: []string{"Part-time", "Full-time"}},
			}},
			{Title: "Goals", Fields: []Field{
				{Name: FieldGoal, Label: "Your business goal", Kind: FieldText, Required: true},
				{Name: FieldLocation, Label: "City", Kind: FieldText},
			}},
		},
		ChangePathStep: 1,
	}
}

func ChildAbility() *Flow {
	return &Flow{
		Name: "Child Ability",
		Kind: model.KindChild,
		Steps: []Step{
			{Title: "Your child", Fields: []Field{
				{Name: FieldChildName, Label: "Child's name", Kind: FieldText, Required: true},
				{Name: FieldChildAge, Label: "Child's age", Kind: FieldNumber, Required: true, Min: 3, Max: 17, Integer: true},
			}},
			{Title: "Observed strengths", Fields: []Field{
				{Name: FieldStrengths, Label: "observed strengths", Kind: FieldMulti, Limit: 4, Required: true, Options: []string{
					"Curiosity", "Memory", "Drawing", "Music", "Physical activity", "Puzzles", "Reading", "Social skills", "Building things",
				}},
			}},
			{Title: "Hobbies", Fields: []Field{
				{Name: FieldHobbies, Label: "hobbies", Kind: FieldMulti, Limit: 3, Options: []string{
					"Sports", "Dance", "Painting", "Gaming", "Reading", "Science kits", "Instruments",
				}},
				{Name: FieldConcerns, Label: "Concerns", Kind: FieldText},
			}},
		},
		ChangePathStep: -1,
	}
}

func SportsEligibility() *Flow {
	return &Flow{
		Name: "Sports",
		Kind: model.KindSports,
		Steps: []Step{
			{Title: "Sport", Fields: []Field{
				{Name: FieldSport, Label: "Sport", Kind: FieldText, Required: true},
				{Name: FieldAge, Label: "Age", Kind: FieldNumber, Required: true, Min: 1, Max: 100, Integer: true},
			}},
			{Title: "Location", Fields: []Field{
				{Name: FieldLocation, Label: "City", Kind: FieldText, Required: true},
			}},
		},
		ChangePathStep: 0,
	}
}

func TeacherTest() *Flow {
	return &Flow{
		Name: "Create Test",
		Kind: model.KindTestSetup,
		Steps: []Step{
			{Title: "Class", Fields: []Field{
				{Name: FieldSubject, Label: "a subject", Kind: FieldSingle, Options: TeachingSubjects, Required: true},
				{Name: FieldClass, Label: "a class", Kind: FieldSingle, Options: ClassLevels, Required: true},
			}, Check: schoolClassOnly},
			{Title: "Topic", Fields: []Field{
				{Name: FieldTopic, Label: "Topic", Kind: FieldText, Required: true},
				{Name: FieldCount, Label: "Number of questions", Kind: FieldNumber, Required: true, Min: 3, Max: 10, Integer: true},
			}},
		},
		ChangePathStep: -1,
	}
}

func Profile() *Flow {
	return &Flow{
		Name: "Profile",
		Kind: model.KindProfile,
		Steps: []Step{
			{Title: "Contact", Fields: []Field{
				{Name: FieldName, Label: "Full name", Kind: FieldText, Required: true},
				{Name: FieldEmail, Label: "Email", Kind: FieldText, Required: true, Pattern: emailPattern, PatternHint: "Please enter a valid email address."},
			}},
			{Title: "Phone", Fields: []Field{
				{Name: FieldPhone, Label: "Phone", Kind: FieldText, Required: true, Pattern: phonePattern, PatternHint: "Please enter a 10 to 13 digit phone number."},
			}},
		},
		ChangePathStep: -1,
	}
}

// schoolClassOnly keeps class tests to the school curriculum.
func schoolClassOnly(a Answers) map[string]string {
	if class := a.Text(FieldClass); class == "UG" || class == "PG" {
		return map[string]string{FieldClass: "Class tests are available for classes 8 to 12."}
	}
	return nil
}

// QuestionField is the answer field name for quiz question i.
func QuestionField(i int) string {
	return fmt.Sprintf("q%d", i+1)
}

// QuizFlow builds one single-select step per question of an assigned test.
func QuizFlow(test *model.AssignedTest) *Flow {
	steps := make([]Step, 0, len(test.Questions))
	for i, q := range test.Questions {
		steps = append(steps, Step{
			Title: fmt.Sprintf("Question %d of %d", i+1, len(test.Questions)),
			Fields: []Field{
				{Name: QuestionField(i), Label: q.Question, Kind: FieldSingle, Options: q.Options, Required: true},
			},
		})
	}
	return &Flow{
		Name:           fmt.Sprintf("%s test: %s", test.Subject, test.Topic),
		Kind:           model.KindQuiz,
		Steps:          steps,
		ChangePathStep: -1,
	}
}

// QuizAnswers lists the chosen options in question order.
func QuizAnswers(a Answers, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = a.Text(QuestionField(i))
	}
	return out
}
