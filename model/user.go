package model

import (
	"strconv"
	"time"
)

// SubscriptionModel is the plan a user paid for.
type SubscriptionModel string

const (
	PlanBasic   SubscriptionModel = "basic"
	PlanStudent SubscriptionModel = "student"
	PlanTeacher SubscriptionModel = "teacher"
	PlanParent  SubscriptionModel = "parent"
)

// Feature is a gated part of the product.
type Feature string

const (
	FeatureCareer         Feature = "career"
	FeatureCareerAdvanced Feature = "career_advanced"
	FeatureBusiness       Feature = "business"
	FeatureChild          Feature = "child"
	FeatureSports         Feature = "sports"
	FeatureCreateTest     Feature = "create_test"
)

var planFeatures = map[SubscriptionModel][]Feature{
	PlanBasic:   {FeatureCareer, FeatureCareerAdvanced, FeatureSports},
	PlanStudent: {FeatureCareer, FeatureCareerAdvanced, FeatureBusiness, FeatureSports},
	PlanParent:  {FeatureCareer, FeatureCareerAdvanced, FeatureChild, FeatureSports},
	PlanTeacher: {FeatureCareer, FeatureCareerAdvanced, FeatureCreateTest},
}

// PlanPrices are in INR.
var PlanPrices = map[SubscriptionModel]float64{
	PlanBasic:   99,
	PlanStudent: 199,
	PlanParent:  249,
	PlanTeacher: 299,
}

// ParsePlan returns the plan for a name and whether it is known.
func ParsePlan(name string) (SubscriptionModel, bool) {
	plan := SubscriptionModel(name)
	_, ok := PlanPrices[plan]
	return plan, ok
}

type User struct {
	ID                 string            `firestore:"-"`
	Name               string            `firestore:"name"`
	Email              string            `firestore:"email"`
	Phone              string            `firestore:"phone"`
	ProfilePic         string            `firestore:"profile_pic"`
	IsSubscribed       bool              `firestore:"is_subscribed"`
	SubscriptionModel  SubscriptionModel `firestore:"subscription_model"`
	SavedAcademies     []SavedAcademy    `firestore:"saved_academies"`
	SavedBusinessIdeas []SavedArtifact   `firestore:"saved_business_ideas"`
}

// Allows reports whether the user's plan unlocks f. Free users get the basic career flow only.
func (u *User) Allows(f Feature) bool {
	if f == FeatureCareer {
		return true
	}
	if u == nil || !u.IsSubscribed {
		return false
	}
	for _, allowed := range planFeatures[u.SubscriptionModel] {
		if allowed == f {
			return true
		}
	}
	return false
}

// Profile is the subset of User collected by the profile questionnaire.
type Profile struct {
	Name  string `firestore:"name"`
	Email string `firestore:"email"`
	Phone string `firestore:"phone"`
}

// SavedArtifact is a RemoteResult item bookmarked into the user record.
type SavedArtifact struct {
	ID          string            `firestore:"id" json:"id"`
	Type        string            `firestore:"type" json:"type"`
	Title       string            `firestore:"title" json:"title"`
	Description string            `firestore:"description" json:"description"`
	Data        map[string]string `firestore:"data" json:"data"`
	SavedAt     time.Time         `firestore:"savedAt" json:"savedAt"`
}

type SavedAcademy struct {
	ID      string `firestore:"id" json:"id"`
	Name    string `firestore:"name" json:"name"`
	Sport   string `firestore:"sport" json:"sport"`
	Address string `firestore:"address" json:"address"`
}

// NewArtifactID returns a timestamp based id in milliseconds.
func NewArtifactID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10)
}

// PlansWith lists the plans unlocking f, cheapest first.
func PlansWith(f Feature) []SubscriptionModel {
	var out []SubscriptionModel
	for _, plan := range []SubscriptionModel{PlanBasic, PlanStudent, PlanParent, PlanTeacher} {
		for _, allowed := range planFeatures[plan] {
			if allowed == f {
				out = append(out, plan)
				break
			}
		}
	}
	return out
}
