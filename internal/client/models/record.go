package models

import "time"

// Gender codes used by the server.
const (
	GenderMale   = "H"
	GenderFemale = "F"
)

// Activity levels accepted by calculate-calories.
var ActivityLevels = []string{"sedentaire", "leger", "modere", "intense", "tres_intense"}

// Goals accepted by calculate-calories.
var Goals = []string{"perte", "maintien", "prise"}

// WorkingRecord is the in-progress metric computation for the current user.
// Nil pointers mean "not computed yet".
type WorkingRecord struct {
	Date                string     `json:"date"`
	WeightKg            *float64   `json:"weight_kg"`
	HeightCm            *float64   `json:"height_cm"`
	BMI                 *float64   `json:"imc"`
	Gender              string     `json:"gender"`
	Age                 *int       `json:"age"`
	ActivityLevel       string     `json:"activity_level"`
	Goal                string     `json:"goal"`
	BMR                 *float64   `json:"bmr"`
	TDEE                *float64   `json:"tdee"`
	RecommendedCalories *float64   `json:"calories_recommandees"`
	CreatedAt           *time.Time `json:"created_at"`
	ModifiedAt          *time.Time `json:"modified_at"`
}

// Clone returns a deep copy.
func (w WorkingRecord) Clone() WorkingRecord {
	w.WeightKg = cloneFloat(w.WeightKg)
	w.HeightCm = cloneFloat(w.HeightCm)
	w.BMI = cloneFloat(w.BMI)
	w.BMR = cloneFloat(w.BMR)
	w.TDEE = cloneFloat(w.TDEE)
	w.RecommendedCalories = cloneFloat(w.RecommendedCalories)
	if w.Age != nil {
		a := *w.Age
		w.Age = &a
	}
	w.CreatedAt = cloneTime(w.CreatedAt)
	w.ModifiedAt = cloneTime(w.ModifiedAt)
	return w
}

// ProgressRecord is a saved record from the server's history.
type ProgressRecord struct {
	ID                  int64      `json:"id"`
	Date                string     `json:"date"`
	WeightKg            *float64   `json:"weight_kg"`
	HeightCm            *float64   `json:"height_cm"`
	BMI                 *float64   `json:"imc"`
	Gender              string     `json:"gender"`
	Age                 *int       `json:"age"`
	ActivityLevel       string     `json:"activity_level"`
	Goal                string     `json:"goal"`
	BMR                 *float64   `json:"bmr"`
	TDEE                *float64   `json:"tdee"`
	RecommendedCalories *float64   `json:"calories_recommandees"`
	CreatedAt           *time.Time `json:"created_at"`
	ModifiedAt          *time.Time `json:"modified_at"`
}

// RecordFields are the progress-record fields a partial update may carry.
var RecordFields = []string{"date", "weight_kg", "height_cm", "imc", "activity_level", "goal", "bmr", "tdee", "calories_recommandees"}

// CaloriesRequest is the payload of calculate-calories.
type CaloriesRequest struct {
	Gender        string   `json:"gender"`
	Age           *int     `json:"age"`
	Date          string   `json:"date"`
	WeightKg      *float64 `json:"weight_kg"`
	HeightCm      *float64 `json:"height_cm"`
	ActivityLevel string   `json:"activity_level"`
	Goal          string   `json:"goal"`
}

// CaloriesResult is the data part of a calculate-calories response.
type CaloriesResult struct {
	BMR                 float64 `json:"bmr"`
	TDEE                float64 `json:"tdee"`
	RecommendedCalories float64 `json:"calories_recommandees"`
}

// MeasurementRequest is the payload of calculate-imc.
type MeasurementRequest struct {
	WeightKg float64   `json:"weight_kg"`
	HeightCm float64   `json:"height_cm"`
	Date     time.Time `json:"date"`
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
