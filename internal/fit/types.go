package fit

import "time"

// TodaySummary covers local midnight until now. Missing data reads as zero.
type TodaySummary struct {
	Steps          int     `json:"steps"`
	HeartMinutes   int     `json:"heartMinutes"`
	Calories       int     `json:"calories"`
	DistanceMeters float64 `json:"distanceMeters"`
	ActiveMinutes  int     `json:"activeMinutes"`
}

// DailyActivity is one calendar day of the weekly series.
type DailyActivity struct {
	Date    string  `json:"date"`
	Day     string  `json:"day"`
	Steps   int     `json:"steps"`
	Glucose float64 `json:"glucose"`
	BodyFat float64 `json:"bodyFat"`
}

type WeeklySeries struct {
	Days []DailyActivity `json:"days"`
	// TodaySteps is the most recent day with a non-zero step count.
	TodaySteps int `json:"todaySteps"`
}

type DailySteps struct {
	Date  string `json:"date"`
	Day   string `json:"day"`
	Steps int    `json:"steps"`
}

type BloodPressure struct {
	Systolic  float64 `json:"systolic"`
	Diastolic float64 `json:"diastolic"`
}

// HealthMetrics holds the latest reading per metric. Nil means unknown.
type HealthMetrics struct {
	HeightCm      *float64       `json:"heightCm"`
	WeightKg      *float64       `json:"weightKg"`
	BloodPressure *BloodPressure `json:"bloodPressure"`
	HeartRate     *float64       `json:"heartRate"`
	Calories      *float64       `json:"calories"`
	StepCount     int            `json:"stepCount"`
}

const (
	TypeSteps         = "com.google.step_count.delta"
	TypeHeartMinutes  = "com.google.heart_minutes"
	TypeCalories      = "com.google.calories.expended"
	TypeDistance      = "com.google.distance.delta"
	TypeActiveMinutes = "com.google.active_minutes"
	TypeBloodGlucose  = "com.google.blood_glucose"
	TypeBodyFat       = "com.google.body.fat.percentage"

	SourceEstimatedSteps = "derived:com.google.step_count.delta:com.google.android.gms:estimated_steps"
	SourceHeight         = "derived:com.google.height:com.google.android.gms:merge_height"
	SourceWeight         = "derived:com.google.weight:com.google.android.gms:merge_weight"
	SourceBloodPressure  = "derived:com.google.blood_pressure:com.google.android.gms:merged"
	SourceHeartRate      = "derived:com.google.heart_rate.bpm:com.google.android.gms:merge_heart_rate_bpm"
	SourceCalories       = "derived:com.google.calories.expended:com.google.android.gms:merge_calories_expended"
)

const (
	dayMillis  = int64(24 * time.Hour / time.Millisecond)
	weekDays   = 7
	dateLayout = "2006-01-02"
)
