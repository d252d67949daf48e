package store

import (
	"strconv"
	"strings"
	"time"
)

type Experiment struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Strategy         string    `json:"strategy"`
	Action           string    `json:"action"`
	DurationDays     int       `json:"duration_days"`
	StartAt          time.Time `json:"start_at"`
	EndAt            time.Time `json:"end_at"`
	NotificationTime string    `json:"notification_time"` // "HH:MM", local wall clock
	CreatedAt        time.Time `json:"created_at"`
}

// Active reports whether the experiment is still running at now.
func (e Experiment) Active(now time.Time) bool {
	return e.EndAt.After(now)
}

// PeriodEnd is the planned end of the experiment, regardless of whether it
// was ended early.
func (e Experiment) PeriodEnd() time.Time {
	return e.StartAt.AddDate(0, 0, e.DurationDays)
}

// DailyRecord is one day's outcome for an experiment. A nil Execution means
// the action was not carried out that day.
type DailyRecord struct {
	ID           string     `json:"id"`
	ExperimentID string     `json:"experiment_id"`
	UserID       string     `json:"user_id"`
	RecordedDate time.Time  `json:"recorded_date"` // local midnight
	Memo         string     `json:"memo" validate:"max=2000"`
	Execution    *Execution `json:"execution,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (r DailyRecord) CarriedOut() bool {
	return r.Execution != nil
}

// Execution holds the fields that only exist when the action was carried out.
// A nil Interruption means the session was not interrupted.
type Execution struct {
	StartedTime     TimeOfDay     `json:"started_time" validate:"timeofday"`
	DurationMinutes int           `json:"duration_minutes" validate:"oneof=5 15 30 60 180"`
	Interruption    *Interruption `json:"interruption,omitempty"`
	Concentration   int           `json:"concentration" validate:"min=1,max=5"`
	Accomplishment  int           `json:"accomplishment" validate:"min=1,max=5"`
	Fatigue         int           `json:"fatigue" validate:"min=1,max=5"`
}

func (e Execution) Interrupted() bool {
	return e.Interruption != nil
}

type Interruption struct {
	Reason string `json:"interruption_reason" validate:"max=50"`
}

type DeviceToken struct {
	UserID    string
	Token     string
	UpdatedAt time.Time
}

type NotificationLog struct {
	ID           string // userID_YYYY-MM-DD
	UserID       string
	ExperimentID string
	SentAt       time.Time
	Success      bool
	DeviceCount  int
	SuccessCount int
}

type Setting struct {
	Key   string
	Value string
}

// TimeOfDay is the bucket in which a session was started.
type TimeOfDay string

const (
	LateNight    TimeOfDay = "late_night"    // [0,3)
	EarlyMorning TimeOfDay = "early_morning" // [3,6)
	Morning      TimeOfDay = "morning"       // [6,9)
	Daytime      TimeOfDay = "daytime"       // [9,15)
	Evening      TimeOfDay = "evening"       // [15,18)
	Night        TimeOfDay = "night"         // [18,24)
)

// TimesOfDay lists the buckets in their fixed order.
var TimesOfDay = []TimeOfDay{LateNight, EarlyMorning, Morning, Daytime, Evening, Night}

var timeOfDayLabels = map[TimeOfDay]string{
	LateNight:    "Late night",
	EarlyMorning: "Early morning",
	Morning:      "Morning",
	Daytime:      "Daytime",
	Evening:      "Evening",
	Night:        "Night",
}

// Index returns the position of t in TimesOfDay, or -1 when t is not a
// recognized bucket.
func (t TimeOfDay) Index() int {
	for i, v := range TimesOfDay {
		if v == t {
			return i
		}
	}
	return -1
}

func (t TimeOfDay) Valid() bool {
	return t.Index() >= 0
}

func (t TimeOfDay) Label() string {
	if l, ok := timeOfDayLabels[t]; ok {
		return l
	}
	return string(t)
}

// TimeOfDayForHour maps an hour of the day to its bucket. Hours outside
// [0,18) fall through to Night.
func TimeOfDayForHour(hour int) TimeOfDay {
	switch {
	case hour >= 0 && hour < 3:
		return LateNight
	case hour >= 3 && hour < 6:
		return EarlyMorning
	case hour >= 6 && hour < 9:
		return Morning
	case hour >= 9 && hour < 15:
		return Daytime
	case hour >= 15 && hour < 18:
		return Evening
	default:
		return Night
	}
}

// ParseClockHour returns the hour part of an "HH:MM" string.
func ParseClockHour(hhmm string) (int, bool) {
	h, _, ok := strings.Cut(hhmm, ":")
	if !ok {
		return 0, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	return hour, true
}

// DefaultStartedTime suggests a started-time bucket from a reminder time.
func DefaultStartedTime(notificationTime string) TimeOfDay {
	hour, ok := ParseClockHour(notificationTime)
	if !ok {
		return Night
	}
	return TimeOfDayForHour(hour)
}

// DurationOptions are the accepted session lengths in minutes.
var DurationOptions = []int{5, 15, 30, 60, 180}

// DayKey normalizes t to local midnight of its calendar day in loc.
func DayKey(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
