package achievement

import (
	"time"

	"github.com/mzalendo/maendeleo/core"
)

// Types
const (
	TypeBadge     = "badge"
	TypeTrophy    = "trophy"
	TypeMilestone = "milestone"
	TypeSpecial   = "special"
)

// Categories
const (
	CategoryLearning   = "learning"
	CategorySocial     = "social"
	CategoryStreak     = "streak"
	CategoryCompletion = "completion"
	CategorySpeed      = "speed"
	CategoryPerfection = "perfection"
)

// Rarities
const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

var (
	AllTypes      = []string{TypeBadge, TypeTrophy, TypeMilestone, TypeSpecial}
	AllCategories = []string{CategoryLearning, CategorySocial, CategoryStreak, CategoryCompletion, CategorySpeed, CategoryPerfection}
	AllRarities   = []string{RarityCommon, RarityRare, RarityEpic, RarityLegendary}
)

// RequirementKind enumerates the supported unlock predicates. The source
// system stored these as a free-form document; here each kind is a tagged
// variant so evaluation can be checked exhaustively.
type RequirementKind string

const (
	ReqStreakDays       RequirementKind = "streak_days"       // current streak >= threshold
	ReqTotalXP          RequirementKind = "total_xp"          // lifetime XP >= threshold
	ReqTotalCups        RequirementKind = "total_cups"        // lifetime cups >= threshold
	ReqLevelReached     RequirementKind = "level_reached"     // account level >= threshold
	ReqLessonsCompleted RequirementKind = "lessons_completed" // lifetime lessons >= threshold
	ReqCoursesCompleted RequirementKind = "courses_completed" // lifetime courses >= threshold
	ReqQuizzesPassed    RequirementKind = "quizzes_passed"    // lifetime quizzes passed >= threshold
	ReqPerfectQuizzes   RequirementKind = "perfect_quizzes"   // lifetime 100% quizzes >= threshold
	ReqQuizScore        RequirementKind = "quiz_score"        // triggering quiz score >= threshold
)

var AllRequirementKinds = []RequirementKind{
	ReqStreakDays, ReqTotalXP, ReqTotalCups, ReqLevelReached, ReqLessonsCompleted,
	ReqCoursesCompleted, ReqQuizzesPassed, ReqPerfectQuizzes, ReqQuizScore,
}

// Requirement is an achievement's unlock predicate.
type Requirement struct {
	Kind      RequirementKind `json:"kind"`
	Threshold int             `json:"threshold"`
}

type Definition struct {
	Code          string      `json:"code"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Type          string      `json:"type"`
	Category      string      `json:"category"`
	Rarity        string      `json:"rarity"`
	Icon          string      `json:"icon"`
	XPReward      int         `json:"xp_reward"`
	CupsReward    int         `json:"cups_reward"`
	Requirement   Requirement `json:"requirement"`
	IsActive      bool        `json:"is_active"`
	IsSecret      bool        `json:"is_secret"`
	Order         int         `json:"order"`
	TotalUnlocked int         `json:"total_unlocked"`
	CreatedAt     time.Time   `json:"created_at"` // UTC
	UpdatedAt     time.Time   `json:"updated_at"` // UTC
}

// Snapshot is the account state achievement predicates evaluate against.
type Snapshot struct {
	Level            int
	TotalXPEarned    int
	TotalCupsEarned  int
	CurrentStreak    int
	LongestStreak    int
	LessonsCompleted int
	CoursesCompleted int
	QuizzesPassed    int
	PerfectQuizzes   int
}

// Context carries the triggering event's payload into predicate evaluation.
type Context struct {
	QuizScore *int // percentage; nil when the event carries no quiz
}

// Evaluate reports whether `def`'s unlock predicate is satisfied by the
// account snapshot and event context.
func Evaluate(def Definition, snap Snapshot, evalCtx Context) (bool, error) {
	th := def.Requirement.Threshold
	switch def.Requirement.Kind {
	case ReqStreakDays:
		return snap.CurrentStreak >= th, nil
	case ReqTotalXP:
		return snap.TotalXPEarned >= th, nil
	case ReqTotalCups:
		return snap.TotalCupsEarned >= th, nil
	case ReqLevelReached:
		return snap.Level >= th, nil
	case ReqLessonsCompleted:
		return snap.LessonsCompleted >= th, nil
	case ReqCoursesCompleted:
		return snap.CoursesCompleted >= th, nil
	case ReqQuizzesPassed:
		return snap.QuizzesPassed >= th, nil
	case ReqPerfectQuizzes:
		return snap.PerfectQuizzes >= th, nil
	case ReqQuizScore:
		return evalCtx.QuizScore != nil && *evalCtx.QuizScore >= th, nil
	}
	return false, ErrUnknownRequirement
}

// NewDefinition contains information needed to create a new Definition.
type NewDefinition struct {
	Code        string      `json:"code" validate:"required,achcode"`
	Name        string      `json:"name" validate:"required"`
	Description string      `json:"description" validate:"required"`
	Type        string      `json:"type" validate:"omitempty,achtype"`
	Category    string      `json:"category" validate:"required,achcategory"`
	Rarity      string      `json:"rarity" validate:"omitempty,achrarity"`
	Icon        string      `json:"icon"`
	XPReward    int         `json:"xp_reward" validate:"min=0"`
	CupsReward  int         `json:"cups_reward" validate:"min=0"`
	Requirement Requirement `json:"requirement" validate:"required"`
	IsSecret    bool        `json:"is_secret"`
	Order       int         `json:"order"`
}

func (nd *NewDefinition) Validate(svc Service) error {
	nd.Code = core.CleanString(nd.Code)
	nd.Name = core.CleanString(nd.Name)
	if nd.Type == "" {
		nd.Type = TypeBadge
	}
	if nd.Rarity == "" {
		nd.Rarity = RarityCommon
	}

	if err := core.Validate.Struct(nd); err != nil {
		return err
	}
	if !validRequirementKind(nd.Requirement.Kind) {
		return core.NewValidationError(ErrUnknownRequirement, core.FieldError{Field: "requirement", Error: ErrUnknownRequirement.Error()})
	}
	if svc == nil {
		return nil
	}
	return svc.CheckCodeUniqueness(nd.Code)
}

// UpdateDefinition defines what information may be provided to modify an existing Definition.
type UpdateDefinition struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Type        string       `json:"type" validate:"omitempty,achtype"`
	Category    string       `json:"category" validate:"omitempty,achcategory"`
	Rarity      string       `json:"rarity" validate:"omitempty,achrarity"`
	Icon        string       `json:"icon"`
	XPReward    *int         `json:"xp_reward" validate:"omitempty,min=0"`
	CupsReward  *int         `json:"cups_reward" validate:"omitempty,min=0"`
	Requirement *Requirement `json:"requirement"`
	IsActive    *bool        `json:"is_active"`
	IsSecret    *bool        `json:"is_secret"`
	Order       *int         `json:"order"`
}

func (ud *UpdateDefinition) Validate() error {
	ud.Name = core.CleanString(ud.Name)

	if err := core.Validate.Struct(ud); err != nil {
		return err
	}
	if ud.Requirement != nil && !validRequirementKind(ud.Requirement.Kind) {
		return core.NewValidationError(ErrUnknownRequirement, core.FieldError{Field: "requirement", Error: ErrUnknownRequirement.Error()})
	}
	return nil
}

func validRequirementKind(kind RequirementKind) bool {
	for _, k := range AllRequirementKinds {
		if k == kind {
			return true
		}
	}
	return false
}

type QueryFilter struct {
	Category string `query:"category"`
	Type     string `query:"type"`
	Rarity   string `query:"rarity"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Category == "" && qf.Type == "" && qf.Rarity == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Category = core.CleanString(qf.Category, true /* lower */)
	qf.Type = core.CleanString(qf.Type, true /* lower */)
	qf.Rarity = core.CleanString(qf.Rarity, true /* lower */)
}

func (qf *QueryFilter) Match(def Definition) bool {
	if qf.Category != "" && def.Category != qf.Category {
		return false
	}
	if qf.Type != "" && def.Type != qf.Type {
		return false
	}
	if qf.Rarity != "" && def.Rarity != qf.Rarity {
		return false
	}
	if qf.IsActive != nil && def.IsActive != *qf.IsActive {
		return false
	}
	return true
}
