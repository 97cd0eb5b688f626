package models

import (
	"database/sql/driver"
	"time"

	"github.com/shopspring/decimal"
)

// Course is a catalogue course with its review state.
type Course struct {
	ID                       ID                   `db:"id" json:"id"`
	Code                     string               `db:"code" json:"code"`
	NameVi                   string               `db:"name_vi" json:"name_vi"`
	NameEn                   *string              `db:"name_en" json:"name_en,omitempty"`
	Credits                  int                  `db:"credits" json:"credits"`
	TheoryCredits            *int                 `db:"theory_credits" json:"theory_credits,omitempty"`
	PracticalCredits         *int                 `db:"practical_credits" json:"practical_credits,omitempty"`
	Type                     string               `db:"type" json:"type"`
	Status                   WorkflowStatus       `db:"status" json:"status"`
	OrgUnitID                ID                   `db:"org_unit_id" json:"org_unit_id"`
	Description              *string              `db:"description" json:"description,omitempty"`
	Contents                 CourseContents       `db:"contents" json:"contents"`
	InstructorQualifications StringList           `db:"instructor_qualifications" json:"instructor_qualifications"`
	CreatedAt                time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time            `db:"updated_at" json:"updated_at"`
	Prerequisites            []CoursePrerequisite `db:"-" json:"prerequisites"`
	Syllabus                 []SyllabusWeek       `db:"-" json:"syllabus"`
	Workflow                 *WorkflowRecord      `db:"-" json:"workflow,omitempty"`
	Warnings                 []string             `db:"-" json:"warnings,omitempty"`
}

// CoursePrerequisite requires another course before this one.
type CoursePrerequisite struct {
	CourseID             ID               `db:"course_id" json:"-"`
	PrerequisiteCourseID ID               `db:"prerequisite_course_id" json:"prerequisite_course_id"`
	PrerequisiteType     string           `db:"prerequisite_type" json:"prerequisite_type"`
	MinGrade             *decimal.Decimal `db:"min_grade" json:"min_grade,omitempty"`
	PrerequisiteCode     string           `db:"prerequisite_code" json:"prerequisite_code,omitempty"`
}

// SyllabusWeek is one row of the ordered syllabus.
type SyllabusWeek struct {
	CourseID    ID      `db:"course_id" json:"-"`
	WeekNumber  int     `db:"week_number" json:"week_number"`
	Topic       string  `db:"topic" json:"topic"`
	Objectives  *string `db:"objectives" json:"objectives,omitempty"`
	Materials   *string `db:"materials" json:"materials,omitempty"`
	Assignments *string `db:"assignments" json:"assignments,omitempty"`
	Duration    *string `db:"duration" json:"duration,omitempty"`
}

// AssessmentMethod is one weighted assessment component.
type AssessmentMethod struct {
	Method      string  `json:"method"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description,omitempty"`
}

// LearningObjective is a typed learning outcome.
type LearningObjective struct {
	Type      string `json:"type"`
	Objective string `json:"objective"`
}

// CourseContents is persisted as JSONB.
type CourseContents struct {
	AssessmentMethods  []AssessmentMethod  `json:"assessment_methods"`
	LearningObjectives []LearningObjective `json:"learning_objectives"`
	PassingGrade       *float64            `json:"passing_grade,omitempty"`
}

func (c CourseContents) Value() (driver.Value, error) {
	if c.AssessmentMethods == nil {
		c.AssessmentMethods = []AssessmentMethod{}
	}
	if c.LearningObjectives == nil {
		c.LearningObjectives = []LearningObjective{}
	}
	return jsonValue(c)
}

func (c *CourseContents) Scan(src any) error {
	*c = CourseContents{}
	return jsonScan(src, c)
}

// CourseFilter captures list criteria.
type CourseFilter struct {
	Search    string
	Code      string
	Status    WorkflowStatus
	OrgUnitID *ID
	PageQuery
}

// CreditWarnings returns advisory findings about credit split and assessment weights.
func (c Course) CreditWarnings() []string {
	warnings := make([]string, 0)
	theory, practical := 0, 0
	if c.TheoryCredits != nil {
		theory = *c.TheoryCredits
	}
	if c.PracticalCredits != nil {
		practical = *c.PracticalCredits
	}
	if theory+practical > c.Credits {
		warnings = append(warnings, "theory and practical credits exceed total credits")
	}
	if len(c.Contents.AssessmentMethods) > 0 {
		sum := 0.0
		for _, m := range c.Contents.AssessmentMethods {
			sum += m.Weight
		}
		if sum < 99.999 || sum > 100.001 {
			warnings = append(warnings, "assessment method weights do not sum to 100")
		}
	}
	return warnings
}
