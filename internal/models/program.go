package models

import "time"

// Program is an academic program with a versioned curriculum.
type Program struct {
	ID            ID              `db:"id" json:"id"`
	Code          string          `db:"code" json:"code"`
	NameVi        string          `db:"name_vi" json:"name_vi"`
	NameEn        *string         `db:"name_en" json:"name_en,omitempty"`
	Version       string          `db:"version" json:"version"`
	Status        WorkflowStatus  `db:"status" json:"status"`
	TotalCredits  int             `db:"total_credits" json:"total_credits"`
	Priority      string          `db:"priority" json:"priority"`
	EffectiveFrom *Date           `db:"effective_from" json:"effective_from"`
	EffectiveTo   *Date           `db:"effective_to" json:"effective_to"`
	OrgUnitID     ID              `db:"org_unit_id" json:"org_unit_id"`
	MajorID       *ID             `db:"major_id" json:"major_id,omitempty"`
	PLO           LooseList       `db:"plo" json:"plo"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
	Workflow      *WorkflowRecord `db:"-" json:"workflow,omitempty"`
}

// ProgramFilter captures list criteria.
type ProgramFilter struct {
	Search    string
	Status    WorkflowStatus
	OrgUnitID *ID
	PageQuery
}

// ProgramBlock is an ordered section of a program (core, elective, ...).
type ProgramBlock struct {
	ID           ID        `db:"id" json:"id"`
	ProgramID    ID        `db:"program_id" json:"program_id"`
	Code         string    `db:"code" json:"code"`
	Title        string    `db:"title" json:"title"`
	BlockType    string    `db:"block_type" json:"block_type"`
	DisplayOrder int       `db:"display_order" json:"display_order"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ProgramBlockGroup subdivides a block.
type ProgramBlockGroup struct {
	ID           ID        `db:"id" json:"id"`
	BlockID      ID        `db:"block_id" json:"block_id"`
	Code         string    `db:"code" json:"code"`
	Title        string    `db:"title" json:"title"`
	GroupType    string    `db:"group_type" json:"group_type"`
	DisplayOrder int       `db:"display_order" json:"display_order"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ProgramBlockGroupRule bounds the credits and course count chosen in a group.
type ProgramBlockGroupRule struct {
	ID          ID        `db:"id" json:"id"`
	GroupID     ID        `db:"group_id" json:"group_id"`
	MinCredits  *int      `db:"min_credits" json:"min_credits,omitempty"`
	MaxCredits  *int      `db:"max_credits" json:"max_credits,omitempty"`
	MinCourses  *int      `db:"min_courses" json:"min_courses,omitempty"`
	MaxCourses  *int      `db:"max_courses" json:"max_courses,omitempty"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ProgramCourseMap places a course in a program, optionally inside a block or group.
type ProgramCourseMap struct {
	ID           ID        `db:"id" json:"id"`
	ProgramID    ID        `db:"program_id" json:"program_id"`
	CourseID     ID        `db:"course_id" json:"course_id"`
	BlockID      *ID       `db:"block_id" json:"block_id,omitempty"`
	GroupID      *ID       `db:"group_id" json:"group_id,omitempty"`
	IsRequired   bool      `db:"is_required" json:"is_required"`
	DisplayOrder int       `db:"display_order" json:"display_order"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	CourseCode   string    `db:"course_code" json:"course_code"`
	CourseName   string    `db:"course_name" json:"course_name"`
	Credits      int       `db:"credits" json:"credits"`
}

// CreditSummary aggregates a list of mapped courses.
type CreditSummary struct {
	TotalCredits    int `json:"total_credits"`
	RequiredCredits int `json:"required_credits"`
	ElectiveCredits int `json:"elective_credits"`
	CourseCount     int `json:"course_count"`
	RequiredCount   int `json:"required_count"`
}

// Add folds another summary into s.
func (s *CreditSummary) Add(other CreditSummary) {
	s.TotalCredits += other.TotalCredits
	s.RequiredCredits += other.RequiredCredits
	s.ElectiveCredits += other.ElectiveCredits
	s.CourseCount += other.CourseCount
	s.RequiredCount += other.RequiredCount
}

// SummarizeCourses reduces course maps partitioned by the required flag.
func SummarizeCourses(courses []ProgramCourseMap) CreditSummary {
	var s CreditSummary
	for _, c := range courses {
		s.TotalCredits += c.Credits
		s.CourseCount++
		if c.IsRequired {
			s.RequiredCredits += c.Credits
			s.RequiredCount++
		} else {
			s.ElectiveCredits += c.Credits
		}
	}
	return s
}

// RuleViolation reports a group whose courses break one of its rules.
type RuleViolation struct {
	GroupID ID     `json:"group_id"`
	RuleID  ID     `json:"rule_id"`
	Rule    string `json:"rule"`
	Limit   int    `json:"limit"`
	Actual  int    `json:"actual"`
	Message string `json:"message"`
}

// StructureGroup is a group with its rules, courses and summary.
type StructureGroup struct {
	ProgramBlockGroup
	Rules   []ProgramBlockGroupRule `json:"rules"`
	Courses []ProgramCourseMap      `json:"courses"`
	Summary CreditSummary           `json:"summary"`
}

// StructureBlock is a block with its groups and ungrouped courses.
type StructureBlock struct {
	ProgramBlock
	Groups  []StructureGroup   `json:"groups"`
	Courses []ProgramCourseMap `json:"courses"`
	Summary CreditSummary      `json:"summary"`
}

// ProgramStructure is the full curriculum tree of a program.
type ProgramStructure struct {
	Program           Program            `json:"program"`
	Blocks            []StructureBlock   `json:"blocks"`
	Standalone        []ProgramCourseMap `json:"standalone_courses"`
	StandaloneSummary CreditSummary      `json:"standalone_summary"`
	Summary           CreditSummary      `json:"summary"`
	RuleViolations    []RuleViolation    `json:"rule_violations"`
}
