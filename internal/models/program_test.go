package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeCoursesPartitionsByRequired(t *testing.T) {
	s := SummarizeCourses([]ProgramCourseMap{
		{Credits: 3, IsRequired: true},
		{Credits: 4, IsRequired: true},
		{Credits: 2},
	})
	assert.Equal(t, CreditSummary{TotalCredits: 9, RequiredCredits: 7, ElectiveCredits: 2, CourseCount: 3, RequiredCount: 2}, s)

	var total CreditSummary
	total.Add(s)
	total.Add(s)
	assert.Equal(t, 18, total.TotalCredits)
	assert.Equal(t, 4, total.RequiredCount)
}

func TestCourseCreditWarnings(t *testing.T) {
	theory, practical := 3, 2
	c := Course{Credits: 4, TheoryCredits: &theory, PracticalCredits: &practical}
	c.Contents.AssessmentMethods = []AssessmentMethod{{Method: "exam", Weight: 60}, {Method: "project", Weight: 30}}
	assert.Len(t, c.CreditWarnings(), 2)

	c.Credits = 5
	c.Contents.AssessmentMethods[1].Weight = 40
	assert.Empty(t, c.CreditWarnings())
}
