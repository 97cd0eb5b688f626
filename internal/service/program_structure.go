package service

import (
	"fmt"

	"github.com/noah-isme/uni-admin-api/internal/models"
)

// BuildProgramStructure nests blocks, groups and course maps into the
// curriculum tree and computes summaries and rule violations. Course maps
// pointing at a group are placed in it; maps with only a block land in the
// block's own list; the rest are standalone.
func BuildProgramStructure(program models.Program, blocks []models.ProgramBlock, groups []models.ProgramBlockGroup, rules []models.ProgramBlockGroupRule, maps []models.ProgramCourseMap) models.ProgramStructure {
	out := models.ProgramStructure{
		Program:        program,
		Blocks:         make([]models.StructureBlock, 0, len(blocks)),
		Standalone:     make([]models.ProgramCourseMap, 0),
		RuleViolations: make([]models.RuleViolation, 0),
	}

	blockIndex := make(map[models.ID]int, len(blocks))
	for _, b := range blocks {
		blockIndex[b.ID] = len(out.Blocks)
		out.Blocks = append(out.Blocks, models.StructureBlock{
			ProgramBlock: b,
			Groups:       make([]models.StructureGroup, 0),
			Courses:      make([]models.ProgramCourseMap, 0),
		})
	}

	type groupPos struct{ block, group int }
	groupIndex := make(map[models.ID]groupPos, len(groups))
	for _, g := range groups {
		bi, ok := blockIndex[g.BlockID]
		if !ok {
			continue
		}
		block := &out.Blocks[bi]
		groupIndex[g.ID] = groupPos{block: bi, group: len(block.Groups)}
		block.Groups = append(block.Groups, models.StructureGroup{
			ProgramBlockGroup: g,
			Rules:             make([]models.ProgramBlockGroupRule, 0),
			Courses:           make([]models.ProgramCourseMap, 0),
		})
	}

	for _, r := range rules {
		if pos, ok := groupIndex[r.GroupID]; ok {
			group := &out.Blocks[pos.block].Groups[pos.group]
			group.Rules = append(group.Rules, r)
		}
	}

	for _, m := range maps {
		if m.GroupID != nil {
			if pos, ok := groupIndex[*m.GroupID]; ok {
				group := &out.Blocks[pos.block].Groups[pos.group]
				group.Courses = append(group.Courses, m)
				continue
			}
		}
		if m.BlockID != nil {
			if bi, ok := blockIndex[*m.BlockID]; ok {
				out.Blocks[bi].Courses = append(out.Blocks[bi].Courses, m)
				continue
			}
		}
		out.Standalone = append(out.Standalone, m)
	}

	for bi := range out.Blocks {
		block := &out.Blocks[bi]
		block.Summary = models.SummarizeCourses(block.Courses)
		for gi := range block.Groups {
			group := &block.Groups[gi]
			group.Summary = models.SummarizeCourses(group.Courses)
			block.Summary.Add(group.Summary)
			out.RuleViolations = append(out.RuleViolations, EvaluateGroupRules(*group)...)
		}
		out.Summary.Add(block.Summary)
	}
	out.StandaloneSummary = models.SummarizeCourses(out.Standalone)
	out.Summary.Add(out.StandaloneSummary)
	return out
}

// EvaluateGroupRules checks a group's summary against each of its rules.
func EvaluateGroupRules(group models.StructureGroup) []models.RuleViolation {
	violations := make([]models.RuleViolation, 0)
	check := func(rule models.ProgramBlockGroupRule, name string, limit *int, actual int, below bool) {
		if limit == nil {
			return
		}
		if (below && actual < *limit) || (!below && actual > *limit) {
			bound := "at most"
			if below {
				bound = "at least"
			}
			violations = append(violations, models.RuleViolation{
				GroupID: group.ID,
				RuleID:  rule.ID,
				Rule:    name,
				Limit:   *limit,
				Actual:  actual,
				Message: fmt.Sprintf("group %s requires %s %d %s, has %d", group.Code, bound, *limit, ruleUnit(name), actual),
			})
		}
	}
	for _, rule := range group.Rules {
		check(rule, "min_credits", rule.MinCredits, group.Summary.TotalCredits, true)
		check(rule, "max_credits", rule.MaxCredits, group.Summary.TotalCredits, false)
		check(rule, "min_courses", rule.MinCourses, group.Summary.CourseCount, true)
		check(rule, "max_courses", rule.MaxCourses, group.Summary.CourseCount, false)
	}
	return violations
}

func ruleUnit(name string) string {
	if name == "min_credits" || name == "max_credits" {
		return "credits"
	}
	return "courses"
}
