// Package report exports learner progress as an Excel workbook.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-mastery/internal/curriculum"
	"github.com/p-n-ai/pai-mastery/internal/mastery"
)

const (
	MasterySheet = "Mastery"
	SkillsSheet  = "Skills"
)

var (
	masteryHeader = []any{"Topic ID", "Topic", "Stage", "Grade", "Attempts", "Correct", "Accuracy", "Mastery", "Mastered", "Last Practiced", "Next Review"}
	skillsHeader  = []any{"Topic ID", "Skill", "Mastery", "Evidence"}
)

// WriteWorkbook writes one row per practiced topic, in curriculum order, to
// the Mastery sheet and one row per required skill of those topics to the
// Skills sheet. Skills without evidence show the default value.
func WriteWorkbook(w io.Writer, graph *curriculum.Graph, snapshots map[string]mastery.Snapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", MasterySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SkillsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	if err := writeRow(f, MasterySheet, 1, masteryHeader); err != nil {
		return err
	}
	if err := writeRow(f, SkillsSheet, 1, skillsHeader); err != nil {
		return err
	}
	for sheet, cols := range map[string]int{MasterySheet: len(masteryHeader), SkillsSheet: len(skillsHeader)} {
		last, _ := excelize.CoordinatesToCellName(cols, 1)
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
	}

	topicRow, skillRow := 2, 2
	for _, t := range graph.AllTopics() {
		snap, ok := snapshots[t.ID]
		if !ok || snap.IsZero() {
			continue
		}
		if err := writeRow(f, MasterySheet, topicRow, []any{
			t.ID,
			t.Name,
			t.Stage,
			t.Grade,
			snap.Attempts,
			snap.Correct,
			snap.Accuracy(),
			snap.MasteryScore,
			snap.MasteryScore >= mastery.MasteredThreshold,
			formatTime(snap.LastPracticed, time.RFC3339),
			formatTime(snap.NextReview, time.DateOnly),
		}); err != nil {
			return err
		}
		topicRow++

		for _, s := range t.Skills {
			_, practiced := snap.SkillMastery[s]
			if err := writeRow(f, SkillsSheet, skillRow, []any{t.ID, s, snap.Skill(s), practiced}); err != nil {
				return err
			}
			skillRow++
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func formatTime(t *time.Time, layout string) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(layout)
}
