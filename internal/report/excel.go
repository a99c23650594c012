// Package report – spreadsheet rendering.
//
// One sheet per user, fixed column order. Sheet names are the usernames
// truncated to Excel's 31-character limit; names that collide after
// truncation are disambiguated with a ~N suffix instead of silently
// overwriting another user's rows.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// maxSheetRunes is Excel's hard limit on sheet name length.
const maxSheetRunes = 31

// columns is the fixed header row.
var columns = []string{"月", "日", "曜日", "出勤時刻", "退社時刻", "不明", "タグ", "本文"}

// sheetNameSanitizer strips characters Excel forbids in sheet names.
var sheetNameSanitizer = strings.NewReplacer(
	":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_",
)

// WriteXLSX renders the report to path. Month and day cells are written as
// numbers; everything else is text. Cosmetic styling is limited to a bold
// header row and a wider body column.
func (r *Report) WriteXLSX(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	names := sheetNames(r.Users)
	for i, user := range r.Users {
		name := names[i]
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return err
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return err
			}
		}

		header := make([]any, len(columns))
		for j, c := range columns {
			header[j] = c
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return err
		}
		if err := f.SetCellStyle(name, "A1", "H1", headerStyle); err != nil {
			return err
		}
		if err := f.SetColWidth(name, "H", "H", 60); err != nil {
			return err
		}

		for j, rec := range r.Rows[user] {
			cell, err := excelize.CoordinatesToCellName(1, j+2)
			if err != nil {
				return err
			}
			row := []any{
				rec.Month, rec.Day, rec.Weekday,
				rec.ClockIn, rec.ClockOut, rec.Unclassified,
				rec.TagList(), rec.Body,
			}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("report: save %s: %w", path, err)
	}
	return nil
}

// sheetNames maps users to valid, unique sheet names in the same order.
func sheetNames(users []string) []string {
	taken := make(map[string]struct{}, len(users))
	out := make([]string, len(users))
	for i, user := range users {
		base := truncateRunes(sheetNameSanitizer.Replace(user), maxSheetRunes)
		if base == "" {
			base = "Sheet"
		}
		name := base
		for n := 2; ; n++ {
			if _, dup := taken[name]; !dup {
				break
			}
			suffix := "~" + strconv.Itoa(n)
			name = truncateRunes(base, maxSheetRunes-len([]rune(suffix))) + suffix
		}
		taken[name] = struct{}{}
		out[i] = name
	}
	return out
}

func truncateRunes(s string, max int) string {
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	return string(rs[:max])
}
