package intake

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"
)

const leadsSheet = "Leads"

// leadRow is the flat export shape of a lead
type leadRow struct {
	ID          string `csv:"id"`
	CreatedAt   string `csv:"created_at"`
	FirstName   string `csv:"first_name"`
	LastName    string `csv:"last_name"`
	DateOfBirth string `csv:"date_of_birth"`
	Email       string `csv:"email"`
	Phone       string `csv:"phone"`
	Province    string `csv:"province"`
	Benefits    string `csv:"benefits"`
	Insurance   string `csv:"insurance"`
	MemberID    string `csv:"member_id"`
	GroupNumber string `csv:"group_number"`
	HealthGoals string `csv:"health_goals"`
	Location    string `csv:"location"`
	Specialty   string `csv:"specialty"`
	Delivered   string `csv:"delivered"`
}

var leadHeader = []any{
	"id", "created_at", "first_name", "last_name", "date_of_birth", "email", "phone",
	"province", "benefits", "insurance", "member_id", "group_number", "health_goals",
	"location", "specialty", "delivered",
}

func newLeadRow(lead *Lead) leadRow {
	f := lead.Form
	row := leadRow{
		ID:          lead.ID,
		CreatedAt:   lead.CreatedAt.UTC().Format(time.RFC3339),
		FirstName:   f.FirstName,
		LastName:    f.LastName,
		DateOfBirth: f.DateOfBirth,
		Email:       f.Email,
		Phone:       f.Phone,
		Province:    f.Province,
		Benefits:    f.Benefits,
		Insurance:   f.Insurance,
		MemberID:    f.MemberID,
		GroupNumber: f.GroupNumber,
		HealthGoals: strings.Join(f.HealthGoals, ", "),
		Location:    f.Location,
		Specialty:   f.Specialty,
	}
	if lead.Submission != nil {
		var names []string
		for name, ok := range lead.Submission.Delivered {
			if ok {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		row.Delivered = strings.Join(names, ", ")
	}
	return row
}

func (r leadRow) values() []any {
	return []any{
		r.ID, r.CreatedAt, r.FirstName, r.LastName, r.DateOfBirth, r.Email, r.Phone,
		r.Province, r.Benefits, r.Insurance, r.MemberID, r.GroupNumber, r.HealthGoals,
		r.Location, r.Specialty, r.Delivered,
	}
}

func (s *Service) leadRows() ([]leadRow, error) {
	leads, err := s.ListLeads()
	if err != nil {
		return nil, err
	}
	rows := make([]leadRow, 0, len(leads))
	for _, lead := range leads {
		rows = append(rows, newLeadRow(lead))
	}
	return rows, nil
}

// ExportLeadsCSV writes every lead as CSV, newest first
func (s *Service) ExportLeadsCSV(w io.Writer) error {
	rows, err := s.leadRows()
	if err != nil {
		return err
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

// ExportLeadsXLSX writes every lead to a single-sheet workbook, newest first
func (s *Service) ExportLeadsXLSX(w io.Writer) error {
	rows, err := s.leadRows()
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", leadsSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := leadHeader
	if err := f.SetSheetRow(leadsSheet, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating style: %w", err)
	}
	if err := f.SetRowStyle(leadsSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row.values()
		if err := f.SetSheetRow(leadsSheet, cell, &values); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
