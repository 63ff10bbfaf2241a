// Package report builds the tabular export of all complaints.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"qabulxona/backend/internal/analysis"
	"qabulxona/backend/internal/messaging"
	"qabulxona/backend/internal/models"
)

// Row is one complaint flattened for export and the dataset API.
type Row struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
	NationalID string `json:"national_id,omitempty"`
	Section    string `json:"section"`
	Summary    string `json:"summary"`
	Time       string `json:"time"`
	Status     string `json:"status"`
	Media      int    `json:"media"`
	Assignee   string `json:"assignee"`
	AgeDays    int    `json:"age_days"`
}

var header = []string{"ID", "Username", "Ism", "Manzil", "Telefon", "Pasport", "Bo‘lim", "Murojaat", "Vaqt", "Holati", "Fayllar", "Xodim", "Kun"}

// Rows flattens complaints in the given order.
func Rows(complaints []models.Complaint, loc *time.Location, now time.Time) []Row {
	if loc == nil {
		loc = time.UTC
	}
	rows := make([]Row, len(complaints))
	for i, c := range complaints {
		username := c.SubmitterHandle
		if username == "" {
			username = "Noma'lum"
		}
		rows[i] = Row{
			ID:         c.ID,
			Username:   username,
			FullName:   c.FullName,
			Address:    c.Address,
			Phone:      c.Phone,
			NationalID: c.NationalID,
			Section:    c.Section,
			Summary:    c.Summary,
			Time:       c.CreatedAt.In(loc).Format("2006-01-02 15:04"),
			Status:     string(c.Status),
			Media:      len(c.Media),
			Assignee:   c.AssigneeOr("Belgilanmagan"),
			AgeDays:    analysis.AgeDays(c, now),
		}
	}
	return rows
}

func (r Row) record() []string {
	return []string{
		r.ID, r.Username, r.FullName, r.Address, r.Phone, r.NationalID, r.Section,
		r.Summary, r.Time, r.Status, strconv.Itoa(r.Media), r.Assignee, strconv.Itoa(r.AgeDays),
	}
}

// CSVExporter writes the report: a summary block, then the complaints
// grouped by section.
type CSVExporter struct {
	Location *time.Location
	Now      func() time.Time
}

// NewCSVExporter creates an exporter rendering times in loc.
func NewCSVExporter(loc *time.Location) *CSVExporter {
	return &CSVExporter{Location: loc, Now: time.Now}
}

// Export writes complaints to w as UTF-8 CSV with a byte order mark so
// spreadsheet tools pick the right encoding.
func (e *CSVExporter) Export(w io.Writer, complaints []models.Complaint) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	now := e.Now()

	summary := analysis.Summarize(complaints)
	records := [][]string{
		{"Hisobot", now.In(e.loc()).Format("2006-01-02 15:04")},
		{"Jami", strconv.Itoa(summary.Total)},
	}
	for _, st := range models.Statuses {
		records = append(records, []string{
			string(st),
			strconv.Itoa(summary.ByStatus[st]),
			fmt.Sprintf("%.1f%%", summary.Percent(st)),
		})
	}
	records = append(records, []string{})
	records = append(records, []string{"Bo‘lim", "Soni"})
	for _, sc := range summary.Sections() {
		records = append(records, []string{sc.Section, strconv.Itoa(sc.Count)})
	}

	names, groups := analysis.GroupBySection(complaints)
	for _, name := range names {
		records = append(records, []string{}, []string{name}, header)
		for _, row := range Rows(groups[name], e.loc(), now) {
			records = append(records, row.record())
		}
	}

	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// Document renders the export as a file ready to send.
func (e *CSVExporter) Document(complaints []models.Complaint, caption string) (messaging.Document, error) {
	var buf bytes.Buffer
	if err := e.Export(&buf, complaints); err != nil {
		return messaging.Document{}, err
	}
	return messaging.Document{
		Name:    fmt.Sprintf("murojaatlar_%d.csv", e.Now().UnixMilli()),
		Data:    buf.Bytes(),
		Caption: caption,
	}, nil
}

func (e *CSVExporter) loc() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}
