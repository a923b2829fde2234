package views

import (
	"encoding/json"
	"fmt"
	"strings"

	"tui/db"
	"tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type dataMsg struct {
	entries []db.ArchivedEntry
	total   int
}

type Data struct {
	db            *db.Client
	width, height int
	entries       []db.ArchivedEntry
	selectedRow   int
	pendingOnly   bool
	dbPage        int // current database page (0-indexed)
	dbPageSize    int // items per database page
	totalEntries  int
}

func NewData(dbClient *db.Client) Data {
	return Data{db: dbClient, dbPageSize: 100}
}

func (d Data) Init() tea.Cmd {
	return d.Refresh()
}

func (d Data) Refresh() tea.Cmd {
	return func() tea.Msg {
		entries, _ := d.db.GetEntries(d.dbPageSize, d.dbPage*d.dbPageSize, d.pendingOnly)
		total, _ := d.db.GetEntryCount()
		return dataMsg{entries, total}
	}
}

func (d Data) SetSize(w, h int) Data {
	d.width = w
	d.height = h
	return d
}

// GetSelectedURL returns the documents link of the selected entry, for
// the copy shortcut.
func (d Data) GetSelectedURL() string {
	if d.selectedRow < len(d.entries) {
		body := entryBody(d.entries[d.selectedRow])
		return body["ys_documents_link"]
	}
	return ""
}

func (d Data) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dataMsg:
		d.entries = msg.entries
		d.totalEntries = msg.total
		if d.selectedRow >= len(d.entries) {
			d.selectedRow = 0
		}

	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height - 4

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if d.selectedRow > 0 {
				d.selectedRow--
			}
		case "down", "j":
			if d.selectedRow < len(d.entries)-1 {
				d.selectedRow++
			}
		case "pgdown", "ctrl+d":
			d.selectedRow += 10
			if d.selectedRow >= len(d.entries) {
				d.selectedRow = len(d.entries) - 1
			}
			if d.selectedRow < 0 {
				d.selectedRow = 0
			}
		case "pgup", "ctrl+u":
			d.selectedRow -= 10
			if d.selectedRow < 0 {
				d.selectedRow = 0
			}
		case "home", "g":
			d.selectedRow = 0
		case "end", "G":
			if len(d.entries) > 0 {
				d.selectedRow = len(d.entries) - 1
			}
		case "a":
			d.pendingOnly = !d.pendingOnly
			d.selectedRow = 0
			return d, d.Refresh()
		case "[":
			if d.dbPage > 0 {
				d.dbPage--
				d.selectedRow = 0
				return d, d.Refresh()
			}
		case "]":
			if d.dbPage < d.getTotalDBPages()-1 {
				d.dbPage++
				d.selectedRow = 0
				return d, d.Refresh()
			}
		}
	}
	return d, nil
}

func (d Data) getVisibleRows() int {
	rows := 25
	if d.height > 0 {
		rows = (d.height * 60) / 100
		if rows < 10 {
			rows = 10
		}
	}
	return rows
}

func (d Data) getTotalDBPages() int {
	if d.dbPageSize == 0 || d.totalEntries == 0 {
		return 1
	}
	return (d.totalEntries + d.dbPageSize - 1) / d.dbPageSize
}

func (d Data) View() string {
	if !d.db.HasArchive() {
		return lipgloss.JoinVertical(lipgloss.Left,
			styles.Title.Render("Entries"),
			styles.Muted.Render("Archive disabled: set POSTGRES_URL to browse uploaded entries"),
		)
	}

	filterStatus := "All"
	if d.pendingOnly {
		filterStatus = "Pending only"
	}

	globalPos := d.dbPage*d.dbPageSize + d.selectedRow + 1
	position := fmt.Sprintf("  %d/%d", globalPos, d.totalEntries)
	pageInfo := fmt.Sprintf("  Page %d/%d", d.dbPage+1, d.getTotalDBPages())

	entriesTable := d.renderEntriesTable()
	bottomPanel := d.renderBottomPanel()

	header := styles.Title.Render("Entries") +
		styles.StatValue.Render(position) +
		styles.StatLabel.Render(pageInfo) +
		"  " + styles.Muted.Render(fmt.Sprintf("[a] Filter: %s  [[ ]] Prev/Next page", filterStatus))

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		entriesTable,
		"",
		bottomPanel,
	)
}

func (d Data) renderEntriesTable() string {
	header := fmt.Sprintf("%-18s %-16s %-14s %-12s %-8s %-16s",
		"Permit", "Site", "Region", "Archived", "Upl", "Batch")
	rows := styles.TableHeader.Render(header) + "\n"

	visibleRows := d.getVisibleRows()

	scrollOffset := 0
	if d.selectedRow >= visibleRows {
		scrollOffset = d.selectedRow - visibleRows + 1
	}

	endRow := scrollOffset + visibleRows
	if endRow > len(d.entries) {
		endRow = len(d.entries)
	}

	for i := scrollOffset; i < endRow; i++ {
		e := d.entries[i]
		uploaded := styles.StatusPending.Render("no ")
		if e.Uploaded {
			uploaded = styles.StatusSuccess.Render("yes")
		}

		row := fmt.Sprintf("%-18s %-16s %-14s %-12s %s      %-16s",
			truncate(e.PermitNo, 18),
			truncate(e.SiteID, 16),
			truncate(e.Region, 14),
			e.CreatedAt.Format("01-02 15:04"),
			uploaded,
			truncate(e.BatchID, 16),
		)

		if i == d.selectedRow {
			rows += styles.TableSelected.Render(row) + "\n"
		} else {
			rows += row + "\n"
		}
	}

	if len(d.entries) > visibleRows {
		rows += styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", scrollOffset+1, endRow, len(d.entries)))
	}

	return rows
}

func (d Data) renderBottomPanel() string {
	if d.selectedRow >= len(d.entries) {
		return styles.Muted.Render("Select an entry")
	}
	e := d.entries[d.selectedRow]

	summary := d.renderEntrySummary(e)
	body := d.renderEntryBody(e)

	summaryBox := styles.CardBorder.Width(d.width/2 - 2).Render(
		styles.Title.Render("Entry") + "\n" + summary,
	)
	bodyBox := styles.SiteCardBorder.Width(d.width/2 - 2).Render(
		styles.Title.Render("Body") + "\n" + body,
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, summaryBox, bodyBox)
}

func (d Data) renderEntrySummary(e db.ArchivedEntry) string {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(e.Entry), &top); err != nil {
		return styles.Muted.Render("(unreadable entry)")
	}

	lines := []string{
		styles.StatLabel.Render("Permit: ") + e.PermitNo,
		styles.StatLabel.Render("Region: ") + e.Region,
		styles.StatLabel.Render("Batch: ") + e.BatchID,
	}
	for _, key := range []string{"ys_date", "ys_address", "ys_type", "ys_project_type"} {
		if raw, ok := top[key]; ok {
			lines = append(lines, styles.StatLabel.Render(key+": ")+strings.Trim(string(raw), `"`))
		}
	}
	if raw, ok := top["ys_description"]; ok {
		desc := strings.Trim(string(raw), `"`)
		lines = append(lines, "")
		lines = append(lines, wrapText(desc, d.width/2-6)...)
	}
	return strings.Join(lines, "\n")
}

func (d Data) renderEntryBody(e db.ArchivedEntry) string {
	body := entryBody(e)
	if len(body) == 0 {
		return styles.Muted.Render("(no body)")
	}

	order := []string{
		"ys_project", "ys_stage", "ys_closing", "ys_authority",
		"ys_contractor", "ys_enquiries", "ys_location_detail",
		"ys_documents_link", "ys_internal_note",
	}

	var lines []string
	for _, key := range order {
		val := body[key]
		if val == "" {
			continue
		}
		label := styles.StatLabel.Render(strings.TrimPrefix(key, "ys_") + ": ")
		for j, wrapped := range wrapText(val, d.width/2-20) {
			if j == 0 {
				lines = append(lines, label+wrapped)
			} else {
				lines = append(lines, strings.Repeat(" ", 4)+wrapped)
			}
		}
	}
	if len(lines) == 0 {
		return styles.Muted.Render("(no body)")
	}
	return strings.Join(lines, "\n")
}

// entryBody digs the nested ys_body object out of an archived entry.
func entryBody(e db.ArchivedEntry) map[string]string {
	var top struct {
		Body map[string]any `json:"ys_body"`
	}
	if err := json.Unmarshal([]byte(e.Entry), &top); err != nil {
		return nil
	}
	body := make(map[string]string, len(top.Body))
	for k, v := range top.Body {
		if s, ok := v.(string); ok {
			body[k] = s
		} else if v != nil {
			body[k] = fmt.Sprintf("%v", v)
		}
	}
	return body
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		width = 40
	}
	var lines []string
	words := strings.Fields(text)
	var line string
	for _, word := range words {
		if len(line)+len(word)+1 > width {
			lines = append(lines, line)
			line = word
		} else {
			if line != "" {
				line += " "
			}
			line += word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}
