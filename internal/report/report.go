// Package report renders the sync status of a user for terminals and logs.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rpggio/adherence/internal/domain/dailycache"
	"github.com/rpggio/adherence/internal/domain/syncqueue"
	"golang.org/x/term"
)

// PetDay is one pet's cache as shown in the report.
type PetDay struct {
	PetID   string
	Summary dailycache.Summary
}

// View is everything the status report shows for one user.
type View struct {
	UserID      string
	GeneratedAt time.Time
	Limits      syncqueue.Limits
	Queue       syncqueue.Status
	Pets        []PetDay
}

// Options control rendering.
type Options struct {
	NoColor bool
}

type styles struct {
	title lipgloss.Style
	panel lipgloss.Style
	label lipgloss.Style
	dim   lipgloss.Style
	ok    lipgloss.Style
	warn  lipgloss.Style
	bad   lipgloss.Style
}

func defaultStyles(noColor bool) styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return styles{title: plain, panel: plain, label: plain, dim: plain, ok: plain, warn: plain, bad: plain}
	}
	return styles{
		title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("24")).Padding(0, 1),
		panel: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).BorderForeground(lipgloss.Color("61")),
		label: lipgloss.NewStyle().Foreground(lipgloss.Color("109")),
		dim:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		ok:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		warn:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		bad:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Write renders v to w, styled unless opts.NoColor is set.
func Write(w io.Writer, v View, opts Options) error {
	_, err := io.WriteString(w, Render(v, opts)+"\n")
	return err
}

// Render returns the report as a string.
func Render(v View, opts Options) string {
	st := defaultStyles(opts.NoColor)

	header := st.title.Render("adherence sync") + "  " + st.label.Render("user: ") + v.UserID
	if !v.GeneratedAt.IsZero() {
		header += "  " + st.dim.Render(v.GeneratedAt.Format(time.RFC3339))
	}

	sections := []string{header, st.panel.Render(queueSection(st, v))}
	for _, p := range v.Pets {
		sections = append(sections, st.panel.Render(petSection(st, p)))
	}
	if len(v.Pets) == 0 {
		sections = append(sections, st.dim.Render("no cached pets"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func queueSection(st styles, v View) string {
	q := v.Queue
	var state string
	switch q.State {
	case syncqueue.StateHardFull:
		state = st.bad.Render("BLOCKED") + " queue full, new writes are refused"
	case syncqueue.StateSoftWarning:
		state = st.warn.Render("WARNING") + " sync backlog is growing"
	case syncqueue.StateAccumulating:
		state = st.ok.Render("PENDING") + " writes waiting to sync"
	default:
		state = st.ok.Render("OK") + " all writes synced"
	}

	lines := []string{
		st.label.Render("queue: ") + state,
		st.label.Render("size:  ") + fmt.Sprintf("%d (soft %d, hard %d)", q.Size, v.Limits.Soft, v.Limits.Hard),
	}
	if q.Reserved > 0 {
		lines = append(lines, st.label.Render("in flight: ")+fmt.Sprint(q.Reserved))
	}
	if q.Draining {
		lines = append(lines, st.dim.Render("drain in progress"))
	}
	if q.FailCount > 0 {
		lines = append(lines, st.bad.Render(fmt.Sprintf("SYNC FAILED: %d write(s) past %d attempts", q.FailCount, v.Limits.MaxAttempts)))
		for _, it := range q.Items {
			if it.Attempts > v.Limits.MaxAttempts {
				lines = append(lines, st.dim.Render(fmt.Sprintf("  %s %s/%s: %s", it.ID, it.Collection, it.DocumentID, it.LastError)))
			}
		}
	}
	return strings.Join(lines, "\n")
}

func petSection(st styles, p PetDay) string {
	s := p.Summary
	hydrated := st.warn.Render("not hydrated")
	if s.Hydrated {
		hydrated = st.ok.Render("hydrated")
	}
	lines := []string{
		st.label.Render("pet: ") + p.PetID + "  " + st.dim.Render(s.Date.String()) + "  " + hydrated,
		fmt.Sprintf("medications: %d session(s), %s dose(s)", s.MedicationSessionCount, s.TotalMedicationDosesGiven.String()),
		fmt.Sprintf("fluids:      %d session(s), %s ml", s.FluidSessionCount, s.TotalFluidVolumeGiven.String()),
	}
	if len(s.MedicationNames) > 0 {
		lines = append(lines, st.dim.Render("given: "+strings.Join(s.MedicationNames, ", ")))
	}
	if s.HasPending() {
		lines = append(lines, st.warn.Render(fmt.Sprintf("%d session(s) awaiting sync", len(s.PendingIDs))))
	}
	return strings.Join(lines, "\n")
}
