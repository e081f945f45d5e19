package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/okian/flames/internal/domain/model"
)

const maxCell = 60

func (a *App) table(header ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	return tw
}

func row(w io.Writer, cells ...string) {
	for i, c := range cells {
		cells[i] = clip(c)
	}
	fmt.Fprintln(w, strings.Join(cells, "\t"))
}

// clip keeps table cells on one line.
func clip(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxCell {
		return string(r[:maxCell-3]) + "..."
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (a *App) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) printUser(u *model.User) {
	team := "-"
	if u.TeamID.Valid && u.TeamID.String != "" {
		team = u.TeamID.String
	}
	a.printf("email: %s\nrole:  %s\nteam:  %s\n", u.Email, u.Role, team)
}

func (a *App) printExercises(list []model.Exercise) {
	tw := a.table("ID", "TITLE", "ENDS", "GUIDELINES")
	for _, ex := range list {
		row(tw, ex.ID, ex.Title, orDash(ex.EndDate.String), fmt.Sprint(len(ex.Guidelines)))
	}
	_ = tw.Flush()
}

func (a *App) printMappings(list []model.ModelMapping) {
	tw := a.table("ID", "BLIND", "PROVIDER", "MODEL", "KEY ENV")
	for _, m := range list {
		row(tw, m.ID, m.Blind, m.Provider, m.Model, orDash(m.APIKeyEnv))
	}
	_ = tw.Flush()
}

func (a *App) printInteractions(list []model.Interaction) {
	tw := a.table("ID", "TS", "USER", "BLIND", "PROMPT")
	for _, it := range list {
		row(tw, it.ID, it.TS, it.UserEmail, it.Blind, it.Prompt)
	}
	_ = tw.Flush()
}

func (a *App) printFlags(list []model.Flag) {
	tw := a.table("ID", "STATUS", "SEVERITY", "CATEGORY", "USER", "INTERACTION")
	for _, f := range list {
		row(tw, f.ID, string(f.Status), fmt.Sprint(f.Severity), string(f.Category), f.UserEmail, f.InteractionID)
	}
	_ = tw.Flush()
}
