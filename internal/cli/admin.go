package cli

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/okian/flames/internal/admin"
	"github.com/okian/flames/internal/domain/model"
)

func (a *App) admin(ctx context.Context, args []string) error {
	return a.sub(ctx, "admin", args, map[string]func(context.Context, []string) error{
		"load":            a.adminLoad,
		"exercise-create": a.adminExerciseCreate,
		"exercise-delete": a.adminExerciseDelete,
		"mapping-create":  a.adminMappingCreate,
		"mapping-delete":  a.adminMappingDelete,
		"seed":            a.adminSeed,
		"flags":           a.adminFlags,
		"resolve":         a.adminResolve,
		"analytics":       a.adminAnalytics,
		"export":          a.adminExport,
	})
}

func (a *App) filter(status, endsBy string) (admin.Filter, error) {
	st, err := admin.ParseStatus(status)
	if err != nil {
		return admin.Filter{}, errors.Mark(err, ErrUsage)
	}
	f := admin.Filter{Status: st}
	if endsBy = strings.TrimSpace(endsBy); endsBy != "" {
		t, err := time.Parse(model.DateLayout, endsBy)
		if err != nil {
			return admin.Filter{}, usage("ends-by must be a date like 2025-12-31")
		}
		f.EndsBy = t
	}
	return f, nil
}

// load fetches the dashboard and fails only when section could not be read.
func (a *App) load(ctx context.Context, section admin.Section) error {
	report, err := a.svc.Admin().Load(ctx)
	if err != nil {
		return err
	}
	if err, ok := report.Errors[section]; ok {
		return errors.Wrapf(err, "load %s", section)
	}
	return nil
}

func (a *App) adminLoad(ctx context.Context, args []string) error {
	fs := a.flags("admin load")
	status := fs.String("status", string(admin.StatusAll), "exercise status: all, active or ended")
	endsBy := fs.String("ends-by", "", "only exercises ending on or before this date (YYYY-MM-DD)")
	if err := parse(fs, args); err != nil {
		return err
	}
	filter, err := a.filter(*status, *endsBy)
	if err != nil {
		return err
	}
	d := a.svc.Admin()
	report, err := d.Load(ctx)
	if err != nil {
		return err
	}

	a.printf("Exercises\n")
	a.printExercises(admin.FilterExercises(d.Exercises(), filter, a.now()))
	a.printf("\nModel mappings\n")
	a.printMappings(d.Mappings())
	a.printf("\nFlags\n")
	a.printFlags(d.Flags())
	if an, ok := d.Analytics(); ok {
		a.printf("\nAnalytics\nusers: %d  interactions: %d  open flags: %d\n", an.Users, an.Interactions, an.OpenFlags)
	}
	for _, s := range report.Failed() {
		a.printf("\n%s could not be loaded: %s\n", s, Message(report.Errors[s]))
	}
	return nil
}

func (a *App) adminExerciseCreate(ctx context.Context, args []string) error {
	fs := a.flags("admin exercise-create")
	title := fs.String("title", "", "exercise title")
	description := fs.String("description", "", "exercise description")
	endDate := fs.String("end-date", "", "end date (YYYY-MM-DD), empty for rolling")
	var guidelines stringList
	fs.Var(&guidelines, "guideline", "a guideline line (repeatable)")
	if err := parse(fs, args); err != nil {
		return err
	}
	ex, err := a.svc.Admin().CreateExercise(ctx, model.NewExercise{
		Title:       *title,
		Description: *description,
		EndDate:     strings.TrimSpace(*endDate),
		Guidelines:  guidelines,
	})
	if err != nil {
		return err
	}
	a.printf("created exercise %s (%s)\n", ex.Title, ex.ID)
	return nil
}

func (a *App) adminExerciseDelete(ctx context.Context, args []string) error {
	fs := a.flags("admin exercise-delete")
	id := fs.String("id", "", "exercise id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.svc.Admin().DeleteExercise(ctx, strings.TrimSpace(*id)); err != nil {
		return err
	}
	a.printf("deleted exercise %s\n", strings.TrimSpace(*id))
	return nil
}

func (a *App) adminMappingCreate(ctx context.Context, args []string) error {
	fs := a.flags("admin mapping-create")
	blind := fs.String("blind", "", "blind label, e.g. alpha")
	provider := fs.String("provider", "", "provider name, e.g. OpenAI")
	mdl := fs.String("model", "", "model name, e.g. gpt-4o-mini")
	keyEnv := fs.String("key-env", "", "environment variable holding the provider key")
	if err := parse(fs, args); err != nil {
		return err
	}
	m, err := a.svc.Admin().CreateMapping(ctx, model.ModelMapping{
		Blind:     strings.TrimSpace(*blind),
		Provider:  strings.TrimSpace(*provider),
		Model:     strings.TrimSpace(*mdl),
		APIKeyEnv: strings.TrimSpace(*keyEnv),
	})
	if err != nil {
		return err
	}
	a.printf("created mapping %s: %s -> %s %s\n", m.ID, m.Blind, m.Provider, m.Model)
	return nil
}

func (a *App) adminMappingDelete(ctx context.Context, args []string) error {
	fs := a.flags("admin mapping-delete")
	id := fs.String("id", "", "mapping id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.svc.Admin().DeleteMapping(ctx, strings.TrimSpace(*id)); err != nil {
		return err
	}
	a.printf("deleted mapping %s\n", strings.TrimSpace(*id))
	return nil
}

func (a *App) adminSeed(ctx context.Context, args []string) error {
	if err := parse(a.flags("admin seed"), args); err != nil {
		return err
	}
	created, err := a.svc.Admin().SeedMappings(ctx)
	if err != nil {
		return err
	}
	if len(created) == 0 {
		a.printf("default mappings already present\n")
		return nil
	}
	a.printMappings(created)
	return nil
}

func (a *App) adminFlags(ctx context.Context, args []string) error {
	fs := a.flags("admin flags")
	open := fs.Bool("open", false, "only open flags")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.load(ctx, admin.SectionFlags); err != nil {
		return err
	}
	list := a.svc.Admin().Flags()
	if *open {
		kept := list[:0]
		for _, f := range list {
			if f.Status == model.FlagOpen {
				kept = append(kept, f)
			}
		}
		list = kept
	}
	a.printFlags(list)
	return nil
}

func (a *App) adminResolve(ctx context.Context, args []string) error {
	fs := a.flags("admin resolve")
	id := fs.String("id", "", "flag id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.load(ctx, admin.SectionFlags); err != nil {
		return err
	}
	f, err := a.svc.Admin().ResolveFlag(ctx, strings.TrimSpace(*id))
	if err != nil {
		return err
	}
	a.printf("flag %s is %s\n", f.ID, f.Status)
	return nil
}

func (a *App) adminAnalytics(ctx context.Context, args []string) error {
	if err := parse(a.flags("admin analytics"), args); err != nil {
		return err
	}
	if err := a.load(ctx, admin.SectionAnalytics); err != nil {
		return err
	}
	an, _ := a.svc.Admin().Analytics()
	a.printf("users: %d\ninteractions: %d\nopen flags: %d\n", an.Users, an.Interactions, an.OpenFlags)
	return nil
}

func (a *App) adminExport(ctx context.Context, args []string) error {
	fs := a.flags("admin export")
	format := fs.String("format", string(admin.FormatJSON), "json or csv")
	out := fs.String("out", "", "file name inside the export directory (default: redteam_export.json or interactions.csv)")
	stdout := fs.Bool("stdout", false, "write the payload to standard output instead of a file")
	if err := parse(fs, args); err != nil {
		return err
	}
	f, err := admin.ParseFormat(*format)
	if err != nil {
		return errors.Mark(err, ErrUsage)
	}
	if *stdout {
		_, err := a.svc.Admin().Export(ctx, f, a.out)
		return err
	}
	path, err := a.svc.Admin().ExportFile(ctx, f, strings.TrimSpace(*out))
	if err != nil {
		return err
	}
	a.printf("exported %s to %s\n", f, path)
	return nil
}
