package cli

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/okian/flames/internal/adapters/mq/eventbus"
	"github.com/okian/flames/internal/admin"
	"github.com/okian/flames/internal/domain/model"
	"github.com/okian/flames/internal/flagging"
	"github.com/okian/flames/internal/playground"
	"github.com/okian/flames/internal/session"
	"github.com/okian/flames/pkg/logger"
)

// historySize bounds the interactions listed after a generation.
const historySize = 5

func (a *App) credentials(name string, args []string, withRole bool) (model.Credentials, error) {
	fs := a.flags(name)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	role := fs.String("role", string(model.RoleParticipant), "participant or admin")
	if err := parse(fs, args); err != nil {
		return model.Credentials{}, err
	}
	creds := model.Credentials{Email: *email, Password: *password}
	if withRole {
		creds.Role = model.ParseRole(*role)
	}
	return creds, nil
}

func (a *App) signup(ctx context.Context, args []string) error {
	creds, err := a.credentials("signup", args, true)
	if err != nil {
		return err
	}
	u, err := a.svc.Signup(ctx, creds)
	if err != nil {
		return err
	}
	a.printf("signed up as %s (%s)\n", u.Email, u.Role)
	return nil
}

func (a *App) login(ctx context.Context, args []string) error {
	creds, err := a.credentials("login", args, false)
	if err != nil {
		return err
	}
	u, err := a.svc.Login(ctx, creds)
	if err != nil {
		return err
	}
	a.printf("logged in as %s (%s)\n", u.Email, u.Role)
	return nil
}

func (a *App) logout(ctx context.Context, args []string) error {
	if err := parse(a.flags("logout"), args); err != nil {
		return err
	}
	if err := a.svc.Logout(ctx); err != nil {
		return err
	}
	a.printf("logged out\n")
	return nil
}

func (a *App) whoami(ctx context.Context, args []string) error {
	fs := a.flags("whoami")
	claims := fs.Bool("claims", false, "also print the token claims")
	if err := parse(fs, args); err != nil {
		return err
	}
	u, err := a.svc.Session().RequireUser(ctx)
	if err != nil {
		return err
	}
	a.printUser(u)
	if !*claims {
		return nil
	}
	c, err := a.svc.Session().Claims(ctx)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	a.printf("claims: %s\n", b)
	return nil
}

func (a *App) watch(ctx context.Context, args []string) error {
	if err := parse(a.flags("watch"), args); err != nil {
		return err
	}
	events := a.svc.Bus().Stream(ctx, eventbus.TopicSession)
	if err := a.svc.Session().Watch(ctx); err != nil {
		return err
	}
	a.printf("watching session changes, interrupt to stop\n")
	for ev := range events {
		c, ok := ev.Payload.(session.Change)
		if !ok || c.Source != session.SourceExternal {
			continue
		}
		if c.User == nil {
			a.printf("logged out\n")
			continue
		}
		a.printf("now %s (%s)\n", c.User.Email, c.User.Role)
	}
	return nil
}

func (a *App) team(ctx context.Context, args []string) error {
	return a.sub(ctx, "team", args, map[string]func(context.Context, []string) error{
		"create":  a.teamCreate,
		"join":    a.teamJoin,
		"members": a.teamMembers,
	})
}

func (a *App) teamCreate(ctx context.Context, args []string) error {
	fs := a.flags("team create")
	name := fs.String("name", "", "team name")
	if err := parse(fs, args); err != nil {
		return err
	}
	t, err := a.svc.Teams().CreateTeam(ctx, *name)
	if err != nil {
		return err
	}
	a.printf("created team %s (%s) and joined it\n", t.Name, t.ID)
	return nil
}

func (a *App) teamJoin(ctx context.Context, args []string) error {
	fs := a.flags("team join")
	id := fs.String("id", "", "team id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.svc.Teams().JoinTeam(ctx, *id); err != nil {
		return err
	}
	a.printf("joined team %s\n", strings.TrimSpace(*id))
	return nil
}

func (a *App) teamMembers(ctx context.Context, args []string) error {
	fs := a.flags("team members")
	id := fs.String("id", "", "team id (default: your team)")
	if err := parse(fs, args); err != nil {
		return err
	}
	teamID := strings.TrimSpace(*id)
	if teamID == "" {
		if u := a.svc.Session().User(ctx); u != nil && u.TeamID.Valid {
			teamID = u.TeamID.String
		}
	}
	if teamID == "" {
		return usage("no team given and you are not in a team")
	}
	members, err := a.svc.Teams().ListMembers(ctx, teamID)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		a.printf("no members with recorded interactions yet\n")
		return nil
	}
	for _, m := range members {
		a.printf("%s\n", m)
	}
	return nil
}

func (a *App) generate(ctx context.Context, args []string) error {
	pg := a.svc.Playground()
	def := pg.Defaults(ctx)

	fs := a.flags("generate")
	prompt := fs.String("prompt", def.Prompt, "prompt text")
	blind := fs.String("blind", def.Blind, "blind model: "+strings.Join(model.BlindLabels, ", "))
	exercise := fs.String("exercise", def.ExerciseID, "exercise id (default: the selected exercise)")
	endpoint := fs.String("endpoint", def.CustomEndpoint, "custom model endpoint (blind custom only)")
	key := fs.String("key", def.CustomKey, "custom model credential (blind custom only)")
	strip := fs.Bool("strip-markup", false, "print the response with markup removed")
	if err := parse(fs, args); err != nil {
		return err
	}

	unsubscribe := a.svc.Bus().Subscribe(eventbus.TopicPlayground, func(ctx context.Context, e eventbus.Event) {
		if snap, ok := e.Payload.(playground.Snapshot); ok {
			a.logger.Debug(ctx, "playground state", logger.String("state", string(snap.State)))
		}
	})
	defer unsubscribe()

	err := pg.Submit(ctx, playground.Request{
		Prompt:         *prompt,
		Blind:          strings.ToLower(strings.TrimSpace(*blind)),
		ExerciseID:     *exercise,
		CustomEndpoint: *endpoint,
		CustomKey:      *key,
	})
	if err != nil {
		return err
	}
	if *strip {
		a.printf("%s\n", pg.Sanitized())
	} else {
		a.printf("%s\n", pg.Display())
	}
	if it, ok := pg.Latest(ctx); ok {
		a.printf("\ninteraction %s (blind %s)\n", it.ID, it.Blind)
	}
	if history := pg.Interactions(); len(history) > 0 {
		if len(history) > historySize {
			history = history[len(history)-historySize:]
		}
		a.printf("\nYour recent interactions\n")
		a.printInteractions(history)
	}
	return nil
}

func (a *App) interactions(ctx context.Context, args []string) error {
	fs := a.flags("interactions")
	user := fs.String("user", "", "filter by user email")
	teamID := fs.String("team", "", "filter by team id")
	exercise := fs.String("exercise", "", "filter by exercise id")
	mine := fs.Bool("mine", false, "only your own interactions")
	if err := parse(fs, args); err != nil {
		return err
	}
	filter := model.InteractionFilter{UserEmail: *user, TeamID: *teamID, ExerciseID: *exercise}
	if *mine {
		u, err := a.svc.Session().RequireUser(ctx)
		if err != nil {
			return err
		}
		filter.UserEmail = u.Email
	}
	list, err := a.svc.Interactions(ctx, filter)
	if err != nil {
		return err
	}
	a.printInteractions(list)
	return nil
}

func (a *App) flag(ctx context.Context, args []string) error {
	fs := a.flags("flag")
	category := fs.String("category", "", "one of: "+categoryList())
	severity := fs.Int("severity", 5, "severity from 1 to 10")
	comments := fs.String("comments", "", "free-text comments")
	if err := parse(fs, args); err != nil {
		return err
	}
	c, ok := model.ParseCategory(*category)
	if !ok {
		return usage("category must be one of: %s", categoryList())
	}
	f, err := a.svc.Flags().Submit(ctx, flagging.Form{Category: c, Severity: *severity, Comments: *comments})
	if err != nil {
		return err
	}
	a.printf("flag %s submitted (%s, severity %d)\n", f.ID, f.Category, f.Severity)
	return nil
}

func categoryList() string {
	names := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func (a *App) exercises(ctx context.Context, args []string) error {
	return a.sub(ctx, "exercises", args, map[string]func(context.Context, []string) error{
		"list":   a.exercisesList,
		"select": a.exercisesSelect,
	})
}

func (a *App) exercisesList(ctx context.Context, args []string) error {
	fs := a.flags("exercises list")
	status := fs.String("status", string(admin.StatusAll), "all, active or ended")
	endsBy := fs.String("ends-by", "", "only exercises ending on or before this date (YYYY-MM-DD)")
	if err := parse(fs, args); err != nil {
		return err
	}
	filter, err := a.filter(*status, *endsBy)
	if err != nil {
		return err
	}
	list, err := a.svc.Exercises(ctx)
	if err != nil {
		return err
	}
	a.printExercises(admin.FilterExercises(list, filter, a.now()))
	if ex := a.svc.Playground().SelectedExercise(ctx); ex != nil {
		a.printf("\nselected: %s (%s)\n", ex.Title, ex.ID)
	}
	return nil
}

func (a *App) exercisesSelect(ctx context.Context, args []string) error {
	fs := a.flags("exercises select")
	id := fs.String("id", "", "exercise id")
	reset := fs.Bool("clear", false, "clear the selection")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *reset {
		if err := a.svc.Playground().SelectExercise(ctx, nil); err != nil {
			return err
		}
		a.printf("selection cleared\n")
		return nil
	}
	want := strings.TrimSpace(*id)
	if want == "" {
		return usage("-id or -clear is required")
	}
	list, err := a.svc.Exercises(ctx)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].ID != want {
			continue
		}
		if err := a.svc.Playground().SelectExercise(ctx, &list[i]); err != nil {
			return err
		}
		a.printf("selected %s (%s)\n", list[i].Title, list[i].ID)
		return nil
	}
	return usage("no exercise with id %s", want)
}
