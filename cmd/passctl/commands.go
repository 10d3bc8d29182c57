package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/pass-request-client/internal/dto"
	"github.com/noah-isme/pass-request-client/internal/models"
	"github.com/noah-isme/pass-request-client/internal/service"
	appErrors "github.com/noah-isme/pass-request-client/pkg/errors"
	"github.com/noah-isme/pass-request-client/pkg/export"
	"github.com/noah-isme/pass-request-client/pkg/imaging"
)

type app struct {
	deps     *service.Dependencies
	location *time.Location
	pageSize int
	logger   *zap.Logger
	out      io.Writer
}

type command struct {
	name    string
	summary string
	run     func(a *app, ctx context.Context, args []string) error
}

var commands = []command{
	{"status", "show whether the stored token is still valid", (*app).status},
	{"login", "sign in and store the token", (*app).login},
	{"register", "create a student account", (*app).register},
	{"logout", "forget the stored token", (*app).logout},
	{"profile", "show the signed-in user", (*app).profile},
	{"profile-edit", "change name, email or group", (*app).profileEdit},
	{"groups", "list study groups", (*app).groups},
	{"list", "list pass requests", (*app).list},
	{"create", "submit a pass request with photos", (*app).create},
	{"extend", "ask to extend an accepted request", (*app).extend},
	{"delete", "delete a pending request", (*app).remove},
	{"export", "write loaded requests to csv or pdf", (*app).export},
}

func (a *app) execute(ctx context.Context, args []string, stderr io.Writer) int {
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		if err := c.run(a, ctx, args[1:]); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return 2
			}
			fmt.Fprintf(stderr, "error: %s\n", describe(err))
			return 1
		}
		return 0
	}
	fmt.Fprintf(stderr, "unknown command %q\n", args[0])
	usage(stderr)
	return 2
}

// describe renders an error for the terminal.
func describe(err error) string {
	appErr := appErrors.FromError(err)
	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case appErr.Code == appErrors.ErrServer.Code && appErr.Status != 0:
		return fmt.Sprintf("server rejected the request (%d): %s", appErr.Status, appErr.Message)
	case appErr.Code == appErrors.ErrUnknown.Code:
		return err.Error()
	}
	return appErr.Error()
}

func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

// imageFlag collects repeated -image paths.
type imageFlag []string

func (f *imageFlag) String() string { return strings.Join(*f, ",") }

func (f *imageFlag) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func (f imageFlag) load() ([]models.Attachment, error) {
	out := make([]models.Attachment, 0, len(f))
	for _, path := range f {
		img, err := imaging.Load(path)
		if err != nil {
			return nil, appErrors.Validation(err.Error())
		}
		out = append(out, models.Attachment{Name: path, Image: img})
	}
	return out, nil
}

var dateLayouts = []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"}

func (a *app) parseDate(name, raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, a.location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, appErrors.Validation(fmt.Sprintf("invalid %s %q, expected YYYY-MM-DD", name, raw))
}

func (a *app) optionalDate(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := a.parseDate(name, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (a *app) status(ctx context.Context, args []string) error {
	if err := newFlags("status").Parse(args); err != nil {
		return err
	}
	session, err := a.deps.Session.Bootstrap(ctx)
	if err != nil {
		return err
	}
	if !session.Authenticated() {
		fmt.Fprintln(a.out, "not signed in")
		return nil
	}
	fmt.Fprintf(a.out, "signed in as %s <%s> (%s)\n", session.User.FullName, session.User.Email, session.User.Role)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.deps.Auth.Login(ctx, dto.LoginRequest{Email: *email, Password: *password}); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "signed in")
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := newFlags("register")
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email")
	group := fs.String("group", "", "group number (optional)")
	password := fs.String("password", "", "password")
	confirm := fs.String("confirm", "", "password confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	groupNumber, err := service.ParseGroupNumber(*group)
	if err != nil {
		return err
	}
	if err := a.deps.Auth.Register(ctx, dto.RegistrationRequest{
		FullName:        *name,
		Email:           *email,
		GroupNumber:     groupNumber,
		Password:        *password,
		ConfirmPassword: *confirm,
	}); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "account created, signed in")
	return nil
}

func (a *app) logout(ctx context.Context, args []string) error {
	if err := newFlags("logout").Parse(args); err != nil {
		return err
	}
	if err := a.deps.Auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "signed out")
	return nil
}

func (a *app) profile(ctx context.Context, args []string) error {
	if err := newFlags("profile").Parse(args); err != nil {
		return err
	}
	user, err := a.deps.Profile.GetProfile(ctx)
	if err != nil {
		return err
	}
	printUser(a.out, *user)
	return nil
}

func (a *app) profileEdit(ctx context.Context, args []string) error {
	fs := newFlags("profile-edit")
	name := fs.String("name", "", "new full name")
	email := fs.String("email", "", "new email")
	group := fs.String("group", "", "new group number")
	if err := fs.Parse(args); err != nil {
		return err
	}

	current, err := a.deps.Profile.GetProfile(ctx)
	if err != nil {
		return err
	}
	req := dto.EditProfileRequest{FullName: current.FullName, Email: current.Email}
	if *name != "" {
		req.FullName = *name
	}
	if *email != "" {
		req.Email = *email
	}
	if req.GroupNumber, err = service.ParseGroupNumber(*group); err != nil {
		return err
	}

	updated, err := a.deps.Profile.UpdateProfile(ctx, *current, req)
	if err != nil {
		return err
	}
	printUser(a.out, *updated)
	return nil
}

func (a *app) groups(ctx context.Context, args []string) error {
	fs := newFlags("groups")
	all := fs.Bool("all", false, "include deleted groups")
	if err := fs.Parse(args); err != nil {
		return err
	}
	list, err := a.deps.Groups.ListGroups(ctx)
	if err != nil {
		return err
	}
	groups := list.Active()
	if *all {
		groups = list.Groups
	}
	for _, g := range groups {
		if g.IsDeleted {
			fmt.Fprintf(a.out, "%d (deleted)\n", g.GroupNumber)
			continue
		}
		fmt.Fprintln(a.out, g.GroupNumber)
	}
	return nil
}

type listFlags struct {
	status   *string
	userID   *string
	search   *string
	from     *string
	to       *string
	accepted *string
	pages    *int
}

func bindListFlags(fs *flag.FlagSet) listFlags {
	return listFlags{
		status:   fs.String("status", "all", "student filter: all, accepted or rejected"),
		userID:   fs.String("user", "", "reviewers: only this user id"),
		search:   fs.String("search", "", "reviewers: name search"),
		from:     fs.String("from", "", "reviewers: first day, YYYY-MM-DD"),
		to:       fs.String("to", "", "reviewers: last day, YYYY-MM-DD"),
		accepted: fs.String("accepted", "", "reviewers: true, false or empty for any"),
		pages:    fs.Int("pages", 1, "pages to load, 0 for all"),
	}
}

func (a *app) filter(f listFlags) (models.RequestFilter, error) {
	var filter models.RequestFilter
	var err error
	if filter.DateStart, err = a.optionalDate("from", *f.from); err != nil {
		return filter, err
	}
	if filter.DateEnd, err = a.optionalDate("to", *f.to); err != nil {
		return filter, err
	}
	filter.UserID = *f.userID
	filter.UserSearch = *f.search

	if *f.accepted != "" {
		v, err := strconv.ParseBool(*f.accepted)
		if err != nil {
			return filter, appErrors.Validation(fmt.Sprintf("invalid accepted value %q", *f.accepted))
		}
		filter.Accepted = &v
		return filter, nil
	}
	if filter.Accepted, err = models.StatusFilter(*f.status).Value(); err != nil {
		return filter, appErrors.Validation(err.Error())
	}
	return filter, nil
}

// load drains the listing for the signed-in user's role.
func (a *app) load(ctx context.Context, f listFlags) ([]models.PassRequest, bool, error) {
	user, err := a.deps.Profile.GetProfile(ctx)
	if err != nil {
		return nil, false, err
	}
	filter, err := a.filter(f)
	if err != nil {
		return nil, false, err
	}

	lister := a.deps.Requests.NewLister(user.Role, filter)
	for loaded := 0; lister.HasMore() && (*f.pages <= 0 || loaded < *f.pages); loaded++ {
		if _, err := lister.LoadMore(ctx); err != nil {
			return nil, false, err
		}
	}
	a.logger.Debug("listing loaded", zap.String("role", string(user.Role)), zap.Int("items", len(lister.Items())), zap.Int("next_page", lister.Page()))
	return lister.Items(), lister.HasMore(), nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := newFlags("list")
	lf := bindListFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	items, more, err := a.load(ctx, lf)
	if err != nil {
		return err
	}
	a.printRequests(items)
	if more {
		fmt.Fprintln(a.out, "more requests available, raise -pages to load them")
	}
	return nil
}

func (a *app) create(ctx context.Context, args []string) error {
	fs := newFlags("create")
	from := fs.String("from", "", "first day of absence, YYYY-MM-DD")
	to := fs.String("to", "", "last day of absence, YYYY-MM-DD")
	message := fs.String("message", "", "optional note")
	var images imageFlag
	fs.Var(&images, "image", "photo to attach, repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}

	start, err := a.parseDate("from", *from)
	if err != nil {
		return err
	}
	end, err := a.parseDate("to", *to)
	if err != nil {
		return err
	}
	attachments, err := images.load()
	if err != nil {
		return err
	}

	created, err := a.deps.Requests.Create(ctx, dto.CreatePassRequest{
		DateStart: start,
		DateEnd:   end,
		Message:   *message,
		Images:    attachments,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created %s\n", created.ID)
	a.printRequests([]models.PassRequest{*created})
	return nil
}

func (a *app) extend(ctx context.Context, args []string) error {
	fs := newFlags("extend")
	id := fs.String("id", "", "request id")
	to := fs.String("to", "", "new last day, defaults to a week after the current one")
	message := fs.String("message", "", "optional note")
	var images imageFlag
	fs.Var(&images, "image", "photo to attach, repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return appErrors.Validation("field 'id' must not be empty")
	}

	snapshot, err := a.deps.Requests.FindMine(ctx, *id)
	if err != nil {
		return err
	}
	end := service.SuggestExtensionEnd(*snapshot)
	if *to != "" {
		if end, err = a.parseDate("to", *to); err != nil {
			return err
		}
	}
	attachments, err := images.load()
	if err != nil {
		return err
	}

	updated, err := a.deps.Requests.Extend(ctx, *snapshot, dto.ExtendPassRequest{DateEnd: end, Message: *message, Images: attachments})
	if err != nil {
		return err
	}
	a.printRequests([]models.PassRequest{*updated})
	return nil
}

func (a *app) remove(ctx context.Context, args []string) error {
	fs := newFlags("delete")
	id := fs.String("id", "", "request id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return appErrors.Validation("field 'id' must not be empty")
	}

	snapshot, err := a.deps.Requests.FindMine(ctx, *id)
	if err != nil {
		return err
	}
	if err := a.deps.Requests.Delete(ctx, *snapshot); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %s\n", *id)
	return nil
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := newFlags("export")
	format := fs.String("format", "csv", "csv or pdf")
	lf := bindListFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	parsed, err := export.ParseFormat(*format)
	if err != nil {
		return appErrors.Validation(err.Error())
	}
	items, _, err := a.load(ctx, lf)
	if err != nil {
		return err
	}
	result, err := a.deps.Export.Export(ctx, items, parsed)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wrote %d requests to %s\n", result.Rows, result.Path)
	return nil
}

func printUser(w io.Writer, user models.User) {
	fmt.Fprintf(w, "id:    %s\n", user.ID)
	fmt.Fprintf(w, "name:  %s\n", user.FullName)
	fmt.Fprintf(w, "email: %s\n", user.Email)
	fmt.Fprintf(w, "role:  %s\n", user.Role)
	if n := user.GroupNumber(); n > 0 {
		fmt.Fprintf(w, "group: %d\n", n)
	}
	if user.IsBlocked {
		fmt.Fprintln(w, "blocked")
	}
}

func (a *app) printRequests(items []models.PassRequest) {
	if len(items) == 0 {
		fmt.Fprintln(a.out, "no requests")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTUDENT\tPERIOD\tSTATUS\tFILES\tEXTENSIONS")
	for _, r := range items {
		period := models.FormatPeriod(r.DateStart.In(a.location), r.DateEnd.In(a.location))
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", r.ID, r.User.FullName, period, r.Acceptance, len(r.Files), len(r.ExtensionRequests))
	}
	_ = tw.Flush()
}
