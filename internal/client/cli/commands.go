package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/admitflow/admitflow/internal/client/models"
	"github.com/admitflow/admitflow/internal/client/netx"
)

func (a *App) Register(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}

	if err := a.client.Register(ctx, email, password); err != nil {
		fmt.Fprintf(a.out, "Registration failed: %v\n", err)
		return err
	}
	fmt.Fprintln(a.out, "Registered. You can now log in.")
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}

	if err := a.client.Login(ctx, email, password); err != nil {
		fmt.Fprintf(a.out, "Login failed: %v\n", err)
		return err
	}

	fmt.Fprintln(a.out, "Logged in.")
	return a.initSession(ctx)
}

// Resume reloads the server draft, e.g. after a reported conflict.
func (a *App) Resume(ctx context.Context) error {
	ctrl, _, _, ok := a.session()
	if !ok {
		fmt.Fprintln(a.out, "Log in first.")
		return nil
	}
	if err := ctrl.Resume(ctx); err != nil {
		fmt.Fprintf(a.out, "Resume failed: %v\n", err)
		return err
	}
	a.printPosition()
	return nil
}

// Set records a form field: set <name> <value...>.
func (a *App) Set(ctx context.Context, args []string) error {
	ctrl, scheduler, _, ok := a.session()
	if !ok {
		fmt.Fprintln(a.out, "Log in first.")
		return nil
	}
	if len(args) < 2 {
		fmt.Fprintln(a.out, "Usage: set <name> <value>")
		return nil
	}

	name := args[0]
	value := args[1]
	for _, part := range args[2:] {
		value += " " + part
	}

	ctrl.SetField(name, value)
	scheduler.FieldChanged()
	return nil
}

// Status prints the wizard position, entered fields and sync state.
func (a *App) Status(ctx context.Context) error {
	ctrl, _, engine, ok := a.session()
	if !ok {
		fmt.Fprintln(a.out, "Log in first.")
		return nil
	}

	a.printPosition()

	snap := ctrl.Snapshot()
	for _, f := range snap.FormData {
		fmt.Fprintf(a.out, "  %s = %s\n", f.Name, f.Value)
	}
	for _, fd := range snap.UploadedFiles {
		fmt.Fprintf(a.out, "  file: %s (%d bytes)\n", fd.Name, fd.Size)
	}

	st := engine.Status()
	switch {
	case st.IsSaving:
		fmt.Fprintln(a.out, "Saving...")
	case st.PendingChanges:
		fmt.Fprintln(a.out, "Unsaved changes pending.")
	case !st.LastSaved.IsZero():
		fmt.Fprintf(a.out, "Last saved %s.\n", st.LastSaved.Format("15:04:05"))
	}
	return nil
}

// Upload pushes a document to storage and attaches it to the draft.
func (a *App) Upload(ctx context.Context, args []string) error {
	ctrl, scheduler, _, ok := a.session()
	if !ok {
		fmt.Fprintln(a.out, "Log in first.")
		return nil
	}
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: upload <path>")
		return nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(a.out, "Cannot read file: %v\n", err)
		return err
	}

	presign, err := a.client.PresignUpload(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "Upload unavailable: %v\n", err)
		return err
	}
	if err := netx.UploadToPresignedURL(ctx, presign.URL, data); err != nil {
		fmt.Fprintf(a.out, "Upload failed: %v\n", err)
		return err
	}

	ctrl.AttachFile(models.FileDescriptor{
		ID:   uuid.NewString(),
		Name: filepath.Base(args[0]),
		Size: int64(len(data)),
		URL:  presign.Key,
	})
	scheduler.FieldChanged()

	fmt.Fprintf(a.out, "Uploaded %s.\n", filepath.Base(args[0]))
	return nil
}

func (a *App) Next(ctx context.Context) error {
	ctrl, _, _, ok := a.session()
	if !ok {
		fmt.Fprintln(a.out, "Log in first.")
		return nil
	}

	outcome, err := ctrl.Next(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "Cannot advance: %v\n", err)
		return err
	}
	fmt.Fprintf(a.out, "Step saved (%s).\n", outcome)
	a.printPosition()
	return nil
}

func (a *App) Previous(ctx context.Context) error {
	ctrl, _, _, ok := a.session()
	if !ok {
		fmt.Fprintln(a.out, "Log in first.")
		return nil
	}

	ctrl.Previous()
	a.printPosition()
	return nil
}

func (a *App) Submit(ctx context.Context) error {
	ctrl, _, _, ok := a.session()
	if !ok {
		fmt.Fprintln(a.out, "Log in first.")
		return nil
	}

	res, err := ctrl.Submit(ctx, a.queueSubmit)
	if err != nil {
		fmt.Fprintf(a.out, "Submit failed: %v\n", err)
		return err
	}

	if res.Queued {
		fmt.Fprintln(a.out, "You are offline; the submission was queued and will complete automatically.")
		return nil
	}

	app := res.Application
	fmt.Fprintf(a.out, "Submitted. Application %s, tracking code %s.\n",
		app.ApplicationNumber, app.TrackingCode)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.teardownSession()
	a.client.SetTokens("", "")
	_ = a.repos.Metadata.Clear(ctx)
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}
