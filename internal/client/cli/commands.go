package cli

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/carelinkhq/carelink/internal/client/gateway"
	"github.com/carelinkhq/carelink/internal/client/ledger"
	"github.com/carelinkhq/carelink/internal/client/models"
	"github.com/carelinkhq/carelink/internal/client/nav"
	"github.com/carelinkhq/carelink/internal/client/routes"
)

func navIntent(path string) nav.Intent { return nav.Intent{Path: path} }

// Login authenticates with email/password. The resulting SIGNED_IN event
// drives role resolution and redirection through the session controller.
func (a *App) Login(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := GetPassword(os.Stdout)
	if err != nil {
		return err
	}

	if _, err := a.gw.SignIn(ctx, email, password); err != nil {
		switch {
		case errors.Is(err, gateway.ErrInvalidCredentials):
			printlnFn("Invalid email or password")
		case errors.Is(err, gateway.ErrUnavailable):
			printlnFn("The service is unavailable right now, please try again later")
		default:
			printlnFn("Sign-in failed:", err.Error())
		}
		return err
	}
	return nil
}

// Register creates an account with the requested role embedded in the
// sign-up metadata and remembered as the registration hint for redirection.
func (a *App) Register(ctx context.Context, role string) error {
	parsed, ok := models.ParseRole(role)
	if !ok {
		printlnFn("Usage: register <family|professional|community|admin>")
		return nil
	}

	email, err := GetSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := GetPassword(os.Stdout)
	if err != nil {
		return err
	}

	if err := a.ledger.Set(ctx, ledger.SlotRegisteringAs, parsed.String()); err != nil {
		a.log.Warn(ctx, "failed to remember registration role", "error", err)
	}

	sess, err := a.gw.SignUp(ctx, email, password, models.UserMetadata{Role: parsed.String()})
	if err != nil {
		if errors.Is(err, gateway.ErrUserExists) {
			printlnFn("An account with this email already exists")
		} else {
			printlnFn("Sign-up failed:", err.Error())
		}
		return err
	}
	if sess == nil {
		printlnFn("Almost there! Check your email to confirm the account, then log in.")
	}
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.controller.SignOut(ctx)
	return nil
}

// Status prints the controller's derived state, the same fields dependent
// views consume.
func (a *App) Status(ctx context.Context) error {
	snap := a.controller.Snapshot()
	printlnFn("state:", string(snap.State))
	if snap.User != nil {
		printlnFn("user:", snap.User.Email)
		printlnFn("role:", snap.Role.String())
		printlnFn("profile complete:", snap.ProfileComplete)
	}
	printlnFn("location:", a.sink.Current())
	return nil
}

// Book opens the booking flow for a caregiver, going through the gated-action
// guard first.
func (a *App) Book(ctx context.Context, caregiverID string) error {
	path := "/booking/" + caregiverID
	if !a.controller.RequireAuth(ctx, "book care", path) {
		return nil
	}
	a.sink.Navigate(ctx, navIntent(path))
	printlnFn("Booking request started for caregiver", caregiverID)
	return nil
}

// Message opens the conversation with a caregiver, gated on authentication.
func (a *App) Message(ctx context.Context, caregiverID string) error {
	path := "/messages/" + caregiverID
	if !a.controller.RequireAuth(ctx, "send message", path) {
		return nil
	}
	a.sink.Navigate(ctx, navIntent(path))
	printlnFn("Conversation opened with caregiver", caregiverID)
	return nil
}

// Upvote records a community feature vote, gated on authentication. While
// anonymous, the vote is captured for replay after sign-in.
func (a *App) Upvote(ctx context.Context, featureID string) error {
	if !a.controller.RequireAuth(ctx, "upvote "+featureID, "") {
		return nil
	}

	snap := a.controller.Snapshot()
	created, err := a.votes.Create(ctx, featureID, snap.User.ID)
	if err != nil {
		printlnFn("Could not record your vote:", err.Error())
		return err
	}
	if created {
		printlnFn("Your vote has been recorded")
	} else {
		printlnFn("You have already voted for this feature")
	}
	return nil
}

// Profile updates the caller's display name, both on the profile row and in
// the sign-up metadata so the USER_UPDATED event re-derives completeness.
func (a *App) Profile(ctx context.Context, fullName string) error {
	if !a.controller.RequireAuth(ctx, "update profile", "/profile/edit") {
		return nil
	}

	snap := a.controller.Snapshot()
	profile := &models.Profile{
		ID:       snap.User.ID,
		FullName: fullName,
		Role:     snap.Role.String(),
	}
	if err := a.profiles.Upsert(ctx, profile); err != nil {
		printlnFn("Could not save your profile:", err.Error())
		return err
	}

	if _, err := a.gw.UpdateUser(ctx, models.UserMetadata{
		Role:     snap.User.Metadata.Role,
		FullName: fullName,
	}); err != nil {
		a.log.Warn(ctx, "metadata update failed", "error", err)
	}

	printlnFn("Profile saved")
	return nil
}

// Avatar uploads a profile picture and records its URL on the profile row.
func (a *App) Avatar(ctx context.Context, path string) error {
	if !a.controller.RequireAuth(ctx, "update profile picture", "/profile/edit") {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		printlnFn("Could not read", path+":", err.Error())
		return err
	}

	snap := a.controller.Snapshot()
	url, err := a.avatars.Upload(ctx, snap.User.ID, data, http.DetectContentType(data))
	if err != nil {
		printlnFn("Upload failed:", err.Error())
		return err
	}
	printlnFn("Avatar updated:", url)
	return nil
}

// Recover starts the password-recovery flow for an email address.
func (a *App) Recover(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	if err := a.gw.ResetPassword(ctx, email, routes.Auth); err != nil {
		printlnFn("Could not start password recovery:", err.Error())
		return err
	}
	printlnFn("Check your email for the recovery link")
	return nil
}
