package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/sejonglabs/sejong/internal/common"
	"github.com/sejonglabs/sejong/internal/session"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts for an email and password and signs in. The password buffer
// is wiped before returning. Service errors are reported to the user and
// returned unchanged.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.SignIn(ctx, email, string(password)); err != nil {
		fmt.Println("Login failed:", err)
		return err
	}

	fmt.Println("Signed in as", email)
	return nil
}

// LoginFederated prompts for a provider name and a provider-issued grant and
// performs a federated sign-in.
func (a *App) LoginFederated(ctx context.Context) error {
	provider, err := getSimpleText(a.reader, "Enter provider (google, apple, kakao)", os.Stdout)
	if err != nil {
		return err
	}
	grant, err := getSimpleText(a.reader, "Enter provider token", os.Stdout)
	if err != nil {
		return err
	}

	if err := a.auth.SignInFederated(ctx, provider, grant); err != nil {
		fmt.Println("Login failed:", err)
		return err
	}

	fmt.Println("Signed in via", provider)
	return nil
}

// Register prompts for account details and creates a new backend account.
// It does not sign the new account in.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	displayName, err := getSimpleText(a.reader, "Enter display name", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.Register(ctx, email, string(password), displayName); err != nil {
		fmt.Println("Registration failed:", err)
		return err
	}

	fmt.Println("Success! You can now log in.")
	return nil
}

// Logout signs out. Local state is always cleared, even when the backend
// cannot be reached.
func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.SignOut(ctx); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	return nil
}

// Guest switches the session into guest mode without touching stored accounts.
func (a *App) Guest(ctx context.Context) error {
	a.auth.EnterGuestMode()
	fmt.Println("Browsing as guest.")
	return nil
}

// WhoAmI prints the current session phase and, when signed in, the active
// account.
func (a *App) WhoAmI(ctx context.Context) error {
	state := a.session.Current()
	switch state.Phase {
	case session.PhaseSignedIn:
		fmt.Println("Signed in, user id:", state.UserID)
	case session.PhaseGuest:
		fmt.Println("Guest mode.")
	default:
		fmt.Println("Not signed in.")
	}
	return nil
}

// ListAccounts prints every stored account, marking the active one.
func (a *App) ListAccounts(ctx context.Context) error {
	accs, err := a.auth.Accounts(ctx)
	if err != nil {
		return err
	}
	if len(accs) == 0 {
		fmt.Println("No stored accounts.")
		return nil
	}
	for _, acc := range accs {
		marker := " "
		if acc.IsActive {
			marker = "*"
		}
		name := acc.DisplayName
		if name == "" {
			name = "-"
		}
		fmt.Printf("%s %s (%s)\n", marker, acc.Email, name)
	}
	return nil
}

// Switch makes another stored account current. The email comes from the
// command argument or an interactive prompt.
func (a *App) Switch(ctx context.Context, args []string) error {
	email, err := a.emailArg(args, "Enter email of the account to switch to")
	if err != nil {
		return err
	}
	if err := a.auth.SwitchAccount(ctx, email); err != nil {
		fmt.Println("Switch failed:", err)
		return err
	}
	fmt.Println("Switched to", email)
	return nil
}

// Remove deletes a stored account from the local store.
func (a *App) Remove(ctx context.Context, args []string) error {
	email, err := a.emailArg(args, "Enter email of the account to remove")
	if err != nil {
		return err
	}
	if err := a.auth.RemoveAccount(ctx, email); err != nil {
		fmt.Println("Remove failed:", err)
		return err
	}
	fmt.Println("Removed", email)
	return nil
}

// Refresh forces one token refresh cycle for the active account.
func (a *App) Refresh(ctx context.Context) error {
	if _, err := a.auth.RefreshCurrentToken(ctx); err != nil {
		fmt.Println("Refresh failed:", err)
		return err
	}
	fmt.Println("Token refreshed.")
	return nil
}

func (a *App) emailArg(args []string, prompt string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return getSimpleText(a.reader, prompt, os.Stdout)
}
