package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sejonglabs/sejong/internal/session"
)

func (a *App) getStatus() string {
	switch state := a.session.Current(); state.Phase {
	case session.PhaseSignedIn:
		return "(signed in)"
	case session.PhaseGuest:
		return "(guest)"
	case session.PhaseLoading:
		return "(loading)"
	default:
		return ""
	}
}

// Root runs the interactive loop. It reads a line, parses the first token as
// the command, and dispatches to methods on a. Command errors are reported
// by the handlers themselves; the loop keeps going until EOF or "exit".
func (a *App) Root(ctx context.Context) {

	fmt.Println("Welcome to Sejong CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Printf("sejong %s> ", a.getStatus())
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isSignedIn() {
				fmt.Println("Available commands: whoami, accounts, switch <email>, remove <email>, refresh, logout, exit")
			} else {
				fmt.Println("Available commands: login, social, register, guest, accounts, switch <email>, exit")
			}

		case "login":
			_ = a.Login(ctx)
		case "social":
			_ = a.LoginFederated(ctx)
		case "register":
			_ = a.Register(ctx)
		case "logout":
			_ = a.Logout(ctx)
		case "guest":
			_ = a.Guest(ctx)
		case "whoami":
			_ = a.WhoAmI(ctx)
		case "accounts":
			_ = a.ListAccounts(ctx)
		case "switch":
			_ = a.Switch(ctx, args)
		case "remove":
			_ = a.Remove(ctx, args)
		case "refresh":
			_ = a.Refresh(ctx)
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		default:
			fmt.Println("Unknown command:", cmd)
		}
	}
}
