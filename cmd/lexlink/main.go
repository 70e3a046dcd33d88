// Command lexlink is a terminal client for the LexLink marketplace. It drives
// the session subsystem end to end: restoring a stored session at startup,
// logging in and out, and fetching case data through the authenticated
// channel.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lexlink/client-go/apiclient"
	"github.com/lexlink/client-go/identity"
	"github.com/lexlink/client-go/internal/config"
	"github.com/lexlink/client-go/session"
	"github.com/lexlink/client-go/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("lexlink failed")
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()
	c := config.New()
	configureLogging(c)
	displayAppname(c.GetAppName())

	sessionStore, err := store.NewFileStore(c.GetStoragePath())
	if err != nil {
		return fmt.Errorf("store.NewFileStore: %w", err)
	}

	api := apiclient.New(c.GetAPIBaseURL(), sessionStore)
	ctl, err := session.NewController(api, sessionStore, loggingNavigator())
	if err != nil {
		return fmt.Errorf("session.NewController: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ctl.Initialize(ctx); err != nil {
		log.Warn().Err(err).Msg("session initialization")
	}

	command := "status"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "status":
		printStatus(ctl)
	case "login":
		return login(ctx, api, ctl)
	case "logout":
		ctl.Logout(ctx)
		fmt.Println("Logged out.")
	case "whoami":
		return whoami(ctx, api, ctl)
	case "cases":
		return cases(ctx, api, ctl)
	default:
		return fmt.Errorf("unknown command %q (want status, login, logout, whoami, or cases)", command)
	}
	return nil
}

func login(ctx context.Context, api *apiclient.Client, ctl *session.Controller) error {
	if len(os.Args) < 4 {
		return errors.New("usage: lexlink login <email> <password>")
	}
	creds, user, err := api.Login(ctx, apiclient.LoginRequest{Email: os.Args[2], Password: os.Args[3]})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := ctl.Login(creds, user); err != nil {
		return fmt.Errorf("installing session: %w", err)
	}
	fmt.Printf("Welcome back, %s %s (%s)\n", user.FirstName, user.LastName, user.PrimaryRole())
	return nil
}

func whoami(ctx context.Context, api *apiclient.Client, ctl *session.Controller) error {
	if !ctl.Snapshot().Authenticated() {
		fmt.Println("Not logged in.")
		return nil
	}
	user, err := api.Me(ctx)
	if err != nil {
		return fmt.Errorf("me: %w", err)
	}
	fmt.Printf("%s %s <%s> roles=%v\n", user.FirstName, user.LastName, user.Email, user.Roles)
	return nil
}

func cases(ctx context.Context, api *apiclient.Client, ctl *session.Controller) error {
	snap := ctl.Snapshot()
	if !snap.Authenticated() {
		fmt.Println("Not logged in.")
		return nil
	}

	var (
		list []apiclient.Case
		err  error
	)
	if snap.Identity.HasRole(identity.RoleLawyer) {
		list, err = api.AssignedCases(ctx)
	} else {
		list, err = api.Cases(ctx, snap.Identity.ID)
	}
	if err != nil {
		return fmt.Errorf("fetching cases: %w", err)
	}

	if len(list) == 0 {
		fmt.Println("No cases.")
		return nil
	}
	for _, c := range list {
		fmt.Printf("%-12s %-10s %s\n", c.ID, c.Status, c.Title)
	}
	return nil
}

func printStatus(ctl *session.Controller) {
	snap := ctl.Snapshot()
	if !snap.Authenticated() {
		fmt.Println("Not logged in.")
		return
	}
	fmt.Printf("Logged in as %s (%s)\n", snap.Identity.Email, snap.Identity.PrimaryRole())
}

// loggingNavigator stands in for a browser router: navigations the session
// subsystem requests are reported rather than performed.
func loggingNavigator() session.Navigator {
	return session.NavigatorFunc(func(to string, replace bool) {
		log.Info().Str("to", to).Bool("replace", replace).Msg("navigate")
	})
}

func configureLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
