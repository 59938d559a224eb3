package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool

	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Check(ctx context.Context) error
	Profile(ctx context.Context, args []string) error
	DeleteAccount(ctx context.Context) error
	SendCode(ctx context.Context, args []string) error
	VerifyCode(ctx context.Context, args []string) error
	ResetPassword(ctx context.Context, args []string) error

	Goto(ctx context.Context, args []string) error
	BMI(ctx context.Context, args []string) error
	Activity(ctx context.Context, args []string) error
	Goal(ctx context.Context, args []string) error
	Calories(ctx context.Context) error
	Save(ctx context.Context) error
	Records(ctx context.Context, args []string) error
	Metrics(ctx context.Context) error
}

const (
	helpLoggedOut = "Available commands: register, login, send-code, verify-code, reset-password, goto, bmi, metrics, exit"
	helpLoggedIn  = "Available commands: whoami, check, profile, delete-account, goto, bmi, activity, goal, calories, save, records, metrics, logout, exit"
)

// runREPL starts a simple read-eval-print loop for the NextShape CLI.
//
// It reads a line from in, parses the first token as the
// command, and dispatches to methods on 'a' with the remaining tokens as
// arguments. Unknown commands are reported back to the user. The loop exits
// on EOF or when the user types "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Account:
//	  - register, login, logout, whoami, check
//	  - profile <field> <value>
//	  - delete-account
//	  - send-code <email> <registration|reset-password>
//	  - verify-code <email> <code>
//	  - reset-password <email>
//
//	Metrics:
//	  - goto <path> (enter a surface)
//	  - bmi <weight_kg> <height_cm>
//	  - activity <level>, goal <goal>, calories
//	  - save (store today's record)
//	  - records [refresh | update <id> <field> <value> | delete <id>]
//	  - metrics (client request counters)
//
// Errors returned by command handlers are printed; they carry the message
// meant for the user. Commands that prompt read from the same reader, so in
// must not be wrapped in another buffering reader.
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("ns %s > ", statusFn()))
		line, readErr := in.ReadString('\n')
		if readErr != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpLoggedIn)
			} else {
				printlnFn(helpLoggedOut)
			}

		case "register":
			err = a.Register(ctx)
		case "login":
			err = a.Login(ctx)
		case "logout":
			err = a.Logout(ctx)
		case "whoami":
			err = a.WhoAmI(ctx)
		case "check":
			err = a.Check(ctx)
		case "profile":
			err = a.Profile(ctx, args)
		case "delete-account":
			err = a.DeleteAccount(ctx)
		case "send-code":
			err = a.SendCode(ctx, args)
		case "verify-code":
			err = a.VerifyCode(ctx, args)
		case "reset-password":
			err = a.ResetPassword(ctx, args)

		case "goto":
			err = a.Goto(ctx, args)
		case "bmi":
			err = a.BMI(ctx, args)
		case "activity":
			err = a.Activity(ctx, args)
		case "goal":
			err = a.Goal(ctx, args)
		case "calories":
			err = a.Calories(ctx)
		case "save":
			err = a.Save(ctx)
		case "records":
			err = a.Records(ctx, args)
		case "metrics":
			err = a.Metrics(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}

// usageError is returned for malformed command arguments.
type usageError string

func (u usageError) Error() string { return "usage: " + string(u) }
