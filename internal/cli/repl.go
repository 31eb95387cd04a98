package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Social(ctx context.Context) error
	Users(ctx context.Context) error
	Find(ctx context.Context) error
	List(ctx context.Context) error
	Open(ctx context.Context) error
	Send(ctx context.Context) error
	Photo(ctx context.Context) error
	Video(ctx context.Context) error
	Read(ctx context.Context) error
	Profile(ctx context.Context) error
	SetPic(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the OurChat CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Every handler error is printed; no operation fails silently.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("chat %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: users, find, (l)ist, open, send, photo, video, read, profile, setpic, logout, exit")
			} else {
				printlnFn("Available commands: register, login, social, exit")
			}

		case "register":
			err = a.Register(ctx)

		case "login":
			err = a.Login(ctx)

		case "social":
			err = a.Social(ctx)

		case "users":
			err = a.Users(ctx)

		case "find":
			err = a.Find(ctx)

		case "l", "list":
			err = a.List(ctx)

		case "open":
			err = a.Open(ctx)

		case "send":
			err = a.Send(ctx)

		case "photo":
			err = a.Photo(ctx)

		case "video":
			err = a.Video(ctx)

		case "read":
			err = a.Read(ctx)

		case "profile":
			err = a.Profile(ctx)

		case "setpic":
			err = a.SetPic(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}
}
