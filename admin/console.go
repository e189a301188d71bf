package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"
)

const consoleHelp = `Commands:
  list            show the directory
  refresh         fetch the list again
  new             create a user
  edit <id>       edit a user
  delete <id>     delete a user
  help            show this help
  quit            leave the console`

type consoleConfig struct {
	logger *slog.Logger
}

// ConsoleOption configures a Console.
type ConsoleOption func(*consoleConfig)

// WithConsoleLogger sets the logger handed to the directory.
func WithConsoleLogger(l *slog.Logger) ConsoleOption {
	return func(c *consoleConfig) { c.logger = l }
}

// Console is a terminal rendering of the directory. Create and edit run
// through a PromptDialog sharing the console's input.
type Console struct {
	dir *Directory
	in  *bufio.Reader
	out io.Writer
}

// NewConsole builds a Console over svc, reading commands from in.
func NewConsole(svc UserService, in io.Reader, out io.Writer, opts ...ConsoleOption) *Console {
	br := bufio.NewReader(in)
	c := &Console{in: br, out: out}
	cfg := consoleConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	c.dir = NewDirectory(svc, NewPromptDialog(br, out), cfg.logger)
	return c
}

// Directory returns the directory the console renders.
func (c *Console) Directory() *Directory { return c.dir }

// Run activates the directory and processes commands until quit or end of input.
func (c *Console) Run(ctx context.Context) error {
	if err := c.dir.Activate(ctx); err != nil {
		fmt.Fprintf(c.out, "could not load users: %v\n", err)
	}
	c.printList()

	for {
		fmt.Fprint(c.out, "> ")
		line, err := readLine(c.in)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(c.out)
			return nil
		}
		if err != nil {
			return err
		}
		quit, err := c.exec(ctx, line)
		if err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Console) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	switch fields[0] {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(c.out, consoleHelp)
	case "list", "ls":
		c.printList()
	case "refresh":
		if err := c.dir.Activate(ctx); err != nil {
			return false, err
		}
		c.printList()
	case "new":
		if err := c.dir.OpenCreateDialog(ctx); err != nil {
			return false, err
		}
		c.printList()
	case "edit":
		id, err := argID(fields)
		if err != nil {
			return false, err
		}
		u, ok := c.dir.Lookup(id)
		if !ok {
			return false, fmt.Errorf("no user #%d in the list", id)
		}
		if err := c.dir.OpenEditDialog(ctx, u); err != nil {
			return false, err
		}
		c.printList()
	case "delete", "rm":
		id, err := argID(fields)
		if err != nil {
			return false, err
		}
		if err := c.dir.DeleteUser(ctx, id); err != nil {
			return false, err
		}
		c.printList()
	default:
		return false, fmt.Errorf("unknown command %q (try help)", fields[0])
	}
	return false, nil
}

func argID(fields []string) (int64, error) {
	if len(fields) != 2 {
		return 0, fmt.Errorf("usage: %s <id>", fields[0])
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", fields[1])
	}
	return id, nil
}

func (c *Console) printList() {
	users := c.dir.Users()
	if len(users) == 0 {
		fmt.Fprintln(c.out, "No users.")
		return
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", u.ID, u.Name, u.Email)
	}
	_ = tw.Flush()
}
