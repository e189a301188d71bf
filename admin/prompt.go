package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Skryldev/useradmin/models"
)

// PromptDialog runs a Form as a line-oriented prompt. In edit mode an empty
// answer keeps the current value. After a failed save the operator may retry
// or give up, which cancels the form; so does end of input.
type PromptDialog struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPromptDialog reads answers from in and writes prompts to out. Pass the
// same *bufio.Reader the caller reads commands from so no input is lost.
func NewPromptDialog(in io.Reader, out io.Writer) *PromptDialog {
	return &PromptDialog{in: bufio.NewReader(in), out: out}
}

// Open implements Dialog.
func (p *PromptDialog) Open(ctx context.Context, form *Form) (*models.User, error) {
	if form.Mode().IsEdit() {
		fmt.Fprintf(p.out, "Edit user #%d\n", form.Draft().ID)
	} else {
		fmt.Fprintln(p.out, "New user")
	}

	for {
		if err := ctx.Err(); err != nil {
			form.Cancel()
			return nil, err
		}

		draft := form.Draft()
		name, err := p.ask("Name", draft.Name)
		if err != nil {
			return p.cancel(form, err)
		}
		form.SetName(name)

		email, err := p.ask("Email", draft.Email)
		if err != nil {
			return p.cancel(form, err)
		}
		form.SetEmail(email)

		saved, err := form.Save(ctx)
		if err == nil {
			fmt.Fprintf(p.out, "Saved %s <%s> (#%d)\n", saved.Name, saved.Email, saved.ID)
			return saved, nil
		}
		fmt.Fprintf(p.out, "Error: %s\n", form.Error())

		retry, err := p.confirm("Try again? [Y/n]")
		if err != nil {
			return p.cancel(form, err)
		}
		if !retry {
			form.Cancel()
			fmt.Fprintln(p.out, "Cancelled")
			return nil, nil
		}
	}
}

func (p *PromptDialog) cancel(form *Form, err error) (*models.User, error) {
	form.Cancel()
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(p.out, "\nCancelled")
		return nil, nil
	}
	return nil, err
}

func (p *PromptDialog) ask(label, current string) (string, error) {
	if current != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, current)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	line, err := readLine(p.in)
	if err != nil {
		return "", err
	}
	if line == "" {
		return current, nil
	}
	return line, nil
}

func (p *PromptDialog) confirm(question string) (bool, error) {
	fmt.Fprintf(p.out, "%s ", question)
	line, err := readLine(p.in)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "", "y", "yes":
		return true, nil
	}
	return false, nil
}

// readLine returns the next line without its terminator. A final line
// without a newline is returned as is; io.EOF only comes back once input is
// exhausted.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
