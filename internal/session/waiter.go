package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// ErrLoginCancelled is returned when the user aborts a manual login.
var ErrLoginCancelled = errors.New("login cancelled")

// A LoginWaiter blocks until the user confirms a finished login.
type LoginWaiter interface {
	WaitForLogin(ctx context.Context, account string) error
}

// LineWaiter prompts on Out and waits for a line on In.
type LineWaiter struct {
	In  io.Reader
	Out io.Writer
}

// NewStdinWaiter waits for Enter on the terminal.
func NewStdinWaiter() *LineWaiter {
	return &LineWaiter{In: os.Stdin, Out: os.Stdout}
}

func (w *LineWaiter) WaitForLogin(ctx context.Context, account string) error {
	fmt.Fprintf(w.Out, "Please complete the login for %q in the opened browser window.\n", account)
	fmt.Fprintln(w.Out, "After a successful login (and 2FA if any) press ENTER to continue.")
	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(w.In).ReadString('\n')
		if errors.Is(err, io.EOF) {
			err = ErrLoginCancelled
		}
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TUIWaiter shows a terminal dialog with a button to confirm the login.
type TUIWaiter struct{}

func (TUIWaiter) WaitForLogin(ctx context.Context, account string) error {
	app := tview.NewApplication()
	result := ErrLoginCancelled
	modal := tview.NewModal().
		SetText(fmt.Sprintf("Log in to %q in the browser window, then confirm here.", account)).
		AddButtons([]string{"Logged in", "Cancel"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			if buttonIndex == 0 {
				result = nil
			}
			app.Stop()
		})
	modal.SetBackgroundColor(tcell.ColorDarkBlue)
	stop := context.AfterFunc(ctx, app.Stop)
	defer stop()
	if err := app.SetRoot(modal, false).Run(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return result
}
