package app

import (
	"context"
	"errors"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/world-mood/mood"
)

func (a *App) handleEvent(ctx context.Context, ev tcell.Event) error {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if a.editing {
			a.handleEditKey(ctx, ev)
			return nil
		}
		return a.handleKey(ctx, ev)

	case *tcell.EventMouse:
		a.handleMouse(ev)

	case *tcell.EventResize:
		a.screen.Sync()
	}
	return nil
}

func (a *App) handleKey(ctx context.Context, ev *tcell.EventKey) error {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return errQuit
	case tcell.KeyLeft:
		a.rotate(-rotateStep, 0)
	case tcell.KeyRight:
		a.rotate(rotateStep, 0)
	case tcell.KeyUp:
		a.rotate(0, -rotateStep)
	case tcell.KeyDown:
		a.rotate(0, rotateStep)
	case tcell.KeyRune:
		return a.handleRune(ctx, ev.Rune())
	}
	return nil
}

func (a *App) handleRune(ctx context.Context, r rune) error {
	kinds := mood.Kinds()
	switch {
	case r >= '1' && int(r-'1') < len(kinds):
		a.selectMood(ctx, kinds[r-'1'])
	case r == '[':
		a.stepWindow(ctx, 1)
	case r == ']':
		a.stepWindow(ctx, -1)
	case r == 'l':
		if err := a.windows.Live(ctx); err != nil {
			a.lg.Warn("time window change failed", "error", err)
		}
	case r == 'p':
		a.clock.Toggle()
	case r == 's':
		if a.sound != nil {
			a.sound.SetMuted(!a.sound.Muted())
		}
	case r == 'm':
		a.editing = true
		a.input = a.input[:0]
	case r == 'q':
		return errQuit
	}
	return nil
}

func (a *App) handleEditKey(ctx context.Context, ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape:
		a.editing = false
		a.input = a.input[:0]
	case tcell.KeyEnter:
		text := string(a.input)
		a.editing = false
		a.input = a.input[:0]
		if err := a.messenger.Post(ctx, text); err != nil {
			if !errors.Is(err, mood.ErrEmptyMessage) {
				a.lg.Warn("message rejected", "error", err)
			}
			return
		}
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if n := len(a.input); n > 0 {
			a.input = a.input[:n-1]
		}
	case tcell.KeyRune:
		if len(a.input) < maxInput {
			a.input = append(a.input, ev.Rune())
		}
	}
}

// handleMouse rotates the globe while the primary button is held
func (a *App) handleMouse(ev *tcell.EventMouse) {
	x, y := ev.Position()
	if ev.Buttons()&tcell.Button1 == 0 {
		a.dragging = false
		return
	}
	if !a.dragging {
		a.dragging = true
		a.dragX, a.dragY = x, y
		return
	}
	a.rotate(float64(x-a.dragX)*dragSpeedX, float64(y-a.dragY)*dragSpeedY)
	a.dragX, a.dragY = x, y
}
