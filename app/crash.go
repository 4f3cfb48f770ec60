package app

import (
	"fmt"
	"os"
	"runtime/debug"
	"sync"

	"github.com/gdamore/tcell/v2"
)

var (
	crashMu     sync.Mutex
	crashScreen tcell.Screen
	exit        = os.Exit
)

// registerCrashScreen makes HandleCrash restore s before printing
func registerCrashScreen(s tcell.Screen) {
	crashMu.Lock()
	crashScreen = s
	crashMu.Unlock()
}

// HandleCrash is the unified panic handler that resets the terminal and prints the stack trace
func HandleCrash(r any) {
	if r == nil {
		return
	}

	crashMu.Lock()
	s := crashScreen
	crashScreen = nil
	crashMu.Unlock()
	if s != nil {
		s.Fini()
	}

	fmt.Fprintf(os.Stderr, "\n\x1b[31mWORLD-MOOD CRASHED: %v\x1b[0m\n", r)
	fmt.Fprintf(os.Stderr, "Stack Trace:\n%s\n", debug.Stack())

	exit(1)
}

// recoverCrash must be deferred directly by the goroutine it protects
func recoverCrash() {
	if r := recover(); r != nil {
		HandleCrash(r)
	}
}

// Go starts fn on its own goroutine; a panic restores the terminal before exiting
func Go(fn func()) {
	go func() {
		defer recoverCrash()
		fn()
	}()
}
