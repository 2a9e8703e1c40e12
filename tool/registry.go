package tool

import (
	"time"

	"github.com/martinemde/manus/agentloop"
)

// Options configures the default tool set.
type Options struct {
	ShellTimeout  time.Duration
	PythonTimeout time.Duration
	PythonBinary  string
	Browser       BrowserOptions
}

// NewDefaultRegistry builds the standard tool registry over ws. The browser
// is returned as well so the agent can use it as its browser context.
func NewDefaultRegistry(ws *Workspace, opts Options) (*agentloop.ToolRegistry, *Browser, error) {
	browser := NewBrowser(opts.Browser)
	registry, err := agentloop.NewToolRegistry(
		NewPython(ws, opts.PythonBinary, opts.PythonTimeout),
		NewBash(ws, opts.ShellTimeout),
		browser,
		NewEditor(ws),
		Terminate{},
	)
	if err != nil {
		return nil, nil, err
	}
	return registry, browser, nil
}
