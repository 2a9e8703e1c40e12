// Package tool provides the built-in tools the agent can call: a persistent
// bash session, a Python runner, a file editor, an HTTP browser, and the
// terminate signal. File and process tools operate inside a Workspace.
package tool
