// Package agentloop implements an autonomous tool-calling agent.
//
// An Agent repeatedly asks a language model for the next action, dispatches
// the tool calls it returns, and feeds each observation back into the
// conversation until a terminal tool runs or the step budget is spent.
//
// # Architecture
//
//   - Memory: the append-only conversation log and its bounded view.
//   - ToolRegistry: ordered, name-keyed tools with schema-checked dispatch.
//   - ContextAdapter: picks the next-step prompt, switching to a
//     browser-context variant when the browser tool was used recently.
//   - RunState: the explicit per-run state threaded through each step.
//   - Summarizer: one closing model query grounded in recent tool results.
//   - Lifecycle: releases tool-held resources exactly once per run.
//   - EventEmitter: typed run events for host applications.
//
// # Quick Start
//
//	registry, err := agentloop.NewToolRegistry(bashTool, terminateTool)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	agent, err := agentloop.NewAgent(client, registry,
//	    agentloop.WithLogger(logger),
//	    agentloop.WithSystemPrompt(agentloop.DefaultSystemPrompt("/tmp/work")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer agent.Close()
//
//	out, err := agent.Run(ctx, "Count the Go files in this directory")
//	fmt.Println(out)
package agentloop
