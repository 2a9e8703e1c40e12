// Package unifiedllm is the model client used by the agent. It wraps the gollm
// library (github.com/teilomillet/gollm) behind a provider-agnostic Client.
//
// # Architecture
//
//   - ProviderAdapter: the contract each backend implements (GollmAdapter is
//     the production one).
//   - Client: provider routing plus a middleware chain around Complete.
//   - RetryPolicy / RetryMiddleware: exponential backoff for retryable errors.
//   - Error taxonomy: typed provider errors classified by IsRetryable.
//
// # Quick Start
//
//	adapter, _ := unifiedllm.NewGollmAdapter("openai", unifiedllm.WithAPIKey(key))
//	client := unifiedllm.NewClient(
//	    unifiedllm.WithProvider("openai", adapter),
//	    unifiedllm.WithMiddleware(unifiedllm.RetryMiddleware(unifiedllm.DefaultRetryPolicy())),
//	)
//
//	resp, _ := client.Ask(ctx,
//	    []unifiedllm.Message{unifiedllm.UserMessage("Hello")},
//	    []unifiedllm.Message{unifiedllm.SystemMessage("Be brief.")},
//	)
//	fmt.Println(resp.Text())
//
// # Tool Calling
//
// AskTool declares tool schemas to the model. Tool calls come back on the
// assistant message:
//
//	resp, _ := client.AskTool(ctx, history, system, defs, &unifiedllm.ToolChoiceAuto)
//	for _, call := range resp.ToolCalls() {
//	    fmt.Println(call.Name, string(call.Arguments))
//	}
package unifiedllm
