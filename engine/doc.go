// Package engine drives the iterative agent loop: send the conversation to a
// model provider, execute any tool calls it requests, feed the results back,
// and repeat until the provider answers without tool calls or the iteration
// cap is reached. It integrates the surrounding governance pieces (memory,
// response cache, token-bucket rate limiting, tenant quotas) behind options.
package engine
