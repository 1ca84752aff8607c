// Package resilience groups the fault tolerance helpers used around external
// calls: circuit breakers for the embedding service and the article database,
// and retry with exponential backoff and jitter.
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.EmbeddingAPIConfig())
//	err := retry.WithBackoff(ctx, retry.EmbeddingAPIConfig(), func() error {
//	    _, err := cb.Execute(func() (interface{}, error) {
//	        return client.Embed(ctx, text)
//	    })
//	    return err
//	})
package resilience
