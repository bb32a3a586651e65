// Package resilience provides retry with exponential backoff and a
// bulkhead that bounds concurrency.
//
//	data, err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() ([]byte, error) {
//	    return fetch(ctx, url)
//	})
//
//	bh := resilience.NewBulkhead("step", 4)
//	errs := bh.Go(ctx, jobs...)
package resilience
