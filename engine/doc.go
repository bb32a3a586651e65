// Package engine executes pipelines.
//
// Steps run strictly in order. Within a step the tasks run one at a time,
// or through a bulkhead when MaxParallel is above one. A source writes its
// dataset to the dataset store and records the file name in the pipeline's
// variable bag under native_file_name; transforms read their predecessors'
// datasets under that name and write their own under it; sinks only read.
//
// Basic usage:
//
//	eng := engine.New(dataset.New(backend), engine.WithLogger(log))
//	res, err := eng.Run(ctx, pipeline)
//	if err != nil {
//	    log.Error("run failed", logger.Fields("task", res.Failed.Task))
//	}
package engine
