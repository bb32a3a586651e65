// Package graphstore persists pipelines as a graph: "task" vertices, "next"
// edges stamped with their pipeline, and one record per pipeline holding
// its variable bag and the ordered task list.
//
// Store implements the mapping once over any Backend. Backends provide
// keyed collections; NewMemoryBackend is built in, gormstore and
// redisstore live in sub-packages.
//
//	store := graphstore.New(gormstore.New(db), graphstore.WithLogger(log))
//	if err := store.Save(ctx, pipeline); err != nil { ... }
//	p, err := store.Load(ctx, "p1") // UNKNOWN_PIPELINE (NOT_FOUND) on miss
package graphstore
