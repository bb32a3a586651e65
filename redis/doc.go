// Package redis wraps go-redis with structured logging, configuration
// defaults, a lifecycle component and TypedStore, a JSON document store
// keyed under a prefix:
//
//	store := redis.NewTypedStore[graphstore.TaskRecord](client, "runemaster:task")
//	_ = store.Save(ctx, rec.Key, &rec, 0)
//	rec, err := store.Load(ctx, key) // nil, nil when missing
package redis
