// Package registry brings up a graph of long-lived services in dependency
// order and tears it down in reverse.
//
//	r := registry.New()
//	r.Register("store", store)
//	r.Register("ledger", ledger, "store")
//	if err := r.InitializeAll(ctx); err != nil {
//	    return err // ready services were already destroyed
//	}
//	defer r.DestroyAll(ctx)
//
//	l, err := registry.Get[*ledger.Ledger](r, "ledger")
package registry
