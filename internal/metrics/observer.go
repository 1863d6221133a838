package metrics

// CacheObserver records table cache activity.
type CacheObserver interface {
	CacheHit(table string)
	CacheMiss(table string)
	CacheError(op string)
	Invalidated(table, source string)
}

// SessionObserver records how each verification was resolved.
type SessionObserver interface {
	SessionResolved(outcome string)
}

// DispatchObserver records per-RPC outcomes.
type DispatchObserver interface {
	RPCCompleted(rpc, outcome string, seconds float64)
}

type Observer interface {
	CacheObserver
	SessionObserver
	DispatchObserver
}

type nopObserver struct{}

// Nop discards every observation.
func Nop() Observer { return nopObserver{} }

func (nopObserver) CacheHit(string)                      {}
func (nopObserver) CacheMiss(string)                     {}
func (nopObserver) CacheError(string)                    {}
func (nopObserver) Invalidated(string, string)           {}
func (nopObserver) SessionResolved(string)               {}
func (nopObserver) RPCCompleted(string, string, float64) {}
