package recordstore

// Self-heal reasons passed to Hooks.SelfHealSingle.
const (
	ReasonCorrupt     = "corrupt"
	ReasonGenMismatch = "gen_mismatch"
	ReasonDecode      = "value_decode"
)

// Many-entry rejection reasons passed to Hooks.ManyRejected.
const (
	RejectDecode   = "decode_error"
	RejectStale    = "invalid_or_stale"
	RejectSnapshot = "snapshot_error"
)

// Hooks receive high-signal store events. Implementations must be cheap and
// must not block; they run on the read and write paths.
type Hooks interface {
	// A single entry was deleted on read.
	SelfHealSingle(storageKey, reason string)
	// A many-entry was rejected and the read fell back to singles.
	ManyRejected(namespace string, requested int, reason string)
	// Provider returned ok=false on Set.
	ProviderSetRejected(storageKey string, isMany bool)
	// count is the number of keys in the failed snapshot.
	GenSnapshotError(count int, err error)
	GenBumpError(storageKey string, err error)
	// Invalidate could neither bump nor delete.
	InvalidateOutage(key string, bumpErr, delErr error)
	// Many-entries are enabled with a process-local generation store.
	LocalGenWithMany()
}

type NopHooks struct{}

func (NopHooks) SelfHealSingle(string, string)         {}
func (NopHooks) ManyRejected(string, int, string)      {}
func (NopHooks) ProviderSetRejected(string, bool)      {}
func (NopHooks) GenSnapshotError(int, error)           {}
func (NopHooks) GenBumpError(string, error)            {}
func (NopHooks) InvalidateOutage(string, error, error) {}
func (NopHooks) LocalGenWithMany()                     {}
