// Package store provides the durable key/value storage backing the session
// subsystem: the browser-origin storage of the original client, rendered as a
// small string map persisted across process restarts.
//
// Clear is scoped to the session keys this subsystem registers. The original
// client wiped the whole origin store on logout, taking unrelated cached data
// with it; that coupling is not preserved here.
package store

// Session storage keys. The names are part of the persisted-state layout
// shared with the marketplace web client.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

// KeyRedirectTarget holds the one-shot post-login destination. It lives in a
// session-scoped store, never in the durable one.
const KeyRedirectTarget = "authRedirectUrl"

// SessionKeys are the keys Clear removes.
var SessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

// Store is a durable string map scoped to this client installation. It does
// no validation and tracks no expiry.
//
// Epoch increments on every Clear. Writers that were in flight when the
// session was torn down compare epochs and drop their writes, so a renewal
// that completes after logout cannot resurrect credentials.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
	Clear() error
	Epoch() uint64
}

// SetIfEpoch writes value only if the store's epoch still matches epoch.
// Returns true if the write happened.
func SetIfEpoch(s Store, epoch uint64, key, value string) (bool, error) {
	if s.Epoch() != epoch {
		return false, nil
	}
	if err := s.Set(key, value); err != nil {
		return false, err
	}
	return true, nil
}
