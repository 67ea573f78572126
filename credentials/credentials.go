// Package credentials resolves the login pair for a target from its own
// credentials and the fleet-wide default.
package credentials

import "github.com/nanoncore/nano-onulocator/types"

// Resolve picks each field independently: the target's value when set,
// otherwise the default. ok is false when either field is still empty.
func Resolve(target types.Target, fallback types.Credential) (types.Credential, bool) {
	cred := types.Credential{
		Username: target.Username,
		Password: target.Password,
	}
	if cred.Username == "" {
		cred.Username = fallback.Username
	}
	if cred.Password == "" {
		cred.Password = fallback.Password
	}
	return cred, cred.Complete()
}
