package credentials

import (
	"testing"

	"github.com/nanoncore/nano-onulocator/types"
)

func TestResolve(t *testing.T) {
	fallback := types.Credential{Username: "default", Password: "defpass"}

	tests := []struct {
		name     string
		target   types.Target
		fallback types.Credential
		want     types.Credential
		wantOK   bool
	}{
		{"device_creds", types.Target{Username: "dev", Password: "devpass"}, fallback, types.Credential{Username: "dev", Password: "devpass"}, true},
		{"no_device_creds", types.Target{}, fallback, fallback, true},
		{"username_only", types.Target{Username: "dev"}, fallback, types.Credential{Username: "dev", Password: "defpass"}, true},
		{"password_only", types.Target{Password: "devpass"}, fallback, types.Credential{Username: "default", Password: "devpass"}, true},
		{"nothing", types.Target{}, types.Credential{}, types.Credential{}, false},
		{"default_missing_password", types.Target{Username: "dev"}, types.Credential{Username: "default"}, types.Credential{Username: "dev"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.target, tt.fallback)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Resolve() = %+v, %v; want %+v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
