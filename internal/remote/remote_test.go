package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredential_Method(t *testing.T) {
	tests := []struct {
		name  string
		cred  Credential
		want  string
		empty bool
	}{
		{"none", Credential{}, "none", true},
		{"password", Credential{Password: "p"}, "password", false},
		{"key", Credential{KeyPath: "/k"}, "publickey", false},
		{"key wins", Credential{KeyPath: "/k", Password: "p"}, "publickey", false},
		{"passphrase alone", Credential{Passphrase: "pp"}, "none", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cred.Method())
			assert.Equal(t, tt.empty, tt.cred.Empty())
		})
	}
}

func TestEndpoint_WithDefaults(t *testing.T) {
	ep := Endpoint{Host: "h"}
	assert.Equal(t, DefaultPort, ep.WithDefaults().Port)
	assert.Equal(t, 0, ep.Port, "receiver is not modified")

	ep.Port = 2222
	assert.Equal(t, 2222, ep.WithDefaults().Port)
}
