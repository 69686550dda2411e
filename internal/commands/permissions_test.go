package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Test npubs (generated for testing, not real keys)
const (
	adminNpub    = "npub1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqshp52w2"
	customerNpub = "npub1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqpqdangsl"
)

func TestIsAdmin(t *testing.T) {
	admins := []string{adminNpub}

	tests := []struct {
		name       string
		npub       string
		admins     []string
		wantResult bool
	}{
		{
			name:       "admin npub returns true",
			npub:       adminNpub,
			admins:     admins,
			wantResult: true,
		},
		{
			name:       "non-admin npub returns false",
			npub:       customerNpub,
			admins:     admins,
			wantResult: false,
		},
		{
			name:       "empty admin list returns false",
			npub:       adminNpub,
			admins:     []string{},
			wantResult: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantResult, IsAdmin(tt.npub, tt.admins))
		})
	}
}

func TestCanExecute(t *testing.T) {
	admins := []string{adminNpub}

	tests := []struct {
		name    string
		cmd     *Command
		npub    string
		wantErr error
	}{
		{
			name: "admin can execute customer command",
			cmd:  &Command{Name: CmdStatus},
			npub: adminNpub,
		},
		{
			name: "admin can execute admin command",
			cmd:  &Command{Name: CmdFulfill},
			npub: adminNpub,
		},
		{
			name: "customer can execute customer command",
			cmd:  &Command{Name: CmdPay},
			npub: customerNpub,
		},
		{
			name:    "customer cannot fulfill",
			cmd:     &Command{Name: CmdFulfill},
			npub:    customerNpub,
			wantErr: ErrAdminRequired,
		},
		{
			name:    "customer cannot list orders",
			cmd:     &Command{Name: CmdOrders},
			npub:    customerNpub,
			wantErr: ErrAdminRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanExecute(tt.cmd, tt.npub, admins)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
