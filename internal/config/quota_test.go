package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultQuotaConfig(t *testing.T) {
	cfg := DefaultQuotaConfig()
	assert.Equal(t, 10, cfg.FreeMonthlyLimit)
	assert.Equal(t, 100, cfg.BasicMonthlyLimit)
	require.NoError(t, validateQuotaConfig(cfg))
}

func TestValidateQuotaConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     QuotaConfig
		wantErr bool
	}{
		{name: "valid", cfg: QuotaConfig{FreeMonthlyLimit: 5, BasicMonthlyLimit: 50}},
		{name: "zero free limit", cfg: QuotaConfig{FreeMonthlyLimit: 0, BasicMonthlyLimit: 50}, wantErr: true},
		{name: "negative basic limit", cfg: QuotaConfig{FreeMonthlyLimit: 5, BasicMonthlyLimit: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateQuotaConfig(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStaticQuotaHolder(t *testing.T) {
	holder := NewStaticQuotaHolder(QuotaConfig{FreeMonthlyLimit: 3, BasicMonthlyLimit: 30})
	require.NotNil(t, holder)
	assert.Equal(t, 3, holder.Get().FreeMonthlyLimit)
	assert.Equal(t, 30, holder.Get().BasicMonthlyLimit)
}
