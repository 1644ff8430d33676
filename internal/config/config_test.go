package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "uses defaults when nothing is set",
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 9000, c.Port)
				assert.Equal(t, "development", c.Environment)
				assert.Equal(t, "openface", c.ProviderType)
				assert.Equal(t, BackendCSV, c.RegistryBackend)
				assert.Equal(t, BackendFile, c.ModelStore)
				assert.Equal(t, 96, c.ImgDim)
				assert.Equal(t, 128, c.EmbeddingDim)
				assert.Equal(t, "training_images", c.TrainingDir)
				assert.Equal(t, "uselessFaces", c.DiscardDir)
				assert.Equal(t, "User_Details.csv", c.UserTablePath)
				assert.Equal(t, "results.csv", c.FeedbackPath)
				assert.False(t, c.AugmentUnknown)
				assert.False(t, c.TLSEnabled())
			},
		},
		{
			name: "loads overrides",
			envVars: map[string]string{
				"PORT":             "8443",
				"ENV":              "production",
				"REGISTRY_BACKEND": "postgres",
				"DATABASE_URL":     "postgres://localhost/test",
				"AUGMENT_UNKNOWN":  "true",
				"TLS_CERT_FILE":    "cert.pem",
				"TLS_KEY_FILE":     "key.pem",
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 8443, c.Port)
				assert.True(t, c.IsProduction())
				assert.True(t, c.NeedsDatabase())
				assert.True(t, c.AugmentUnknown)
				assert.True(t, c.TLSEnabled())
			},
		},
		{
			name: "fails when postgres registry has no DATABASE_URL",
			envVars: map[string]string{
				"REGISTRY_BACKEND": "postgres",
			},
			wantErr: true,
		},
		{
			name: "fails when postgres model store has no DATABASE_URL",
			envVars: map[string]string{
				"MODEL_STORE": "postgres",
			},
			wantErr: true,
		},
		{
			name: "fails on unknown registry backend",
			envVars: map[string]string{
				"REGISTRY_BACKEND": "mongo",
			},
			wantErr: true,
		},
		{
			name: "fails when only the TLS cert is set",
			envVars: map[string]string{
				"TLS_CERT_FILE": "cert.pem",
			},
			wantErr: true,
		},
		{
			name: "fails on negative EMBEDDING_DIM",
			envVars: map[string]string{
				"EMBEDDING_DIM": "-1",
			},
			wantErr: true,
		},
		{
			name: "fails on non-positive IMG_DIM",
			envVars: map[string]string{
				"IMG_DIM": "0",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want bool
	}{
		{"development", "development", true},
		{"production", "production", false},
		{"staging", "staging", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Environment: tt.env}
			assert.Equal(t, tt.want, c.IsDevelopment())
		})
	}
}
