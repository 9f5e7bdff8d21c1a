package config

import "testing"

func TestLoad_RequiredVariables(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{
			name: "minimal valid configuration",
			env: map[string]string{
				"DATABASE_URL": "postgres://localhost/propeld",
				"RABBITMQ_URL": "amqp://localhost:5672/",
			},
			wantErr: false,
		},
		{
			name:    "missing DATABASE_URL",
			env:     map[string]string{"RABBITMQ_URL": "amqp://localhost:5672/"},
			wantErr: true,
		},
		{
			name:    "missing RABBITMQ_URL",
			env:     map[string]string{"DATABASE_URL": "postgres://localhost/propeld"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			t.Setenv("RABBITMQ_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.ServerPort != "8080" {
				t.Errorf("Expected default port 8080, got %s", cfg.ServerPort)
			}
			if !cfg.RiskScanEnabled {
				t.Error("Expected risk scans enabled by default")
			}
		})
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/propeld")
	t.Setenv("RABBITMQ_URL", "amqp://localhost:5672/")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("RABBITMQ_PREFETCH", "10")
	t.Setenv("RISK_SCAN_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.ServerPort)
	}
	if cfg.RabbitMQPrefetch != 10 {
		t.Errorf("Expected prefetch 10, got %d", cfg.RabbitMQPrefetch)
	}
	if cfg.RiskScanEnabled {
		t.Error("Expected risk scans disabled")
	}
}
