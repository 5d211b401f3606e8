package provider

import (
	"strings"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		// ── Ollama ────────────────────────────────────────────────────────────
		{
			name: "ollama/valid",
			cfg:  Config{Backend: BackendOllama, BaseURL: "http://localhost:11434", Model: "deepseek-r1"},
		},
		{
			name:    "ollama/missing model",
			cfg:     Config{Backend: BackendOllama, BaseURL: "http://localhost:11434"},
			wantErr: "model name",
		},

		// ── OpenAI ────────────────────────────────────────────────────────────
		{
			name: "openai/valid",
			cfg:  Config{Backend: BackendOpenAI, APIKey: "sk-test", Model: "gpt-4o"},
		},
		{
			name:    "openai/missing api key",
			cfg:     Config{Backend: BackendOpenAI, Model: "gpt-4o"},
			wantErr: "OPENAI_API_KEY",
		},

		// ── Azure ─────────────────────────────────────────────────────────────
		{
			name: "azure/valid",
			cfg: Config{
				Backend:         BackendAzure,
				APIKey:          "key",
				BaseURL:         "https://my.openai.azure.com",
				AzureDeployment: "gpt-4o",
				AzureAPIVersion: "2024-02-01",
			},
		},
		{
			name: "azure/missing api key",
			cfg: Config{
				Backend:         BackendAzure,
				BaseURL:         "https://my.openai.azure.com",
				AzureDeployment: "gpt-4o",
			},
			wantErr: "AZURE_OPENAI_API_KEY",
		},
		{
			name: "azure/missing endpoint",
			cfg: Config{
				Backend:         BackendAzure,
				APIKey:          "key",
				AzureDeployment: "gpt-4o",
			},
			wantErr: "AZURE_OPENAI_ENDPOINT",
		},
		{
			name:    "azure/missing deployment",
			cfg:     Config{Backend: BackendAzure, APIKey: "key", BaseURL: "https://my.openai.azure.com"},
			wantErr: "AZURE_OPENAI_DEPLOYMENT",
		},

		// ── Bedrock ───────────────────────────────────────────────────────────
		{
			name: "bedrock/valid",
			cfg:  Config{Backend: BackendBedrock, Model: "anthropic.claude-3-sonnet", AWSRegion: "us-east-1"},
		},
		{
			name:    "bedrock/missing model",
			cfg:     Config{Backend: BackendBedrock, AWSRegion: "us-east-1"},
			wantErr: "BEDROCK_MODEL_ID",
		},

		// ── Gemini ────────────────────────────────────────────────────────────
		{
			name: "gemini/valid",
			cfg:  Config{Backend: BackendGemini, APIKey: "key", Model: "gemini-1.5-pro"},
		},
		{
			name:    "gemini/missing api key",
			cfg:     Config{Backend: BackendGemini, Model: "gemini-1.5-pro"},
			wantErr: "GOOGLE_API_KEY",
		},

		// ── Unknown ───────────────────────────────────────────────────────────
		{
			name:    "unknown backend",
			cfg:     Config{Backend: Backend("watsonx")},
			wantErr: "unknown backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want substring %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigFromEnv_OllamaDefaults(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "")
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("MODEL_MAX_TOKENS", "")
	t.Setenv("MODEL_TEMPERATURE", "")

	cfg := ConfigFromEnv()
	if cfg.Backend != BackendOllama {
		t.Errorf("Backend = %q, want ollama", cfg.Backend)
	}
	if cfg.Model != "deepseek-r1" {
		t.Errorf("Model = %q, want deepseek-r1", cfg.Model)
	}
	if cfg.BaseURL != "http://localhost:11434" {
		t.Errorf("BaseURL = %q, want http://localhost:11434", cfg.BaseURL)
	}
	if cfg.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want 4096", cfg.MaxTokens)
	}
}

func TestConfigFromEnv_EnvOverrides(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4.1")
	t.Setenv("MODEL_MAX_TOKENS", "2048")

	cfg := ConfigFromEnv()
	if cfg.Backend != BackendOpenAI {
		t.Errorf("Backend = %q, want openai", cfg.Backend)
	}
	if cfg.Model != "gpt-4.1" {
		t.Errorf("Model = %q, want gpt-4.1", cfg.Model)
	}
	if cfg.APIKey != "sk-test" {
		t.Errorf("APIKey = %q, want sk-test", cfg.APIKey)
	}
	if cfg.MaxTokens != 2048 {
		t.Errorf("MaxTokens = %d, want 2048", cfg.MaxTokens)
	}
}
