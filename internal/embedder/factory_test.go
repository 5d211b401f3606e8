package embedder

import (
	"io"
	"log/slog"
	"strings"
	"testing"
)

func clearEmbedderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_API_KEY",
		"EMBEDDING_ENDPOINT", "EMBEDDING_DIMENSIONS", "MODEL_PROVIDER",
		"OPENAI_API_KEY", "AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT",
		"OLLAMA_HOST",
	} {
		t.Setenv(key, "")
	}
}

func TestNewFromEnv_DefaultsToOllama(t *testing.T) {
	clearEmbedderEnv(t)

	emb, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv() error = %v", err)
	}
	oll, ok := emb.(*OllamaEmbedder)
	if !ok {
		t.Fatalf("NewFromEnv() = %T, want *OllamaEmbedder", emb)
	}
	if oll.model != "mxbai-embed-large" {
		t.Errorf("model = %q, want mxbai-embed-large", oll.model)
	}
	if oll.baseURL != "http://localhost:11434" {
		t.Errorf("baseURL = %q, want http://localhost:11434", oll.baseURL)
	}
}

func TestNewFromEnv_InheritsChatProvider(t *testing.T) {
	clearEmbedderEnv(t)
	t.Setenv("MODEL_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	emb, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv() error = %v", err)
	}
	if _, ok := emb.(*OpenAIEmbedder); !ok {
		t.Fatalf("NewFromEnv() = %T, want *OpenAIEmbedder", emb)
	}
}

func TestNewFromEnv_ExplicitProviderWins(t *testing.T) {
	clearEmbedderEnv(t)
	t.Setenv("MODEL_PROVIDER", "openai")
	t.Setenv("EMBEDDING_PROVIDER", "ollama")

	emb, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv() error = %v", err)
	}
	if _, ok := emb.(*OllamaEmbedder); !ok {
		t.Fatalf("NewFromEnv() = %T, want *OllamaEmbedder", emb)
	}
}

func TestNewFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "openai without key",
			env:     map[string]string{"EMBEDDING_PROVIDER": "openai"},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name:    "azure without key",
			env:     map[string]string{"EMBEDDING_PROVIDER": "azure"},
			wantErr: "AZURE_OPENAI_API_KEY",
		},
		{
			name: "azure without endpoint",
			env: map[string]string{
				"EMBEDDING_PROVIDER": "azure",
				"EMBEDDING_API_KEY":  "key",
			},
			wantErr: "AZURE_OPENAI_ENDPOINT",
		},
		{
			name:    "unknown backend",
			env:     map[string]string{"EMBEDDING_PROVIDER": "cohere"},
			wantErr: "unknown backend",
		},
		{
			name:    "bedrock not implemented",
			env:     map[string]string{"EMBEDDING_PROVIDER": "bedrock"},
			wantErr: "not yet implemented",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEmbedderEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewFromEnv()
			if err == nil {
				t.Fatal("NewFromEnv() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultDimensions(t *testing.T) {
	clearEmbedderEnv(t)

	if got := DefaultDimensions("ollama"); got != 1024 {
		t.Errorf("DefaultDimensions(ollama) = %d, want 1024", got)
	}
	if got := DefaultDimensions("openai"); got != 1536 {
		t.Errorf("DefaultDimensions(openai) = %d, want 1536", got)
	}

	t.Setenv("EMBEDDING_DIMENSIONS", "768")
	if got := DefaultDimensions("ollama"); got != 768 {
		t.Errorf("DefaultDimensions with override = %d, want 768", got)
	}
}

func TestLooksLikeChatModel(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"mxbai-embed-large", false},
		{"text-embedding-3-small", false},
		{"nomic-embed-text", false},
		{"deepseek-r1", true},
		{"gpt-4o", true},
		{"llama3.1:8b", true},
		{"BioMistral-7B", true},
	}

	for _, tt := range tests {
		if got := looksLikeChatModel(tt.model); got != tt.want {
			t.Errorf("looksLikeChatModel(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("default ollama passes", func(t *testing.T) {
		clearEmbedderEnv(t)
		if err := Validate(log); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("openai without key fails", func(t *testing.T) {
		clearEmbedderEnv(t)
		t.Setenv("EMBEDDING_PROVIDER", "openai")
		if err := Validate(log); err == nil {
			t.Error("Validate() error = nil, want error")
		}
	})

	t.Run("openai with key passes", func(t *testing.T) {
		clearEmbedderEnv(t)
		t.Setenv("EMBEDDING_PROVIDER", "openai")
		t.Setenv("OPENAI_API_KEY", "sk-test")
		if err := Validate(log); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})
}
