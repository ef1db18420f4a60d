package settings

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"multibagger/config"
)

func TestVault_SetGetPersist(t *testing.T) {
	dir := t.TempDir()
	v, err := Open(dir, "pass")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := v.Set(Credential{Service: ServiceGroq, APIKey: "gsk-abcdef"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, vaultFile))
	if err != nil {
		t.Fatalf("vault file not written: %v", err)
	}
	if bytes.Contains(raw, []byte("gsk-abcdef")) {
		t.Error("vault file should be encrypted")
	}

	reopened, err := Open(dir, "pass")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	c, ok := reopened.Get(ServiceGroq)
	if !ok || c.APIKey != "gsk-abcdef" {
		t.Errorf("Get() = %+v, %v", c, ok)
	}
}

func TestVault_WrongPassphraseStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	v, _ := Open(dir, "right")
	_ = v.Set(Credential{Service: ServiceFMP, APIKey: "fmp-key"})

	other, err := Open(dir, "wrong")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, ok := other.Get(ServiceFMP); ok {
		t.Error("undecryptable vault should load as empty")
	}
}

func TestVault_SetValidation(t *testing.T) {
	v, _ := Open(t.TempDir(), "")

	tests := []struct {
		name    string
		cred    Credential
		wantErr error
	}{
		{"unknown service", Credential{Service: "zerodha", APIKey: "k"}, ErrUnknownService},
		{"missing key", Credential{Service: ServiceOpenAI}, ErrMissingKey},
		{"bedrock without key", Credential{Service: ServiceBedrock, Region: "ap-south-1", ModelID: "m"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Set(tt.cred)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Set() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVault_Delete(t *testing.T) {
	v, _ := Open(t.TempDir(), "")
	_ = v.Set(Credential{Service: ServiceNewsAPI, APIKey: "news"})

	if err := v.Delete(ServiceNewsAPI); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := v.Get(ServiceNewsAPI); ok {
		t.Error("credential should be gone")
	}
	if err := v.Delete(ServiceNewsAPI); err != nil {
		t.Errorf("deleting twice should be a no-op, got %v", err)
	}
}

func TestVault_List(t *testing.T) {
	v, _ := Open(t.TempDir(), "")
	_ = v.Set(Credential{Service: ServiceAnthropic, APIKey: "sk-ant-secret1234"})
	_ = v.Set(Credential{Service: ServiceBedrock, Region: "ap-south-1"})

	list := v.List()
	if len(list) != len(KnownServices) {
		t.Fatalf("List() len = %d, want %d", len(list), len(KnownServices))
	}

	byService := make(map[Service]Masked)
	for _, m := range list {
		byService[m.Service] = m
	}

	ant := byService[ServiceAnthropic]
	if ant.APIKey != "****1234" || !ant.Configured || ant.Name != "Anthropic" {
		t.Errorf("anthropic = %+v", ant)
	}
	if byService[ServiceBedrock].Configured {
		t.Error("bedrock without a model id is not configured")
	}
	if byService[ServiceGemini].Configured {
		t.Error("gemini was never set")
	}
}

func TestVault_ApplyTo(t *testing.T) {
	v, _ := Open(t.TempDir(), "")
	_ = v.Set(Credential{Service: ServiceGroq, APIKey: "vault-groq"})
	_ = v.Set(Credential{Service: ServiceOpenAI, APIKey: "vault-openai"})
	_ = v.Set(Credential{Service: ServiceBedrock, Region: "ap-south-1", ModelID: "anthropic.claude-3-haiku"})

	cfg := config.NewTestConfig()
	cfg.OpenAI.APIKey = "env-openai"

	applied := v.ApplyTo(cfg)

	if cfg.Groq.APIKey != "vault-groq" {
		t.Errorf("Groq.APIKey = %q", cfg.Groq.APIKey)
	}
	if cfg.OpenAI.APIKey != "env-openai" {
		t.Errorf("environment should win, got %q", cfg.OpenAI.APIKey)
	}
	if !cfg.HasBedrock() {
		t.Error("bedrock should be configured from the vault")
	}

	got := make(map[Service]bool)
	for _, s := range applied {
		got[s] = true
	}
	if !got[ServiceGroq] || !got[ServiceBedrock] || got[ServiceOpenAI] {
		t.Errorf("applied = %v", applied)
	}
}

func TestMask(t *testing.T) {
	tests := map[string]string{
		"":          "",
		"abc":       "****",
		"abcd":      "****",
		"abcdefghi": "****fghi",
	}
	for in, want := range tests {
		if got := mask(in); got != want {
			t.Errorf("mask(%q) = %q, want %q", in, got, want)
		}
	}
}
