package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearKeys(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearKeys(t, "CONFIG_FILE", "SOURCE_API_URL", "API_URL", "CHUNK_SIZE", "CHUNK_OVERLAP",
		"EMBEDDER", "VECTOR_STORE", "RETRIEVAL_K", "RETRIEVAL_FETCH_K", "RETRIEVAL_MMR_LAMBDA",
		"RESILIENCE_RETRY_MAX_ATTEMPTS", "RESILIENCE_BREAKER_ENABLED")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChunkSize != 800 || cfg.ChunkOverlap != 200 {
		t.Fatalf("expected chunking 800/200, got %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.RetrievalK != 3 || cfg.RetrievalFetchK != 10 || cfg.RetrievalMMRLambda != 0.5 {
		t.Fatalf("unexpected retrieval defaults: %+v", cfg)
	}
	if cfg.SourcePageLimit != 500 || cfg.SourceExtractFormat != "text" {
		t.Fatalf("unexpected source defaults: %+v", cfg)
	}
	if cfg.Embedder != "ollama" || cfg.VectorStore != "sqlite" {
		t.Fatalf("unexpected backend defaults: embedder=%q store=%q", cfg.Embedder, cfg.VectorStore)
	}
	if cfg.SourceAPIURL != "" {
		t.Fatalf("expected empty source url, got %q", cfg.SourceAPIURL)
	}
	if cfg.ResilienceMaxAttempts != 3 || !cfg.ResilienceBreakerEnabled {
		t.Fatalf("unexpected resilience defaults: %+v", cfg)
	}
}

func TestLoadAcceptsAPIURLAlias(t *testing.T) {
	clearKeys(t, "CONFIG_FILE", "SOURCE_API_URL")
	t.Setenv("API_URL", "https://wiki.example.org/w/api.php")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SourceAPIURL != "https://wiki.example.org/w/api.php" {
		t.Fatalf("expected alias to populate source url, got %q", cfg.SourceAPIURL)
	}
}

func TestLoadYAMLOverlayBelowEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anvesana.yaml")
	data := []byte("collection_name: herbs\nretrieval_k: 7\nretrieval_mmr_lambda: 0.25\nembedder: hashing\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	clearKeys(t, "COLLECTION_NAME", "RETRIEVAL_MMR_LAMBDA", "EMBEDDER", "VECTOR_STORE", "CHUNK_SIZE", "CHUNK_OVERLAP")
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RETRIEVAL_K", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CollectionName != "herbs" {
		t.Fatalf("expected collection from yaml, got %q", cfg.CollectionName)
	}
	if cfg.RetrievalK != 4 {
		t.Fatalf("expected environment to win over yaml, got %d", cfg.RetrievalK)
	}
	if cfg.RetrievalMMRLambda != 0.25 || cfg.Embedder != "hashing" {
		t.Fatalf("unexpected overlay values: %+v", cfg)
	}
}

func TestLoadRejectsUnknownBackends(t *testing.T) {
	clearKeys(t, "CONFIG_FILE", "VECTOR_STORE", "CHUNK_SIZE", "CHUNK_OVERLAP")
	t.Setenv("EMBEDDER", "word2vec")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown embedder to be rejected")
	}
}

func TestLoadRejectsOverlapNotSmallerThanSize(t *testing.T) {
	clearKeys(t, "CONFIG_FILE", "EMBEDDER", "VECTOR_STORE")
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")

	if _, err := Load(); err == nil {
		t.Fatal("expected overlap >= size to be rejected")
	}
}

func TestLoadFailsOnMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected missing CONFIG_FILE to fail")
	}
}
