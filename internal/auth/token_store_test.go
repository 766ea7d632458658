package auth

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T, file string, debounce time.Duration) *TokenStore {
	t.Helper()
	store, err := NewTokenStore(file, debounce, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewTokenStore: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	})
	return store
}

func TestTokenStoreLoadsAndWatchesTokens(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tokens.txt")
	writeTokenFile(t, file, "alpha\n# disabled\n")
	store := newTestStore(t, file, 20*time.Millisecond)

	if !store.IsValidToken("alpha") {
		t.Fatalf("expected initial token to be valid")
	}
	if store.IsValidToken("beta") || store.IsValidToken("# disabled") {
		t.Fatalf("unexpected token accepted")
	}
	if store.Count() != 1 {
		t.Fatalf("expected 1 token, got %d", store.Count())
	}

	writeTokenFile(t, file, "alpha\n\n beta \n")
	waitForToken(t, store, "beta", true)

	writeTokenFile(t, file, "beta\n")
	waitForToken(t, store, "alpha", false)

	if store.IsValidToken("") || store.IsValidToken("   ") {
		t.Fatalf("expected blank token to be rejected")
	}
}

func TestTokenStoreHiddenFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), ".content-tokens")
	writeTokenFile(t, file, "alpha\n")
	store := newTestStore(t, file, 5*time.Millisecond)

	writeTokenFile(t, file, "gamma\n")
	waitForToken(t, store, "gamma", true)
}

func TestTokenStoreHandlesFileRemovalAndCreation(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tokens.txt")
	writeTokenFile(t, file, "alpha\n")
	store := newTestStore(t, file, 5*time.Millisecond)

	if err := os.Remove(file); err != nil {
		t.Fatalf("remove token file: %v", err)
	}
	waitForToken(t, store, "alpha", false)

	writeTokenFile(t, file, "delta\n")
	waitForToken(t, store, "delta", true)
}

func TestTokenStoreMissingFileStartsEmpty(t *testing.T) {
	file := filepath.Join(t.TempDir(), "absent.txt")
	store := newTestStore(t, file, 5*time.Millisecond)
	if store.Count() != 0 {
		t.Fatalf("expected no tokens")
	}
	writeTokenFile(t, file, "late\n")
	waitForToken(t, store, "late", true)
}

func TestTokenStoreSiblingFileIgnored(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "tokens.txt")
	writeTokenFile(t, file, "alpha\n")
	store := newTestStore(t, file, 5*time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("noise"), 0o644); err != nil {
		t.Fatalf("write sibling: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if !store.IsValidToken("alpha") || store.IsValidToken("noise") {
		t.Fatalf("sibling writes must not affect tokens")
	}
}

func TestTokenStoreConcurrentValidation(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tokens.txt")
	writeTokenFile(t, file, "alpha\nbeta\n")
	store := newTestStore(t, file, 5*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				store.IsValidToken("alpha")
				store.IsValidToken("invalid")
			}
		}()
	}

	writeTokenFile(t, file, "alpha\nbeta\ngamma\n")
	time.Sleep(50 * time.Millisecond)
	writeTokenFile(t, file, "alpha\n")

	wg.Wait()
}

func writeTokenFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir token dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write token file: %v", err)
	}
}

func waitForToken(t *testing.T, store *TokenStore, token string, want bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.IsValidToken(token) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for token %s to reach state %v", token, want)
}
