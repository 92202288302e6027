package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEncryptedFileStorage(t *testing.T) {
	tmpDir := t.TempDir()

	storage, err := NewEncryptedFileStorage(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create encrypted storage: %v", err)
	}

	secret := []byte("1//refresh-token-value")

	if err := storage.Save("photos", secret); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	tokenFile := filepath.Join(tmpDir, "tokens", "photos.enc")
	encrypted, err := os.ReadFile(tokenFile)
	if err != nil {
		t.Fatalf("Failed to read encrypted file: %v", err)
	}
	if string(encrypted) == string(secret) {
		t.Error("Data was not encrypted")
	}

	loaded, err := storage.Load("photos")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(loaded) != string(secret) {
		t.Errorf("Loaded data doesn't match original. Got: %s, Want: %s", loaded, secret)
	}

	if err := storage.Delete("photos"); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if _, err := os.Stat(tokenFile); !os.IsNotExist(err) {
		t.Error("Token file still exists after delete")
	}
}

func TestEncryptedFileStorage_Missing(t *testing.T) {
	storage, err := NewEncryptedFileStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := storage.Load("nope"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("Load of missing target: expected ErrSecretNotFound, got %v", err)
	}
	if err := storage.Delete("nope"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("Delete of missing target: expected ErrSecretNotFound, got %v", err)
	}
}

func TestEncryptionKeyPersistence(t *testing.T) {
	tmpDir := t.TempDir()

	first, err := NewEncryptedFileStorage(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Save("music", []byte("token")); err != nil {
		t.Fatal(err)
	}

	// a second instance reuses the key file and can read the first's data
	second, err := NewEncryptedFileStorage(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := second.Load("music")
	if err != nil {
		t.Fatalf("Load with reloaded key failed: %v", err)
	}
	if string(loaded) != "token" {
		t.Errorf("Expected 'token', got %q", loaded)
	}

	info, err := os.Stat(filepath.Join(tmpDir, ".keyfile"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Key file permissions = %o, want 0600", info.Mode().Perm())
	}
}

func TestEncryptedFileStorage_TamperedCiphertext(t *testing.T) {
	tmpDir := t.TempDir()
	storage, err := NewEncryptedFileStorage(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := storage.Save("photos", []byte("token")); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "tokens", "photos.enc"), []byte("short"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := storage.Load("photos"); err == nil {
		t.Error("Expected error loading tampered ciphertext")
	}
}
