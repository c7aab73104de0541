package security

import (
	"bytes"
	"testing"
)

func TestSealOpenWithKeyRoundtrip(t *testing.T) {
	key := make([]byte, 32)
	copy(key, []byte("master-key-32-bytes-long-!!!!!!!"))

	plaintext := []byte("rotating master key payload")

	ciphertext, err := SealWithKey(key, plaintext)
	if err != nil {
		t.Fatalf("SealWithKey() error = %v", err)
	}
	if bytes.Equal(ciphertext, plaintext) {
		t.Error("ciphertext should not equal plaintext")
	}

	decrypted, err := OpenWithKey(key, ciphertext)
	if err != nil {
		t.Fatalf("OpenWithKey() error = %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("decrypted = %v, want %v", decrypted, plaintext)
	}
}

func TestOpenWithKeyWrongKey(t *testing.T) {
	key1 := make([]byte, 32)
	copy(key1, []byte("key-one-32-bytes-long-!!!!!!!!!!"))
	key2 := make([]byte, 32)
	copy(key2, []byte("key-two-32-bytes-long-!!!!!!!!!!"))

	ciphertext, err := SealWithKey(key1, []byte("secret data"))
	if err != nil {
		t.Fatalf("SealWithKey() error = %v", err)
	}

	if _, err := OpenWithKey(key2, ciphertext); err == nil {
		t.Error("OpenWithKey() should fail with the wrong key")
	}
}

func TestDeriveKeyFromClusterID(t *testing.T) {
	tests := []struct {
		name      string
		clusterID string
	}{
		{
			name:      "simple ID",
			clusterID: "cluster-123",
		},
		{
			name:      "UUID",
			clusterID: "550e8400-e29b-41d4-a716-446655440000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := DeriveKeyFromClusterID(tt.clusterID)

			if len(key) != 32 {
				t.Errorf("DeriveKeyFromClusterID() returned key of length %d, want 32", len(key))
			}

			key2 := DeriveKeyFromClusterID(tt.clusterID)
			if !bytes.Equal(key, key2) {
				t.Error("DeriveKeyFromClusterID() should be deterministic")
			}

			differentKey := DeriveKeyFromClusterID(tt.clusterID + "-different")
			if bytes.Equal(key, differentKey) {
				t.Error("Different cluster IDs should produce different keys")
			}
		})
	}
}

func TestClusterEncryptDecryptRoundtrip(t *testing.T) {
	if err := SetClusterEncryptionKey(DeriveKeyFromClusterID("test-cluster")); err != nil {
		t.Fatalf("SetClusterEncryptionKey() error = %v", err)
	}

	plaintext := []byte(`{"tombstoned":true}`)
	ciphertext, err := Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if bytes.Equal(ciphertext, plaintext) {
		t.Error("ciphertext should not equal plaintext")
	}

	decrypted, err := Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("decrypted = %v, want %v", decrypted, plaintext)
	}
}

func TestEncryptWithoutClusterKeySet(t *testing.T) {
	clusterEncryptionKey = nil
	if _, err := Encrypt([]byte("data")); err == nil {
		t.Error("Encrypt() should fail when the cluster key has not been set")
	}
	if _, err := Decrypt([]byte("data")); err == nil {
		t.Error("Decrypt() should fail when the cluster key has not been set")
	}
}
