package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// selfSignedCert builds a minimal self-signed certificate for exercising
// the save/load round trip. Certificate issuance itself belongs to the
// controller side of the cluster; this package only ever loads certs
// that were provisioned onto the node ahead of time.
func selfSignedCert(t *testing.T, commonName string) *tls.Certificate {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return &tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}
}

func TestSaveLoadCertToFile(t *testing.T) {
	tmpCertDir, err := os.MkdirTemp("", "nodeagent-cert-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpCertDir)

	cert := selfSignedCert(t, "test-node")

	require.NoError(t, SaveCertToFile(cert, tmpCertDir))

	assert.FileExists(t, filepath.Join(tmpCertDir, "node.crt"))
	assert.FileExists(t, filepath.Join(tmpCertDir, "node.key"))

	loadedCert, err := LoadCertFromFile(tmpCertDir)
	require.NoError(t, err)
	assert.Equal(t, cert.Leaf.Subject.CommonName, loadedCert.Leaf.Subject.CommonName)
}

func TestSaveLoadCACertToFile(t *testing.T) {
	tmpCertDir, err := os.MkdirTemp("", "nodeagent-cert-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpCertDir)

	ca := selfSignedCert(t, "test-ca")

	require.NoError(t, SaveCACertToFile(ca.Certificate[0], tmpCertDir))
	assert.FileExists(t, filepath.Join(tmpCertDir, "ca.crt"))

	loadedCACert, err := LoadCACertFromFile(tmpCertDir)
	require.NoError(t, err)
	assert.True(t, loadedCACert.Equal(ca.Leaf), "loaded CA cert should match original")
}

func TestCertExists(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "nodeagent-cert-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	assert.False(t, CertExists(tmpDir), "certificate should not exist initially")

	certPath := filepath.Join(tmpDir, "node.crt")
	keyPath := filepath.Join(tmpDir, "node.key")
	caPath := filepath.Join(tmpDir, "ca.crt")

	_ = os.WriteFile(certPath, []byte("cert"), 0600)
	_ = os.WriteFile(keyPath, []byte("key"), 0600)
	_ = os.WriteFile(caPath, []byte("ca"), 0600)

	assert.True(t, CertExists(tmpDir), "certificate should exist after creating files")

	os.Remove(keyPath)
	assert.False(t, CertExists(tmpDir), "certificate should not exist with missing key file")
}

func TestCertNeedsRotation(t *testing.T) {
	tests := []struct {
		name     string
		notAfter time.Time
		needsRot bool
	}{
		{"expiring in 1 day - needs rotation", time.Now().Add(24 * time.Hour), true},
		{"expiring in 29 days - needs rotation", time.Now().Add(29 * 24 * time.Hour), true},
		{"expiring in 31 days - no rotation needed", time.Now().Add(31 * 24 * time.Hour), false},
		{"expiring in 60 days - no rotation needed", time.Now().Add(60 * 24 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert := &x509.Certificate{NotAfter: tt.notAfter}
			assert.Equal(t, tt.needsRot, CertNeedsRotation(cert))
		})
	}

	assert.True(t, CertNeedsRotation(nil), "nil certificate should need rotation")
}

func TestGetCertExpiry(t *testing.T) {
	expectedExpiry := time.Now().Add(90 * 24 * time.Hour)
	cert := &x509.Certificate{NotAfter: expectedExpiry}

	assert.True(t, GetCertExpiry(cert).Equal(expectedExpiry))
	assert.True(t, GetCertExpiry(nil).IsZero(), "nil certificate should return zero time")
}

func TestGetCertTimeRemaining(t *testing.T) {
	expectedRemaining := 45 * 24 * time.Hour
	cert := &x509.Certificate{NotAfter: time.Now().Add(expectedRemaining)}

	remaining := GetCertTimeRemaining(cert)
	assert.InDelta(t, expectedRemaining, remaining, float64(time.Second))

	assert.Equal(t, time.Duration(0), GetCertTimeRemaining(nil))
}

func TestValidateCertChain(t *testing.T) {
	ca := selfSignedCert(t, "test-ca")

	assert.NoError(t, ValidateCertChain(ca.Leaf, ca.Leaf))
	assert.Error(t, ValidateCertChain(nil, ca.Leaf))
	assert.Error(t, ValidateCertChain(ca.Leaf, nil))
}

func TestGetCertInfo(t *testing.T) {
	cert := selfSignedCert(t, "test-node")

	info := GetCertInfo(cert.Leaf)
	assert.Equal(t, "test-node", info["subject"])
	assert.Equal(t, false, info["is_ca"])

	nilInfo := GetCertInfo(nil)
	_, hasError := nilInfo["error"]
	assert.True(t, hasError, "info for nil certificate should contain error")
}

func TestGetCertDir(t *testing.T) {
	tests := []struct {
		nodeType string
		nodeID   string
	}{
		{"manager", "node1"},
		{"worker", "node2"},
	}

	for _, tt := range tests {
		t.Run(tt.nodeType+"-"+tt.nodeID, func(t *testing.T) {
			certDir, err := GetCertDir(tt.nodeType, tt.nodeID)
			require.NoError(t, err)
			assert.Equal(t, tt.nodeType+"-"+tt.nodeID, filepath.Base(certDir))
		})
	}
}

func TestGetCLICertDir(t *testing.T) {
	certDir, err := GetCLICertDir()
	require.NoError(t, err)
	assert.Equal(t, "cli", filepath.Base(certDir))
}

func TestRemoveCerts(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "nodeagent-cert-test-*")
	require.NoError(t, err)

	_ = os.WriteFile(filepath.Join(tmpDir, "node.crt"), []byte("cert"), 0600)
	_ = os.WriteFile(filepath.Join(tmpDir, "node.key"), []byte("key"), 0600)

	require.NoError(t, RemoveCerts(tmpDir))

	_, err = os.Stat(tmpDir)
	assert.True(t, os.IsNotExist(err), "certificate directory should not exist after removal")
}
