package transport

import (
	"crypto/x509"
	"testing"
	"time"
)

func TestSelfSignedTLSConfigReturnsValidCert(t *testing.T) {
	validity := 2 * time.Hour
	tlsCfg, fingerprint, err := selfSignedTLSConfig(validity, "")
	if err != nil {
		t.Fatalf("selfSignedTLSConfig: %v", err)
	}
	if fingerprint == "" {
		t.Fatal("expected non-empty fingerprint")
	}
	if len(fingerprint) != 64 { // SHA-256 hex = 32 bytes = 64 chars
		t.Errorf("fingerprint length: got %d, want 64", len(fingerprint))
	}
	if len(tlsCfg.Certificates) != 1 {
		t.Fatalf("expected 1 certificate, got %d", len(tlsCfg.Certificates))
	}

	leaf := tlsCfg.Certificates[0].Leaf
	if leaf == nil {
		t.Fatal("expected parsed leaf certificate")
	}
	if leaf.Subject.CommonName != "raceserver" {
		t.Errorf("CN: got %q, want %q", leaf.Subject.CommonName, "raceserver")
	}

	now := time.Now()
	if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		t.Errorf("cert not valid at current time: NotBefore=%v NotAfter=%v", leaf.NotBefore, leaf.NotAfter)
	}
}

func TestSelfSignedTLSConfigUniqueCerts(t *testing.T) {
	_, fp1, err := selfSignedTLSConfig(time.Hour, "")
	if err != nil {
		t.Fatalf("selfSignedTLSConfig: %v", err)
	}
	_, fp2, err := selfSignedTLSConfig(time.Hour, "")
	if err != nil {
		t.Fatalf("selfSignedTLSConfig: %v", err)
	}
	if fp1 == fp2 {
		t.Error("two calls should produce different certificates")
	}
}

func TestSelfSignedTLSConfigHostname(t *testing.T) {
	tlsCfg, _, err := selfSignedTLSConfig(time.Hour, "race.example.com")
	if err != nil {
		t.Fatalf("selfSignedTLSConfig: %v", err)
	}
	leaf := tlsCfg.Certificates[0].Leaf
	if leaf.Subject.CommonName != "race.example.com" {
		t.Errorf("CN: got %q, want %q", leaf.Subject.CommonName, "race.example.com")
	}

	found := false
	for _, name := range leaf.DNSNames {
		if name == "localhost" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected localhost in DNS names, got %v", leaf.DNSNames)
	}

	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	if _, err := leaf.Verify(x509.VerifyOptions{DNSName: "race.example.com", Roots: pool}); err != nil {
		t.Errorf("self-verification failed: %v", err)
	}
}

func TestLoadTLSConfigMissingFile(t *testing.T) {
	if _, _, err := loadTLSConfig("/nonexistent/cert.pem", "/nonexistent/key.pem"); err == nil {
		t.Fatal("expected error for missing cert file")
	}
}
