package main

import (
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitrin/internal/config"
)

func TestGenerateSelfSignedCert(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cert, err := generateSelfSignedCert(now)
	require.NoError(t, err)
	require.NotEmpty(t, cert.Certificate)

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"Vitrin"}, leaf.Subject.Organization)
	assert.Contains(t, leaf.DNSNames, "localhost")
	assert.True(t, leaf.NotAfter.After(now.Add(364*24*time.Hour)))
	assert.NoError(t, leaf.VerifyHostname("127.0.0.1"))
}

func TestLoadCertificate_MissingFiles(t *testing.T) {
	_, err := loadCertificate(config.TLS{CertFile: "missing.crt", KeyFile: "missing.key"})
	assert.Error(t, err)
}
