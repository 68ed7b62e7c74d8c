package api

import (
	"crypto/tls"
	"log"
	"os"
)

// LoadTLSConfig builds a tls.Config from the TALEWEAVE_TLS_CERT and
// TALEWEAVE_TLS_KEY environment variables. Returns nil (and logs) when TLS
// is not configured or the pair cannot be loaded; the server then falls
// back to plain HTTP.
func LoadTLSConfig() *tls.Config {
	certFile := os.Getenv("TALEWEAVE_TLS_CERT")
	keyFile := os.Getenv("TALEWEAVE_TLS_KEY")
	if certFile == "" || keyFile == "" {
		return nil
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		log.Printf("failed to load TLS certificate: %v", err)
		return nil
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
}
