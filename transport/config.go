// Package transport is the thin, optional server shell around a
// constructed component: it turns environment variables into a listening
// gRPC socket, wires in health checking, reflection, structured logging and
// Prometheus metrics, and maps the core's error taxonomy onto gRPC status
// codes. None of this is part of the Component Runtime; it depends on the
// runtime package, never the reverse.
package transport

import (
	"fmt"
	"os"
	"path/filepath"
)

// TransportKind selects how the server listens.
type TransportKind string

const (
	TransportTCP TransportKind = "tcp"
	TransportUDS TransportKind = "uds"
)

// Config is the transport configuration for one component process, read
// once from environment variables at startup per §10.1.
type Config struct {
	Kind        TransportKind
	Address     string // "[::]:port" for TCP, socket path for UDS
	ServiceName string
}

// defaultUDSBasePath is used when UDS_BASE_PATH is unset.
const defaultUDSBasePath = "/tmp/angzarr"

// defaultPort is used when PORT is unset.
const defaultPort = "8080"

// LoadConfig reads TRANSPORT_TYPE, UDS_BASE_PATH, SERVICE_NAME, PORT and one
// of DOMAIN/SAGA_NAME/PROJECTOR_NAME/PM_NAME from the environment, applying
// the documented defaults.
func LoadConfig() Config {
	serviceName := os.Getenv("SERVICE_NAME")
	if serviceName == "" {
		serviceName = "component"
	}

	if os.Getenv("TRANSPORT_TYPE") == string(TransportUDS) {
		basePath := os.Getenv("UDS_BASE_PATH")
		if basePath == "" {
			basePath = defaultUDSBasePath
		}
		qualifier := componentQualifier()
		socketPath := filepath.Join(basePath, serviceName+".sock")
		if qualifier != "" {
			socketPath = filepath.Join(basePath, fmt.Sprintf("%s-%s.sock", serviceName, qualifier))
		}
		return Config{Kind: TransportUDS, Address: socketPath, ServiceName: serviceName}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	return Config{Kind: TransportTCP, Address: "[::]:" + port, ServiceName: serviceName}
}

// componentQualifier reads whichever of DOMAIN, SAGA_NAME, PROJECTOR_NAME or
// PM_NAME is set, in that order, as the component's identity.
func componentQualifier() string {
	for _, key := range []string{"DOMAIN", "SAGA_NAME", "PROJECTOR_NAME", "PM_NAME"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
