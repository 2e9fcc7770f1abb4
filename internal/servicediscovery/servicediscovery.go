// Package servicediscovery resolves the handful of collaborator endpoints
// this worker needs (the two vaults, RabbitMQ, MinIO) from the
// Docker-style `tcp://host:port` environment variables the platform
// injects, the same way every other service in the platform does.
package servicediscovery

import (
	"fmt"
	"os"
	"strings"
)

const (
	configVaultVar = "CONFIG_VAULT_PORT_8000_TCP"
	schemaVaultVar = "SCHEMA_VAULT_PORT_8000_TCP"
	rabbitmqVar    = "RABBITMQ_PORT_6572_TCP"
	minioVar       = "MINIO_PORT_9000_TCP"
	mongodbVar     = "MONGODB_PORT_27017_TCP"

	// ServicesExchange is the name of the shared topic exchange every
	// worker publishes to and consumes from.
	ServicesExchange = "services"
)

// ErrServiceUnavailable is returned when a required endpoint env var is
// missing.
type ErrServiceUnavailable struct {
	Var string
}

func (e *ErrServiceUnavailable) Error() string {
	return fmt.Sprintf("environment variable %s not set", e.Var)
}

// ServiceDiscovery resolves collaborator endpoints from a fixed snapshot of
// environment variables, taken once at construction time.
type ServiceDiscovery struct {
	vars map[string]string
}

// New builds a ServiceDiscovery over an explicit env var map. Useful for
// tests; production code should use NewFromEnv.
func New(vars map[string]string) *ServiceDiscovery {
	return &ServiceDiscovery{vars: vars}
}

// NewFromEnv snapshots os.Environ() into a ServiceDiscovery.
func NewFromEnv() *ServiceDiscovery {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			vars[kv[:idx]] = kv[idx+1:]
		}
	}
	return New(vars)
}

func (sd *ServiceDiscovery) getEndpoint(varName, serviceName, protocol string) (string, error) {
	tcpAddr, ok := sd.vars[varName]
	if !ok {
		return "", &ErrServiceUnavailable{Var: varName}
	}
	gatewayHost := sd.gatewayHost(serviceName)
	endpoint := strings.ReplaceAll(tcpAddr, "tcp", protocol)
	endpoint = strings.ReplaceAll(endpoint, "gateway_host", gatewayHost)
	return endpoint, nil
}

func (sd *ServiceDiscovery) gatewayHost(serviceName string) string {
	if host, ok := sd.vars[serviceName+"_GATEWAY_HOST"]; ok && host != "" {
		return host
	}
	return "localhost"
}

// modifyLocalhostPort rewrites the port of a localhost endpoint. This
// asymmetric rewrite rule (different original/new port per vault) is
// preserved exactly as the source system defines it — see DESIGN.md.
func modifyLocalhostPort(endpoint, originalPort, newPort string) string {
	if strings.Contains(endpoint, "localhost") {
		return strings.ReplaceAll(endpoint, originalPort, newPort)
	}
	return endpoint
}

// ConfigVaultEndpoint resolves the config-vault's base URL.
func (sd *ServiceDiscovery) ConfigVaultEndpoint() (string, error) {
	endpoint, err := sd.getEndpoint(configVaultVar, "CONFIG_VAULT", "http")
	if err != nil {
		return "", err
	}
	return modifyLocalhostPort(endpoint, "8001", "8000"), nil
}

// SchemaVaultEndpoint resolves the schema-vault's base URL.
func (sd *ServiceDiscovery) SchemaVaultEndpoint() (string, error) {
	endpoint, err := sd.getEndpoint(schemaVaultVar, "SCHEMA_VAULT", "http")
	if err != nil {
		return "", err
	}
	return modifyLocalhostPort(endpoint, "8002", "8000"), nil
}

// RabbitMQEndpoint resolves the broker's amqp:// URL.
func (sd *ServiceDiscovery) RabbitMQEndpoint() (string, error) {
	return sd.getEndpoint(rabbitmqVar, "RABBITMQ", "amqp")
}

// MinIOEndpoint resolves the object store's endpoint.
func (sd *ServiceDiscovery) MinIOEndpoint() (string, error) {
	return sd.getEndpoint(minioVar, "MINIO", "http")
}

// MongoDBEndpoint resolves the metadata store's endpoint. Carried for
// parity with the source system's service-discovery surface even though
// this worker has no direct MongoDB dependency of its own.
func (sd *ServiceDiscovery) MongoDBEndpoint() (string, error) {
	return sd.getEndpoint(mongodbVar, "MONGODB", "mongodb")
}

// MinIOAccessKey returns the configured MinIO access key, if any.
func (sd *ServiceDiscovery) MinIOAccessKey() string {
	return sd.vars["MINIO_ACCESS_KEY"]
}

// MinIOSecretKey returns the configured MinIO secret key, if any.
func (sd *ServiceDiscovery) MinIOSecretKey() string {
	return sd.vars["MINIO_SECRET_KEY"]
}
