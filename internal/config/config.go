// Package config holds the per-deployment connection descriptors: one
// endpoint per tenant class plus the security data gating destructive verbs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ConnectionTypeV1 is the only connection-type tag this build accepts.
const ConnectionTypeV1 = "IdentityBank.V1"

// MigrationToken is the exact allow-migration value; anything else leaves
// destructive verbs disabled.
const MigrationToken = "IVD_ALLOW_MIGRATION"

// Endpoint is one backend connection descriptor. Relational endpoints use
// the db fields, document-store endpoints the aws fields; the business
// endpoint carries both.
type Endpoint struct {
	DBHost     string `json:"dbHost,omitempty"`
	DBPort     string `json:"dbPort,omitempty"`
	DBName     string `json:"dbName,omitempty"`
	DBUser     string `json:"dbUser,omitempty"`
	DBPassword string `json:"dbPassword,omitempty"`
	DBDriver   string `json:"dbDriver,omitempty"`
	DBPath     string `json:"dbPath,omitempty"`

	Region    string `json:"region,omitempty"`
	AccessKey string `json:"accessKey,omitempty"`
	SecretKey string `json:"secretKey,omitempty"`
	TableName string `json:"tableName,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
}

// SecurityData gates the destructive verbs of the business service.
type SecurityData struct {
	AllowMigration string `json:"allowMigration,omitempty"`
	AllowDelete    bool   `json:"allowDelete,omitempty"`
}

// Config is the full connection configuration handed to the dispatcher.
type Config struct {
	ConnectionType string        `json:"connectionType"`
	Business       *Endpoint     `json:"connectionBusiness,omitempty"`
	BusinessData   *SecurityData `json:"connectionBusinessData,omitempty"`
	People         *Endpoint     `json:"connectionPeople,omitempty"`
	Relation       *Endpoint     `json:"connectionRelation,omitempty"`
}

// Load reads a config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a config document, rejecting unknown top-level fields.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ConnectionType == "" {
		return nil, fmt.Errorf("parse config: connectionType required")
	}
	return &cfg, nil
}

// AllowsDestructive reports whether drop-and-recreate verbs are enabled.
func (c *Config) AllowsDestructive() bool {
	if c.BusinessData == nil {
		return false
	}
	return c.BusinessData.AllowDelete ||
		strings.EqualFold(c.BusinessData.AllowMigration, MigrationToken)
}

// Redacted renders an endpoint for debug logging with secrets removed.
func (e *Endpoint) Redacted() string {
	if e == nil {
		return "<nil>"
	}
	clean := *e
	clean.DBPassword = ""
	clean.SecretKey = ""
	out, err := json.Marshal(clean)
	if err != nil {
		return "<unprintable>"
	}
	return string(out)
}
