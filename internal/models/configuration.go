package models

import (
	"time"
)

// ProtocolKind identifies the transport used to reach a remote file source.
type ProtocolKind string

const (
	ProtocolFTP   ProtocolKind = "ftp"
	ProtocolHTTPS ProtocolKind = "https"
	ProtocolBlob  ProtocolKind = "blob"
)

// AuthKind identifies how credentials for a source are supplied.
type AuthKind string

const (
	AuthNone      AuthKind = "none"
	AuthBasic     AuthKind = "basic"
	AuthAccessKey AuthKind = "access_key"
)

// AuthSettings carries the auth kind plus a reference to the credential
// material. The reference is resolved by the adapter layer at run time;
// secrets are never stored on the configuration itself.
type AuthSettings struct {
	Kind          AuthKind `json:"kind" yaml:"kind" validate:"omitempty,oneof=none basic access_key"`
	CredentialRef string   `json:"credential_ref,omitempty" yaml:"credential_ref,omitempty"`
}

// Configuration is a client's rule for where, when and how to look for files.
// It is the root entity: executions and discovered files reference it by ID.
type Configuration struct {
	ID              string       `json:"id" yaml:"id" validate:"required"`
	ClientID        string       `json:"client_id" yaml:"client_id" validate:"required"`
	Name            string       `json:"name" yaml:"name" validate:"required"`
	Protocol        ProtocolKind `json:"protocol" yaml:"protocol" validate:"required,oneof=ftp https blob"`
	PathPattern     string       `json:"path_pattern" yaml:"path_pattern" validate:"required,filepattern"`
	FilenamePattern string       `json:"filename_pattern" yaml:"filename_pattern" validate:"required,filepattern"`
	CronExpression  string       `json:"cron_expression" yaml:"cron_expression" validate:"required,cronexpr"`
	Timezone        string       `json:"timezone" yaml:"timezone" validate:"omitempty,timezone"`
	Active          bool         `json:"active" yaml:"active"`
	Auth            AuthSettings `json:"auth" yaml:"auth"`
	CreatedBy       string       `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	ModifiedBy      string       `json:"modified_by,omitempty" yaml:"modified_by,omitempty"`
	CreatedAt       time.Time    `json:"created_at,omitempty" yaml:"-"`
	ModifiedAt      time.Time    `json:"modified_at,omitempty" yaml:"-"`
	// Version is the optimistic-concurrency token, incremented on every write.
	Version int64 `json:"version" yaml:"-"`
}

// Location resolves the configuration's timezone. An empty timezone falls
// back to UTC; validity beyond that is enforced at configuration load time.
func (c *Configuration) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}
