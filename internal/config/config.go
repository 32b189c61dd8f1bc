package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kadirbelkuyu/schemasync/internal/errs"
)

const (
	ConnDirect = "direct"
	ConnSSH    = "ssh"
)

// SSHConfig describes the bastion hop used when ConnMethod is "ssh".
type SSHConfig struct {
	Host           string `yaml:"host" json:"host"`
	Port           int    `yaml:"port" json:"port"`
	User           string `yaml:"user" json:"user"`
	Password       string `yaml:"password,omitempty" json:"password,omitempty"`
	KeyPath        string `yaml:"key_path,omitempty" json:"key_path,omitempty"`
	KeyPassphrase  string `yaml:"key_passphrase,omitempty" json:"key_passphrase,omitempty"`
	KnownHostsPath string `yaml:"known_hosts,omitempty" json:"known_hosts,omitempty"`
}

type DatabaseConfig struct {
	Type         string    `yaml:"type" json:"type"`
	Host         string    `yaml:"host" json:"host"`
	Port         int       `yaml:"port" json:"port"`
	Database     string    `yaml:"database" json:"database"`
	Username     string    `yaml:"username" json:"username"`
	Password     string    `yaml:"password" json:"password,omitempty"`
	SSLMode      string    `yaml:"sslmode,omitempty" json:"sslmode,omitempty"`
	URI          string    `yaml:"uri,omitempty" json:"uri,omitempty"`
	AuthDatabase string    `yaml:"auth_database,omitempty" json:"auth_database,omitempty"`
	ConnMethod   string    `yaml:"conn_method,omitempty" json:"conn_method,omitempty"`
	SSH          SSHConfig `yaml:"ssh,omitempty" json:"ssh,omitempty"`
}

type Config struct {
	Database DatabaseConfig `yaml:"database"`
}

func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrKindNotFound, "config file "+configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to parse config", err)
	}

	config.Database.ApplyDefaults()
	if err := config.Database.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// ApplyDefaults normalises the engine name and fills in the ports, SSL mode
// and connection method a descriptor may leave out.
func (d *DatabaseConfig) ApplyDefaults() {
	d.Type = NormalizeDatabaseType(d.Type)
	d.ConnMethod = strings.ToLower(strings.TrimSpace(d.ConnMethod))
	if d.ConnMethod == "" {
		d.ConnMethod = ConnDirect
	}

	switch d.Type {
	case "postgres":
		if d.SSLMode == "" {
			d.SSLMode = "disable"
		}
		if d.Port == 0 {
			d.Port = 5432
		}
	case "mysql":
		if d.Port == 0 {
			d.Port = 3306
		}
	case "mongo":
		if d.Port == 0 {
			d.Port = 27017
		}
	}

	if d.ConnMethod == ConnSSH && d.SSH.Port == 0 {
		d.SSH.Port = 22
	}
	d.SSH.KeyPath = ExpandHome(d.SSH.KeyPath)
	d.SSH.KnownHostsPath = ExpandHome(d.SSH.KnownHostsPath)
}

// Validate fails fast on descriptors that cannot be used, before any network
// attempt is made.
func (d *DatabaseConfig) Validate() error {
	switch d.Type {
	case "postgres", "mysql", "mongo":
	default:
		return errs.Newf(errs.ErrKindConfiguration, "unsupported database type %q", d.Type)
	}

	if d.URI == "" && strings.TrimSpace(d.Host) == "" {
		return errs.New(errs.ErrKindConfiguration, "database host is required")
	}
	if d.Type != "mongo" && strings.TrimSpace(d.Database) == "" {
		return errs.New(errs.ErrKindConfiguration, "database name is required")
	}

	switch d.ConnMethod {
	case ConnDirect:
	case ConnSSH:
		if d.SSH.Host == "" || d.SSH.User == "" {
			return errs.New(errs.ErrKindConfiguration, "SSH connection requires ssh host and user")
		}
		if d.SSH.Password == "" && d.SSH.KeyPath == "" {
			return errs.New(errs.ErrKindConfiguration, "SSH connection requires either a password or a private key path")
		}
	default:
		return errs.Newf(errs.ErrKindConfiguration, "unknown connection method %q", d.ConnMethod)
	}
	return nil
}

// UsesTunnel reports whether the database is reached through an SSH hop.
func (d DatabaseConfig) UsesTunnel() bool {
	return d.ConnMethod == ConnSSH
}

// Address is the host:port the database listens on, as seen from the hop.
func (d DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// Redacted returns a copy without passwords, for logs and API responses.
func (d DatabaseConfig) Redacted() DatabaseConfig {
	if d.Password != "" {
		d.Password = "****"
	}
	if d.SSH.Password != "" {
		d.SSH.Password = "****"
	}
	if d.SSH.KeyPassphrase != "" {
		d.SSH.KeyPassphrase = "****"
	}
	if d.URI != "" {
		if u, err := url.Parse(d.URI); err == nil && u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), "****")
				d.URI = u.String()
			}
		}
	}
	return d
}

func (d DatabaseConfig) String() string {
	return fmt.Sprintf("%s://%s@%s/%s", d.Type, d.Username, d.Address(), d.Database)
}

func (d DatabaseConfig) GetConnectionString() string {
	if d.Type != "" && d.Type != "postgres" {
		return ""
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		quoteKeyword(d.Username),
		quoteKeyword(d.Password),
		quoteKeyword(d.Database),
		d.SSLMode,
	)
}

// quoteKeyword quotes a libpq keyword value when it contains spaces or quotes.
func quoteKeyword(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func (d DatabaseConfig) GetMongoURI() string {
	if d.URI != "" {
		return d.URI
	}

	host := d.Host
	if host == "" {
		host = "localhost"
	}
	port := d.Port
	if port == 0 {
		port = 27017
	}

	var credentials string
	if d.Username != "" {
		credentials = url.QueryEscape(d.Username)
		if d.Password != "" {
			credentials = fmt.Sprintf("%s:%s", credentials, url.QueryEscape(d.Password))
		}
		credentials += "@"
	}

	targetDatabase := strings.TrimSpace(d.Database)
	if targetDatabase != "" {
		targetDatabase = "/" + targetDatabase
	}

	uri := fmt.Sprintf("mongodb://%s%s:%d%s", credentials, host, port, targetDatabase)

	if d.AuthDatabase != "" {
		uri = fmt.Sprintf("%s?authSource=%s", uri, url.QueryEscape(d.AuthDatabase))
	}

	return uri
}

func (c *Config) GetConnectionString() string {
	return c.Database.GetConnectionString()
}

func (c *Config) GetMongoURI() string {
	return c.Database.GetMongoURI()
}

func NormalizeDatabaseType(dbType string) string {
	dbType = strings.ToLower(strings.TrimSpace(dbType))
	if dbType == "" {
		return "postgres"
	}

	switch dbType {
	case "postgres", "postgresql", "pg":
		return "postgres"
	case "mysql", "mariadb":
		return "mysql"
	case "mongo", "mongodb":
		return "mongo"
	default:
		return dbType
	}
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}
