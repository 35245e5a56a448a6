/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package config loads peoplestore settings from a .env file, an optional YAML file
// and the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	storeerrors "github.com/suparena/peoplestore/errors"
)

// Backend names.
const (
	BackendMongoDB  = "mongodb"
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// Environment variable names.
const (
	EnvBackend         = "PEOPLESTORE_BACKEND"
	EnvConfigFile      = "PEOPLESTORE_CONFIG"
	EnvMongoURI        = "MONGO_URI"
	EnvMongoDatabase   = "MONGO_DATABASE"
	EnvMongoCollection = "MONGO_COLLECTION"
	EnvAWSAccessKey    = "AWS_ACCESS_KEY"
	EnvAWSSecretKey    = "AWS_SECRET_KEY"
	EnvAWSRegion       = "AWS_REGION"
	EnvDDBTable        = "AWS_DDB_TABLE"
	EnvDDBEndpoint     = "AWS_DDB_ENDPOINT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogFormat       = "LOG_FORMAT"
)

// Config holds all settings.
type Config struct {
	Backend  string         `yaml:"backend"`
	Mongo    MongoConfig    `yaml:"mongo"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
	Log      LogConfig      `yaml:"log"`
}

// MongoConfig configures the mongodb backend.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// DynamoDBConfig configures the dynamodb backend.
type DynamoDBConfig struct {
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Region    string `yaml:"region"`
	Table     string `yaml:"table"`
	Endpoint  string `yaml:"endpoint"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Backend: BackendMongoDB,
		Mongo: MongoConfig{
			Database:   "test",
			Collection: "people",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration.
//
// Variables from envFile (".env" if empty) are added to the environment unless already set;
// a missing file is ignored. yamlFile, or the file named by PEOPLESTORE_CONFIG if empty,
// is read over the defaults. Environment variables override both.
func Load(envFile, yamlFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := Default()

	if yamlFile == "" {
		yamlFile = os.Getenv(EnvConfigFile)
	}
	if yamlFile != "" {
		if err := cfg.loadYAML(yamlFile); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	for env, field := range map[string]*string{
		EnvBackend:         &c.Backend,
		EnvMongoURI:        &c.Mongo.URI,
		EnvMongoDatabase:   &c.Mongo.Database,
		EnvMongoCollection: &c.Mongo.Collection,
		EnvAWSAccessKey:    &c.DynamoDB.AccessKey,
		EnvAWSSecretKey:    &c.DynamoDB.SecretKey,
		EnvAWSRegion:       &c.DynamoDB.Region,
		EnvDDBTable:        &c.DynamoDB.Table,
		EnvDDBEndpoint:     &c.DynamoDB.Endpoint,
		EnvLogLevel:        &c.Log.Level,
		EnvLogFormat:       &c.Log.Format,
	} {
		if v, ok := lookup(env); ok && v != "" {
			*field = v
		}
	}
}

// Validate reports settings missing for the selected backend.
// Backends other than the built-in ones are not checked.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendMongoDB:
		if c.Mongo.URI == "" {
			errs = append(errs, storeerrors.NewValidationError(EnvMongoURI, "is required for the mongodb backend"))
		}
		if c.Mongo.Database == "" {
			errs = append(errs, storeerrors.NewValidationError(EnvMongoDatabase, "is required for the mongodb backend"))
		}
	case BackendDynamoDB:
		if c.DynamoDB.Table == "" {
			errs = append(errs, storeerrors.NewValidationError(EnvDDBTable, "is required for the dynamodb backend"))
		}
		if c.DynamoDB.Region == "" {
			errs = append(errs, storeerrors.NewValidationError(EnvAWSRegion, "is required for the dynamodb backend"))
		}
		if (c.DynamoDB.AccessKey == "") != (c.DynamoDB.SecretKey == "") {
			errs = append(errs, storeerrors.NewValidationError(EnvAWSSecretKey, "must be set together with "+EnvAWSAccessKey))
		}
	case "":
		errs = append(errs, storeerrors.NewValidationError(EnvBackend, "is required"))
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, storeerrors.NewValidationError(EnvLogFormat, fmt.Sprintf("unknown format %q", c.Log.Format)))
	}

	return errors.Join(errs...)
}
