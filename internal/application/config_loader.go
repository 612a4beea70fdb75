package application

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/diegoholiveira/jsonlogic/v3"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-pricescout/infrastructure/matching"
	"github.com/ahrav/go-pricescout/internal/domain"
)

// ConfigLoader parses and validates service configuration files.
type ConfigLoader struct {
	validator *validator.Validate
}

// NewConfigLoader creates a loader with the custom validators registered.
func NewConfigLoader() (*ConfigLoader, error) {
	v := validator.New()
	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	return &ConfigLoader{validator: v}, nil
}

// LoadConfig is a convenience wrapper around NewConfigLoader and LoadFromFile.
func LoadConfig(path string) (*Config, error) {
	loader, err := NewConfigLoader()
	if err != nil {
		return nil, err
	}
	return loader.LoadFromFile(path)
}

// LoadFromFile loads, defaults and validates the configuration at path.
// Relative static_file and catalog paths are resolved against the
// directory of the configuration file.
func (cl *ConfigLoader) LoadFromFile(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	cfg, err := cl.load(data)
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(cleanPath))
	return cfg, nil
}

// LoadFromReader loads, defaults and validates configuration from r.
func (cl *ConfigLoader) LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return cl.load(data)
}

// Validate checks an already built configuration.
func (cl *ConfigLoader) Validate(cfg *Config) error {
	if err := cl.validator.Struct(cfg); err != nil {
		return structError(err)
	}
	return validateSemantics(cfg)
}

func (cl *ConfigLoader) load(data []byte) (*Config, error) {
	cfg, err := parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.applyProviderDefaults()
	if err := cl.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseYAML decodes data on top of DefaultConfig using strict decoding so
// that misspelled keys are rejected instead of silently ignored.
func parseYAML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("YAML decode failed: empty document")
		}
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) resolvePaths(base string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i := range c.Providers {
		c.Providers[i].StaticFile = resolve(c.Providers[i].StaticFile)
	}
	c.Catalog.File = resolve(c.Catalog.File)
}

// structError converts validator failures into a ValidationError.
func structError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}
	ve := domain.NewValidationError("config")
	for _, fe := range verrs {
		if fe.Param() != "" {
			ve.AddError(fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		ve.AddError(fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return ve
}

// validateSemantics enforces rules that cannot be expressed through struct
// tags: unique provider IDs and a declared fast provider.
func validateSemantics(cfg *Config) error {
	ve := domain.NewValidationError("config")

	seen := make(map[string]struct{}, len(cfg.Providers))
	for _, p := range cfg.Providers {
		if _, dup := seen[p.ID]; dup {
			ve.AddError(fmt.Sprintf("duplicate provider ID %q", p.ID))
		}
		seen[p.ID] = struct{}{}
	}

	if _, ok := seen[cfg.Engine.FastProvider]; !ok {
		ve.AddError(fmt.Sprintf("fast provider %q is not declared", cfg.Engine.FastProvider))
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}

var providerIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// registerCustomValidators registers domain-specific validation functions.
func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("providerid", validateProviderID); err != nil {
		return fmt.Errorf("failed to register providerid validator: %w", err)
	}
	if err := v.RegisterValidation("queryadapter", validateQueryAdapter); err != nil {
		return fmt.Errorf("failed to register queryadapter validator: %w", err)
	}
	if err := v.RegisterValidation("jsonlogic", validateJSONLogic); err != nil {
		return fmt.Errorf("failed to register jsonlogic validator: %w", err)
	}
	return nil
}

// validateProviderID accepts lowercase identifiers usable as metric labels.
func validateProviderID(fl validator.FieldLevel) bool {
	return providerIDPattern.MatchString(fl.Field().String())
}

func validateQueryAdapter(fl validator.FieldLevel) bool {
	_, err := matching.AdapterByName(fl.Field().String())
	return err == nil
}

// validateJSONLogic accepts a rule that marshals to JSON and that the
// JSON Logic engine considers well formed.
func validateJSONLogic(fl validator.FieldLevel) bool {
	rule, err := json.Marshal(fl.Field().Interface())
	if err != nil {
		return false
	}
	return jsonlogic.IsValid(bytes.NewReader(rule))
}
