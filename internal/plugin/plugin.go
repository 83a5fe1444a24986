// Package plugin implements the per-tenant integration runtime: a static
// registry of integration definitions grouped by category, and a manager
// that drives the install/update/uninstall lifecycle against each tenant's
// settings document.
package plugin

import (
	"context"
	"errors"
	"fmt"
)

// Errors
var (
	ErrGroupNotFound  = errors.New("plugin: group not found")
	ErrPluginNotFound = errors.New("plugin: not found")
	ErrMethodNotFound = errors.New("plugin: method not found")
	ErrDuplicateKey   = errors.New("plugin: duplicate key")
	ErrReservedMethod = errors.New("plugin: method name is reserved")
	ErrNoWebhook      = errors.New("plugin: does not accept webhooks")
)

// FieldType is the declared type of a configuration field.
type FieldType string

const (
	FieldText    FieldType = "text"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
)

// Field describes one property of an integration's configuration schema.
type Field struct {
	Type        FieldType `json:"type"`
	Label       string    `json:"label"`
	Required    bool      `json:"required"`
	Placeholder string    `json:"placeholder,omitempty"`
}

// Schema maps configuration field names to their specs. An integration
// with a schema must validate every config written to it.
type Schema map[string]Field

// Options are static, informational flags on a definition.
type Options struct {
	Disabled        bool   `json:"disabled,omitempty"`
	Hidden          bool   `json:"hidden,omitempty"`
	RequiresWebhook bool   `json:"requiresWebhook,omitempty"`
	ComingSoon      bool   `json:"comingSoon,omitempty"`
	HelpLink        string `json:"helpLink,omitempty"`
}

// Hooks are the optional lifecycle callbacks an integration author can
// supply. All hooks receive the tenant the transition applies to. Hook
// failures are logged by the dispatcher and never surface to callers.
type Hooks struct {
	OnInstall        func(ctx context.Context, tenantID string) error
	OnUpdate         func(ctx context.Context, tenantID string, config map[string]any) error
	OnUninstall      func(ctx context.Context, tenantID string) error
	OnValidate       func(ctx context.Context, tenantID string, config map[string]any) (bool, error)
	OnReceiveWebhook func(ctx context.Context, tenantID string, payload []byte) error
}

// MethodFunc is a custom integration method invoked through the manager,
// e.g. a notifier's sendMessage.
type MethodFunc func(ctx context.Context, tenantID string, config map[string]any, args map[string]any) (any, error)

// reservedMethods are operation names owned by the manager; definitions
// may not register custom methods under them.
var reservedMethods = map[string]struct{}{
	"update":      {},
	"activate":    {},
	"deactivate":  {},
	"isInstalled": {},
}

// Definition is the static, author-supplied description of one integration.
type Definition struct {
	Key         string
	Name        string
	Description string
	Icon        string
	Schema      Schema
	Options     Options
	Hooks       Hooks
	Methods     map[string]MethodFunc
}

// ValidationError reports a config that violates the integration's schema.
// Field names the first violated field.
type ValidationError struct {
	Plugin string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration for plugin %s: field %q %s", e.Plugin, e.Field, e.Reason)
}

// RejectedError reports a config the integration's own OnValidate refused.
type RejectedError struct {
	Plugin string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("validation failed for plugin %s", e.Plugin)
}

// ValidateConfig checks a config map against the definition's schema.
// Fields are checked in sorted name order so the reported first violation
// is deterministic. Definitions without a schema accept anything.
func (d *Definition) ValidateConfig(config map[string]any) error {
	if len(d.Schema) == 0 {
		return nil
	}
	for _, name := range sortedFieldNames(d.Schema) {
		spec := d.Schema[name]
		v, ok := config[name]
		if !ok || v == nil {
			if spec.Required {
				return &ValidationError{Plugin: d.Key, Field: name, Reason: "is required"}
			}
			continue
		}
		if err := checkFieldType(v, spec.Type); err != nil {
			return &ValidationError{Plugin: d.Key, Field: name, Reason: err.Error()}
		}
		if spec.Required && spec.Type == FieldText {
			if s, _ := v.(string); s == "" {
				return &ValidationError{Plugin: d.Key, Field: name, Reason: "must not be empty"}
			}
		}
	}
	return nil
}

func checkFieldType(v any, ft FieldType) error {
	switch ft {
	case FieldText:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("must be text")
		}
	case FieldNumber:
		switch v.(type) {
		case float64, float32, int, int32, int64:
		default:
			return fmt.Errorf("must be a number")
		}
	case FieldBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("must be a boolean")
		}
	}
	return nil
}
