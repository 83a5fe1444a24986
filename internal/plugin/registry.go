package plugin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tmorell/launchdeck/internal/tenant"
)

// Group is a named category of integrations.
type Group struct {
	Key         string
	Name        string
	Description string
	Icon        string
	Plugins     map[string]*Definition
}

// Registry is the fixed mapping of group key to group, assembled once at
// process start and read-only thereafter. It is safe for concurrent use.
type Registry struct {
	groups map[string]*Group
	order  []string // group keys in registration order
}

// NewRegistry builds a registry from static groups, rejecting duplicate
// keys and custom methods that shadow manager-owned operations.
func NewRegistry(groups ...Group) (*Registry, error) {
	r := &Registry{groups: make(map[string]*Group, len(groups))}
	for i := range groups {
		g := groups[i]
		if _, exists := r.groups[g.Key]; exists {
			return nil, fmt.Errorf("%w: group %q", ErrDuplicateKey, g.Key)
		}
		for pk, def := range g.Plugins {
			if pk != def.Key {
				return nil, fmt.Errorf("plugin: definition %q registered under key %q", def.Key, pk)
			}
			for name := range def.Methods {
				if _, reserved := reservedMethods[name]; reserved {
					return nil, fmt.Errorf("%w: %s.%s %q", ErrReservedMethod, g.Key, pk, name)
				}
			}
		}
		r.groups[g.Key] = &g
		r.order = append(r.order, g.Key)
	}
	return r, nil
}

// MustNewRegistry is NewRegistry that panics on invalid static catalogs.
// Use only with compile-time catalog data.
func MustNewRegistry(groups ...Group) *Registry {
	r, err := NewRegistry(groups...)
	if err != nil {
		panic(err)
	}
	return r
}

// FieldView is the normalized public view of one schema property, shaped
// for a generic form-rendering client.
type FieldView struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Label    string    `json:"label"`
	Required bool      `json:"required"`
}

// PluginSummary is the normalized public view of a definition: display
// metadata plus derived form fields, hooks and raw schema stripped out.
type PluginSummary struct {
	Key         string      `json:"key"`
	Group       string      `json:"group"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Icon        string      `json:"icon,omitempty"`
	Options     Options     `json:"options"`
	Fields      []FieldView `json:"fields"`
}

// GroupSummary exposes group metadata plus normalized plugin views.
type GroupSummary struct {
	Key         string          `json:"key"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Icon        string          `json:"icon,omitempty"`
	Plugins     []PluginSummary `json:"plugins"`
}

// List returns normalized summaries for every group, in registration order.
func (r *Registry) List() []GroupSummary {
	out := make([]GroupSummary, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.summarize(r.groups[key]))
	}
	return out
}

// Get returns the normalized summary for one group.
func (r *Registry) Get(groupKey string) (GroupSummary, error) {
	g, ok := r.groups[groupKey]
	if !ok {
		return GroupSummary{}, fmt.Errorf("%w: %q", ErrGroupNotFound, groupKey)
	}
	return r.summarize(g), nil
}

// Filter narrows ListPlugins results.
type Filter struct {
	Group      string
	SearchTerm string
}

// ListPlugins returns a flat, filtered view across all groups.
func (r *Registry) ListPlugins(f Filter) []PluginSummary {
	var out []PluginSummary
	for _, key := range r.order {
		if f.Group != "" && f.Group != key {
			continue
		}
		g := r.groups[key]
		for _, pk := range sortedPluginKeys(g.Plugins) {
			def := g.Plugins[pk]
			if f.SearchTerm != "" && !matchesSearch(def, f.SearchTerm) {
				continue
			}
			out = append(out, summarizePlugin(key, def))
		}
	}
	return out
}

// DefaultSettings returns the plugins subtree seeded for a new tenant:
// every known (group, plugin) pair with {enabled: false, config: {}}.
func (r *Registry) DefaultSettings() tenant.PluginSettings {
	out := make(tenant.PluginSettings, len(r.groups))
	for gk, g := range r.groups {
		states := make(map[string]tenant.PluginState, len(g.Plugins))
		for pk := range g.Plugins {
			states[pk] = tenant.DefaultPluginState()
		}
		out[gk] = states
	}
	return out
}

// definition resolves a raw definition by keys; unknown keys fail before
// any tenant lookup.
func (r *Registry) definition(groupKey, pluginKey string) (*Group, *Definition, error) {
	g, ok := r.groups[groupKey]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrGroupNotFound, groupKey)
	}
	def, ok := g.Plugins[pluginKey]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q in group %q", ErrPluginNotFound, pluginKey, groupKey)
	}
	return g, def, nil
}

func (r *Registry) summarize(g *Group) GroupSummary {
	s := GroupSummary{
		Key:         g.Key,
		Name:        g.Name,
		Description: g.Description,
		Icon:        g.Icon,
		Plugins:     make([]PluginSummary, 0, len(g.Plugins)),
	}
	for _, pk := range sortedPluginKeys(g.Plugins) {
		s.Plugins = append(s.Plugins, summarizePlugin(g.Key, g.Plugins[pk]))
	}
	return s
}

func summarizePlugin(groupKey string, def *Definition) PluginSummary {
	fields := make([]FieldView, 0, len(def.Schema))
	for _, name := range sortedFieldNames(def.Schema) {
		spec := def.Schema[name]
		fields = append(fields, FieldView{
			Name:     name,
			Type:     spec.Type,
			Label:    spec.Label,
			Required: spec.Required,
		})
	}
	return PluginSummary{
		Key:         def.Key,
		Group:       groupKey,
		Name:        def.Name,
		Description: def.Description,
		Icon:        def.Icon,
		Options:     def.Options,
		Fields:      fields,
	}
}

func matchesSearch(def *Definition, term string) bool {
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(def.Name), term) ||
		strings.Contains(strings.ToLower(def.Key), term) ||
		strings.Contains(strings.ToLower(def.Description), term)
}

func sortedPluginKeys(plugins map[string]*Definition) []string {
	keys := make([]string, 0, len(plugins))
	for k := range plugins {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedFieldNames(s Schema) []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
