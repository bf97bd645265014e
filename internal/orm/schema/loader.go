package schema

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/activerow/internal/orm/access"
	"github.com/conduit-lang/activerow/internal/orm/hooks"
	"github.com/conduit-lang/activerow/internal/orm/validation"
)

// noKeyMarker as a model's key declares it keyless
const noKeyMarker = "-"

type fileSpec struct {
	Models []modelSpec `yaml:"models"`
}

type modelSpec struct {
	Name      string                `yaml:"name"`
	Table     string                `yaml:"table"`
	Key       string                `yaml:"key"`
	Fields    []string              `yaml:"fields"`
	Autosave  *bool                 `yaml:"autosave"`
	Links     linksSpec             `yaml:"links"`
	Validate  map[string]ruleList   `yaml:"validate"`
	Transform map[string]stringList `yaml:"transform"`
	Computed  map[string]string     `yaml:"computed"`
	Access    *access.Rules         `yaml:"permissions"`
}

type linksSpec struct {
	One  []linkSpec `yaml:"one"`
	Many []linkSpec `yaml:"many"`
}

type linkSpec struct {
	Target string `yaml:"target"`
	Link   `yaml:",inline"`
}

// ruleSpec is one validation rule. Scalars name a built-in validator
// (required, email, url, phone) or are an expression over value.
type ruleSpec struct {
	Builtin   string        `yaml:"-"`
	Expr      string        `yaml:"expr"`
	Message   string        `yaml:"message"`
	Min       *float64      `yaml:"min"`
	Max       *float64      `yaml:"max"`
	MinLength *int          `yaml:"min_length"`
	MaxLength *int          `yaml:"max_length"`
	Pattern   string        `yaml:"pattern"`
	OneOf     []interface{} `yaml:"one_of"`
}

var builtinValidators = map[string]func() validation.Validator{
	"required": func() validation.Validator { return &validation.RequiredValidator{} },
	"email":    func() validation.Validator { return &validation.EmailValidator{} },
	"url":      func() validation.Validator { return &validation.URLValidator{} },
	"phone":    func() validation.Validator { return &validation.PhoneValidator{} },
}

func (r *ruleSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		if _, ok := builtinValidators[node.Value]; ok {
			r.Builtin = node.Value
		} else {
			r.Expr = node.Value
		}
		return nil
	}
	type plain ruleSpec
	return node.Decode((*plain)(r))
}

// ruleList accepts a single rule or a sequence of rules
type ruleList []ruleSpec

func (l *ruleList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		return node.Decode((*[]ruleSpec)(l))
	}
	var one ruleSpec
	if err := node.Decode(&one); err != nil {
		return err
	}
	*l = ruleList{one}
	return nil
}

// stringList accepts a scalar or a sequence of scalars
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*l = stringList{node.Value}
		return nil
	}
	return node.Decode((*[]string)(l))
}

// Load parses model declarations from YAML
func Load(r io.Reader) ([]*Model, error) {
	var spec fileSpec
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse models: %w", err)
	}

	models := make([]*Model, 0, len(spec.Models))
	for i, ms := range spec.Models {
		m, err := ms.build()
		if err != nil {
			return nil, fmt.Errorf("models[%d]: %w", i, err)
		}
		models = append(models, m)
	}
	return models, nil
}

// LoadFile parses model declarations from a YAML file
func LoadFile(path string) ([]*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Load(f)
}

// LoadInto registers every model declared in path and validates links
func LoadInto(reg *Registry, path string) error {
	models, err := LoadFile(path)
	if err != nil {
		return err
	}
	for _, m := range models {
		if err := reg.Register(m); err != nil {
			return err
		}
	}
	return reg.ValidateAll()
}

func (ms modelSpec) build() (*Model, error) {
	if ms.Name == "" {
		return nil, fmt.Errorf("model name is required")
	}

	m := NewModel(ms.Name, ms.Fields...)
	m.Table = ms.Table
	switch ms.Key {
	case noKeyMarker:
		m.NoKey = true
	default:
		m.KeyField = ms.Key
	}
	if ms.Autosave != nil {
		m.DisableAutosave = !*ms.Autosave
	}
	m.Rules = ms.Access

	for _, l := range ms.Links.One {
		m.HasOne(l.Target, l.Link)
	}
	for _, l := range ms.Links.Many {
		m.HasMany(l.Target, l.Link)
	}

	for _, field := range sortedKeys(ms.Transform) {
		for _, name := range ms.Transform[field] {
			fn, err := hooks.Named(name)
			if err != nil {
				return nil, fmt.Errorf("model %s field %s: %w", ms.Name, field, err)
			}
			m.Hooks.Transform(field, fn)
		}
	}

	for _, field := range sortedKeys(ms.Validate) {
		for _, rule := range ms.Validate[field] {
			fn, err := rule.hook(field)
			if err != nil {
				return nil, fmt.Errorf("model %s field %s: %w", ms.Name, field, err)
			}
			m.Hooks.Validate(field, fn)
		}
	}

	for _, field := range sortedKeys(ms.Computed) {
		fn, err := ExprComputed(ms.Computed[field], ms.Fields)
		if err != nil {
			return nil, fmt.Errorf("model %s field %s: %w", ms.Name, field, err)
		}
		m.Hooks.Compute(field, fn)
	}

	return m, nil
}

func (r ruleSpec) hook(field string) (hooks.ValidateFunc, error) {
	if r.Expr != "" {
		msg := r.Message
		if msg == "" {
			msg = fmt.Sprintf("%s is invalid", field)
		}
		return ExprRule(r.Expr, msg)
	}

	var validators []validation.Validator
	if r.Builtin != "" {
		validators = append(validators, builtinValidators[r.Builtin]())
	}
	if r.Min != nil {
		validators = append(validators, &validation.MinValidator{Min: *r.Min})
	}
	if r.Max != nil {
		validators = append(validators, &validation.MaxValidator{Max: *r.Max})
	}
	if r.MinLength != nil {
		validators = append(validators, &validation.MinLengthValidator{MinLength: *r.MinLength})
	}
	if r.MaxLength != nil {
		validators = append(validators, &validation.MaxLengthValidator{MaxLength: *r.MaxLength})
	}
	if r.Pattern != "" {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		validators = append(validators, &validation.PatternValidator{Pattern: re})
	}
	if len(r.OneOf) > 0 {
		validators = append(validators, &validation.OneOfValidator{Values: r.OneOf})
	}
	if len(validators) == 0 {
		return nil, fmt.Errorf("empty validation rule")
	}

	check := validation.Hook(validators...)
	if r.Message == "" {
		return check, nil
	}
	return func(value interface{}) error {
		if err := check(value); err != nil {
			return validation.New(r.Message)
		}
		return nil
	}, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
