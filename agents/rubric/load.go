/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package rubric

import (
	"fmt"

	"chainguard.dev/rubrics/agents/rubric/prediction"
	"gopkg.in/yaml.v3"
)

// Definition is the YAML form of a rubric.
type Definition struct {
	ToolName             string              `yaml:"tool_name"`
	ToolDescription      string              `yaml:"tool_description,omitempty"`
	RationaleDescription string              `yaml:"rationale_description,omitempty"`
	RequiredAll          *bool               `yaml:"required_all,omitempty"`
	SystemMessage        string              `yaml:"system_message,omitempty"`
	UserMessage          string              `yaml:"user_message,omitempty"`
	Features             []FeatureDefinition `yaml:"features"`
}

// FeatureDefinition is the YAML form of a feature. Type is one of binary,
// text or classification; Labels only apply to classification.
type FeatureDefinition struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Type        string   `yaml:"type"`
	Labels      []string `yaml:"labels,omitempty"`
}

// ParseDefinition decodes a YAML rubric definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing rubric definition: %w", err)
	}
	return &def, nil
}

// Config converts the definition into a Config. RequiredAll defaults to true.
func (d *Definition) Config() (Config, error) {
	cfg := Config{
		ToolName:             d.ToolName,
		ToolDescription:      d.ToolDescription,
		RationaleDescription: d.RationaleDescription,
		SystemMessage:        d.SystemMessage,
		UserMessage:          d.UserMessage,
		RequiredAll:          d.RequiredAll == nil || *d.RequiredAll,
	}
	for _, fd := range d.Features {
		typ, err := fd.predictionType()
		if err != nil {
			return Config{}, err
		}
		cfg.Features = append(cfg.Features, Feature{
			Name:        fd.Name,
			Description: fd.Description,
			Type:        typ,
		})
	}
	return cfg, nil
}

func (fd FeatureDefinition) predictionType() (prediction.Type, error) {
	switch fd.Type {
	case "binary":
		return prediction.Binary{}, nil
	case "text":
		return prediction.Text{}, nil
	case "classification":
		return prediction.NewClassification(fd.Labels...), nil
	default:
		return nil, fmt.Errorf("feature %s: unknown prediction type %q", fd.Name, fd.Type)
	}
}

// Parse decodes a YAML rubric definition and builds the Rubric.
func Parse(data []byte) (*Rubric, error) {
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, err
	}
	cfg, err := def.Config()
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// Definition converts the rubric back into its YAML form.
func (r *Rubric) Definition() *Definition {
	requiredAll := r.requiredAll
	def := &Definition{
		ToolName:             r.toolName,
		ToolDescription:      r.toolDescription,
		RationaleDescription: r.rationaleDescription,
		RequiredAll:          &requiredAll,
		SystemMessage:        r.systemMessage,
		UserMessage:          r.userMessage,
	}
	for _, f := range r.features {
		fd := FeatureDefinition{Name: f.Name, Description: f.Description}
		if f.Type != nil {
			fd.Type = f.Type.Name()
			if c, ok := f.Type.(prediction.Classification); ok {
				fd.Labels = c.Labels()
			}
		}
		def.Features = append(def.Features, fd)
	}
	return def
}

// MarshalYAML renders the rubric as YAML.
func (r *Rubric) MarshalYAML() (any, error) {
	return r.Definition(), nil
}
