package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PromptTemplate is a system/user prompt pair. The user template carries
// {name} placeholders filled at call time.
type PromptTemplate struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// Prompts holds the three LLM prompt template pairs used by the core.
type Prompts struct {
	ResumeAnalysis    PromptTemplate `yaml:"resume_analysis"`
	CandidateMatching PromptTemplate `yaml:"candidate_matching"`
	SourceSelection   PromptTemplate `yaml:"source_selection"`
}

// LoadPrompts reads prompt templates from a YAML file.
func LoadPrompts(path string) (Prompts, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, fmt.Errorf("op=config.LoadPrompts: %w", err)
	}
	var p Prompts
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Prompts{}, fmt.Errorf("op=config.LoadPrompts: %w", err)
	}
	for name, t := range map[string]PromptTemplate{
		"resume_analysis":    p.ResumeAnalysis,
		"candidate_matching": p.CandidateMatching,
		"source_selection":   p.SourceSelection,
	} {
		if t.System == "" || t.User == "" {
			return Prompts{}, fmt.Errorf("op=config.LoadPrompts: template %s incomplete", name)
		}
	}
	return p, nil
}

// Render substitutes {name} placeholders in the user template.
func (t PromptTemplate) Render(vars map[string]string) string {
	out := t.User
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
