package agent

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/ashish13377/Intellido/internal/tools"
	"gopkg.in/yaml.v3"
)

//go:embed prompt.yaml
var promptYAML []byte

type promptExample struct {
	Title string   `yaml:"title"`
	Steps []string `yaml:"steps"`
}

type promptTemplate struct {
	Intro    string          `yaml:"intro"`
	Workflow []string        `yaml:"workflow"`
	Rules    string          `yaml:"rules"`
	Schema   string          `yaml:"schema"`
	Examples []promptExample `yaml:"examples"`
}

func loadPromptTemplate() (promptTemplate, error) {
	var p promptTemplate
	if err := yaml.Unmarshal(promptYAML, &p); err != nil {
		return promptTemplate{}, fmt.Errorf("failed to parse prompt template: %w", err)
	}
	return p, nil
}

// RenderSystemPrompt builds the system prompt advertising the given tools
func RenderSystemPrompt(catalog []tools.Descriptor) (string, error) {
	p, err := loadPromptTemplate()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.Intro))
	b.WriteString("\nWorkflow:\n")
	for i, step := range p.Workflow {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(p.Rules))
	b.WriteString("\n\nTodo DB Schema:\n")
	b.WriteString(p.Schema)
	b.WriteString("\nTools:\n")
	for _, d := range catalog {
		fmt.Fprintf(&b, "- %s: %s Example input: %s\n", d.Name, d.Description, d.Example)
	}
	b.WriteString("\nExample Message Flow (all messages in JSON):\n")
	for _, ex := range p.Examples {
		fmt.Fprintf(&b, "\n// %s\n", ex.Title)
		for _, step := range ex.Steps {
			b.WriteString(step)
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// CatalogYAML renders the tool catalog as YAML
func CatalogYAML(catalog []tools.Descriptor) ([]byte, error) {
	out, err := yaml.Marshal(struct {
		Tools []tools.Descriptor `yaml:"tools"`
	}{Tools: catalog})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool catalog: %w", err)
	}
	return out, nil
}
