package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/parcel/internal/backend/graphbackend"
	"github.com/born-ml/parcel/internal/backend/starlarkbackend"
	"github.com/born-ml/parcel/internal/spec"
)

// manifest is the YAML document describing a package to create:
//
//	model_name: addition_model
//	platform: graph            # optional, inferred from the model file
//	input_spec:
//	  - {name: x, dtype: float32, shape: [null]}
//	output_spec:
//	  - {name: out, dtype: float32, shape: [null]}
//	node_name_mapping: {x: "in_x:0", out: "out:0"}
//	init_op_names: init        # a name or a list
type manifest struct {
	ModelName       string            `yaml:"model_name"`
	Platform        string            `yaml:"platform"`
	InputSpec       []spec.TensorSpec `yaml:"input_spec"`
	OutputSpec      []spec.TensorSpec `yaml:"output_spec"`
	NodeNameMapping map[string]string `yaml:"node_name_mapping"`
	InitOpNames     nameList          `yaml:"init_op_names"`
	Options         map[string]string `yaml:"options"`
}

// nameList decodes from a scalar or a sequence of strings.
type nameList []string

func (l *nameList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.ShortTag() == "!!null" || node.Value == "" {
			*l = nil
			return nil
		}
		*l = nameList{node.Value}
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		*l = names
		return nil
	default:
		return fmt.Errorf("line %d: expected a name or a list of names", node.Line)
	}
}

func readManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is a command-line argument
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// platformFor guesses the platform from a model file extension.
func platformFor(modelPath string) (string, error) {
	switch strings.ToLower(filepath.Ext(modelPath)) {
	case ".pgraph", ".yaml", ".yml":
		return graphbackend.Platform, nil
	case ".star":
		return starlarkbackend.Platform, nil
	default:
		return "", fmt.Errorf("cannot infer platform from %s; set platform in the manifest or pass --platform", modelPath)
	}
}
