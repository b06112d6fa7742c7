package rbac

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type routesFile struct {
	Routes []RouteConfig `yaml:"routes"`
}

// LoadFile builds a registry from a YAML document of the form
//
//	routes:
//	  - path: /admin
//	    requiredRoles: [admin]
//	    title: Admin
func LoadFile(name string) (*Registry, error) {
	raw, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Registry, error) {
	var f routesFile

	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse routes file: %w", err)
	}

	return NewRegistry(f.Routes...)
}
