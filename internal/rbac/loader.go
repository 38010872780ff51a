package rbac

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dtroode/authgate/internal/model"
)

var errEmptyPolicy = errors.New("policy defines no roles")

// document is the on-disk policy layout:
//
//	roles:
//	  admin: [read:user, write:user, delete:user]
//	  guest: []
type document struct {
	Roles map[string][]string `yaml:"roles"`
}

// ParsePolicy decodes a YAML policy document.
func ParsePolicy(data []byte) (*Policy, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode policy: %w", err)
	}
	if len(doc.Roles) == 0 {
		return nil, errEmptyPolicy
	}

	for role, perms := range doc.Roles {
		if strings.TrimSpace(role) == "" {
			return nil, errors.New("policy contains an empty role name")
		}
		for _, perm := range perms {
			if strings.TrimSpace(perm) == "" {
				return nil, fmt.Errorf("role %q contains an empty permission", role)
			}
		}
	}

	return NewPolicy(doc.Roles), nil
}

// marshalPolicy encodes p in the document layout read by ParsePolicy.
func marshalPolicy(p *Policy) ([]byte, error) {
	return yaml.Marshal(document{Roles: p.Map()})
}

// Source yields raw policy documents.
type Source interface {
	Load(ctx context.Context) ([]byte, error)
	String() string
}

// FileSource reads a policy document from the local filesystem.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return data, nil
}

func (s FileSource) String() string {
	return "file:" + s.Path
}

// ObjectSource reads a policy document from object storage.
type ObjectSource struct {
	Storage model.ObjectStorage
	Key     string
}

func (s ObjectSource) Load(ctx context.Context) ([]byte, error) {
	exists, err := s.Storage.Exists(ctx, s.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to stat policy object: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("policy object %q: %w", s.Key, model.ErrNotFound)
	}

	body, err := s.Storage.Download(ctx, s.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to download policy object: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy object: %w", err)
	}
	return data, nil
}

func (s ObjectSource) String() string {
	return "object:" + s.Key
}

// Load reads and parses a policy from src.
func Load(ctx context.Context, src Source) (*Policy, error) {
	data, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	p, err := ParsePolicy(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	return p, nil
}
