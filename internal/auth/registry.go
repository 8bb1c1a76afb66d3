package auth

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidToken token 不存在于注册表
var ErrInvalidToken = errors.New("invalid token")

// Principal 一个可以调用 API 的客户端
type Principal struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Token string `yaml:"token" json:"-"`
}

// Registry 基于静态配置的 token 注册表，创建后只读
type Registry struct {
	tokenIndex map[string]*Principal
}

type staticConfig struct {
	Tokens []Principal `yaml:"tokens"`
}

// NewRegistry 由配置中的 principal 列表创建注册表
// Token 为空的条目不会进入 token 索引
func NewRegistry(principals []Principal) (*Registry, error) {
	r := &Registry{tokenIndex: make(map[string]*Principal)}
	seen := make(map[string]bool)

	for i := range principals {
		p := principals[i]
		if p.ID == "" {
			return nil, fmt.Errorf("auth: principal #%d has no id", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("auth: duplicate principal id %q", p.ID)
		}
		seen[p.ID] = true

		if p.Token == "" {
			continue
		}
		if _, dup := r.tokenIndex[p.Token]; dup {
			return nil, fmt.Errorf("auth: duplicate token for principal %q", p.ID)
		}
		r.tokenIndex[p.Token] = &p
	}

	return r, nil
}

// LoadFile 从 yaml 文件 (tokens: [...]) 加载注册表
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var cfg staticConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return NewRegistry(cfg.Tokens)
}

// Enabled 注册表为空时不做鉴权
func (r *Registry) Enabled() bool {
	return r != nil && len(r.tokenIndex) > 0
}

// Lookup 根据 token 获取 principal
func (r *Registry) Lookup(token string) (*Principal, error) {
	p, ok := r.tokenIndex[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	return p, nil
}
