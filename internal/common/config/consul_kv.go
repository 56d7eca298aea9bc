package config

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/consul/api"
)

// LoadConfigFromConsulKV 从 Consul KV 读取 JSON 配置。
// value 的结构与 Config 一致；未出现的段落落回默认配置，
// KV 里只需要放与默认值不同的部分。
// 动态 watch 不在这里做，配置变更以进程重启生效。
func LoadConfigFromConsulKV(consulHost string, consulPort int, key string) (*Config, error) {
	if key == "" {
		return nil, fmt.Errorf("consul kv key is empty")
	}

	c, err := api.NewClient(&api.Config{
		Address: fmt.Sprintf("%s:%d", consulHost, consulPort),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	pair, _, err := c.KV().Get(key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get consul kv key=%s: %w", key, err)
	}
	if pair == nil || len(pair.Value) == 0 {
		return nil, fmt.Errorf("consul kv key=%s is empty or not found", key)
	}

	cfg := defaultConfig()
	if err := json.Unmarshal(pair.Value, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal consul kv json key=%s: %w", key, err)
	}
	return cfg, nil
}
