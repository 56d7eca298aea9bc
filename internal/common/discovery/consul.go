package discovery

import (
	"fmt"

	"github.com/hashicorp/consul/api"
)

// ServiceRegistry Consul服务注册（HTTP 健康检查）。
type ServiceRegistry struct {
	client    *api.Client
	serviceID string
	service   string
	address   string
	port      int
	tags      []string
	check     *api.AgentServiceCheck
}

// NewServiceRegistry 创建服务注册器。
// healthPath 是服务自身暴露的健康检查路由（如 /healthz）。
func NewServiceRegistry(client *api.Client, serviceID, service, address string, port int, healthPath string, tags []string) *ServiceRegistry {
	if healthPath == "" {
		healthPath = "/healthz"
	}
	return &ServiceRegistry{
		client:    client,
		serviceID: serviceID,
		service:   service,
		address:   address,
		port:      port,
		tags:      tags,
		check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d%s", address, port, healthPath),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "30s",
		},
	}
}

// Register 注册服务
func (r *ServiceRegistry) Register() error {
	registration := &api.AgentServiceRegistration{
		ID:      r.serviceID,
		Name:    r.service,
		Tags:    r.tags,
		Address: r.address,
		Port:    r.port,
		Check:   r.check,
	}

	return r.client.Agent().ServiceRegister(registration)
}

// Deregister 注销服务
func (r *ServiceRegistry) Deregister() error {
	return r.client.Agent().ServiceDeregister(r.serviceID)
}

// NewConsulClient 创建Consul客户端
func NewConsulClient(host string, port int) (*api.Client, error) {
	config := api.DefaultConfig()
	config.Address = fmt.Sprintf("%s:%d", host, port)
	return api.NewClient(config)
}
