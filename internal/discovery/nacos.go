// Package discovery 提供 Nacos 服务注册
package discovery

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/naming_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"

	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/config"
	"github.com/eidos-exchange/eidos/eidos-selftrade/pkg/logger"
)

// Instance 注册的服务实例
type Instance struct {
	ServiceName string
	IP          string
	Port        uint64
	GroupName   string
	Metadata    map[string]string
}

// NewInstance 创建服务实例, IP 取本机地址
func NewInstance(serviceName string, port int, group string, metadata map[string]string) *Instance {
	if metadata == nil {
		metadata = make(map[string]string)
	}
	return &Instance{
		ServiceName: serviceName,
		IP:          localIP(),
		Port:        uint64(port),
		GroupName:   group,
		Metadata:    metadata,
	}
}

// Registrar Nacos 服务注册器
type Registrar struct {
	client   naming_client.INamingClient
	instance *Instance
}

// NewRegistrar 创建 Nacos 注册器
func NewRegistrar(cfg *config.NacosConfig) (*Registrar, error) {
	serverConfigs, err := parseServerAddr(cfg.ServerAddr)
	if err != nil {
		return nil, fmt.Errorf("parse server addr failed: %w", err)
	}

	clientConfig := constant.ClientConfig{
		NamespaceId:         cfg.Namespace,
		TimeoutMs:           5000,
		NotLoadCacheAtStart: true,
		LogDir:              cfg.LogDir,
		CacheDir:            cfg.CacheDir,
		LogLevel:            "warn",
	}
	if cfg.Username != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, err := clients.NewNamingClient(vo.NacosClientParam{
		ClientConfig:  &clientConfig,
		ServerConfigs: serverConfigs,
	})
	if err != nil {
		return nil, fmt.Errorf("create naming client failed: %w", err)
	}

	return &Registrar{client: client}, nil
}

// Register 注册服务实例
func (r *Registrar) Register(instance *Instance) error {
	success, err := r.client.RegisterInstance(registerParam(instance))
	if err != nil {
		return fmt.Errorf("register instance failed: %w", err)
	}
	if !success {
		return fmt.Errorf("register instance failed: unknown error")
	}

	r.instance = instance
	logger.Info("service registered to nacos",
		"service", instance.ServiceName,
		"ip", instance.IP,
		"port", instance.Port,
		"group", instance.GroupName)
	return nil
}

// Deregister 注销已注册的实例并关闭客户端
func (r *Registrar) Deregister() error {
	defer r.client.CloseClient()

	if r.instance == nil {
		return nil
	}

	success, err := r.client.DeregisterInstance(vo.DeregisterInstanceParam{
		Ip:          r.instance.IP,
		Port:        r.instance.Port,
		ServiceName: r.instance.ServiceName,
		GroupName:   r.instance.GroupName,
		Ephemeral:   true,
	})
	if err != nil {
		return fmt.Errorf("deregister instance failed: %w", err)
	}
	if !success {
		return fmt.Errorf("deregister instance failed: unknown error")
	}
	r.instance = nil
	return nil
}

func registerParam(instance *Instance) vo.RegisterInstanceParam {
	return vo.RegisterInstanceParam{
		Ip:          instance.IP,
		Port:        instance.Port,
		ServiceName: instance.ServiceName,
		Weight:      1.0,
		Enable:      true,
		Healthy:     true,
		Ephemeral:   true,
		Metadata:    instance.Metadata,
		ClusterName: "DEFAULT",
		GroupName:   instance.GroupName,
	}
}

// parseServerAddr 解析服务器地址, 多个地址逗号分隔
func parseServerAddr(addr string) ([]constant.ServerConfig, error) {
	addrs := strings.Split(addr, ",")
	configs := make([]constant.ServerConfig, 0, len(addrs))

	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}

		host, portStr, err := net.SplitHostPort(a)
		if err != nil {
			// 只有 host 时使用默认端口
			host = a
			portStr = "8848"
		}

		port, err := strconv.ParseUint(portStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid port %s: %w", portStr, err)
		}

		configs = append(configs, constant.ServerConfig{
			IpAddr: host,
			Port:   port,
		})
	}

	if len(configs) == 0 {
		return nil, fmt.Errorf("no valid server address")
	}
	return configs, nil
}

// localIP 获取本机 IP, 优先环境变量
func localIP() string {
	if ip := os.Getenv("POD_IP"); ip != "" {
		return ip
	}
	if ip := os.Getenv("HOST_IP"); ip != "" {
		return ip
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return "127.0.0.1"
}
