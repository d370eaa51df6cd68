package etcd

import (
	"path"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// ServicesDir is the etcd prefix under which workers register, one
// sub-directory per service key.
const ServicesDir = "/dispatch/services/"

func NewClient(endpoints []string, timeout time.Duration) (*clientv3.Client, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	return cli, nil
}

// ServicePrefix is the watch prefix for one service key, with trailing slash.
func ServicePrefix(serviceKey string) string {
	return path.Join(ServicesDir, serviceKey) + "/"
}

// WorkerKey is the registration key of one worker.
func WorkerKey(serviceKey, workerID string) string {
	return ServicePrefix(serviceKey) + workerID
}

// WorkerIDFromKey strips the service prefix. ok is false for keys outside it.
func WorkerIDFromKey(serviceKey, key string) (string, bool) {
	id, ok := strings.CutPrefix(key, ServicePrefix(serviceKey))
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
