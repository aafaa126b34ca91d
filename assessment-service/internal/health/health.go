// Package health tracks the serving status of the service and its
// dependencies and exposes it over gRPC health checking.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Probe проверяет одну зависимость. nil означает SERVING
type Probe func(ctx context.Context) error

// HealthServer реализует grpc.health.v1 и отчет для /healthz
type HealthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	mu       sync.RWMutex
	services map[string]grpc_health_v1.HealthCheckResponse_ServingStatus
	probes   map[string]Probe
	timeout  time.Duration
}

// NewHealthServer создает пустой health-сервер
func NewHealthServer() *HealthServer {
	return &HealthServer{
		services: make(map[string]grpc_health_v1.HealthCheckResponse_ServingStatus),
		probes:   make(map[string]Probe),
		timeout:  2 * time.Second,
	}
}

// AddProbe регистрирует живую проверку service. Такие сервисы
// проверяются при каждом Check вместо сохраненного статуса
func (h *HealthServer) AddProbe(service string, probe Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[service] = probe
}

// Check возвращает статус сервиса из запроса
func (h *HealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	service := req.GetService()

	if service == "" {
		return &grpc_health_v1.HealthCheckResponse{
			Status: grpc_health_v1.HealthCheckResponse_SERVING,
		}, nil
	}

	servingStatus, err := h.status(ctx, service)
	if err != nil {
		return nil, err
	}

	return &grpc_health_v1.HealthCheckResponse{
		Status: servingStatus,
	}, nil
}

// Watch отправляет текущий статус и ждет закрытия потока
func (h *HealthServer) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	response, err := h.Check(stream.Context(), req)
	if err != nil {
		return err
	}

	if err := stream.Send(response); err != nil {
		return err
	}

	<-stream.Context().Done()
	return stream.Context().Err()
}

// SetServingStatus помечает service как SERVING
func (h *HealthServer) SetServingStatus(service string) {
	h.setStatus(service, grpc_health_v1.HealthCheckResponse_SERVING)
}

// SetNotServingStatus помечает service как NOT_SERVING
func (h *HealthServer) SetNotServingStatus(service string) {
	h.setStatus(service, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}

func (h *HealthServer) setStatus(service string, status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.services[service] = status
}

func (h *HealthServer) status(ctx context.Context, service string) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	h.mu.RLock()
	probe, probed := h.probes[service]
	stored, exists := h.services[service]
	h.mu.RUnlock()

	if probed {
		ctx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()
		if err := probe(ctx); err != nil {
			return grpc_health_v1.HealthCheckResponse_NOT_SERVING, nil
		}
		return grpc_health_v1.HealthCheckResponse_SERVING, nil
	}

	if !exists {
		return grpc_health_v1.HealthCheckResponse_SERVICE_UNKNOWN, status.Error(codes.NotFound, "service not found")
	}
	return stored, nil
}

// Report возвращает статус каждого известного сервиса и признак того, что
// все они в SERVING. Ошибки проверок попадают в описание
func (h *HealthServer) Report(ctx context.Context) (map[string]string, bool) {
	h.mu.RLock()
	names := make([]string, 0, len(h.services)+len(h.probes))
	for name := range h.services {
		names = append(names, name)
	}
	for name := range h.probes {
		if _, dup := h.services[name]; !dup {
			names = append(names, name)
		}
	}
	h.mu.RUnlock()
	sort.Strings(names)

	report := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		h.mu.RLock()
		probe, probed := h.probes[name]
		h.mu.RUnlock()

		if probed {
			pctx, cancel := context.WithTimeout(ctx, h.timeout)
			err := probe(pctx)
			cancel()
			if err != nil {
				report[name] = fmt.Sprintf("NOT_SERVING: %v", err)
				healthy = false
				continue
			}
			report[name] = grpc_health_v1.HealthCheckResponse_SERVING.String()
			continue
		}

		st, _ := h.status(ctx, name)
		report[name] = st.String()
		if st != grpc_health_v1.HealthCheckResponse_SERVING {
			healthy = false
		}
	}
	return report, healthy
}

// RemoteProbe проверяет service на другом gRPC-сервере через его health API
func RemoteProbe(conn grpc.ClientConnInterface, service string) Probe {
	client := grpc_health_v1.NewHealthClient(conn)
	return func(ctx context.Context) error {
		resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
		if err != nil {
			return err
		}
		if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
			return fmt.Errorf("%s is %s", service, resp.GetStatus())
		}
		return nil
	}
}
