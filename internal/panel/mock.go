package panel

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// mockClient fabricates internally consistent identities and links
// without touching any remote. Used for unconfigured servers and tests.
type mockClient struct{}

func NewMockClient() Client {
	return &mockClient{}
}

func (m *mockClient) Type() string { return "mock" }

func (m *mockClient) CreateService(_ context.Context, req CreateServiceRequest) (*CreateServiceResult, error) {
	uid := uuid.NewString()

	host := req.ServerHost
	if host == "" {
		host = "example.com"
	}
	port := req.ServerPort
	if port == 0 {
		port = 443
	}
	protocol := req.Protocol
	if protocol == "" {
		protocol = "vless"
	}
	network := req.Network
	if network == "" {
		network = "tcp"
	}
	security := req.Security
	if security == "" {
		security = "none"
	}
	hostHeader := req.HostHeader
	if hostHeader == "" {
		hostHeader = host
	}
	path := req.Path
	if path == "" {
		path = "/"
	}

	link := fmt.Sprintf("%s://%s@%s:%d?type=%s&path=%s&host=%s&headerType=http&security=%s#%s",
		protocol, uid, host, port, network, path, hostHeader, security, req.Remark)

	return &CreateServiceResult{UUID: uid, SubscriptionURL: link}, nil
}

func (m *mockClient) RenewService(_ context.Context, _ string, _ int) Outcome {
	return OutcomeApplied
}

func (m *mockClient) AddTraffic(_ context.Context, _ string, _ int) Outcome {
	return OutcomeApplied
}

func (m *mockClient) GetUsage(_ context.Context, _ string) (*Usage, error) {
	return &Usage{}, nil
}

func (m *mockClient) ResetUUID(_ context.Context, _ string) (string, error) {
	return uuid.NewString(), nil
}

func (m *mockClient) DeleteService(_ context.Context, _ string) Outcome {
	return OutcomeApplied
}
