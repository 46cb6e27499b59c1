package panel

import (
	"context"
	"strings"
)

// CreateServiceRequest contains params for provisioning a service
// instance on a panel.
type CreateServiceRequest struct {
	Remark       string `json:"remark"`
	DurationDays int    `json:"duration_days"`
	TrafficGB    int    `json:"traffic_gb"`
	InboundID    int    `json:"inbound_id,omitempty"`
	ServerHost   string `json:"server_host,omitempty"`
	ServerPort   int    `json:"server_port,omitempty"`
	Protocol     string `json:"protocol,omitempty"`
	Network      string `json:"network,omitempty"`
	Security     string `json:"security,omitempty"`
	HostHeader   string `json:"host_header,omitempty"`
	Path         string `json:"path,omitempty"`
}

// CreateServiceResult is the panel's handle for a provisioned instance.
type CreateServiceResult struct {
	UUID            string `json:"uuid"`
	SubscriptionURL string `json:"subscription_url"`
}

// Usage reports consumption for a provisioned instance.
type Usage struct {
	UsedGB      float64 `json:"used_gb"`
	RemainingGB float64 `json:"remaining_gb"`
	DaysLeft    int     `json:"days_left"`
}

// Outcome is the result of a best-effort panel operation. Renew,
// add-traffic and delete refine an already-provisioned resource, so an
// unreachable remote is reported rather than failing the caller.
type Outcome int

const (
	// OutcomeApplied means the remote accepted the operation.
	OutcomeApplied Outcome = iota
	// OutcomeRemoteUnavailable means the remote was unreachable or
	// rejected the call; the caller may log and continue.
	OutcomeRemoteUnavailable
)

func (o Outcome) Applied() bool { return o == OutcomeApplied }

// Client is the capability interface over panel backend variants.
type Client interface {
	// CreateService provisions a new instance and returns its remote
	// identity and subscription URL.
	CreateService(ctx context.Context, req CreateServiceRequest) (*CreateServiceResult, error)

	// RenewService extends an instance by addDays. Best effort.
	RenewService(ctx context.Context, uuid string, addDays int) Outcome

	// AddTraffic grants addGB extra traffic. Best effort.
	AddTraffic(ctx context.Context, uuid string, addGB int) Outcome

	// GetUsage returns consumption for an instance.
	GetUsage(ctx context.Context, uuid string) (*Usage, error)

	// ResetUUID rotates the remote identity and returns the new one.
	// The caller rewrites the stored subscription URL itself.
	ResetUUID(ctx context.Context, uuid string) (string, error)

	// DeleteService removes an instance. Idempotent: a missing remote
	// resource is not an error.
	DeleteService(ctx context.Context, uuid string) Outcome

	// Type returns the backend variant identifier.
	Type() string
}

// RewriteIdentity substitutes the identity token inside a subscription
// URL, preserving host, port, query and fragment.
func RewriteIdentity(subscriptionURL, oldUUID, newUUID string) string {
	if oldUUID == "" {
		return subscriptionURL
	}
	return strings.Replace(subscriptionURL, oldUUID, newUUID, 1)
}
