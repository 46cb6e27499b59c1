package panel

import (
	"strings"

	"vendbot/internal/models"
)

// ClientForServer resolves a server's declared backend to a concrete
// client. Unknown or empty modes fall back to the mock variant so
// provisioning stays available during partial configuration; mock
// identities are internally consistent, not silent data loss.
func ClientForServer(server *models.Server, defaultMode string) Client {
	mode := server.PanelType
	if mode == "" {
		mode = defaultMode
	}
	return ClientForMode(mode, server)
}

// ClientForMode maps a mode string to a backend variant.
func ClientForMode(mode string, server *models.Server) Client {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "sanaei", "3xui", "3x-ui", "xui", "x-ui":
		return NewSanaeiClient(server.APIBaseURL, server.PanelUsername, server.PanelPassword, server.InboundID)
	case "mock":
		return NewMockClient()
	default:
		return NewMockClient()
	}
}
