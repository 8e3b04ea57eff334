// Package command delivers control commands from the cloud to edge
// servers. Commands travel as HMAC-signed HTTP POSTs using the same
// signature scheme edge servers use inbound, so a box can verify the
// cloud the same way the cloud verifies the box.
package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/visionedge/visionedge-cloud/internal/edgeauth"
	"github.com/visionedge/visionedge-cloud/internal/models"
)

var (
	// ErrEdgeOffline is returned when the target edge server has not
	// heartbeated recently enough to be considered reachable.
	ErrEdgeOffline = errors.New("edge server is offline")
	// ErrNoAddress is returned when the edge server has no reachable
	// address on record.
	ErrNoAddress = errors.New("edge server has no reachable address")
	// ErrNoCredentials is returned when the edge server has no secret to
	// sign with.
	ErrNoCredentials = errors.New("edge server has no credentials")
)

// Result is the edge server's answer to a command
type Result struct {
	StatusCode int
	Body       []byte
}

// Dispatcher sends commands to edge servers
type Dispatcher struct {
	client *http.Client
}

// NewDispatcher creates a dispatcher. timeout bounds the full round
// trip to the edge server.
func NewDispatcher(timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Send posts a command to an edge server at
// /api/v1/commands/{command}, signed with the server's edge credential
// pair.
func (d *Dispatcher) Send(ctx context.Context, edge *models.EdgeServer, command string, payload interface{}) (*Result, error) {
	if !edge.Online {
		return nil, ErrEdgeOffline
	}
	if edge.EdgeKey == "" || edge.EdgeSecret == "" {
		return nil, ErrNoCredentials
	}

	base, err := baseURL(edge)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal command payload: %w", err)
	}

	path := "/api/v1/commands/" + command
	timestamp := time.Now().Unix()
	signature := edgeauth.Sign(edge.EdgeSecret, http.MethodPost, path, timestamp, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(edgeauth.HeaderKey, edge.EdgeKey)
	req.Header.Set(edgeauth.HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	req.Header.Set(edgeauth.HeaderSignature, signature)

	resp, err := d.client.Do(req)
	if err != nil {
		log.Warn().
			Err(err).
			Str("edge_id", edge.EdgeID).
			Str("command", command).
			Msg("Command delivery failed")
		return nil, fmt.Errorf("send command %s: %w", command, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("edge_id", edge.EdgeID).
		Str("command", command).
		Int("status", resp.StatusCode).
		Msg("Command delivered")

	return &Result{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// Restart asks an edge server to restart its analytics services
func (d *Dispatcher) Restart(ctx context.Context, edge *models.EdgeServer) (*Result, error) {
	return d.Send(ctx, edge, "restart", map[string]interface{}{})
}

// SyncConfig pushes the current camera and module configuration down to
// an edge server
func (d *Dispatcher) SyncConfig(ctx context.Context, edge *models.EdgeServer, cfg interface{}) (*Result, error) {
	return d.Send(ctx, edge, "sync-config", cfg)
}

// baseURL picks the best address on record: hostname, then public IP,
// then internal IP.
func baseURL(edge *models.EdgeServer) (string, error) {
	host := edge.Hostname
	if host == "" {
		host = edge.PublicIP
	}
	if host == "" {
		host = edge.InternalIP
	}
	if host == "" {
		return "", ErrNoAddress
	}

	scheme := "http"
	if edge.UseHTTPS {
		scheme = "https"
	}

	port := edge.Port
	if port == 0 {
		port = 8080
	}

	return fmt.Sprintf("%s://%s:%d", scheme, host, port), nil
}
