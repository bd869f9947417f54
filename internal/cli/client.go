package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/warden/internal/presentation/tui"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/olekukonko/tablewriter"
)

// Client talks to a running host's control API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient targets addr, which may be a bare host:port or a URL.
func NewClient(addr string) *Client {
	base := addr
	if strings.HasPrefix(base, ":") {
		base = "localhost" + base
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		BaseURL: strings.TrimRight(base, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Statuses fetches GET /drivers.
func (c *Client) Statuses(ctx context.Context) ([]domain.DriverStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/drivers", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.BaseURL, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp, http.StatusOK); err != nil {
		return nil, err
	}
	var statuses []domain.DriverStatus
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		return nil, fmt.Errorf("failed to decode drivers: %w", err)
	}
	return statuses, nil
}

// Publish implements ports.Publisher over POST /signal.
func (c *Client) Publish(ctx context.Context, sig domain.Signal) error {
	body, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/signal", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.BaseURL, err)
	}
	defer resp.Body.Close()
	return checkResponse(resp, http.StatusAccepted)
}

// Kickstart calls POST /drivers/{name}/kickstart.
func (c *Client) Kickstart(ctx context.Context, name string) (domain.DriverStatus, error) {
	var status domain.DriverStatus
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/drivers/"+name+"/kickstart", nil)
	if err != nil {
		return status, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return status, fmt.Errorf("failed to connect to %s: %w", c.BaseURL, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp, http.StatusOK); err != nil {
		return status, err
	}
	err = json.NewDecoder(resp.Body).Decode(&status)
	return status, err
}

func checkResponse(resp *http.Response, want int) error {
	if resp.StatusCode == want {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("API error (%s): %s", resp.Status, strings.TrimSpace(string(msg)))
}

// RenderStatusTable writes statuses as a table.
func RenderStatusTable(w io.Writer, statuses []domain.DriverStatus) error {
	if len(statuses) == 0 {
		_, err := fmt.Fprintln(w, "No drivers running")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Name", "Component", "State", "PID", "Generation", "Restarts", "Pending", "RSS", "Last Exit")
	for _, s := range statuses {
		pid := "-"
		if s.PID > 0 {
			pid = fmt.Sprintf("%d", s.PID)
		}
		table.Append(
			s.Name,
			s.Component,
			tui.StateLabel(s.State),
			pid,
			fmt.Sprintf("%d", s.Generation),
			fmt.Sprintf("%d", s.Restarts),
			fmt.Sprintf("%d", s.Pending),
			formatBytes(s.RSS),
			s.LastExit,
		)
	}
	return table.Render()
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n == 0 {
		return "-"
	}
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
