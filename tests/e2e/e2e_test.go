//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	baseURL = getEnv("LEADBOARD_API_URL", "http://127.0.0.1:8080")
	apiBase = baseURL + "/api/v1"
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

type TestClient struct {
	httpClient *http.Client
	csrfToken  string
}

func NewTestClient() *TestClient {
	jar, _ := cookiejar.New(nil)
	return &TestClient{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
		},
	}
}

func (c *TestClient) Do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.csrfToken != "" {
		req.Header.Set("X-CSRF-Token", c.csrfToken)
	}
	return c.httpClient.Do(req)
}

func (c *TestClient) decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func (c *TestClient) fetchCSRF(t *testing.T) {
	t.Helper()
	resp, err := c.Do(http.MethodGet, apiBase+"/auth/csrf", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]string
	c.decode(t, resp, &out)
	c.csrfToken = out["csrf_token"]
}

func TestE2E_LeadWorkflow(t *testing.T) {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		t.Skipf("leadboard not reachable at %s: %v", baseURL, err)
	}
	resp.Body.Close()

	var (
		businessID string
		leadID     string
		revision   int64
	)
	owner := NewTestClient()
	email := fmt.Sprintf("owner-%d@leadboard.local", time.Now().UnixNano())

	t.Run("Owner signs up", func(t *testing.T) {
		resp, err := owner.Do(http.MethodPost, apiBase+"/auth/register", map[string]string{
			"email":        email,
			"password":     "password123",
			"display_name": "E2E Owner",
		})
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		owner.fetchCSRF(t)
		require.NotEmpty(t, owner.csrfToken)
	})

	t.Run("Owner creates a business and a lead", func(t *testing.T) {
		resp, err := owner.Do(http.MethodPost, apiBase+"/businesses", map[string]string{"name": "E2E Studio"})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var b struct {
			ID string `json:"id"`
		}
		owner.decode(t, resp, &b)
		businessID = b.ID

		resp, err = owner.Do(http.MethodPost, apiBase+"/businesses/"+businessID+"/leads", map[string]string{
			"name":           "Noa",
			"phone":          "+972 50-123-4567",
			"treatment_type": "Facial",
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var l struct {
			ID       string `json:"id"`
			Status   string `json:"status"`
			Revision int64  `json:"revision"`
		}
		owner.decode(t, resp, &l)
		assert.Equal(t, "NEW", l.Status)
		leadID, revision = l.ID, l.Revision
	})

	t.Run("Pipeline moves and stale edits are rejected", func(t *testing.T) {
		require.NotEmpty(t, leadID)
		path := apiBase + "/businesses/" + businessID + "/leads/" + leadID + "/status"

		resp, err := owner.Do(http.MethodPut, path, map[string]any{"status": "CONTACTED", "revision": revision})
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, err = owner.Do(http.MethodPut, path, map[string]any{"status": "NO_RESPONSE", "revision": revision})
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		resp, err = owner.Do(http.MethodPut, path, map[string]any{"status": "APPOINTMENT_SCHEDULED"})
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Board reflects the month", func(t *testing.T) {
		resp, err := owner.Do(http.MethodGet, apiBase+"/businesses/"+businessID+"/board", nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var board struct {
			Counts  map[string]int `json:"counts"`
			Monthly struct {
				MonthlyTotal          int `json:"monthly_total"`
				ScheduledInMonth      int `json:"scheduled_in_month"`
				ConversionRatePercent int `json:"conversion_rate_percent"`
			} `json:"monthly"`
		}
		owner.decode(t, resp, &board)
		assert.Equal(t, 1, board.Counts["ALL"])
		assert.Equal(t, 1, board.Counts["APPOINTMENT_SCHEDULED"])
		assert.Equal(t, 1, board.Monthly.MonthlyTotal)
		assert.Equal(t, 100, board.Monthly.ConversionRatePercent)
	})

	t.Run("Another owner cannot reach the business", func(t *testing.T) {
		other := NewTestClient()
		resp, err := other.Do(http.MethodPost, apiBase+"/auth/register", map[string]string{
			"email":    "other-" + email,
			"password": "password123",
		})
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, err = other.Do(http.MethodGet, apiBase+"/businesses/"+businessID+"/board", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Owner deletes the lead and logs out", func(t *testing.T) {
		resp, err := owner.Do(http.MethodDelete, apiBase+"/businesses/"+businessID+"/leads/"+leadID, nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, err = owner.Do(http.MethodPost, apiBase+"/auth/logout", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, err = owner.Do(http.MethodGet, apiBase+"/auth/me", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
