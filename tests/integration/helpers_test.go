//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/statusdeck/statusdeck/internal/testutil"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct-horse-battery"

var nameCounter atomic.Int64

// uniqueName returns a name no other test in this run has used.
func uniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), nameCounter.Add(1))
}

type userPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type servicePayload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Status string `json:"status"`
}

type incidentPayload struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Status     string   `json:"status"`
	Impact     string   `json:"impact"`
	ServiceIDs []string `json:"service_ids"`
	ResolvedAt *string  `json:"resolved_at"`
	IsResolved bool     `json:"is_resolved"`
}

type updatePayload struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// newAccount registers a fresh user, logs in and returns an
// authenticated client together with the user id.
func newAccount(t *testing.T) (client *testutil.Client, userID string) {
	t.Helper()

	username := uniqueName("user")
	anon := newTestClient()

	resp, err := anon.POST("/api/v1/auth/register", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": testPassword,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	return loginAs(t, username)
}

// loginAs logs in an existing user and returns an authenticated client.
func loginAs(t *testing.T, username string) (*testutil.Client, string) {
	t.Helper()

	resp, err := newTestClient().POST("/api/v1/auth/login", map[string]string{
		"username": username,
		"password": testPassword,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			User  userPayload `json:"user"`
			Token string      `json:"token"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	require.NotEmpty(t, result.Data.Token)

	return newTestClient().WithToken(result.Data.Token), result.Data.User.ID
}

// grantAdmin promotes a user directly in the database. The promotion
// only shows up in tokens issued afterwards.
func grantAdmin(t *testing.T, userID string) {
	t.Helper()

	_, err := testDB.Exec(context.Background(),
		`UPDATE users SET role = 'admin' WHERE id = $1`, userID)
	require.NoError(t, err)
}

func createService(t *testing.T, client *testutil.Client, name string) servicePayload {
	t.Helper()

	resp, err := client.POST("/api/v1/services", map[string]string{
		"name":        name,
		"description": "integration fixture",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data servicePayload `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

func getService(t *testing.T, client *testutil.Client, id string) servicePayload {
	t.Helper()

	resp, err := client.GET("/api/v1/services/" + id)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data servicePayload `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

func createIncident(t *testing.T, client *testutil.Client, impact string, serviceIDs []string) incidentPayload {
	t.Helper()

	resp, err := client.POST("/api/v1/incidents", map[string]any{
		"title":       uniqueName("incident"),
		"description": "integration fixture",
		"impact":      impact,
		"service_ids": serviceIDs,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data incidentPayload `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

func getIncident(t *testing.T, client *testutil.Client, id string) incidentPayload {
	t.Helper()

	resp, err := client.GET("/api/v1/incidents/" + id)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data incidentPayload `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

func listUpdates(t *testing.T, client *testutil.Client, incidentID string) []updatePayload {
	t.Helper()

	resp, err := client.GET("/api/v1/incidents/" + incidentID + "/updates")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data []updatePayload `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}
