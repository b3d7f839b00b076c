package licensing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClientActivate(t *testing.T) {
	expire := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/activate_license.php", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "ABC-123", r.PostForm.Get("licence_code"))
		require.Equal(t, "admin@example.com", r.PostForm.Get("email"))

		json.NewEncoder(w).Encode(ActivationResult{
			CompanyID:   4,
			LicenceType: "premium",
			ExpireDate:  &expire,
			CompanyName: "Acme Labs",
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL + "/")
	require.NoError(t, err)

	result, err := client.Activate(context.Background(), "ABC-123", "admin@example.com")
	require.NoError(t, err)
	require.EqualValues(t, 4, result.CompanyID)
	require.Equal(t, "premium", result.LicenceType)
	require.Equal(t, "Acme Labs", result.CompanyName)
	require.True(t, expire.Equal(*result.ExpireDate))
}

func TestClientActivateRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	_, err = client.Activate(context.Background(), "BAD-CODE", "admin@example.com")
	require.ErrorIs(t, err, ErrLicenseRejected)
}

func TestClientRegisterDevice(t *testing.T) {
	accepted := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/device_register.php", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "4", r.PostForm.Get("company_id"))
		require.NotEmpty(t, r.PostForm.Get("device_id"))

		json.NewEncoder(w).Encode(map[string]any{"accepted": accepted})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	require.NoError(t, client.RegisterDevice(context.Background(), 4, "abcdef"))

	accepted = false
	err = client.RegisterDevice(context.Background(), 4, "abcdef")
	require.ErrorIs(t, err, ErrDeviceMismatch)
}

func TestClientUpdateCompany(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/update_company.php", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "Acme Labs", r.PostForm.Get("company_name"))
		require.Equal(t, "1 Main St", r.PostForm.Get("company_address"))
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)
	require.NoError(t, client.UpdateCompany(context.Background(), 4, "Acme Labs", "1 Main St"))
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient("   ")
	require.Error(t, err)
}
