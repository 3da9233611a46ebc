package frankfurter_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"marketfeed/internal/provider/frankfurter"
)

func jsonResponse(body string) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}, nil
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	// Assert: the keyless constructor always yields a usable client.
	client := frankfurter.NewClient()
	require.NotNil(t, client)
}

func TestWithBaseURL(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock http client
	httpClient := NewMockHTTPClient(ctrl)

	baseURL := "http://localhost:9090"

	// Assert: requests must target the overridden base URL.
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Truef(t, strings.HasPrefix(req.URL.String(), baseURL), "expected url to start with base url, received: %s", req.URL.String())
			return jsonResponse(`{"amount":1.0,"base":"EUR","date":"2026-02-10","rates":{"USD":1.0856}}`)
		}).
		Times(1)

	client := frankfurter.NewClient(
		frankfurter.WithBaseURL(baseURL+"/"),
		frankfurter.WithHTTPClient(httpClient),
	)

	// Act
	_, err := client.Latest(context.Background(), "EUR", []string{"USD"})
	require.NoError(t, err)
}

func TestLatest(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "/latest", req.URL.Path)
			require.Equal(t, "EUR", req.URL.Query().Get("base"))
			require.Equal(t, "USD", req.URL.Query().Get("symbols"))
			return jsonResponse(`{"amount":1.0,"base":"EUR","date":"2026-02-10","rates":{"USD":1.0856}}`)
		}).
		Times(1)

	client := frankfurter.NewClient(frankfurter.WithHTTPClient(httpClient))

	resp, err := client.Latest(context.Background(), "EUR", []string{"USD"})
	require.NoError(t, err)
	require.Equal(t, "EUR", resp.Base)
	require.Equal(t, 1.0856, resp.Rates["USD"])
}

func TestOn(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "/2026-02-03", req.URL.Path)
			return jsonResponse(`{"amount":1.0,"base":"EUR","date":"2026-02-03","rates":{"USD":1.0700}}`)
		}).
		Times(1)

	client := frankfurter.NewClient(frankfurter.WithHTTPClient(httpClient))

	resp, err := client.On(context.Background(), "2026-02-03", "EUR", []string{"USD"})
	require.NoError(t, err)
	require.Equal(t, 1.07, resp.Rates["USD"])
}

func TestRange(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "/2026-02-02..2026-02-06", req.URL.Path)
			return jsonResponse(`{"amount":1.0,"base":"EUR","start_date":"2026-02-02","end_date":"2026-02-06","rates":{
				"2026-02-02":{"USD":1.0700},
				"2026-02-03":{"USD":1.0720},
				"2026-02-04":{"USD":1.0790}
			}}`)
		}).
		Times(1)

	client := frankfurter.NewClient(frankfurter.WithHTTPClient(httpClient))

	resp, err := client.Range(context.Background(), "2026-02-02", "2026-02-06", "EUR", []string{"USD"})
	require.NoError(t, err)
	require.Len(t, resp.Rates, 3)
	require.Equal(t, 1.079, resp.Rates["2026-02-04"]["USD"])
}

func TestHTTPStatusError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusTooManyRequests,
				Body:       io.NopCloser(strings.NewReader("slow down")),
			}, nil
		}).
		Times(1)

	client := frankfurter.NewClient(frankfurter.WithHTTPClient(httpClient))

	_, err := client.Latest(context.Background(), "EUR", []string{"USD"})
	require.Error(t, err)
}
