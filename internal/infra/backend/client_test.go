package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/estate-chat/internal/domain/chat"
)

func TestNewClient_ValidatesURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://x", "localhost:8000", "http://"} {
		_, err := NewClient(raw, nil)
		require.Error(t, err, raw)
	}

	c, err := NewClient("http://localhost:8000/api/", nil)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000/api", c.BaseURL())
	require.Equal(t, "http://localhost:8000/api/chatbot/chat/", c.endpoint(PathChat, nil))
	require.Equal(t, "http://localhost:8000/api/data-upload/7/preview/", c.endpoint(PreviewPath("7"), nil))
	require.Equal(t, "http://localhost:8000/api/filter-data/3/download_excel/", c.endpoint(FilteredExcelPath("3"), nil))
}

func TestUpload_SendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/data-upload/upload/", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "sess-1", r.FormValue("session_id"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		require.Equal(t, "listings.csv", hdr.Filename)
		require.Equal(t, "location,price\nWakad,1\n", string(data))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":12,"session_id":"sess-1","file_name":"listings.csv","columns":["location","price"],"row_count":1}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/api", srv.Client())
	require.NoError(t, err)

	receipt, err := c.Upload(context.Background(), "sess-1", &domain.UploadedFile{
		Name:        "listings.csv",
		ContentType: "text/csv",
		Data:        []byte("location,price\nWakad,1\n"),
	})
	require.NoError(t, err)
	require.Equal(t, domain.UploadID("12"), receipt.ID)
	require.Equal(t, []string{"location", "price"}, receipt.Columns)
}

func TestChat_DecodesReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chatbot/chat/", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "Analyze Wakad", body["message"])
		require.Equal(t, "sess-1", body["session_id"])

		w.Write([]byte(`{"response":"X","chart":{"years":[2021],"prices":[1],"demand":[2]},"table":[{"a":1}],"timestamp":"2024-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/api", srv.Client())
	require.NoError(t, err)

	reply, err := c.Chat(context.Background(), domain.ChatRequest{Message: "Analyze Wakad", SessionID: "sess-1"})
	require.NoError(t, err)
	require.Equal(t, "X", reply.Response)
	require.JSONEq(t, `{"years":[2021],"prices":[1],"demand":[2]}`, string(reply.Chart))
	require.JSONEq(t, `[{"a":1}]`, string(reply.Table))
}

func TestChat_Errors(t *testing.T) {
	t.Run("non 2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"Chatbot service unavailable"}`))
		}))
		defer srv.Close()
		c, _ := NewClient(srv.URL, srv.Client())

		_, err := c.Chat(context.Background(), domain.ChatRequest{Message: "hi"})
		var up *domain.UpstreamError
		require.ErrorAs(t, err, &up)
		require.Equal(t, http.StatusServiceUnavailable, up.HTTPStatusCode())
		require.Contains(t, up.Body, "Chatbot service unavailable")
	})

	t.Run("malformed json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>oops</html>`))
		}))
		defer srv.Close()
		c, _ := NewClient(srv.URL, srv.Client())

		_, err := c.Chat(context.Background(), domain.ChatRequest{Message: "hi"})
		require.ErrorContains(t, err, "malformed json")
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		base := srv.URL
		srv.Close()
		c, _ := NewClient(base, nil)

		_, err := c.Chat(context.Background(), domain.ChatRequest{Message: "hi"})
		require.Error(t, err)
		require.ErrorContains(t, err, "backend chat")
	})
}

func TestForward_RelaysVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chatbot/history/", r.URL.Path)
		require.Equal(t, "s1", r.URL.Query().Get("session_id"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"session_id parameter required"}`))
	}))
	defer srv.Close()
	c, _ := NewClient(srv.URL+"/api", srv.Client())

	relay, err := c.Forward(context.Background(), ForwardRequest{
		Method: http.MethodGet,
		Path:   PathHistory,
		Query:  url.Values{"session_id": {"s1"}},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, relay.Status)
	require.Equal(t, "application/json", relay.ContentType)
	require.Equal(t, `{"error":"session_id parameter required"}`, string(relay.Body))
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/analysis/trending/"))
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	c, _ := NewClient(srv.URL+"/api", srv.Client())
	require.NoError(t, c.Ping(context.Background()))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	c, _ = NewClient(down.URL, down.Client())
	var up *domain.UpstreamError
	require.ErrorAs(t, c.Ping(context.Background()), &up)
	require.Equal(t, http.StatusBadGateway, up.Status)
}
