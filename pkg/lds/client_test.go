package lds

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/config"
)

type recorded struct {
	path   string
	method string
	auth   string
	body   string
}

func newStub(t *testing.T, status int, contentType, body string, rec *recorded) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if rec != nil {
			*rec = recorded{path: r.URL.Path, method: r.Method, auth: r.Header.Get("Authorization"), body: string(raw)}
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL, token string) *Client {
	t.Helper()
	c, err := NewFromConfig(config.LDSConfig{BaseURL: baseURL, Token: token}, nil)
	require.NoError(t, err)
	return c
}

func TestAuthorizationHeader(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"", ""},
		{"abc", "Bearer abc"},
		{"  abc  ", "Bearer abc"},
		{"Bearer abc", "Bearer abc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AuthorizationHeader(tt.token), tt.token)
	}
}

func TestForward_PassesThroughStatusAndBody(t *testing.T) {
	tests := []struct {
		name   string
		option Option
		path   string
		status int
		body   string
	}{
		{"subjects", OptionSubjects, "/chatbot/options/courses/subjects", 200, `[{"id":1,"name":"Science"}]`},
		{"grade levels", OptionGradeLevels, "/chatbot/options/courses/grade-levels", 200, `["P1","P2"]`},
		{"bloom levels", OptionBloomLevels, "/chatbot/options/intended-learning-outcomes/bloom-taxonomy-levels", 200, `[]`},
		{"bloom verbs", OptionBloomVerbs, "/chatbot/options/intended-learning-outcomes/bloom-taxonomy-verbs", 200, `["explain"]`},
		{"categories unauthorized", OptionILOCategories, "/chatbot/options/intended-learning-outcomes/types", 401, `{"message":"Unauthenticated."}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec recorded
			srv := newStub(t, tt.status, "application/json", tt.body, &rec)
			c := newTestClient(t, srv.URL, "secret")

			resp, err := c.Forward(context.Background(), tt.option, LocaleBody("en"))
			require.NoError(t, err)

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.body, string(resp.Body))
			assert.True(t, resp.IsJSON())
			assert.Equal(t, tt.path, rec.path)
			assert.Equal(t, http.MethodPost, rec.method)
			assert.Equal(t, "Bearer secret", rec.auth)
			assert.JSONEq(t, `{"locale":"en"}`, rec.body)
		})
	}
}

func TestForward_EmptyBodyBecomesObject(t *testing.T) {
	var rec recorded
	srv := newStub(t, 200, "application/json", `[]`, &rec)
	c := newTestClient(t, srv.URL, "")

	_, err := c.Forward(context.Background(), OptionILOPatterns, nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", rec.body)
	assert.Empty(t, rec.auth)
}

func TestForward_NonJSONBody(t *testing.T) {
	srv := newStub(t, 200, "text/html", "<html>login</html>", nil)
	c := newTestClient(t, srv.URL, "x")

	resp, err := c.Forward(context.Background(), OptionSubjects, nil)
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.False(t, resp.IsJSON())
}

func TestForward_UnknownOption(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", "")
	_, err := c.Forward(context.Background(), Option("weather"), nil)
	assert.Error(t, err)
}

func TestForward_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewFromConfig(config.LDSConfig{BaseURL: srv.URL, ReadTimeout: 50 * time.Millisecond}, nil)
	require.NoError(t, err)

	_, err = c.Forward(context.Background(), OptionSubjects, nil)
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))

	var ldsErr *Error
	require.True(t, errors.As(err, &ldsErr))
	assert.Equal(t, srv.URL+"/chatbot/options/courses/subjects", ldsErr.URL)
}

func TestForward_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, "")
	_, err := c.Forward(context.Background(), OptionGradeLevels, nil)
	require.Error(t, err)
	assert.Equal(t, KindConnectionFailure, KindOf(err))
}

func TestCall_ErrorStatuses(t *testing.T) {
	tests := []struct {
		status int
		kind   ErrorKind
	}{
		{401, KindAuthFailed},
		{403, KindAuthFailed},
		{500, KindUpstreamError},
	}
	for _, tt := range tests {
		srv := newStub(t, tt.status, "text/plain", "nope", nil)
		c := newTestClient(t, srv.URL, "x")

		_, err := c.Call(context.Background(), OptionILOCategories, map[string]string{"locale": "en"})
		require.Error(t, err)
		assert.Equal(t, tt.kind, KindOf(err))
		assert.Contains(t, err.Error(), "LDS API error")
	}
}

func TestILOCategories(t *testing.T) {
	var rec recorded
	srv := newStub(t, 200, "application/json",
		`["Knowledge", {"name":"Skills"}, {"label":"Values and Attitudes"}, {"id":4}, ""]`, &rec)
	c := newTestClient(t, srv.URL, "")

	names, err := c.ILOCategories(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Knowledge", "Skills", "Values and Attitudes"}, names)

	var sent map[string]string
	require.NoError(t, json.Unmarshal([]byte(rec.body), &sent))
	assert.Equal(t, "zh_HK", sent["locale"])
}

func TestILOCategories_EmptyIsError(t *testing.T) {
	srv := newStub(t, 200, "application/json", `[]`, nil)
	c := newTestClient(t, srv.URL, "")

	_, err := c.ILOCategories(context.Background(), "en")
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	var rec recorded
	srv := newStub(t, 200, "application/json", `[]`, &rec)
	c := newTestClient(t, srv.URL, "")

	resp, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "/chatbot/options/courses/subjects", rec.path)
	assert.JSONEq(t, `{"locale":"zh_HK"}`, rec.body)
}

func TestParseOption(t *testing.T) {
	opt, err := ParseOption("bloom-taxonomy-verbs")
	require.NoError(t, err)
	assert.Equal(t, OptionBloomVerbs, opt)

	_, err = ParseOption("weather")
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "No response body", Preview(nil, 10))
	assert.Equal(t, "abc", Preview([]byte("abcdef"), 3))
	assert.Equal(t, "課程", Preview([]byte("課程設計"), 2))
}

func intPtr(v int) *int { return &v }

func TestForward_RateLimitWaitIsTimeout(t *testing.T) {
	srv := newStub(t, 200, "application/json", `[]`, nil)
	c, err := NewFromConfig(config.LDSConfig{BaseURL: srv.URL, RateLimit: intPtr(1), BurstLimit: 1}, nil)
	require.NoError(t, err)

	_, err = c.Forward(context.Background(), OptionSubjects, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = c.Forward(ctx, OptionSubjects, nil)
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))

	var ldsErr *Error
	require.True(t, errors.As(err, &ldsErr))
	assert.Equal(t, srv.URL+"/chatbot/options/courses/subjects", ldsErr.URL)
	assert.Zero(t, ldsErr.StatusCode)
}

func TestForward_ZeroRateLimitDisablesThrottle(t *testing.T) {
	srv := newStub(t, 200, "application/json", `[]`, nil)
	c, err := NewFromConfig(config.LDSConfig{BaseURL: srv.URL, RateLimit: intPtr(0), BurstLimit: 1}, nil)
	require.NoError(t, err)
	assert.Nil(t, c.getOrCreateLimiter(OptionSubjects))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 0; i < 5; i++ {
		_, err := c.Forward(ctx, OptionSubjects, nil)
		require.NoError(t, err, "call %d", i)
	}
	assert.Empty(t, c.limiters)
}

func TestForward_DefaultRateLimit(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", "")
	assert.Equal(t, 600, c.rateLimit)
	assert.NotNil(t, c.getOrCreateLimiter(OptionSubjects))
}
