package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/lds"
)

func jsonResponse(status int, body string) *lds.Response {
	return &lds.Response{
		StatusCode:  status,
		ContentType: "application/json",
		Body:        []byte(body),
		URL:         "https://lds.test/api/chatbot/options/courses/subjects",
	}
}

func TestForward_RelaysJSON(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"ok", 200, `[{"id":1,"name":"Science"}]`},
		{"unauthorized json", 401, `{"message":"Unauthenticated."}`},
		{"server error json", 500, `{"message":"boom"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeLDS{resp: jsonResponse(tt.status, tt.body)}
			o := newTestOrchestrator(t, testDeps{lds: fake})

			got, err := o.Forward(context.Background(), lds.OptionSubjects, "en")
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			assert.JSONEq(t, tt.body, string(got.Body))

			assert.Equal(t, []string{"subjects"}, fake.forwarded)
			assert.JSONEq(t, `{"locale":"en"}`, fake.bodies[0])
		})
	}
}

func TestForwardRaw_PassesBodyUnchanged(t *testing.T) {
	fake := &fakeLDS{resp: jsonResponse(200, `{"patterns":[]}`)}
	o := newTestOrchestrator(t, testDeps{lds: fake})

	body := `{"subject":"Math","grade":"P3"}`
	_, err := o.ForwardRaw(context.Background(), lds.OptionILOPatterns, []byte(body))
	require.NoError(t, err)
	assert.Equal(t, []string{"ilo-patterns"}, fake.forwarded)
	assert.Equal(t, body, fake.bodies[0])
}

func TestForward_NonJSONSuccess(t *testing.T) {
	fake := &fakeLDS{resp: &lds.Response{StatusCode: 200, ContentType: "text/html", Body: []byte("<html>login</html>")}}
	o := newTestOrchestrator(t, testDeps{lds: fake})

	_, err := o.Forward(context.Background(), lds.OptionGradeLevels, "zh_HK")
	e := requireAgentError(t, err)
	assert.Equal(t, KindMalformedUpstreamOutput, e.Kind)
	assert.Equal(t, 500, e.Status)

	body := e.Body()
	assert.Equal(t, "Invalid JSON response from LDS API", body["error"])
	assert.Equal(t, "LDS API returned non-JSON content. Status: 200", body["details"])
	assert.Equal(t, "<html>login</html>", body["raw_preview"])
}

func TestForward_NonJSONErrorStatus(t *testing.T) {
	tests := []struct {
		status   int
		authFlag bool
	}{
		{502, false},
		{401, true},
	}

	for _, tt := range tests {
		fake := &fakeLDS{resp: &lds.Response{
			StatusCode: tt.status,
			Body:       []byte("Bad Gateway"),
			URL:        "https://lds.test/api/chatbot/options/courses/subjects",
		}}
		o := newTestOrchestrator(t, testDeps{lds: fake})

		_, err := o.Forward(context.Background(), lds.OptionSubjects, "en")
		e := requireAgentError(t, err)
		assert.Equal(t, tt.status, e.Status)

		body := e.Body()
		assert.Equal(t, "LDS API error "+itoa(tt.status), body["error"])
		assert.Equal(t, "Bad Gateway", body["details"])
		assert.Equal(t, tt.status, body["status_code"])
		assert.Equal(t, "https://lds.test/api/chatbot/options/courses/subjects", body["url"])
		if tt.authFlag {
			assert.Equal(t, true, body["auth_issue"])
		} else {
			assert.NotContains(t, body, "auth_issue")
		}
	}
}

func TestForward_TransportErrors(t *testing.T) {
	url := "https://lds.test/api/chatbot/options/courses/subjects"
	tests := []struct {
		name    string
		err     error
		status  int
		kind    Kind
		message string
	}{
		{
			name:    "timeout",
			err:     &lds.Error{Kind: lds.KindTimeout, URL: url, Err: context.DeadlineExceeded},
			status:  504,
			kind:    KindUpstreamTimeout,
			message: "Request to LDS API timed out",
		},
		{
			name:    "connection refused",
			err:     &lds.Error{Kind: lds.KindConnectionFailure, URL: url, Err: errors.New("connection refused")},
			status:  503,
			kind:    KindUpstreamUnreachable,
			message: "Cannot connect to LDS API",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(t, testDeps{lds: &fakeLDS{err: tt.err}})

			_, err := o.Forward(context.Background(), lds.OptionSubjects, "en")
			e := requireAgentError(t, err)
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.message, e.Body()["error"])
			assert.Equal(t, url, e.Body()["url"])
		})
	}
}

func TestHealth(t *testing.T) {
	t.Run("connected", func(t *testing.T) {
		fake := &fakeLDS{pingResp: jsonResponse(200, `[]`)}
		o := newTestOrchestrator(t, testDeps{lds: fake})

		report := o.Health(context.Background())
		assert.Equal(t, "ok", report.Status)
		assert.Equal(t, "running", report.Backend)
		assert.Equal(t, "https://lds.test/api", report.Config.LDSBaseURL)
		assert.True(t, report.Config.LDSTokenSet)
		assert.True(t, report.Config.LLMClientAvailable)
		assert.Equal(t, "connected", report.LDSAPI["status"])
		assert.Equal(t, 200, report.LDSAPI["status_code"])
	})

	t.Run("error status", func(t *testing.T) {
		fake := &fakeLDS{pingResp: jsonResponse(401, `{}`)}
		o := newTestOrchestrator(t, testDeps{lds: fake})

		report := o.Health(context.Background())
		assert.Equal(t, "ok", report.Status)
		assert.Equal(t, "error", report.LDSAPI["status"])
		assert.Equal(t, 401, report.LDSAPI["status_code"])
	})

	t.Run("unreachable", func(t *testing.T) {
		fake := &fakeLDS{pingErr: &lds.Error{Kind: lds.KindConnectionFailure, Err: errors.New("dial tcp: refused")}}
		o := newTestOrchestrator(t, testDeps{lds: fake})

		report := o.Health(context.Background())
		assert.Equal(t, "ok", report.Status)
		assert.Equal(t, "error", report.LDSAPI["status"])
		assert.Equal(t, "ConnectionFailure", report.LDSAPI["type"])
		assert.Contains(t, report.LDSAPI["error"], "refused")
	})
}

func itoa(n int) string {
	return fmt.Sprint(n)
}
