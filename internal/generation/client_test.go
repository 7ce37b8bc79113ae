package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/prompt"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

var fixedNow = time.Date(2025, 1, 10, 8, 30, 0, 0, time.UTC)

func marathonPackage(t *testing.T) *prompt.Package {
	t.Helper()
	b := prompt.NewBuilder("deepseek-chat", func() time.Time { return fixedNow })
	pkg, err := b.Build(&domain.User{ID: "u-1"}, domain.GoalRequest{RaceDistance: "Marathon", RaceDate: "2025-04-13"})
	require.NoError(t, err)
	return pkg
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func TestMockModeSelection(t *testing.T) {
	assert.True(t, New(Options{}).UsesMock(), "no key means mock")
	assert.True(t, New(Options{APIKey: "k", MockMode: true}).UsesMock())
	assert.False(t, New(Options{APIKey: "k"}).UsesMock())
}

func TestMockGenerateNeverCallsNetwork(t *testing.T) {
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected request to %s", req.URL)
		return nil, nil
	})}
	c := New(Options{HTTPClient: client, Now: func() time.Time { return fixedNow }})

	res, err := c.Generate(context.Background(), marathonPackage(t))
	require.NoError(t, err)
	assert.True(t, res.UsedMock)
	assert.Nil(t, res.RawResponse)

	var plan domain.PlanPayload
	require.NoError(t, json.Unmarshal([]byte(res.Content), &plan))
	require.NotNil(t, plan.PlanSummary)
	assert.Equal(t, 4, plan.PlanSummary.TotalWeeks)
	assert.Equal(t, domain.MileageRange{Min: 40, Max: 55}, plan.PlanSummary.WeeklyMileageRangeKm)
	assert.Equal(t, 0.72, *plan.PlanSummary.ConfidenceScore)
	require.Len(t, plan.Weeks, 4)
	for i, w := range plan.Weeks {
		assert.Equal(t, i+1, w.WeekNumber)
		assert.Len(t, w.Workouts, 4)
	}
	assert.Equal(t, "Taper & sharpen", plan.Weeks[3].MicrocycleFocus)
	assert.Equal(t, fixedNow.Format(time.RFC3339), plan.Metadata.GeneratedAtIso)
}

func TestMockPlanDates(t *testing.T) {
	plan := MockPlan(prompt.Goal{RaceDate: "2025-04-13"}, "", fixedNow)
	assert.Equal(t, mockModel, plan.Metadata.ModelVersion)

	first := plan.Weeks[0].Workouts
	assert.Equal(t, "2025-03-17", first[0].Day)
	assert.Equal(t, "2025-03-23", first[3].Day)

	last := plan.Weeks[3].Workouts
	assert.Equal(t, []string{"2025-04-07", "2025-04-09", "2025-04-11", "2025-04-13"},
		[]string{last[0].Day, last[1].Day, last[2].Day, last[3].Day})
	assert.Equal(t, "Long Run", last[3].WorkoutType)
	assert.Equal(t, "Fuel well and prioritize recovery.", *last[3].Notes)
	assert.Nil(t, last[0].Notes)
}

func TestMockPlanDeterministicUnderFixedClock(t *testing.T) {
	goal := prompt.Goal{RaceDate: "2025-04-13", RaceDistance: "Marathon"}
	a := MockPlan(goal, "m", fixedNow)
	b := MockPlan(goal, "m", fixedNow)
	assert.Equal(t, a, b)

	// An unparsable race date anchors on the clock.
	c := MockPlan(prompt.Goal{RaceDate: "soon"}, "m", fixedNow)
	assert.Equal(t, "2025-01-10", c.Weeks[3].Workouts[2].Day)
}

func TestLiveGenerateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var in map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "deepseek-chat", in["model"])
		format, _ := in["response_format"].(map[string]any)
		assert.Equal(t, "json_object", format["type"])
		schema, err := json.Marshal(format["schema"])
		assert.NoError(t, err)
		assert.JSONEq(t, string(prompt.Schema()), string(schema))
		msgs, _ := in["messages"].([]any)
		assert.Len(t, msgs, 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"r1","choices":[{"message":{"role":"assistant","content":"{\"weeks\":[]}"}}]}`))
	}))
	defer srv.Close()

	c := New(Options{Endpoint: srv.URL, APIKey: "sk-test", Timeout: 2 * time.Second})
	res, err := c.Generate(context.Background(), marathonPackage(t))
	require.NoError(t, err)
	assert.False(t, res.UsedMock)
	assert.Equal(t, `{"weeks":[]}`, res.Content)
	assert.Contains(t, string(res.RawResponse), `"id":"r1"`)
}

func TestLiveRequestOmitsEmptySchema(t *testing.T) {
	var format map[string]any
	transport := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		var in map[string]any
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			return nil, err
		}
		format, _ = in["response_format"].(map[string]any)
		return jsonResponse(http.StatusOK, `{"choices":[{"message":{"content":"{}"}}]}`), nil
	})

	c := New(Options{Endpoint: "http://provider.test", APIKey: "sk-test", HTTPClient: &http.Client{Transport: transport}})
	pkg := marathonPackage(t)
	pkg.Schema = nil
	_, err := c.Generate(context.Background(), pkg)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"type": "json_object"}, format)
}

func TestLiveGenerateErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantText   string
	}{
		{"non-2xx", http.StatusInternalServerError, "upstream down", 500, "status 500: upstream down"},
		{"rate limited", http.StatusTooManyRequests, "", 429, "status 429"},
		{"missing content", http.StatusOK, `{"choices":[{"message":{}}]}`, 0, "missing message content"},
		{"no choices", http.StatusOK, `{"choices":[]}`, 0, "missing message content"},
		{"not json", http.StatusOK, `<html>`, 0, "decode response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
				return jsonResponse(tt.status, tt.body), nil
			})}
			c := New(Options{Endpoint: "http://provider/v1/chat/completions", APIKey: "k", HTTPClient: client})

			_, err := c.Generate(context.Background(), marathonPackage(t))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrProvider))

			var pe *ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.wantStatus, pe.StatusCode)
			assert.Contains(t, err.Error(), tt.wantText)
		})
	}
}

func TestLiveGenerateSingleAttempt(t *testing.T) {
	calls := 0
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusBadGateway, "bad gateway"), nil
	})}
	c := New(Options{Endpoint: "http://provider", APIKey: "k", HTTPClient: client})
	_, err := c.Generate(context.Background(), marathonPackage(t))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestLiveGenerateTimeout(t *testing.T) {
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})}
	c := New(Options{Endpoint: "http://provider", APIKey: "k", HTTPClient: client, Timeout: 20 * time.Millisecond})

	_, err := c.Generate(context.Background(), marathonPackage(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, strings.Contains(err.Error(), "timed out"), err.Error())
}
