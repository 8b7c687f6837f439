package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubInvoker struct {
	mu       sync.Mutex
	calls    int
	prompts  []string
	schemas  []*Schema
	response string
	err      error
	panicVal any
}

func (s *stubInvoker) Invoke(_ context.Context, prompt string, output *Schema) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.prompts = append(s.prompts, prompt)
	s.schemas = append(s.schemas, output)
	if s.panicVal != nil {
		panic(s.panicVal)
	}
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.response), nil
}

func (s *stubInvoker) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

const validPatternResponse = `{
	"peakUsageTimes": ["08:00-09:00", "17:30-19:00"],
	"averageChargingDuration": 42.5,
	"predictedOverloadRisk": true,
	"suggestedChargingSchedule": "Shift fleet charging to 22:00-05:00."
}`

func newPatternAnalysis(t *testing.T, invoker Invoker) *PatternAnalysis {
	t.Helper()
	fn, err := NewPatternAnalysis(invoker, zaptest.NewLogger(t))
	require.NoError(t, err)
	return fn
}

func newRecommendation(t *testing.T, invoker Invoker) *Recommendation {
	t.Helper()
	fn, err := NewRecommendation(invoker, zaptest.NewLogger(t))
	require.NoError(t, err)
	return fn
}

func validRecommendationRequest() RecommendationRequest {
	return RecommendationRequest{
		UserID:                 "user-123",
		RecentChargingSessions: `[{"stationId":"SC-001","startTime":"2023-10-26T18:00:00Z","endTime":"2023-10-26T22:00:00Z","energyConsumed":40}]`,
		CurrentGridConditions:  `{"price":"off-peak","availability":"high"}`,
	}
}

func TestPatternAnalysisReturnsParsedResult(t *testing.T) {
	stub := &stubInvoker{response: validPatternResponse}
	fn := newPatternAnalysis(t, stub)

	got, err := fn.Invoke(context.Background(), PatternAnalysisRequest{
		StationID: "SC-001",
		StartDate: "2024-01-01T00:00:00Z",
		EndDate:   "2024-01-31T00:00:00Z",
	})
	require.NoError(t, err)

	want := PatternAnalysisResult{
		PeakUsageTimes:            []string{"08:00-09:00", "17:30-19:00"},
		AverageChargingDuration:   42.5,
		PredictedOverloadRisk:     true,
		SuggestedChargingSchedule: "Shift fleet charging to 22:00-05:00.",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, 1, stub.callCount())
	assert.Contains(t, stub.prompts[0], "charging station SC-001 between 2024-01-01T00:00:00Z and 2024-01-31T00:00:00Z")
	assert.NotContains(t, stub.prompts[0], "{{")
	assert.Same(t, PatternAnalysisOutput, stub.schemas[0])
}

func TestPatternAnalysisRejectsEmptyStationWithoutCallingModel(t *testing.T) {
	stub := &stubInvoker{response: validPatternResponse}
	fn := newPatternAnalysis(t, stub)

	_, err := fn.Invoke(context.Background(), PatternAnalysisRequest{
		StationID: "",
		StartDate: "2024-01-01T00:00:00Z",
		EndDate:   "2024-01-31T00:00:00Z",
	})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, []string{"stationId"}, validationErr.Fields())
	assert.Equal(t, 0, stub.callCount())
}

func TestInvalidInputsNeverReachModel(t *testing.T) {
	cases := map[string]any{
		"nil input":          nil,
		"not an object":      []byte(`["SC-001"]`),
		"malformed json":     []byte(`{"stationId":`),
		"missing endDate":    map[string]any{"stationId": "SC-001", "startDate": "2024-01-01"},
		"blank station":      map[string]any{"stationId": "   ", "startDate": "2024-01-01", "endDate": "2024-01-02"},
		"numeric station":    map[string]any{"stationId": 17, "startDate": "2024-01-01", "endDate": "2024-01-02"},
		"bad date":           map[string]any{"stationId": "SC-001", "startDate": "01/01/2024", "endDate": "2024-01-02"},
		"end before start":   PatternAnalysisRequest{StationID: "SC-001", StartDate: "2024-02-01", EndDate: "2024-01-01"},
		"null station field": json.RawMessage(`{"stationId":null,"startDate":"2024-01-01","endDate":"2024-01-02"}`),
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			stub := &stubInvoker{response: validPatternResponse}
			fn := newPatternAnalysis(t, stub)

			_, err := fn.Invoke(context.Background(), input)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.NotEmpty(t, validationErr.Violations)
			assert.Equal(t, 0, stub.callCount())
		})
	}
}

func TestEndDateEqualToStartDateIsAccepted(t *testing.T) {
	stub := &stubInvoker{response: validPatternResponse}
	fn := newPatternAnalysis(t, stub)

	_, err := fn.Invoke(context.Background(), &PatternAnalysisRequest{
		StationID: "SC-002",
		StartDate: "2024-03-01",
		EndDate:   "2024-03-01",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stub.callCount())
}

func TestRecommendationRejectsOutOfRangeConfidence(t *testing.T) {
	stub := &stubInvoker{response: `{"recommendation":"Charge at night","confidenceScore":1.4}`}
	fn := newRecommendation(t, stub)

	_, err := fn.Invoke(context.Background(), validRecommendationRequest())

	var contractErr *OutputContractError
	require.ErrorAs(t, err, &contractErr)
	assert.Equal(t, []Violation{{Path: "confidenceScore", Rule: "lte=1"}}, contractErr.Violations)
	assert.Equal(t, 1, stub.callCount())
}

func TestRecommendationOutputContract(t *testing.T) {
	cases := map[string]struct {
		response string
		path     string
	}{
		"missing confidence":  {`{"recommendation":"Charge at night"}`, "confidenceScore"},
		"negative confidence": {`{"recommendation":"Charge at night","confidenceScore":-0.1}`, "confidenceScore"},
		"numeric string":      {`{"recommendation":"Charge at night","confidenceScore":"0.8"}`, "confidenceScore"},
		"null confidence":     {`{"recommendation":"Charge at night","confidenceScore":null}`, "confidenceScore"},
		"missing text":        {`{"confidenceScore":0.5}`, "recommendation"},
		"empty response":      {``, "$"},
		"null response":       {`null`, "$"},
		"array response":      {`[{"recommendation":"x","confidenceScore":0.5}]`, "$"},
		"not json":            {`Charge at night.`, "$"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			stub := &stubInvoker{response: tc.response}
			fn := newRecommendation(t, stub)

			res, err := fn.Invoke(context.Background(), validRecommendationRequest())

			var contractErr *OutputContractError
			require.ErrorAs(t, err, &contractErr)
			require.NotEmpty(t, contractErr.Violations)
			assert.Equal(t, tc.path, contractErr.Violations[0].Path)
			assert.Equal(t, RecommendationResult{}, res)
		})
	}
}

func TestRecommendationAcceptsBoundaryScores(t *testing.T) {
	for _, score := range []string{"0", "1", "0.73"} {
		stub := &stubInvoker{response: `{"recommendation":"Charge after 23:00","confidenceScore":` + score + `,"extra":"ignored"}`}
		fn := newRecommendation(t, stub)

		res, err := fn.Invoke(context.Background(), validRecommendationRequest())
		require.NoError(t, err, score)
		assert.Equal(t, "Charge after 23:00", res.Recommendation)
	}
}

func TestRemoteFailureIsSurfacedAsRemoteCallError(t *testing.T) {
	netErr := errors.New("dial tcp 10.0.0.1:443: connection refused")
	stub := &stubInvoker{err: netErr}
	fn := newRecommendation(t, stub)

	_, err := fn.Invoke(context.Background(), validRecommendationRequest())

	var remoteErr *RemoteCallError
	require.ErrorAs(t, err, &remoteErr)
	assert.ErrorIs(t, err, netErr)
	assert.Equal(t, netErr.Error(), Describe(err))
	assert.Equal(t, 1, stub.callCount())
}

func TestPanickingInvokerIsContained(t *testing.T) {
	stub := &stubInvoker{panicVal: "socket closed"}
	fn := newPatternAnalysis(t, stub)

	require.NotPanics(t, func() {
		_, err := fn.Invoke(context.Background(), PatternAnalysisRequest{
			StationID: "SC-001",
			StartDate: "2024-01-01T00:00:00Z",
			EndDate:   "2024-01-31T00:00:00Z",
		})
		var remoteErr *RemoteCallError
		require.ErrorAs(t, err, &remoteErr)
		assert.Contains(t, err.Error(), "socket closed")
	})
}

func TestInvokeIsIdempotentForIdenticalInput(t *testing.T) {
	stub := &stubInvoker{response: validPatternResponse}
	fn := newPatternAnalysis(t, stub)
	req := PatternAnalysisRequest{StationID: "SC-003", StartDate: "2024-05-01", EndDate: "2024-05-31"}

	first, err := fn.Invoke(context.Background(), req)
	require.NoError(t, err)
	second, err := fn.Invoke(context.Background(), req)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated invocation differs (-first +second):\n%s", diff)
	}
	require.Len(t, stub.prompts, 2)
	assert.Equal(t, stub.prompts[0], stub.prompts[1])
}

func TestConcurrentInvocationsAreIndependent(t *testing.T) {
	stub := &stubInvoker{response: `{"recommendation":"Charge at night","confidenceScore":0.9}`}
	fn := newRecommendation(t, stub)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fn.Invoke(context.Background(), validRecommendationRequest())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 8, stub.callCount())
}

func TestRecommendationInputRules(t *testing.T) {
	cases := map[string]struct {
		mutate func(*RecommendationRequest)
		path   string
	}{
		"blank user":         {func(r *RecommendationRequest) { r.UserID = "" }, "userId"},
		"sessions not array": {func(r *RecommendationRequest) { r.RecentChargingSessions = `{"stationId":"SC-001"}` }, "recentChargingSessions"},
		"sessions not json":  {func(r *RecommendationRequest) { r.RecentChargingSessions = "yesterday" }, "recentChargingSessions"},
		"grid not object":    {func(r *RecommendationRequest) { r.CurrentGridConditions = `["off-peak"]` }, "currentGridConditions"},
		"grid null":          {func(r *RecommendationRequest) { r.CurrentGridConditions = `null` }, "currentGridConditions"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			stub := &stubInvoker{response: `{"recommendation":"x","confidenceScore":0.5}`}
			fn := newRecommendation(t, stub)
			req := validRecommendationRequest()
			tc.mutate(&req)

			_, err := fn.Invoke(context.Background(), req)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, []string{tc.path}, validationErr.Fields())
			assert.Equal(t, 0, stub.callCount())
		})
	}
}

func TestRecommendationPromptEmbedsSerializedInputs(t *testing.T) {
	stub := &stubInvoker{response: `{"recommendation":"x","confidenceScore":0.5}`}
	fn := newRecommendation(t, stub)
	req := validRecommendationRequest()

	_, err := fn.Invoke(context.Background(), req)
	require.NoError(t, err)

	prompt := stub.prompts[0]
	assert.Contains(t, prompt, "User ID: user-123")
	assert.Contains(t, prompt, "Recent Charging Sessions: "+req.RecentChargingSessions)
	assert.Contains(t, prompt, "Current Grid Conditions: "+req.CurrentGridConditions)
}

func TestNewFunctionRejectsBrokenDefinitions(t *testing.T) {
	stub := &stubInvoker{}

	broken := PatternAnalysisDefinition()
	broken.Prompt = "Analyze {{stationId}} for {{operatorId}}"
	_, err := NewFunction[PatternAnalysisRequest, PatternAnalysisResult](broken, stub, nil)
	require.ErrorIs(t, err, ErrInvalidDefinition)
	assert.Contains(t, err.Error(), `"operatorId"`)

	_, err = NewFunction[PatternAnalysisRequest, PatternAnalysisResult](PatternAnalysisDefinition(), nil, nil)
	require.ErrorIs(t, err, ErrInvalidDefinition)

	noOutput := RecommendationDefinition()
	noOutput.Output = nil
	_, err = NewFunction[RecommendationRequest, RecommendationResult](noOutput, stub, nil)
	require.ErrorIs(t, err, ErrInvalidDefinition)

	unnamed := RecommendationDefinition()
	unnamed.Name = " "
	_, err = NewFunction[RecommendationRequest, RecommendationResult](unnamed, stub, nil)
	require.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestDescribe(t *testing.T) {
	assert.Empty(t, Describe(nil))
	assert.Equal(t, "Invalid request: stationId: notblank",
		Describe(&ValidationError{Function: "f", Violations: []Violation{{Path: "stationId", Rule: "notblank"}}}))
	assert.True(t, strings.HasPrefix(Describe(&OutputContractError{Function: "f"}), "The model returned"))
	assert.Equal(t, "boom", Describe(errors.New("boom")))
}
