package advisory

import (
	"go.uber.org/zap"
)

// PatternAnalysisName identifies the charging pattern analysis function.
const PatternAnalysisName = "analyzeChargingPatterns"

// PatternAnalysisRequest asks for an analysis of one station over a date range.
type PatternAnalysisRequest struct {
	StationID string `json:"stationId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// PatternAnalysisResult is the validated model answer.
type PatternAnalysisResult struct {
	PeakUsageTimes            []string `json:"peakUsageTimes"`
	AverageChargingDuration   float64  `json:"averageChargingDuration"`
	PredictedOverloadRisk     bool     `json:"predictedOverloadRisk"`
	SuggestedChargingSchedule string   `json:"suggestedChargingSchedule"`
}

// PatternAnalysis is the typed pattern analysis function.
type PatternAnalysis = Function[PatternAnalysisRequest, PatternAnalysisResult]

var PatternAnalysisInput = &Schema{
	Name: "PatternAnalysisRequest",
	Fields: []Field{
		{Name: "stationId", Kind: KindString, Rules: RuleNotBlank, Description: "The ID of the charging station."},
		{Name: "startDate", Kind: KindString, Rules: RuleISO8601, Description: "The start date for the analysis (ISO 8601 format)."},
		{Name: "endDate", Kind: KindString, Rules: RuleISO8601, Description: "The end date for the analysis (ISO 8601 format)."},
	},
	Checks: []Check{notBefore("startDate", "endDate")},
}

var PatternAnalysisOutput = &Schema{
	Name: "PatternAnalysisResult",
	Fields: []Field{
		{Name: "peakUsageTimes", Kind: KindStringArray, Description: "The times of day with the highest charging demand."},
		{Name: "averageChargingDuration", Kind: KindNumber, Rules: "gte=0", Description: "The average duration of charging sessions (in minutes)."},
		{Name: "predictedOverloadRisk", Kind: KindBoolean, Description: "Whether there is a high risk of grid overload during peak times."},
		{Name: "suggestedChargingSchedule", Kind: KindString, Description: "A suggested charging schedule to optimize energy distribution and avoid disruptions."},
	},
}

const patternAnalysisPrompt = `You are an AI assistant specialized in analyzing charging station data to optimize energy distribution.

You will analyze the historical charging data from charging station {{stationId}} between {{startDate}} and {{endDate}}.

Based on this data, identify the peak usage times, average charging duration, predict potential grid overload risk, and suggest an optimized charging schedule.

Output should be in JSON format.
`

// PatternAnalysisDefinition returns the declaration of the pattern analysis function.
func PatternAnalysisDefinition() Definition {
	return Definition{
		Name:   PatternAnalysisName,
		Input:  PatternAnalysisInput,
		Output: PatternAnalysisOutput,
		Prompt: patternAnalysisPrompt,
	}
}

// NewPatternAnalysis binds the pattern analysis function to a model invoker.
func NewPatternAnalysis(invoker Invoker, logger *zap.Logger) (*PatternAnalysis, error) {
	return NewFunction[PatternAnalysisRequest, PatternAnalysisResult](PatternAnalysisDefinition(), invoker, logger)
}

// notBefore rejects documents where the end date precedes the start date.
func notBefore(startField, endField string) Check {
	return func(doc Document) *Violation {
		startRaw, _ := doc[startField].(string)
		endRaw, _ := doc[endField].(string)
		start, err := ParseISO8601(startRaw)
		if err != nil {
			return nil
		}
		end, err := ParseISO8601(endRaw)
		if err != nil {
			return nil
		}
		if end.Before(start) {
			return &Violation{Path: endField, Rule: "gtefield=" + startField}
		}
		return nil
	}
}
