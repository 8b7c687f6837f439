package advisory

import (
	"go.uber.org/zap"
)

// RecommendationName identifies the personalised charging recommendation function.
const RecommendationName = "recommendOptimizedCharging"

// RecommendationRequest carries the user's recent sessions and the grid state, both
// already serialized as JSON.
type RecommendationRequest struct {
	UserID                 string `json:"userId"`
	RecentChargingSessions string `json:"recentChargingSessions"`
	CurrentGridConditions  string `json:"currentGridConditions"`
}

// RecommendationResult is the validated model answer.
type RecommendationResult struct {
	Recommendation  string  `json:"recommendation"`
	ConfidenceScore float64 `json:"confidenceScore"`
}

// Recommendation is the typed recommendation function.
type Recommendation = Function[RecommendationRequest, RecommendationResult]

var RecommendationInput = &Schema{
	Name: "RecommendationRequest",
	Fields: []Field{
		{Name: "userId", Kind: KindString, Rules: RuleNotBlank, Description: "The ID of the user requesting charging recommendations."},
		{Name: "recentChargingSessions", Kind: KindString, Rules: RuleJSONArray,
			Description: "JSON array of recent charging sessions with station id, start time, end time and energy consumed."},
		{Name: "currentGridConditions", Kind: KindString, Rules: RuleJSONObject,
			Description: "JSON object describing current grid conditions: energy prices, availability and constraints."},
	},
}

var RecommendationOutput = &Schema{
	Name: "RecommendationResult",
	Fields: []Field{
		{Name: "recommendation", Kind: KindString,
			Description: "A personalized charging recommendation, including the optimal time to charge, estimated cost, and potential grid impact."},
		{Name: "confidenceScore", Kind: KindNumber, Rules: "gte=0,lte=1",
			Description: "A score between 0 and 1 indicating the confidence level of the recommendation."},
	},
}

const recommendationPrompt = `You are an expert in providing personalized charging recommendations for electric vehicle users.

Based on the user's past charging behavior and current grid conditions, provide a personalized charging recommendation.
Consider the following information:

User ID: {{userId}}
Recent Charging Sessions: {{recentChargingSessions}}
Current Grid Conditions: {{currentGridConditions}}

Recommendation:
`

// RecommendationDefinition returns the declaration of the recommendation function.
func RecommendationDefinition() Definition {
	return Definition{
		Name:   RecommendationName,
		Input:  RecommendationInput,
		Output: RecommendationOutput,
		Prompt: recommendationPrompt,
	}
}

// NewRecommendation binds the recommendation function to a model invoker.
func NewRecommendation(invoker Invoker, logger *zap.Logger) (*Recommendation, error) {
	return NewFunction[RecommendationRequest, RecommendationResult](RecommendationDefinition(), invoker, logger)
}
