package prompt

import (
	"encoding/json"
	"fmt"
)

// GetSystemPrompt provides strict directions and schema for the mammogram JSON output.
func GetSystemPrompt() string {
	return `You are a breast imaging decision-support model reviewing a single mammogram. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- confidenceScore and every region confidenceScore are percentages between 0 and 100.
- biradsCategory is an integer between 0 and 6.
- classification is one of: benign, suspicious, malignant.
- boundingBox values are pixel coordinates of the submitted image; width and height are not negative.
- If nothing is found, return an empty regionsOfInterest array, never null.

Schema (example with empty values):
{
  "caseId": "<string>",
  "overallAssessment": "<string>",
  "confidenceScore": 0,
  "biradsCategory": 0,
  "recommendation": "<string>",
  "regionsOfInterest": [
    {
      "id": "<string>",
      "boundingBox": {"x": 0, "y": 0, "width": 0, "height": 0},
      "confidenceScore": 0,
      "classification": "<benign|suspicious|malignant>",
      "findingLabel": "<string>"
    }
  ]
}`
}

// GetUserPrompt builds a compact user message around the submitted file.
func GetUserPrompt(filename, contentType string) string {
	if filename == "" {
		filename = "unnamed"
	}
	return fmt.Sprintf("Analyze the attached mammogram (%s, %s) and respond with the JSON per schema.", filename, contentType)
}

// Box mirrors the boundingBox object of the schema.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Region mirrors one regionsOfInterest item of the schema.
type Region struct {
	ID              string  `json:"id"`
	BoundingBox     Box     `json:"boundingBox"`
	ConfidenceScore float64 `json:"confidenceScore"`
	Classification  string  `json:"classification"`
	FindingLabel    string  `json:"findingLabel,omitempty"`
}

// Analysis is a sample structure that matches the schema used by the system prompt.
type Analysis struct {
	CaseID            string   `json:"caseId,omitempty"`
	OverallAssessment string   `json:"overallAssessment"`
	ConfidenceScore   float64  `json:"confidenceScore"`
	BiradsCategory    int      `json:"biradsCategory"`
	Recommendation    string   `json:"recommendation"`
	RegionsOfInterest []Region `json:"regionsOfInterest"`
}

// SampleAnalysis returns the demo analysis the web client shows before a model is connected.
func SampleAnalysis(caseID string) Analysis {
	return Analysis{
		CaseID:            caseID,
		OverallAssessment: "Suspicious mass detected in upper outer quadrant",
		ConfidenceScore:   94.2,
		BiradsCategory:    4,
		Recommendation:    "Tissue sampling recommended. Correlate with ultrasound.",
		RegionsOfInterest: []Region{{
			ID:              "roi-1",
			BoundingBox:     Box{X: 120, Y: 80, Width: 60, Height: 45},
			ConfidenceScore: 92.1,
			Classification:  "suspicious",
			FindingLabel:    "Irregular mass with spiculated margins",
		}},
	}
}

// SampleJSON marshals SampleAnalysis. If marshal fails, it returns a minimal fallback.
func SampleJSON(caseID string) []byte {
	b, err := json.Marshal(SampleAnalysis(caseID))
	if err != nil {
		return []byte(`{"overallAssessment":"Analysis unavailable","confidenceScore":0,"biradsCategory":0,"regionsOfInterest":[]}`)
	}
	return b
}
