package analysis

// Classification of a region of interest
type Classification string

const (
	ClassificationBenign     Classification = "benign"
	ClassificationSuspicious Classification = "suspicious"
	ClassificationMalignant  Classification = "malignant"
	// ClassificationUnknown collects labels the upstream model returns that we don't know yet.
	ClassificationUnknown Classification = "unknown"
)

// BoundingBox in image pixel coordinates
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RegionOfInterest is one area of the image flagged by the model
type RegionOfInterest struct {
	ID                    string         `json:"id"`
	BoundingBox           BoundingBox    `json:"boundingBox"`
	ConfidenceScore       float64        `json:"confidenceScore"`
	Classification        Classification `json:"classification"`
	FindingLabel          string         `json:"findingLabel,omitempty"`
	MalignancyProbability *float64       `json:"malignancyProbability,omitempty"`
}

// AnalysisResult is the normalized output of one inference call.
// ConfidenceScore and every ROI confidence lie in [0,100], BiradsCategory in 0..6.
type AnalysisResult struct {
	CaseID            string             `json:"caseId,omitempty"`
	OverallAssessment string             `json:"overallAssessment"`
	ConfidenceScore   float64            `json:"confidenceScore"`
	BiradsCategory    int                `json:"biradsCategory"`
	Recommendation    string             `json:"recommendation,omitempty"`
	RegionsOfInterest []RegionOfInterest `json:"regionsOfInterest"`
}

// AnalysisRequest is built once per submission and handed to exactly one InferenceClient call.
type AnalysisRequest struct {
	Image               []byte
	ContentType         string
	Filename            string
	DestinationEndpoint string
	AuthToken           string
}
