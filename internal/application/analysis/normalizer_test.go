package analysis

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bossom/bossom/internal/domain/analysis"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return b
}

func requireSchemaViolation(t *testing.T, err error) *domain.Error {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrSchemaViolation), "expected schema violation, got %v", err)
	var ae *domain.Error
	require.True(t, errors.As(err, &ae))
	return ae
}

func TestNormalize_ValidResponseRoundTrips(t *testing.T) {
	res, err := Normalize(readFixture(t, "valid_response.json"))
	require.NoError(t, err)

	assert.Equal(t, "case-2024-001", res.CaseID)
	assert.Equal(t, "Suspicious mass", res.OverallAssessment)
	assert.Equal(t, 94.2, res.ConfidenceScore)
	assert.Equal(t, 4, res.BiradsCategory)
	require.Len(t, res.RegionsOfInterest, 1)

	roi := res.RegionsOfInterest[0]
	assert.Equal(t, "roi-1", roi.ID)
	assert.Equal(t, domain.ClassificationSuspicious, roi.Classification)
	assert.Equal(t, "Suspicious mass", roi.FindingLabel)
	assert.Equal(t, 92.1, roi.ConfidenceScore)
	assert.Equal(t, domain.BoundingBox{X: 120, Y: 80, Width: 60, Height: 45}, roi.BoundingBox)
	assert.Nil(t, roi.MalignancyProbability)
}

func TestNormalize_SnakeCaseAndFlatBoxes(t *testing.T) {
	res, err := Normalize(readFixture(t, "snake_case_response.json"))
	require.NoError(t, err)

	assert.Equal(t, "case-2024-002", res.CaseID)
	assert.Equal(t, 2, res.BiradsCategory)
	require.Len(t, res.RegionsOfInterest, 2)

	first := res.RegionsOfInterest[0]
	assert.Equal(t, "roi-1", first.ID, "missing id is derived from position")
	assert.Equal(t, domain.ClassificationBenign, first.Classification)
	assert.Equal(t, "Calcification", first.FindingLabel)
	assert.Equal(t, domain.BoundingBox{X: 10, Y: 20, Width: 30, Height: 40}, first.BoundingBox)

	second := res.RegionsOfInterest[1]
	assert.Equal(t, "7", second.ID)
	assert.Equal(t, domain.ClassificationUnknown, second.Classification)
	require.NotNil(t, second.MalignancyProbability)
	assert.Equal(t, 3.5, *second.MalignancyProbability)
}

func TestNormalize_EmptyROIList(t *testing.T) {
	res, err := Normalize([]byte(`{"overallAssessment":"Normal","confidenceScore":96.5,"biradsCategory":1,"regionsOfInterest":[]}`))
	require.NoError(t, err)
	assert.NotNil(t, res.RegionsOfInterest)
	assert.Empty(t, res.RegionsOfInterest)
}

func TestNormalize_ConfidenceOutOfRangeIsNotClamped(t *testing.T) {
	res, err := Normalize([]byte(`{"overallAssessment":"x","confidenceScore":150,"biradsCategory":4,"regionsOfInterest":[]}`))
	assert.Nil(t, res)
	ae := requireSchemaViolation(t, err)
	assert.Equal(t, []string{"confidenceScore"}, ae.Fields)
}

func TestNormalize_BiradsTextualForms(t *testing.T) {
	for _, v := range []string{`"BI-RADS 4"`, `"birads 4"`, `"BIRADS4"`, `"4"`, `" 4 "`} {
		body := `{"overallAssessment":"x","confidenceScore":50,"biradsCategory":` + v + `,"regionsOfInterest":[]}`
		res, err := Normalize([]byte(body))
		require.NoError(t, err, v)
		assert.Equal(t, 4, res.BiradsCategory, v)
	}
}

func TestNormalize_BiradsOutOfRange(t *testing.T) {
	cases := map[string]string{
		"seven":      `7`,
		"negative":   `-1`,
		"fractional": `4.5`,
		"text":       `"BI-RADS 9"`,
		"boolean":    `true`,
	}
	for name, v := range cases {
		t.Run(name, func(t *testing.T) {
			body := `{"overallAssessment":"x","confidenceScore":50,"biradsCategory":` + v + `,"regionsOfInterest":[]}`
			ae := requireSchemaViolation(t, mustFail(Normalize([]byte(body))))
			assert.Equal(t, []string{"biradsCategory"}, ae.Fields)
		})
	}
}

func TestNormalize_MissingKeysReportedTogether(t *testing.T) {
	ae := requireSchemaViolation(t, mustFail(Normalize([]byte(`{"confidenceScore":50}`))))
	assert.ElementsMatch(t, []string{"overallAssessment", "biradsCategory", "regionsOfInterest"}, ae.Fields)
}

func TestNormalize_ROIsMustBeArray(t *testing.T) {
	ae := requireSchemaViolation(t, mustFail(Normalize([]byte(`{"overallAssessment":"x","confidenceScore":50,"biradsCategory":1,"regionsOfInterest":{}}`))))
	assert.Equal(t, []string{"regionsOfInterest"}, ae.Fields)
}

func TestNormalize_ROIViolationsCarryPaths(t *testing.T) {
	body := `{
	  "overallAssessment": "x", "confidenceScore": 50, "biradsCategory": 3,
	  "regionsOfInterest": [
	    {"boundingBox": {"x": -1, "y": 0, "width": 10}, "confidenceScore": 101, "classification": 5},
	    "not-an-object"
	  ]
	}`
	ae := requireSchemaViolation(t, mustFail(Normalize([]byte(body))))
	assert.ElementsMatch(t, []string{
		"regionsOfInterest[0].boundingBox.x",
		"regionsOfInterest[0].boundingBox.height",
		"regionsOfInterest[0].confidenceScore",
		"regionsOfInterest[0].classification",
		"regionsOfInterest[1]",
	}, ae.Fields)
}

func TestNormalize_BoxOutsideImageBounds(t *testing.T) {
	body := `{"overallAssessment":"x","confidenceScore":50,"biradsCategory":3,"imageWidth":100,"imageHeight":100,
	  "regionsOfInterest":[{"boundingBox":{"x":90,"y":0,"width":20,"height":10},"confidenceScore":40,"classification":"benign"}]}`
	ae := requireSchemaViolation(t, mustFail(Normalize([]byte(body))))
	assert.Equal(t, []string{"regionsOfInterest[0].boundingBox"}, ae.Fields)
}

func TestNormalize_NotJSONIsMalformed(t *testing.T) {
	for _, body := range []string{"", "<html>oops</html>", `{"overallAssessment":`} {
		_, err := Normalize([]byte(body))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrMalformedResponse)
		assert.NotErrorIs(t, err, domain.ErrSchemaViolation)
	}
}

func TestNormalize_TopLevelArrayIsSchemaViolation(t *testing.T) {
	ae := requireSchemaViolation(t, mustFail(Normalize([]byte(`[1,2,3]`))))
	assert.Equal(t, []string{"$"}, ae.Fields)
}

func TestParseClassification(t *testing.T) {
	assert.Equal(t, domain.ClassificationMalignant, ParseClassification(" MALIGNANT "))
	assert.Equal(t, domain.ClassificationBenign, ParseClassification("benign"))
	assert.Equal(t, domain.ClassificationUnknown, ParseClassification("probably-benign"))
	assert.Equal(t, domain.ClassificationUnknown, ParseClassification(""))
}

func mustFail(_ *domain.AnalysisResult, err error) error { return err }
