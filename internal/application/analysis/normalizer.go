package analysis

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	domain "github.com/bossom/bossom/internal/domain/analysis"
)

// Accepted spellings per field, canonical name first
var (
	keysCaseID         = []string{"caseId", "case_id"}
	keysAssessment     = []string{"overallAssessment", "overall_assessment"}
	keysConfidence     = []string{"confidenceScore", "confidence_score"}
	keysBirads         = []string{"biradsCategory", "birads_category"}
	keysRecommendation = []string{"recommendation"}
	keysROIs           = []string{"regionsOfInterest", "regions_of_interest"}
	keysImageWidth     = []string{"imageWidth", "image_width"}
	keysImageHeight    = []string{"imageHeight", "image_height"}

	keysROIID         = []string{"id"}
	keysBoundingBox   = []string{"boundingBox", "bounding_box"}
	keysROIConfidence = []string{"confidenceScore", "confidence_score", "confidence"}
	keysClass         = []string{"classification"}
	keysFinding       = []string{"findingLabel", "finding_label", "finding"}
	keysMalignancy    = []string{"malignancyProbability", "malignancy_probability"}
)

var biradsText = regexp.MustCompile(`(?i)^\s*(?:bi-?rads\s*)?([0-6])\s*$`)

// Normalize validates an upstream response body and converts it into an AnalysisResult.
//
// Received JSON -> structurally valid -> field valid -> normalized. Every stage exits with
// its own error kind: MalformedResponse when the body is not JSON, SchemaViolation (with
// the offending paths) otherwise. Out-of-range values are rejected, never clamped.
func Normalize(body []byte) (*domain.AnalysisResult, error) {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return nil, domain.Malformed("response body is not valid JSON", nil)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, domain.SchemaViolation([]string{"$"})
	}

	// structural
	var missing []string
	assessKey, assess := lookup(root, keysAssessment)
	if !assess.Exists() {
		missing = append(missing, assessKey)
	}
	confKey, conf := lookup(root, keysConfidence)
	if !conf.Exists() {
		missing = append(missing, confKey)
	}
	biradsKey, birads := lookup(root, keysBirads)
	if !birads.Exists() {
		missing = append(missing, biradsKey)
	}
	roisKey, rois := lookup(root, keysROIs)
	if !rois.IsArray() {
		missing = append(missing, roisKey)
	}
	if len(missing) > 0 {
		return nil, domain.SchemaViolation(missing)
	}

	// field
	v := &violations{}
	res := &domain.AnalysisResult{RegionsOfInterest: []domain.RegionOfInterest{}}

	res.OverallAssessment = v.nonEmptyString(assessKey, assess)
	res.ConfidenceScore = v.percent(confKey, conf)
	res.BiradsCategory = v.birads(biradsKey, birads)
	if k, r := lookup(root, keysCaseID); r.Exists() {
		res.CaseID = v.optionalString(k, r)
	}
	if k, r := lookup(root, keysRecommendation); r.Exists() {
		res.Recommendation = v.optionalString(k, r)
	}

	var bounds *domain.BoundingBox
	wKey, w := lookup(root, keysImageWidth)
	hKey, h := lookup(root, keysImageHeight)
	if w.Exists() || h.Exists() {
		bounds = &domain.BoundingBox{
			Width:  v.positive(wKey, w),
			Height: v.positive(hKey, h),
		}
	}

	for i, item := range rois.Array() {
		path := fmt.Sprintf("%s[%d]", roisKey, i)
		if !item.IsObject() {
			v.add(path)
			continue
		}
		res.RegionsOfInterest = append(res.RegionsOfInterest, v.roi(path, i, item, bounds))
	}

	if len(v.fields) > 0 {
		return nil, domain.SchemaViolation(v.fields)
	}
	return res, nil
}

// ParseClassification maps an upstream label into the known set, unknown labels
// land in ClassificationUnknown.
func ParseClassification(label string) domain.Classification {
	switch c := domain.Classification(strings.ToLower(strings.TrimSpace(label))); c {
	case domain.ClassificationBenign, domain.ClassificationSuspicious, domain.ClassificationMalignant:
		return c
	}
	return domain.ClassificationUnknown
}

func lookup(obj gjson.Result, keys []string) (string, gjson.Result) {
	for _, k := range keys {
		if r := obj.Get(k); r.Exists() {
			return k, r
		}
	}
	return keys[0], gjson.Result{}
}

type violations struct {
	fields []string
}

func (v *violations) add(path string) { v.fields = append(v.fields, path) }

func (v *violations) nonEmptyString(path string, r gjson.Result) string {
	if r.Type != gjson.String || strings.TrimSpace(r.Str) == "" {
		v.add(path)
		return ""
	}
	return r.Str
}

func (v *violations) optionalString(path string, r gjson.Result) string {
	if r.Type == gjson.Null {
		return ""
	}
	if r.Type != gjson.String {
		v.add(path)
		return ""
	}
	return r.Str
}

func (v *violations) percent(path string, r gjson.Result) float64 {
	if r.Type != gjson.Number || r.Num < 0 || r.Num > 100 || math.IsNaN(r.Num) {
		v.add(path)
		return 0
	}
	return r.Num
}

func (v *violations) nonNegative(path string, r gjson.Result) float64 {
	if r.Type != gjson.Number || r.Num < 0 {
		v.add(path)
		return 0
	}
	return r.Num
}

func (v *violations) positive(path string, r gjson.Result) float64 {
	if r.Type != gjson.Number || r.Num <= 0 {
		v.add(path)
		return 0
	}
	return r.Num
}

// birads accepts an integer 0..6 or the textual "BI-RADS n" form the UI displays.
func (v *violations) birads(path string, r gjson.Result) int {
	switch r.Type {
	case gjson.Number:
		if r.Num == math.Trunc(r.Num) && r.Num >= 0 && r.Num <= 6 {
			return int(r.Num)
		}
	case gjson.String:
		if m := biradsText.FindStringSubmatch(r.Str); m != nil {
			n, _ := strconv.Atoi(m[1])
			return n
		}
	}
	v.add(path)
	return 0
}

func (v *violations) roi(path string, idx int, item gjson.Result, bounds *domain.BoundingBox) domain.RegionOfInterest {
	roi := domain.RegionOfInterest{ID: fmt.Sprintf("roi-%d", idx+1)}

	if k, r := lookup(item, keysROIID); r.Exists() {
		switch r.Type {
		case gjson.String:
			if strings.TrimSpace(r.Str) != "" {
				roi.ID = r.Str
			}
		case gjson.Number:
			roi.ID = r.Raw
		default:
			v.add(path + "." + k)
		}
	}

	boxPath := path
	box := item
	if k, r := lookup(item, keysBoundingBox); r.Exists() {
		boxPath = path + "." + k
		box = r
		if !r.IsObject() {
			v.add(boxPath)
			box = gjson.Result{}
		}
	}
	if box.Exists() {
		roi.BoundingBox = domain.BoundingBox{
			X:      v.nonNegative(boxPath+".x", box.Get("x")),
			Y:      v.nonNegative(boxPath+".y", box.Get("y")),
			Width:  v.nonNegative(boxPath+".width", box.Get("width")),
			Height: v.nonNegative(boxPath+".height", box.Get("height")),
		}
		if bounds != nil && bounds.Width > 0 && bounds.Height > 0 {
			b := roi.BoundingBox
			if b.X+b.Width > bounds.Width || b.Y+b.Height > bounds.Height {
				v.add(boxPath)
			}
		}
	}

	confKey, conf := lookup(item, keysROIConfidence)
	roi.ConfidenceScore = v.percent(path+"."+confKey, conf)

	classKey, class := lookup(item, keysClass)
	if class.Type != gjson.String {
		v.add(path + "." + classKey)
	} else {
		roi.Classification = ParseClassification(class.Str)
	}

	if k, r := lookup(item, keysFinding); r.Exists() {
		roi.FindingLabel = v.optionalString(path+"."+k, r)
	}
	if k, r := lookup(item, keysMalignancy); r.Exists() && r.Type != gjson.Null {
		p := v.percent(path+"."+k, r)
		roi.MalignancyProbability = &p
	}
	return roi
}
