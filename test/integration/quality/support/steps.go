package support

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/cucumber/godog"
)

// RegisterSteps wires every step definition into sc.
func (tc *TestContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a photographed passport scan "([^"]*)"$`, tc.aPassportScan)
	sc.Step(`^a passport scan "([^"]*)" with a large black stain$`, tc.aStainedPassportScan)
	sc.Step(`^a file "([^"]*)" containing "([^"]*)"$`, tc.aFileContaining)
	sc.Step(`^the detector finds no document$`, tc.theDetectorFindsNoDocument)
	sc.Step(`^the detector finds a passport and an ID card side by side$`, tc.theDetectorFindsTwoDocuments)
	sc.Step(`^the detector is unavailable$`, tc.theDetectorIsUnavailable)
	sc.Step(`^the OCR engine reads text with (\d+)% confidence$`, tc.theOCREngineReadsWithConfidence)
	sc.Step(`^the OCR engine returns malformed results$`, tc.theOCREngineReturnsMalformedResults)
	sc.Step(`^history is disabled$`, tc.historyIsDisabled)
	sc.Step(`^at most (\d+) files? may be uploaded at once$`, tc.atMostFilesPerBatch)

	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, tc.iUploadTo)
	sc.Step(`^I upload the files "([^"]*)" to "([^"]*)"$`, tc.iUploadFilesTo)
	sc.Step(`^I request "([^"]*)"$`, tc.iRequest)
	sc.Step(`^I download the first cropped region$`, tc.iDownloadTheFirstCroppedRegion)

	sc.Step(`^the response status should be (\d+)$`, tc.theResponseStatusShouldBe)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, tc.theJSONFieldShouldBe)
	sc.Step(`^the JSON field "([^"]*)" should contain "([^"]*)"$`, tc.theJSONFieldShouldContain)
	sc.Step(`^the JSON field "([^"]*)" should be a percentage$`, tc.theJSONFieldShouldBeAPercentage)
	sc.Step(`^the JSON field "([^"]*)" should have (\d+) items?$`, tc.theJSONFieldShouldHaveItems)
	sc.Step(`^the response should be a PNG image$`, tc.theResponseShouldBeAPNGImage)
	sc.Step(`^the OCR engine should have been called (\d+) times?$`, tc.theOCREngineShouldHaveBeenCalled)
}

func (tc *TestContext) aPassportScan(name string) error {
	data, err := scan()
	if err != nil {
		return err
	}
	tc.Files[name] = data
	return nil
}

func (tc *TestContext) aStainedPassportScan(name string) error {
	data, err := scan(stain)
	if err != nil {
		return err
	}
	tc.Files[name] = data
	return nil
}

func (tc *TestContext) aFileContaining(name, content string) error {
	tc.Files[name] = []byte(content)
	return nil
}

func (tc *TestContext) theDetectorFindsNoDocument() error {
	tc.Detector.set(nil)
	return nil
}

func (tc *TestContext) theDetectorFindsTwoDocuments() error {
	tc.Detector.set(nil, passport(leftPaper), idCard(rightPaper))
	return nil
}

func (tc *TestContext) theDetectorIsUnavailable() error {
	tc.Detector.set(errModelUnavailable)
	return nil
}

func (tc *TestContext) theOCREngineReadsWithConfidence(percent int) error {
	tc.Engine.set(float64(percent)/100, false)
	return nil
}

func (tc *TestContext) theOCREngineReturnsMalformedResults() error {
	tc.Engine.set(0.9, true)
	return nil
}

func (tc *TestContext) historyIsDisabled() error {
	if tc.Server != nil {
		return errors.New("history must be configured before the first request")
	}
	tc.Config.History.Enabled = false
	return nil
}

func (tc *TestContext) atMostFilesPerBatch(n int) error {
	if tc.Server != nil {
		return errors.New("batch limit must be configured before the first request")
	}
	tc.Config.Batch.MaxFiles = n
	return nil
}

func (tc *TestContext) iUploadTo(name, path string) error {
	return tc.upload(path, "file", name)
}

func (tc *TestContext) iUploadFilesTo(names, path string) error {
	var list []string
	for _, n := range strings.Split(names, ",") {
		list = append(list, strings.TrimSpace(n))
	}
	return tc.upload(path, "files", list...)
}

func (tc *TestContext) upload(path, field string, names ...string) error {
	if err := tc.ensureServer(); err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range names {
		data, ok := tc.Files[name]
		if !ok {
			return fmt.Errorf("unknown fixture %q", name)
		}
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			return err
		}
		if _, err := fw.Write(data); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, tc.Server.URL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return tc.do(req)
}

func (tc *TestContext) iRequest(path string) error {
	if err := tc.ensureServer(); err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodGet, tc.Server.URL+path, nil)
	if err != nil {
		return err
	}
	return tc.do(req)
}

func (tc *TestContext) iDownloadTheFirstCroppedRegion() error {
	if err := tc.decodeBody(); err != nil {
		return err
	}
	v, err := lookup(tc.LastJSON, "0.cropped_roi")
	if err != nil {
		return err
	}
	href, ok := v.(string)
	if !ok || href == "" {
		return fmt.Errorf("cropped_roi is %v, want a path", v)
	}
	return tc.iRequest(href)
}

func (tc *TestContext) do(req *http.Request) error {
	resp, err := tc.Server.Client().Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	tc.LastStatus = resp.StatusCode
	tc.LastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) theResponseStatusShouldBe(status int) error {
	if tc.LastStatus != status {
		return fmt.Errorf("status %d, want %d: %s", tc.LastStatus, status, tc.LastBody)
	}
	return nil
}

func (tc *TestContext) field(path string) (any, error) {
	if err := tc.decodeBody(); err != nil {
		return nil, err
	}
	return lookup(tc.LastJSON, path)
}

func (tc *TestContext) theJSONFieldShouldBe(path, want string) error {
	v, err := tc.field(path)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("%s is %q, want %q", path, got, want)
	}
	return nil
}

func (tc *TestContext) theJSONFieldShouldContain(path, want string) error {
	v, err := tc.field(path)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); !strings.Contains(got, want) {
		return fmt.Errorf("%s is %q, want it to contain %q", path, got, want)
	}
	return nil
}

func (tc *TestContext) theJSONFieldShouldBeAPercentage(path string) error {
	v, err := tc.field(path)
	if err != nil {
		return err
	}
	s, ok := v.(string)
	if !ok || !strings.HasSuffix(s, "%") {
		return fmt.Errorf("%s is %v, want a percentage string", path, v)
	}
	if _, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64); err != nil {
		return fmt.Errorf("%s is %q: %w", path, s, err)
	}
	return nil
}

func (tc *TestContext) theJSONFieldShouldHaveItems(path string, n int) error {
	v, err := tc.field(path)
	if err != nil {
		return err
	}
	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("%s is %T, want an array", path, v)
	}
	if len(items) != n {
		return fmt.Errorf("%s has %d items, want %d", path, len(items), n)
	}
	return nil
}

func (tc *TestContext) theResponseShouldBeAPNGImage() error {
	if !bytes.HasPrefix(tc.LastBody, []byte("\x89PNG\r\n\x1a\n")) {
		return errors.New("response body is not a PNG image")
	}
	return nil
}

func (tc *TestContext) theOCREngineShouldHaveBeenCalled(n int) error {
	if got := tc.Engine.Calls(); got != n {
		return fmt.Errorf("OCR engine called %d times, want %d", got, n)
	}
	return nil
}

// lookup walks a dotted path through decoded JSON. Numeric segments index arrays; an
// empty path returns the root.
func lookup(root any, path string) (any, error) {
	cur := root
	if path == "" || path == "." {
		return cur, nil
	}
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in %s", part, path)
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %s", part, path)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %T at %q in %s", cur, part, path)
		}
	}
	return cur, nil
}
