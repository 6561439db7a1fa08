package specialist

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"consensusboard/apimodels"
	"consensusboard/internal/config"
	"consensusboard/internal/normalize"
)

// imagingResult is the validated shape of the imaging collaborator's
// final answer, whether it arrived single-shot or as the last event of
// a stream.
type imagingResult struct {
	Finding          string            `json:"finding"`
	DataForConsensus *imagingConsensus `json:"data_for_consensus"`
	RequestedData    []string          `json:"requested_data"`
	QualityFlags     []rawFlag         `json:"quality_flags"`
	Error            string            `json:"error"`
}

type imagingConsensus struct {
	Label      string `json:"label"`
	Value      string `json:"value"`
	Confidence any    `json:"confidence"`
}

// Imaging calls the hosted chest-imaging service with the X-ray bytes
// and the clinical note as a context hint.
type Imaging struct {
	cfg    config.ImagingConfig
	client *http.Client
}

func NewImaging(cfg config.ImagingConfig) *Imaging {
	return &Imaging{
		cfg:    cfg,
		client: &http.Client{},
	}
}

func (s *Imaging) Name() string  { return apimodels.AgentImaging }
func (s *Imaging) Model() string { return s.cfg.Model }

func (s *Imaging) Report(ctx context.Context, in Input) (apimodels.AgentReport, error) {
	body, contentType, err := imageForm(in.ImagePath, in.ClinicalNote)
	if err != nil {
		return apimodels.AgentReport{}, fmt.Errorf("building imaging request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, body)
	if err != nil {
		return apimodels.AgentReport{}, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return apimodels.AgentReport{}, transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apimodels.AgentReport{}, transient(fmt.Errorf("imaging service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var result imagingResult
	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		result, err = finalStreamResult(resp.Body)
	} else {
		err = json.NewDecoder(resp.Body).Decode(&result)
	}
	if err != nil {
		return apimodels.AgentReport{}, fmt.Errorf("decoding imaging response: %w", err)
	}
	if result.Error != "" {
		return apimodels.AgentReport{}, fmt.Errorf("imaging service error: %s", result.Error)
	}

	return s.buildReport(in, result)
}

func (s *Imaging) buildReport(in Input, result imagingResult) (apimodels.AgentReport, error) {
	report := reportShell(s.Name(), s.Model())
	report.RequestedData = result.RequestedData
	report.QualityFlags = flagsFrom(result.QualityFlags)

	cons := result.DataForConsensus
	if cons == nil && result.Finding == "" {
		return apimodels.AgentReport{}, fmt.Errorf("imaging response carried neither finding nor consensus data")
	}

	label := "imaging_stability"
	value := result.Finding
	var conf any
	if cons != nil {
		if cons.Label != "" {
			label = cons.Label
		}
		if cons.Value != "" {
			value = cons.Value
		}
		conf = cons.Confidence
	}

	var evidence []apimodels.EvidenceRef
	evidence = append(evidence, apimodels.EvidenceRef{
		Type: apimodels.EvidenceImageRef,
		ID:   filepath.Base(in.ImagePath),
	})
	if result.Finding != "" && cons != nil && cons.Value != "" {
		evidence = append(evidence, apimodels.EvidenceRef{
			Type:  apimodels.EvidenceText,
			ID:    "finding",
			Value: result.Finding,
		})
	}

	claim, ok := normalize.Finding(label, value, conf, evidence...)
	if !ok {
		return apimodels.AgentReport{}, fmt.Errorf("imaging finding too short to use")
	}
	report.Claims = []apimodels.Claim{claim}
	return report, nil
}

// finalStreamResult drains a server-sent event stream and keeps the last
// data payload that decodes to a result carrying a finding. Earlier
// events are progress tokens and get discarded.
func finalStreamResult(r io.Reader) (imagingResult, error) {
	var (
		last  imagingResult
		found bool
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		var candidate imagingResult
		if err := json.Unmarshal([]byte(payload), &candidate); err != nil {
			continue
		}
		if candidate.Finding != "" || candidate.DataForConsensus != nil || candidate.Error != "" {
			last = candidate
			found = true
		}
	}
	if err := scanner.Err(); err != nil {
		return imagingResult{}, err
	}
	if !found {
		return imagingResult{}, fmt.Errorf("event stream ended without a finding")
	}
	return last, nil
}

// imageForm assembles the multipart body: the image bytes plus the
// clinical note as a context hint.
func imageForm(path, note string) (*bytes.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("context", note); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	slog.Debug("imaging request prepared", "image", filepath.Base(path), "bytes", buf.Len())
	return &buf, w.FormDataContentType(), nil
}
