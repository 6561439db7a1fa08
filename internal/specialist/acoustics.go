package specialist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"consensusboard/apimodels"
	"consensusboard/internal/config"
	"consensusboard/internal/normalize"
)

// acousticsResult is the validated shape of the lung-sound classifier's
// reply. Confidence arrives as whatever type the service felt like
// sending and is clamped on receipt.
type acousticsResult struct {
	Prediction    string    `json:"prediction"`
	Confidence    any       `json:"confidence"`
	Segment       string    `json:"segment,omitempty"`
	RequestedData []string  `json:"requested_data"`
	QualityFlags  []rawFlag `json:"quality_flags"`
	Error         string    `json:"error"`
}

// Acoustics calls the hosted lung-sound classification service with the
// audio recording.
type Acoustics struct {
	cfg    config.AcousticsConfig
	client *http.Client
}

func NewAcoustics(cfg config.AcousticsConfig) *Acoustics {
	return &Acoustics{
		cfg:    cfg,
		client: &http.Client{},
	}
}

func (s *Acoustics) Name() string  { return apimodels.AgentAcoustics }
func (s *Acoustics) Model() string { return s.cfg.Model }

func (s *Acoustics) Report(ctx context.Context, in Input) (apimodels.AgentReport, error) {
	body, contentType, err := audioForm(in.AudioPath)
	if err != nil {
		return apimodels.AgentReport{}, fmt.Errorf("building acoustics request: %w", err)
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
		return apimodels.AgentReport{}, transient(fmt.Errorf("acoustics service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var result acousticsResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return apimodels.AgentReport{}, fmt.Errorf("decoding acoustics response: %w", err)
	}
	if result.Error != "" {
		return apimodels.AgentReport{}, fmt.Errorf("acoustics service error: %s", result.Error)
	}
	if result.Prediction == "" {
		return apimodels.AgentReport{}, fmt.Errorf("acoustics response carried no prediction")
	}

	segment := result.Segment
	if segment == "" {
		segment = filepath.Base(in.AudioPath)
	}
	claim, ok := normalize.Finding("resp_abnormal", result.Prediction, result.Confidence,
		apimodels.EvidenceRef{Type: apimodels.EvidenceAudioSegment, ID: segment})
	if !ok {
		return apimodels.AgentReport{}, fmt.Errorf("acoustics prediction too short to use")
	}

	report := reportShell(s.Name(), s.Model())
	report.Claims = []apimodels.Claim{claim}
	report.RequestedData = result.RequestedData
	report.QualityFlags = flagsFrom(result.QualityFlags)
	return report, nil
}

func audioForm(path string) (*bytes.Buffer, string, error) {
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
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
