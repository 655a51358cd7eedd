package analyzers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/crashscan/crashscan-go/pkg/crashscan"
)

// GPU vendors as reported by KeywordDetector.
const (
	VendorNvidia    = "Nvidia"
	VendorAMD       = "AMD"
	VendorIntel     = "Intel"
	VendorMicrosoft = "Microsoft"
	VendorUnknown   = "Unknown"
)

// GPUInfo describes the graphics hardware listed in a crash log.
type GPUInfo struct {
	// Manufacturer is one of the Vendor constants.
	Manufacturer string `json:"manufacturer"`
	// Primary is the GPU #1 description; it alone decides the manufacturer.
	Primary string `json:"primary,omitempty"`
	// Secondary is the GPU #2 description, informational only.
	Secondary string `json:"secondary,omitempty"`
	Detected  bool   `json:"detected"`
	// Rival is the lowercase competing vendor ("amd" for Nvidia and the
	// other way round), or "" when there is none.
	Rival string `json:"rival,omitempty"`
}

// GPUDetector extracts GPU information from system spec lines.
type GPUDetector interface {
	Detect(specLines []string) (GPUInfo, error)
}

// GPUDetectorFunc is an adapter to allow the use of ordinary functions as GPUDetectors.
type GPUDetectorFunc func(specLines []string) (GPUInfo, error)

// Detect calls f(specLines).
func (f GPUDetectorFunc) Detect(specLines []string) (GPUInfo, error) {
	return f(specLines)
}

// KeywordDetector classifies GPUs by vendor keywords in the "GPU #1:" line.
type KeywordDetector struct{}

// Detect implements GPUDetector.
func (KeywordDetector) Detect(specLines []string) (GPUInfo, error) {
	var info GPUInfo
	for _, line := range specLines {
		line = strings.TrimSpace(line)
		if v, ok := cutPrefixFold(line, "GPU #1:"); ok && info.Primary == "" {
			info.Primary = strings.TrimSpace(v)
		} else if v, ok := cutPrefixFold(line, "GPU #2:"); ok && info.Secondary == "" {
			info.Secondary = strings.TrimSpace(v)
		}
	}
	if info.Primary == "" {
		info.Manufacturer = VendorUnknown
		return info, nil
	}
	info.Detected = true
	info.Manufacturer = ClassifyVendor(info.Primary)
	info.Rival = RivalOf(info.Manufacturer)
	return info, nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

// ClassifyVendor maps a GPU description to a vendor by keyword.
func ClassifyVendor(desc string) string {
	d := strings.ToLower(desc)
	switch {
	case strings.Contains(d, "nvidia"), strings.Contains(d, "geforce"):
		return VendorNvidia
	case strings.Contains(d, "amd"), strings.Contains(d, "radeon"):
		return VendorAMD
	case strings.Contains(d, "intel"):
		return VendorIntel
	case strings.Contains(d, "microsoft"):
		return VendorMicrosoft
	default:
		return VendorUnknown
	}
}

// gpuKnown reports whether vendor names a classified GPU manufacturer.
func gpuKnown(vendor string) bool {
	return vendor != "" && !strings.EqualFold(vendor, VendorUnknown)
}

// RivalOf returns the lowercase rival of a vendor, or "".
func RivalOf(vendor string) string {
	switch vendor {
	case VendorNvidia:
		return "amd"
	case VendorAMD:
		return "nvidia"
	default:
		return ""
	}
}

// GPUAnalyzer detects the primary GPU and publishes it for later analyzers.
type GPUAnalyzer struct {
	detector GPUDetector
	logger   *slog.Logger
}

// NewGPUAnalyzer creates the GPU analyzer.
func NewGPUAnalyzer(cfg Config) *GPUAnalyzer {
	d := cfg.GPUDetector
	if d == nil {
		d = KeywordDetector{}
	}
	return &GPUAnalyzer{detector: d, logger: cfg.logger()}
}

func (a *GPUAnalyzer) Name() string                                 { return NameGPU }
func (a *GPUAnalyzer) Priority() int                                { return PriorityGPU }
func (a *GPUAnalyzer) Timeout() time.Duration                       { return 0 }
func (a *GPUAnalyzer) CanAnalyze(_ *crashscan.AnalysisContext) bool { return true }

// Analyze implements crashscan.Analyzer.
func (a *GPUAnalyzer) Analyze(ctx context.Context, ac *crashscan.AnalysisContext) (crashscan.AnalysisResult, error) {
	res := crashscan.NewResult(NameGPU)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	info, err := a.detector.Detect(ac.Log.SystemSpecs)
	if err != nil {
		return res, fmt.Errorf("detect gpu: %w", err)
	}
	crashscan.Set(ac, GPUInfoKey, info)

	if !info.Detected {
		res.Severity = crashscan.SeverityInfo
		res.SetMeta("detected", false)
		res.Fragment = crashscan.NewFragment("GPU", "No GPU #1 line found in the system specs.", crashscan.FragmentInfo)
		return res, nil
	}

	vendor := strings.ToLower(info.Manufacturer)
	crashscan.Set(ac, DetectedGPUTypeKey, vendor)
	crashscan.Set(ac, GPURivalKey, info.Rival)
	a.logger.Debug("gpu detected", "manufacturer", info.Manufacturer, "rival", info.Rival)

	res.SetMeta("detected", true)
	res.SetMeta("manufacturer", info.Manufacturer)
	res.SetMeta("primary", info.Primary)
	if info.Secondary != "" {
		res.SetMeta("secondary", info.Secondary)
	}
	if info.Rival != "" {
		res.SetMeta("rival", info.Rival)
	}

	lines := []string{fmt.Sprintf("Primary: %s (%s)", info.Primary, info.Manufacturer)}
	if info.Secondary != "" {
		lines = append(lines, "Secondary: "+info.Secondary)
	}
	res.Fragment = crashscan.NewFragment("GPU", bulletList(lines), crashscan.FragmentInfo)
	return res, nil
}

// Ensure GPUAnalyzer implements crashscan.Analyzer.
var _ crashscan.Analyzer = (*GPUAnalyzer)(nil)
