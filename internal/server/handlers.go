package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ironsheep/omr-heads/internal/imaging"
	"github.com/ironsheep/omr-heads/internal/log"
	"github.com/ironsheep/omr-heads/internal/pipeline"
	"github.com/ironsheep/omr-heads/internal/shape"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "omr_detect_heads").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		log.Debug("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "omr_page_info":
		return s.handlePageInfo(args)
	case "omr_detect_heads":
		return s.handleDetectHeads(args)
	case "omr_template":
		return s.handleTemplate(args)
	case "omr_annotate":
		return s.handleAnnotate(args)
	case "omr_head_crop":
		return s.handleHeadCrop(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Page Information ===

type pageInfoArgs struct {
	Path string `json:"path"`
}

func (s *Server) handlePageInfo(args json.RawMessage) (interface{}, error) {
	var a pageInfoArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadPageInfo(s.cache, a.Path, s.cfg.BinaryThreshold)
}

// === Detection ===

type detectArgs struct {
	Image   string `json:"image"`
	Layout  string `json:"layout"`
	Summary bool   `json:"summary"`
}

// systemSummary counts the findings of one system.
type systemSummary struct {
	System     int `json:"system"`
	Heads      int `json:"heads"`
	Chords     int `json:"chords"`
	Exclusions int `json:"exclusions"`
}

// detectSummary is the short form of a detection result.
type detectSummary struct {
	SheetID    string                   `json:"sheet_id"`
	Heads      int                      `json:"heads"`
	Chords     int                      `json:"chords"`
	Calibrated int                      `json:"calibrated"`
	Systems    []systemSummary          `json:"systems"`
	Failed     []pipeline.SystemFailure `json:"failed,omitempty"`
}

func summarize(res *pipeline.Result) *detectSummary {
	out := &detectSummary{
		SheetID:    res.SheetID,
		Heads:      res.HeadCount(),
		Chords:     res.ChordCount(),
		Calibrated: res.Scale.Len(),
		Systems:    []systemSummary{},
		Failed:     res.Failed,
	}
	for _, sr := range res.Systems {
		out.Systems = append(out.Systems, systemSummary{
			System:     sr.System,
			Heads:      len(sr.Heads),
			Chords:     len(sr.Chords),
			Exclusions: len(sr.Exclusions),
		})
	}
	return out
}

// detect runs head detection and keeps the result for the page. A useful
// calibration is carried over to the next detection.
func (s *Server) detect(image, layout string) (*pipeline.Result, error) {
	s.mu.Lock()
	scale := s.scale
	s.mu.Unlock()

	res, err := pipeline.DetectFiles(context.Background(), s.cache,
		pipeline.Files{Image: image, Layout: layout}, s.cfg, s.factory, scale)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.results[image] = res
	if res.Scale.Len() > 0 {
		s.scale = res.Scale
	}
	s.mu.Unlock()
	return res, nil
}

func (s *Server) handleDetectHeads(args json.RawMessage) (interface{}, error) {
	var a detectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Layout == "" {
		return nil, fmt.Errorf("layout is required")
	}
	res, err := s.detect(a.Image, a.Layout)
	if err != nil {
		return nil, err
	}
	if a.Summary {
		return summarize(res), nil
	}
	return res, nil
}

// lastResult returns the detection kept for the page.
func (s *Server) lastResult(image string) (*pipeline.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.results[image]
	if !ok {
		return nil, fmt.Errorf("no detection for %s, call omr_detect_heads first", image)
	}
	return res, nil
}

// === Templates ===

type templateArgs struct {
	Shape     string `json:"shape"`
	PointSize int    `json:"point_size"`
}

// templateResult describes a rendered template.
type templateResult struct {
	Shape        shape.Shape  `json:"shape"`
	PointSize    int          `json:"point_size"`
	Width        int          `json:"width"`
	Height       int          `json:"height"`
	SymbolBounds pipeline.Box `json:"symbol_bounds"`
	Foreground   int          `json:"foreground_points"`
	Background   int          `json:"background_points"`
	Holes        int          `json:"hole_points"`
	ImageBase64  string       `json:"image_base64"`
	MimeType     string       `json:"mime_type"`
}

func (s *Server) handleTemplate(args json.RawMessage) (interface{}, error) {
	var a templateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	sh, err := shape.Parse(a.Shape)
	if err != nil {
		return nil, err
	}
	if !sh.IsHead() {
		return nil, fmt.Errorf("%s is not a head shape", sh)
	}
	if a.PointSize <= 0 {
		return nil, fmt.Errorf("invalid point size %d", a.PointSize)
	}

	t, err := s.factory.Template(sh, a.PointSize)
	if err != nil {
		return nil, err
	}
	data, err := imaging.EncodePNG(t.Image())
	if err != nil {
		return nil, err
	}

	out := &templateResult{
		Shape:        sh,
		PointSize:    a.PointSize,
		Width:        t.Width(),
		Height:       t.Height(),
		SymbolBounds: pipeline.NewBox(t.SymbolBounds()),
		ImageBase64:  data,
		MimeType:     "image/png",
	}
	for _, kp := range t.KeyPoints() {
		switch {
		case kp.D == 0:
			out.Foreground++
		case kp.D > 0:
			out.Background++
		default:
			out.Holes++
		}
	}
	return out, nil
}

// === Inspection ===

type annotateArgs struct {
	Image  string `json:"image"`
	Layout string `json:"layout"`
	Output string `json:"output"`
}

// savedOverlay reports an overlay written to disk.
type savedOverlay struct {
	Path  string `json:"path"`
	Marks int    `json:"marks"`
}

func (s *Server) handleAnnotate(args json.RawMessage) (interface{}, error) {
	var a annotateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	var res *pipeline.Result
	var err error
	if a.Layout != "" {
		res, err = s.detect(a.Image, a.Layout)
	} else {
		res, err = s.lastResult(a.Image)
	}
	if err != nil {
		return nil, err
	}

	page, err := s.cache.Load(a.Image)
	if err != nil {
		return nil, err
	}
	marks := res.Marks()
	overlay := imaging.Annotate(page, marks)

	if a.Output != "" {
		if err := imaging.SaveOverlay(overlay, a.Output); err != nil {
			return nil, err
		}
		return &savedOverlay{Path: a.Output, Marks: len(marks)}, nil
	}
	return imaging.EncodeOverlay(overlay, len(marks))
}

type headCropArgs struct {
	Image  string  `json:"image"`
	System int     `json:"system"`
	Head   int     `json:"head"`
	Margin *int    `json:"margin"`
	Scale  float64 `json:"scale"`
}

func (s *Server) handleHeadCrop(args json.RawMessage) (interface{}, error) {
	var a headCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	margin := 10
	if a.Margin != nil {
		margin = max(0, *a.Margin)
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}

	res, err := s.lastResult(a.Image)
	if err != nil {
		return nil, err
	}
	h, ok := res.Head(a.System, a.Head)
	if !ok {
		return nil, fmt.Errorf("no head %d in system %d", a.Head, a.System)
	}
	page, err := s.cache.Load(a.Image)
	if err != nil {
		return nil, err
	}
	return imaging.Crop(page, h.Bounds.Rect(), margin, a.Scale)
}
