package server

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/omr-heads/internal/shape"
	"github.com/ironsheep/omr-heads/internal/template"
)

// testPage holds the files of a one-staff page with a whole note on its
// top space.
type testPage struct {
	image  string
	layout string
}

// createTestPage writes a 400x250 page, staff lines at 100..180, and its
// layout document.
func createTestPage(t *testing.T, s *Server) testPage {
	t.Helper()
	dir := t.TempDir()

	img := image.NewGray(image.Rect(0, 0, 400, 250))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	var lines []string
	for y := 100; y <= 180; y += 20 {
		for x := 20; x <= 380; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
		lines = append(lines, fmt.Sprintf(`{"points":[{"x":20,"y":%d},{"x":380,"y":%d}],"thickness":1}`, y, y))
	}
	tpl, err := s.factory.Template(shape.WholeNote, 80)
	if err != nil {
		t.Fatalf("Template failed: %v", err)
	}
	tpl.Paint(img, 200, 110, template.MiddleLeft)

	p := testPage{image: filepath.Join(dir, "page.png"), layout: filepath.Join(dir, "layout.json")}
	f, err := os.Create(p.image)
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode page: %v", err)
	}

	doc := fmt.Sprintf(`{"id":"test","width":400,"height":250,"scale":{"interline":20,"max_stem":3},`+
		`"systems":[{"id":1,"staves":[{"id":1,"lines":[%s]}],"measures":[{"id":1,"left":20,"right":380}]}]}`,
		strings.Join(lines, ","))
	if err := os.WriteFile(p.layout, []byte(doc), 0o644); err != nil {
		t.Fatalf("failed to write layout: %v", err)
	}
	return p
}

// callTool sends a tools/call request and returns the decoded text content.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) (map[string]interface{}, *MCPError) {
	t.Helper()
	params, _ := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("content: got %v", result["content"])
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), &out); err != nil {
		t.Fatalf("failed to decode tool result: %v", err)
	}
	return out, nil
}

func TestHandleToolsCall_PageInfo(t *testing.T) {
	s := newTestServer(t)
	p := createTestPage(t, s)

	out, mcpErr := callTool(t, s, "omr_page_info", map[string]interface{}{"path": p.image})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %v", mcpErr)
	}
	if out["width"] != float64(400) || out["height"] != float64(250) {
		t.Errorf("dimensions: got %vx%v, want 400x250", out["width"], out["height"])
	}
	if out["format"] != "png" || out["gray"] != true {
		t.Errorf("format: got %v gray=%v", out["format"], out["gray"])
	}
	if ratio, _ := out["ink_ratio"].(float64); ratio <= 0 || ratio >= 0.1 {
		t.Errorf("ink_ratio: got %v", out["ink_ratio"])
	}
}

func TestHandleToolsCall_DetectHeads(t *testing.T) {
	s := newTestServer(t)
	p := createTestPage(t, s)

	out, mcpErr := callTool(t, s, "omr_detect_heads", map[string]interface{}{"image": p.image, "layout": p.layout})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %v", mcpErr)
	}
	if out["sheet_id"] != "test" {
		t.Errorf("sheet_id: got %v", out["sheet_id"])
	}
	systems, _ := out["systems"].([]interface{})
	if len(systems) != 1 {
		t.Fatalf("systems: got %d, want 1", len(systems))
	}
	heads, _ := systems[0].(map[string]interface{})["heads"].([]interface{})
	found := false
	for _, h := range heads {
		head := h.(map[string]interface{})
		if head["shape"] == "WHOLE_NOTE" && head["grade"].(float64) >= 0.9 {
			found = true
		}
	}
	if !found {
		t.Errorf("whole note not reported among %d heads", len(heads))
	}
	if _, err := s.lastResult(p.image); err != nil {
		t.Errorf("detection not kept: %v", err)
	}
}

func TestHandleToolsCall_DetectHeadsSummary(t *testing.T) {
	s := newTestServer(t)
	p := createTestPage(t, s)

	out, mcpErr := callTool(t, s, "omr_detect_heads", map[string]interface{}{"image": p.image, "layout": p.layout, "summary": true})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %v", mcpErr)
	}
	if out["heads"].(float64) < 1 || out["chords"].(float64) < 1 {
		t.Errorf("summary: got %v heads, %v chords", out["heads"], out["chords"])
	}
	systems := out["systems"].([]interface{})
	if len(systems) != 1 || systems[0].(map[string]interface{})["system"] != float64(1) {
		t.Errorf("systems: got %v", systems)
	}
}

func TestHandleToolsCall_Template(t *testing.T) {
	s := newTestServer(t)

	out, mcpErr := callTool(t, s, "omr_template", map[string]interface{}{"shape": "notehead_void", "point_size": 80})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %v", mcpErr)
	}
	if out["shape"] != "NOTEHEAD_VOID" || out["point_size"] != float64(80) {
		t.Errorf("template: got %v at %v", out["shape"], out["point_size"])
	}
	for _, key := range []string{"foreground_points", "background_points", "hole_points"} {
		if n, _ := out[key].(float64); n <= 0 {
			t.Errorf("%s: got %v, want > 0", key, out[key])
		}
	}
	if out["image_base64"] == "" || out["mime_type"] != "image/png" {
		t.Error("template image missing")
	}
}

func TestHandleToolsCall_Annotate(t *testing.T) {
	s := newTestServer(t)
	p := createTestPage(t, s)

	out, mcpErr := callTool(t, s, "omr_annotate", map[string]interface{}{"image": p.image, "layout": p.layout})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %v", mcpErr)
	}
	if out["width"] != float64(400) || out["marks"].(float64) < 2 {
		t.Errorf("overlay: got width %v with %v marks", out["width"], out["marks"])
	}

	// Reuses the kept detection and saves to disk.
	output := filepath.Join(t.TempDir(), "overlay.png")
	out, mcpErr = callTool(t, s, "omr_annotate", map[string]interface{}{"image": p.image, "output": output})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %v", mcpErr)
	}
	if out["path"] != output {
		t.Errorf("path: got %v, want %s", out["path"], output)
	}
	if _, err := os.Stat(output); err != nil {
		t.Errorf("overlay not saved: %v", err)
	}
}

func TestHandleToolsCall_HeadCrop(t *testing.T) {
	s := newTestServer(t)
	p := createTestPage(t, s)
	if _, err := s.detect(p.image, p.layout); err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	res, _ := s.lastResult(p.image)
	if len(res.Systems) == 0 || len(res.Systems[0].Heads) == 0 {
		t.Fatal("no head detected")
	}
	h := res.Systems[0].Heads[0]

	out, mcpErr := callTool(t, s, "omr_head_crop", map[string]interface{}{
		"image": p.image, "system": 1, "head": h.ID, "margin": 4, "scale": 2.0,
	})
	if mcpErr != nil {
		t.Fatalf("Unexpected error: %v", mcpErr)
	}
	if out["width"] != float64(2*(h.Bounds.Width+8)) || out["height"] != float64(2*(h.Bounds.Height+8)) {
		t.Errorf("crop: got %vx%v for head %+v", out["width"], out["height"], h.Bounds)
	}
	if out["x"] != float64(h.Bounds.X-4) {
		t.Errorf("crop x: got %v, want %d", out["x"], h.Bounds.X-4)
	}
}

func TestHandleToolsCall_Errors(t *testing.T) {
	s := newTestServer(t)
	p := createTestPage(t, s)
	missing := filepath.Join(t.TempDir(), "none.png")

	tests := []struct {
		name string
		tool string
		args map[string]interface{}
	}{
		{"unknown tool", "image_load", map[string]interface{}{}},
		{"missing page", "omr_page_info", map[string]interface{}{"path": missing}},
		{"detect without layout", "omr_detect_heads", map[string]interface{}{"image": p.image}},
		{"bad layout", "omr_detect_heads", map[string]interface{}{"image": p.image, "layout": p.image}},
		{"unknown shape", "omr_template", map[string]interface{}{"shape": "G_CLEF", "point_size": 80}},
		{"not a head", "omr_template", map[string]interface{}{"shape": "NO_SHAPE", "point_size": 80}},
		{"bad point size", "omr_template", map[string]interface{}{"shape": "WHOLE_NOTE", "point_size": 0}},
		{"annotate before detect", "omr_annotate", map[string]interface{}{"image": p.image}},
		{"crop before detect", "omr_head_crop", map[string]interface{}{"image": p.image, "system": 1, "head": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mcpErr := callTool(t, s, tt.tool, tt.args)
			if mcpErr == nil {
				t.Fatal("expected an error")
			}
			if mcpErr.Code != -32000 {
				t.Errorf("Error code: got %d, want -32000", mcpErr.Code)
			}
		})
	}
}

func TestHandleToolsCall_HeadCropUnknownHead(t *testing.T) {
	s := newTestServer(t)
	p := createTestPage(t, s)
	if _, err := s.detect(p.image, p.layout); err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	_, mcpErr := callTool(t, s, "omr_head_crop", map[string]interface{}{"image": p.image, "system": 1, "head": 9999})
	if mcpErr == nil || !strings.Contains(fmt.Sprint(mcpErr.Data), "no head 9999") {
		t.Errorf("Error: got %+v", mcpErr)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: json.RawMessage(`[1,2]`)})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("Error: got %+v, want code -32602", resp.Error)
	}
}
