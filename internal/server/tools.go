package server

import "github.com/ironsheep/omr-heads/internal/shape"

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func headNames() []string {
	names := make([]string, len(shape.Heads))
	for i, h := range shape.Heads {
		names[i] = h.String()
	}
	return names
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Page Information
		{
			Name:        "omr_page_info",
			Description: "Load a music page image and return its dimensions, format and ink ratio once binarized.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the page image (PNG, JPEG, GIF, TIFF or BMP)"),
				},
				"required": []string{"path"},
			},
		},

		// Detection
		{
			Name:        "omr_detect_heads",
			Description: "Detect note heads and assemble chords on a page, given its layout document (staves, ledgers, stem seeds, bars, beams, rests, measures). The result is kept for omr_annotate and omr_head_crop.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image":  pathProperty("Absolute path to the page image"),
					"layout": pathProperty("Absolute path to the JSON layout document"),
					"summary": map[string]interface{}{
						"type":        "boolean",
						"description": "Return counts per system instead of every head and chord. Default false",
						"default":     false,
					},
				},
				"required": []string{"image", "layout"},
			},
		},
		{
			Name:        "omr_template",
			Description: "Render the matching template of a head shape at a point size, showing foreground, background and hole key points.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"shape": map[string]interface{}{
						"type":        "string",
						"enum":        headNames(),
						"description": "Head shape name",
					},
					"point_size": map[string]interface{}{
						"type":        "integer",
						"description": "Music font point size, four times the staff interline",
					},
				},
				"required": []string{"shape", "point_size"},
			},
		},

		// Inspection
		{
			Name:        "omr_annotate",
			Description: "Draw detected heads and chords over the page, one color per chord. Uses the last detection of the page, or runs one when a layout is given.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image":  pathProperty("Absolute path to the page image"),
					"layout": pathProperty("Optional layout document, to detect before annotating"),
					"output": pathProperty("Optional file to save the overlay to instead of returning it"),
				},
				"required": []string{"image"},
			},
		},
		{
			Name:        "omr_head_crop",
			Description: "Crop the page around one detected head and return it as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image": pathProperty("Absolute path to the page image"),
					"system": map[string]interface{}{
						"type":        "integer",
						"description": "System id of the head",
					},
					"head": map[string]interface{}{
						"type":        "integer",
						"description": "Head id within its system",
					},
					"margin": map[string]interface{}{
						"type":        "integer",
						"description": "Pixels kept around the head. Default 10",
						"default":     10,
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor. Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"image", "system", "head"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
