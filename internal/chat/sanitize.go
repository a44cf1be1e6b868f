package chat

import (
	"strings"

	"github.com/raphaelgruber/chatblocks/internal/models"
)

// Sanitize prepares response messages for persistence. Tool calls without a
// matching result are dropped, as are empty text parts and messages left
// with no content.
func Sanitize(msgs []models.Message) []models.Message {
	answered := make(map[string]bool)
	for _, m := range msgs {
		if m.Role != models.RoleTool {
			continue
		}
		for _, p := range m.PartsOf(models.PartToolResult) {
			answered[p.ToolCallID] = true
		}
	}

	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		var parts []models.ContentPart
		for _, p := range m.Content {
			switch p.Type {
			case models.PartText:
				if strings.TrimSpace(p.Text) == "" {
					continue
				}
			case models.PartToolCall:
				if !answered[p.ToolCallID] {
					continue
				}
			}
			parts = append(parts, p)
		}
		if len(parts) == 0 {
			continue
		}
		m.Content = parts
		out = append(out, m)
	}
	return out
}
