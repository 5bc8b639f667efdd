package linearize

import (
	"encoding/json"
	"strings"

	"github.com/chatport/chatport/internal/export"
)

// partObject is the decoded form of a non-string message part. Asset pointer
// fields stay raw because exports carry them either as a bare string or as a
// nested {"asset_pointer": "..."} object.
type partObject struct {
	Text            *string         `json:"text"`
	ContentType     string          `json:"content_type"`
	AssetPointer    json.RawMessage `json:"asset_pointer"`
	ImagePointer    json.RawMessage `json:"image_asset_pointer"`
	FilePointer     json.RawMessage `json:"file_asset_pointer"`
	DocumentPointer json.RawMessage `json:"document_asset_pointer"`
	AudioPointer    json.RawMessage `json:"audio_asset_pointer"`
	VideoPointer    json.RawMessage `json:"video_asset_pointer"`
}

// partsToText concatenates the text of all parts and collects file refs for
// any asset pointers, resolved through the Attacher.
func (l *Linearizer) partsToText(parts []json.RawMessage) (string, []export.FileRef) {
	var text string
	var files []export.FileRef

	for _, raw := range parts {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			text += export.SanitizeText(s)
			continue
		}

		var p partObject
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}

		if p.Text != nil {
			text += export.SanitizeText(*p.Text)
			continue
		}

		pointer := p.findPointer()
		if pointer == "" {
			continue
		}

		fragment, ref := l.Attach.Attach(pointer, p.ContentType)
		text += fragment
		if ref != nil {
			files = append(files, *ref)
		}
	}

	return text, files
}

// findPointer locates the asset pointer in a part. Multimodal parts are
// checked key by key; otherwise a direct asset_pointer key is the fallback.
func (p *partObject) findPointer() string {
	if containsAny(p.ContentType, "asset_pointer", "multimodal") {
		for _, raw := range []json.RawMessage{
			p.AssetPointer, p.ImagePointer, p.FilePointer,
			p.DocumentPointer, p.AudioPointer, p.VideoPointer,
		} {
			if ptr := pointerFrom(raw); ptr != "" {
				return ptr
			}
		}
	}
	return pointerFrom(p.AssetPointer)
}

// pointerFrom extracts a pointer from a raw value that is either a string or
// an object wrapping an asset_pointer key.
func pointerFrom(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var nested struct {
		AssetPointer string `json:"asset_pointer"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		return nested.AssetPointer
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
