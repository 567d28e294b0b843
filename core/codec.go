package core

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// wirePart is the persisted JSON shape of a Part. Exactly one field is set.
type wirePart struct {
	Text             *string           `json:"text,omitempty"`
	InlineData       *wireBlob         `json:"inlineData,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

type wireBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

// MarshalParts encodes parts into the JSON array stored in the message log.
func MarshalParts(parts []Part) ([]byte, error) {
	out := make([]wirePart, 0, len(parts))

	for i, p := range parts {
		switch v := p.(type) {
		case TextPart:
			text := v.Text
			out = append(out, wirePart{Text: &text})
		case BlobPart:
			out = append(out, wirePart{InlineData: &wireBlob{
				MIMEType: v.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(v.Data),
			}})
		case FunctionCallPart:
			fc := v.FunctionCall
			out = append(out, wirePart{FunctionCall: &fc})
		case FunctionResponsePart:
			fr := v.FunctionResponse
			out = append(out, wirePart{FunctionResponse: &fr})
		default:
			return nil, fmt.Errorf("marshal parts: unsupported part %d of type %T", i, p)
		}
	}

	return json.Marshal(out)
}

// UnmarshalParts decodes a JSON array previously produced by MarshalParts.
func UnmarshalParts(data []byte) ([]Part, error) {
	var raw []wirePart
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal parts: %w", err)
	}

	parts := make([]Part, 0, len(raw))

	for i, w := range raw {
		switch {
		case w.Text != nil:
			parts = append(parts, TextPart{Text: *w.Text})
		case w.InlineData != nil:
			b, err := base64.StdEncoding.DecodeString(w.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("unmarshal parts: inline data %d: %w", i, err)
			}
			parts = append(parts, BlobPart{MIMEType: w.InlineData.MIMEType, Data: b})
		case w.FunctionCall != nil:
			parts = append(parts, FunctionCallPart{FunctionCall: *w.FunctionCall})
		case w.FunctionResponse != nil:
			parts = append(parts, FunctionResponsePart{FunctionResponse: *w.FunctionResponse})
		default:
			return nil, fmt.Errorf("unmarshal parts: part %d has no content", i)
		}
	}

	return parts, nil
}

// MarshalJSON encodes Content using the persisted part shape.
func (c Content) MarshalJSON() ([]byte, error) {
	parts, err := MarshalParts(c.Parts)
	if err != nil {
		return nil, err
	}

	return json.Marshal(struct {
		Role  Role            `json:"role"`
		Parts json.RawMessage `json:"parts"`
	}{Role: c.Role, Parts: parts})
}

// UnmarshalJSON decodes Content written by MarshalJSON.
func (c *Content) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role  Role            `json:"role"`
		Parts json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parts, err := UnmarshalParts(raw.Parts)
	if err != nil {
		return err
	}

	c.Role = raw.Role
	c.Parts = parts

	return nil
}
