package api

import (
	"encoding/json"
	"fmt"
)

// TestCaseType represents the kind of test case
type TestCaseType string

const (
	TestCaseTypeLLM            TestCaseType = "llm"
	TestCaseTypeConversational TestCaseType = "conversational"
	TestCaseTypeMultimodal     TestCaseType = "multimodal"
)

// InputItem is one element of a multimodal input, either text or an image reference.
type InputItem struct {
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// TestCaseInput holds either a plain string or, for multimodal test cases, an ordered list of items.
// On the wire it is a JSON string or a JSON array whose elements are strings or image objects.
type TestCaseInput struct {
	Text  string
	Items []InputItem
}

func (in TestCaseInput) IsMultimodal() bool {
	return in.Items != nil
}

func (in TestCaseInput) MarshalJSON() ([]byte, error) {
	if in.Items == nil {
		return json.Marshal(in.Text)
	}
	raw := make([]any, 0, len(in.Items))
	for _, item := range in.Items {
		if item.ImageURL != "" {
			raw = append(raw, map[string]string{"url": item.ImageURL})
			continue
		}
		raw = append(raw, item.Text)
	}
	return json.Marshal(raw)
}

func (in *TestCaseInput) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*in = TestCaseInput{Text: text}
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("test case input must be a string or an array: %w", err)
	}
	items := make([]InputItem, 0, len(raw))
	for _, r := range raw {
		if err := json.Unmarshal(r, &text); err == nil {
			items = append(items, InputItem{Text: text})
			continue
		}
		var image struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(r, &image); err != nil || image.URL == "" {
			return fmt.Errorf("multimodal input item must be a string or an image reference")
		}
		items = append(items, InputItem{ImageURL: image.URL})
	}
	*in = TestCaseInput{Items: items}
	return nil
}

// TestCase is a single evaluation example.
type TestCase struct {
	ID                 string         `json:"id" validate:"required"`
	Name               string         `json:"name" validate:"required"`
	Type               TestCaseType   `json:"type" validate:"required,oneof=llm conversational multimodal"`
	Input              TestCaseInput  `json:"input"`
	ExpectedOutput     *string        `json:"expected_output,omitempty"`
	Context            []string       `json:"context,omitempty"`
	RetrievalContext   []string       `json:"retrieval_context,omitempty"`
	AdditionalMetadata map[string]any `json:"additional_metadata,omitempty"`
	IsGlobal           bool           `json:"is_global"`
	UserID             string         `json:"user_id"`
	Timestamps
}

func (t TestCase) GetID() string    { return t.ID }
func (t TestCase) ParentID() string { return "" }
func (t TestCase) SortKey() int64   { return t.CreatedAt.UnixMilli() }

// TestCaseConfig is the request to create a test case.
type TestCaseConfig struct {
	Name               string         `json:"name" validate:"required,max=255"`
	Type               TestCaseType   `json:"type" validate:"required,oneof=llm conversational multimodal"`
	Input              TestCaseInput  `json:"input"`
	ExpectedOutput     *string        `json:"expected_output,omitempty"`
	Context            []string       `json:"context,omitempty"`
	RetrievalContext   []string       `json:"retrieval_context,omitempty"`
	AdditionalMetadata map[string]any `json:"additional_metadata,omitempty"`
	IsGlobal           bool           `json:"is_global"`
}

// TestCasePatch is a partial update of a test case. The Nullable fields are cleared with Null.
type TestCasePatch struct {
	Name               *string                  `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Input              *TestCaseInput           `json:"input,omitempty"`
	ExpectedOutput     Nullable[string]         `json:"expected_output,omitzero"`
	Context            Nullable[[]string]       `json:"context,omitzero"`
	RetrievalContext   Nullable[[]string]       `json:"retrieval_context,omitzero"`
	AdditionalMetadata Nullable[map[string]any] `json:"additional_metadata,omitzero"`
	IsGlobal           *bool                    `json:"is_global,omitempty"`
}
