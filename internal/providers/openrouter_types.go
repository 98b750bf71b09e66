package providers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
)

// Wire types for the OpenRouter chat completions API. Page images travel as
// image_url parts; PDFs travel as file parts parsed upstream by the file-parser
// plugin.

type openRouterRequest struct {
	Model          string                    `json:"model"`
	Messages       []openRouterMessage       `json:"messages"`
	Temperature    float64                   `json:"temperature,omitempty"`
	MaxTokens      int                       `json:"max_tokens,omitempty"`
	ResponseFormat *openRouterResponseFormat `json:"response_format,omitempty"`
	Usage          *openRouterUsageRequest   `json:"usage,omitempty"`
	Plugins        []openRouterPlugin        `json:"plugins,omitempty"`
}

type openRouterUsageRequest struct {
	Include bool `json:"include"`
}

type openRouterPlugin struct {
	ID  string            `json:"id"`
	PDF *openRouterPDFCfg `json:"pdf,omitempty"`
}

// openRouterPDFCfg selects the PDF engine; "native" hands the file to models
// that read PDFs directly and falls back to OCR for the rest.
type openRouterPDFCfg struct {
	Engine string `json:"engine"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []openRouterContent
}

type openRouterContent struct {
	Type     string              `json:"type"` // text, image_url or file
	Text     string              `json:"text,omitempty"`
	ImageURL *openRouterImageURL `json:"image_url,omitempty"`
	File     *openRouterFile     `json:"file,omitempty"`
}

type openRouterImageURL struct {
	URL string `json:"url"`
}

type openRouterFile struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"` // data URL
}

type openRouterResponseFormat struct {
	Type       string          `json:"type"`
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

type openRouterResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Choices []openRouterChoice `json:"choices"`
	Usage   openRouterUsage    `json:"usage"`
	Error   *openRouterError   `json:"error,omitempty"`
}

type openRouterChoice struct {
	Message struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type openRouterUsage struct {
	PromptTokens            int     `json:"prompt_tokens"`
	CompletionTokens        int     `json:"completion_tokens"`
	TotalTokens             int     `json:"total_tokens"`
	Cost                    float64 `json:"cost,omitempty"`
	CompletionTokensDetails struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details,omitempty"`
}

type openRouterError struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"` // string or int
}

// attachmentPart renders the i-th page of a message as a content part.
func attachmentPart(i int, att Attachment) openRouterContent {
	if mediaTypeOf(att) == "application/pdf" {
		return openRouterContent{
			Type: "file",
			File: &openRouterFile{Filename: fmt.Sprintf("page-%d.pdf", i+1), FileData: dataURL(att)},
		}
	}
	return openRouterContent{Type: "image_url", ImageURL: &openRouterImageURL{URL: dataURL(att)}}
}

func hasPDF(messages []Message) bool {
	for _, m := range messages {
		for _, att := range m.Attachments {
			if mediaTypeOf(att) == "application/pdf" {
				return true
			}
		}
	}
	return false
}

func mediaTypeOf(att Attachment) string {
	if att.MediaType != "" {
		return att.MediaType
	}
	return http.DetectContentType(att.Data)
}

func dataURL(att Attachment) string {
	return "data:" + mediaTypeOf(att) + ";base64," + base64.StdEncoding.EncodeToString(att.Data)
}
