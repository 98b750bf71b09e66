package endpoints

import (
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/papercheck/internal/api"
	"github.com/jackzampolin/papercheck/internal/prompts"
	"github.com/jackzampolin/papercheck/internal/svcctx"
)

// PromptResponse represents a single embedded prompt.
type PromptResponse struct {
	Key         string   `json:"key"`
	Text        string   `json:"text"`
	Description string   `json:"description,omitempty"`
	Variables   []string `json:"variables,omitempty"`
	Hash        string   `json:"hash,omitempty"`
}

// PromptsListResponse contains all prompts.
type PromptsListResponse struct {
	Prompts []PromptResponse `json:"prompts"`
}

// ResolvedPromptResponse is a prompt resolved for a scope.
type ResolvedPromptResponse struct {
	Scope string `json:"scope,omitempty"`
	prompts.ResolvedPrompt
}

// SetPromptRequest is the request body for setting a scope override.
type SetPromptRequest struct {
	Text string `json:"text"`
	Note string `json:"note,omitempty"`
}

// ListPromptsEndpoint handles GET /v1/prompts.
type ListPromptsEndpoint struct{}

func (e *ListPromptsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/prompts", e.handler
}

func (e *ListPromptsEndpoint) RequiresInit() bool { return true }

func (e *ListPromptsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resolver := svcctx.PromptResolverFrom(r.Context())
	if resolver == nil {
		writeError(w, http.StatusInternalServerError, "prompt resolver not available")
		return
	}

	embedded := resolver.AllEmbedded()
	resp := PromptsListResponse{Prompts: make([]PromptResponse, len(embedded))}
	for i, p := range embedded {
		resp.Prompts[i] = PromptResponse{
			Key:         p.Key,
			Text:        p.Text,
			Description: p.Description,
			Variables:   p.Variables,
			Hash:        p.Hash,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListPromptsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp PromptsListResponse
			if err := client.Get(cmd.Context(), "/v1/prompts", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetPromptEndpoint handles GET /v1/prompts/{key...}. With ?scope= the
// scope's override is applied when one exists.
type GetPromptEndpoint struct{}

func (e *GetPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/prompts/{key...}", e.handler
}

func (e *GetPromptEndpoint) RequiresInit() bool { return true }

func (e *GetPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(r.PathValue("key"))
	if err != nil || key == "" {
		writeError(w, http.StatusBadRequest, "invalid prompt key")
		return
	}

	resolver := svcctx.PromptResolverFrom(r.Context())
	if resolver == nil {
		writeError(w, http.StatusInternalServerError, "prompt resolver not available")
		return
	}
	if _, ok := resolver.GetEmbedded(key); !ok {
		writeError(w, http.StatusNotFound, "prompt key not found: "+key)
		return
	}

	scope := r.URL.Query().Get("scope")
	resolved, err := resolver.Resolve(r.Context(), key, scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ResolvedPromptResponse{Scope: scope, ResolvedPrompt: *resolved})
}

func (e *GetPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a prompt, resolved for a scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ResolvedPromptResponse
			if err := client.Get(cmd.Context(), promptPath(args[0], scope), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "Scope to resolve for, e.g. math")
	return cmd
}

// SetPromptEndpoint handles PUT /v1/prompts/{key...}?scope=.
type SetPromptEndpoint struct{}

func (e *SetPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/v1/prompts/{key...}", e.handler
}

func (e *SetPromptEndpoint) RequiresInit() bool { return true }

func (e *SetPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(r.PathValue("key"))
	if err != nil || key == "" {
		writeError(w, http.StatusBadRequest, "invalid prompt key")
		return
	}
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		writeError(w, http.StatusBadRequest, "scope is required")
		return
	}

	var req SetPromptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	resolver := svcctx.PromptResolverFrom(r.Context())
	if resolver == nil {
		writeError(w, http.StatusInternalServerError, "prompt resolver not available")
		return
	}
	if _, ok := resolver.GetEmbedded(key); !ok {
		writeError(w, http.StatusNotFound, "prompt key not found: "+key)
		return
	}

	writer := svcctx.OverrideWriterFrom(r.Context())
	if writer == nil {
		writeError(w, http.StatusNotImplemented, "prompt overrides need the knowledge store (set knowledge.postgres_dsn)")
		return
	}
	if err := writer.SetOverride(r.Context(), prompts.Override{
		Scope:     scope,
		PromptKey: key,
		Text:      req.Text,
		Note:      req.Note,
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to set override: "+err.Error())
		return
	}
	svcctx.LoggerFrom(r.Context()).Info("prompt override set", "key", key, "scope", scope)

	resolved, err := resolver.Resolve(r.Context(), key, scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ResolvedPromptResponse{Scope: scope, ResolvedPrompt: *resolved})
}

func (e *SetPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var scope, note string
	cmd := &cobra.Command{
		Use:   "set <key> <text>",
		Short: "Override a prompt for a scope",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ResolvedPromptResponse
			if err := client.Put(cmd.Context(), promptPath(args[0], scope), SetPromptRequest{
				Text: args[1],
				Note: note,
			}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "Scope the override applies to, e.g. math")
	cmd.Flags().StringVar(&note, "note", "", "Note about this override")
	_ = cmd.MarkFlagRequired("scope")
	return cmd
}

func promptPath(key, scope string) string {
	path := "/v1/prompts/" + url.PathEscape(key)
	if scope != "" {
		path += "?" + url.Values{"scope": {scope}}.Encode()
	}
	return path
}
