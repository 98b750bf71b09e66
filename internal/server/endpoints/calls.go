package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/papercheck/internal/api"
	"github.com/jackzampolin/papercheck/internal/llmcall"
	"github.com/jackzampolin/papercheck/internal/svcctx"
)

// CallsResponse contains a list of oracle calls.
type CallsResponse struct {
	Calls []*llmcall.Call `json:"calls"`
	Total int             `json:"total"`
}

// CallResponse contains a single oracle call.
type CallResponse struct {
	Call *llmcall.Call `json:"call,omitempty"`
}

// ListCallsEndpoint handles GET /v1/calls.
type ListCallsEndpoint struct{}

func (e *ListCallsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/calls", e.handler
}

func (e *ListCallsEndpoint) RequiresInit() bool { return true }

func (e *ListCallsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.LLMCallStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "call store not available")
		return
	}

	filter, err := parseCallFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	calls := store.List(filter)
	if calls == nil {
		calls = []*llmcall.Call{}
	}
	writeJSON(w, http.StatusOK, CallsResponse{
		Calls: calls,
		Total: len(calls),
	})
}

func parseCallFilter(q url.Values) (llmcall.QueryFilter, error) {
	filter := llmcall.QueryFilter{
		PaperKey:  q.Get("paper_key"),
		Stage:     q.Get("stage"),
		PromptKey: q.Get("prompt_key"),
		Provider:  q.Get("provider"),
	}

	if v := q.Get("success"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("invalid success filter: %q must be true or false", v)
		}
		filter.Success = &b
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("invalid limit: %q must be an integer", v)
		}
		filter.Limit = limit
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}

	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return filter, fmt.Errorf("invalid offset: %q must be a non-negative integer", v)
		}
		filter.Offset = offset
	}

	for name, dst := range map[string]**time.Time{"after": &filter.After, "before": &filter.Before} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid %s time: %q must be RFC3339 format (e.g., 2026-01-15T00:00:00Z)", name, v)
		}
		*dst = &t
	}
	return filter, nil
}

func (e *ListCallsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var paperKey, stage, promptKey, provider, since string
	var limit, offset int
	var successOnly, failedOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent oracle calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())

			params := url.Values{}
			for k, v := range map[string]string{
				"paper_key":  paperKey,
				"stage":      stage,
				"prompt_key": promptKey,
				"provider":   provider,
			} {
				if v != "" {
					params.Set(k, v)
				}
			}
			if successOnly {
				params.Set("success", "true")
			}
			if failedOnly {
				params.Set("success", "false")
			}
			if since != "" {
				d, err := time.ParseDuration(since)
				if err != nil {
					return fmt.Errorf("invalid --since: %w", err)
				}
				params.Set("after", time.Now().Add(-d).UTC().Format(time.RFC3339))
			}
			if limit > 0 {
				params.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				params.Set("offset", strconv.Itoa(offset))
			}

			path := "/v1/calls"
			if len(params) > 0 {
				path += "?" + params.Encode()
			}

			var resp CallsResponse
			if err := client.Get(ctx, path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&paperKey, "paper-key", "", "Filter by paper key")
	cmd.Flags().StringVar(&stage, "stage", "", "Filter by stage (classify, marks, analyze, triage)")
	cmd.Flags().StringVar(&promptKey, "prompt-key", "", "Filter by prompt key")
	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider")
	cmd.Flags().StringVar(&since, "since", "", "Only calls newer than this duration, e.g. 1h")
	cmd.Flags().BoolVar(&successOnly, "success", false, "Only show successful calls")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only show failed calls")
	cmd.MarkFlagsMutuallyExclusive("success", "failed")
	cmd.Flags().IntVar(&limit, "limit", 100, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Result offset")
	return cmd
}

// GetCallEndpoint handles GET /v1/calls/{id}.
type GetCallEndpoint struct{}

func (e *GetCallEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/calls/{id}", e.handler
}

func (e *GetCallEndpoint) RequiresInit() bool { return true }

func (e *GetCallEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}

	store := svcctx.LLMCallStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "call store not available")
		return
	}

	call, ok := store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "call not found")
		return
	}
	writeJSON(w, http.StatusOK, CallResponse{Call: call})
}

func (e *GetCallEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get an oracle call by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CallResponse
			if err := client.Get(cmd.Context(), "/v1/calls/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp.Call)
		},
	}
}

// CallSummaryEndpoint handles GET /v1/calls/summary.
type CallSummaryEndpoint struct{}

func (e *CallSummaryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/calls/summary", e.handler
}

func (e *CallSummaryEndpoint) RequiresInit() bool { return true }

func (e *CallSummaryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.LLMCallStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "call store not available")
		return
	}

	filter, err := parseCallFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, store.Summarize(filter))
}

func (e *CallSummaryEndpoint) Command(getServerURL func() string) *cobra.Command {
	var paperKey, stage, provider string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Cost, token and latency statistics for recent oracle calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())

			params := url.Values{}
			for k, v := range map[string]string{"paper_key": paperKey, "stage": stage, "provider": provider} {
				if v != "" {
					params.Set(k, v)
				}
			}
			path := "/v1/calls/summary"
			if len(params) > 0 {
				path += "?" + params.Encode()
			}

			var resp llmcall.Summary
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&paperKey, "paper-key", "", "Filter by paper key")
	cmd.Flags().StringVar(&stage, "stage", "", "Filter by stage")
	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider")
	return cmd
}
