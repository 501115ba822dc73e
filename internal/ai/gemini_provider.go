package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amishk599/a11yjobs/internal/model"
)

var (
	_ model.Searcher  = (*GeminiProvider)(nil)
	_ model.Generator = (*GeminiProvider)(nil)
)

// GeminiProvider calls the Gemini generateContent REST endpoint.
type GeminiProvider struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

// NewGeminiProvider creates a provider targeting the Gemini API. A zero
// timeout leaves request deadlines to the caller's context.
func NewGeminiProvider(baseURL, apiKey, model string, timeout time.Duration, httpClient *http.Client) *GeminiProvider {
	return &GeminiProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		timeout:    timeout,
		httpClient: httpClient,
	}
}

// generateRequest mirrors the generateContent request body.
type generateRequest struct {
	Contents []content `json:"contents"`
	Tools    []tool    `json:"tools,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`
}

type tool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

// generateResponse mirrors the relevant fields of the generateContent response.
type generateResponse struct {
	Candidates []struct {
		Content           content `json:"content"`
		FinishReason      string  `json:"finishReason"`
		GroundingMetadata *struct {
			GroundingChunks []struct {
				Web *struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Search sends prompt with the google_search tool enabled and returns the
// text plus the grounding URLs. Titles are left empty; the grounding
// titles are bare domains, so callers resolve real page titles themselves.
func (p *GeminiProvider) Search(ctx context.Context, prompt string) (model.SearchResult, error) {
	resp, err := p.generate(ctx, generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		Tools:    []tool{{GoogleSearch: &struct{}{}}},
	})
	if err != nil {
		return model.SearchResult{}, err
	}

	cand := resp.Candidates[0]
	result := model.SearchResult{Text: joinParts(cand.Content.Parts)}
	if cand.GroundingMetadata != nil {
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			result.References = append(result.References, model.Reference{URL: chunk.Web.URI})
		}
	}
	return result, nil
}

// Generate sends prompt without tools and returns the text.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.generate(ctx, generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}
	return joinParts(resp.Candidates[0].Content.Parts), nil
}

func (p *GeminiProvider) generate(ctx context.Context, reqBody generateRequest) (*generateResponse, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal llm request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, url.PathEscape(p.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read llm response: %w", err)
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBytes, &genResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &model.HTTPError{StatusCode: resp.StatusCode, Err: fmt.Errorf("llm: %s", string(respBytes))}
		}
		return nil, fmt.Errorf("parse llm response: %w", err)
	}

	if genResp.Error != nil {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("llm error (%s): %s", genResp.Error.Status, genResp.Error.Message),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{StatusCode: resp.StatusCode}
	}

	if len(genResp.Candidates) == 0 {
		return nil, fmt.Errorf("llm returned no candidates")
	}
	return &genResp, nil
}

func joinParts(parts []part) string {
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String())
}
