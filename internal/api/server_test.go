package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/jdc/internal/domain"
	"github.com/pbaille/jdc/internal/llm"
	"github.com/pbaille/jdc/internal/store"
)

// stubProvider scripts deterministic LLM behavior for handler tests.
type stubProvider struct {
	tokens    []string
	streamErr error
	label     *domain.LabelResult
	labelErr  error
}

func (p *stubProvider) StreamChat(ctx context.Context, parts llm.PromptParts, onToken func(string)) error {
	for _, tok := range p.tokens {
		onToken(tok)
	}
	return p.streamErr
}

func (p *stubProvider) ExtractLabel(ctx context.Context, text string) (*domain.LabelResult, error) {
	return p.label, p.labelErr
}

func newTestServer(t *testing.T, provider *stubProvider) (*httptest.Server, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	registry := llm.NewRegistry()
	if provider != nil {
		registry.Register(domain.ProviderOpenAI, provider)
	}

	srv := httptest.NewServer(New(st, registry, "", nil).Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCreateAndListSets(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/jd-sets", map[string]any{"name": nil})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := decodeBody[domain.WorkspaceDetail](t, resp)
	assert.Equal(t, "Untitled Workspace", created.Name)
	assert.NotEmpty(t, created.ID)

	resp = postJSON(t, srv.URL+"/jd-sets", map[string]any{"name": "Spring hunt"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	listResp, err := http.Get(srv.URL + "/jd-sets")
	require.NoError(t, err)
	sets := decodeBody[[]domain.WorkspaceSummary](t, listResp)
	assert.Len(t, sets, 2)
}

func TestGetSetNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/jd-sets/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "workspace not found", body["error"])
}

func TestRenameSet(t *testing.T) {
	srv, st := newTestServer(t, nil)
	detail, err := st.CreateSet("Old")
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPut, srv.URL+"/jd-sets/"+detail.ID, map[string]string{"name": "New"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	renamed := decodeBody[domain.WorkspaceDetail](t, resp)
	assert.Equal(t, "New", renamed.Name)

	resp = doJSON(t, http.MethodPut, srv.URL+"/jd-sets/"+detail.ID, map[string]string{"name": "   "})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteSet(t *testing.T) {
	srv, st := newTestServer(t, nil)
	detail, err := st.CreateSet("Doomed")
	require.NoError(t, err)

	resp := doJSON(t, http.MethodDelete, srv.URL+"/jd-sets/"+detail.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodDelete, srv.URL+"/jd-sets/"+detail.ID, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSyncItemsRoundTrip(t *testing.T) {
	srv, st := newTestServer(t, nil)
	detail, err := st.CreateSet("ws")
	require.NoError(t, err)

	items := []domain.ItemSnapshot{
		{ID: "item-1", RawText: "first jd", SortOrder: 0},
		{ID: "item-2", RawText: "second jd", IsMuted: true, SortOrder: 1},
	}
	resp := doJSON(t, http.MethodPut, srv.URL+"/jd-sets/"+detail.ID+"/items", map[string]any{"items": items})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	getResp, err := http.Get(srv.URL + "/jd-sets/" + detail.ID)
	require.NoError(t, err)
	loaded := decodeBody[domain.WorkspaceDetail](t, getResp)
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, "first jd", loaded.Items[0].RawText)
	assert.True(t, loaded.Items[1].IsMuted)
}

func TestSyncItemsUnknownSet(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := doJSON(t, http.MethodPut, srv.URL+"/jd-sets/ghost/items", map[string]any{"items": []domain.ItemSnapshot{}})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExtractLabelEndpoint(t *testing.T) {
	title := "Platform Engineer"
	company := "Acme"
	srv, _ := newTestServer(t, &stubProvider{label: &domain.LabelResult{Title: &title, Company: &company}})

	resp := postJSON(t, srv.URL+"/labels/extract", map[string]string{"text": "long enough jd text", "provider": "openai"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeBody[domain.LabelResult](t, resp)
	require.NotNil(t, result.Title)
	assert.Equal(t, "Platform Engineer", *result.Title)
	require.NotNil(t, result.Company)
	assert.Equal(t, "Acme", *result.Company)
}

func TestExtractLabelProviderFailure(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{labelErr: errors.New("upstream down")})

	resp := postJSON(t, srv.URL+"/labels/extract", map[string]string{"text": "jd", "provider": "openai"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestExtractLabelUnknownProvider(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/labels/extract", map[string]string{"text": "jd", "provider": "anthropic"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func readFrames(t *testing.T, resp *http.Response) []map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var frames []map[string]any
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame))
		frames = append(frames, frame)
	}
	require.NoError(t, scanner.Err())
	return frames
}

func TestStreamChatEmitsTokensThenDone(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{tokens: []string{"Hel", "lo"}})

	resp := postJSON(t, srv.URL+"/chat/stream", domain.ChatRequest{UserMessage: "hi", Provider: domain.ProviderOpenAI})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	frames := readFrames(t, resp)
	require.Len(t, frames, 3)
	assert.Equal(t, "Hel", frames[0]["token"])
	assert.Equal(t, "lo", frames[1]["token"])
	assert.Equal(t, true, frames[2]["done"])
}

func TestStreamChatErrorFrame(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{tokens: []string{"par"}, streamErr: errors.New("model unavailable")})

	resp := postJSON(t, srv.URL+"/chat/stream", domain.ChatRequest{UserMessage: "hi", Provider: domain.ProviderOpenAI})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	frames := readFrames(t, resp)
	require.Len(t, frames, 2)
	assert.Equal(t, "par", frames[0]["token"])
	assert.Contains(t, frames[1]["error"], "model unavailable")
}

func TestStreamChatPersistsConversation(t *testing.T) {
	srv, st := newTestServer(t, &stubProvider{tokens: []string{"an", "swer"}})
	detail, err := st.CreateSet("ws")
	require.NoError(t, err)

	resp := postJSON(t, srv.URL+"/chat/stream", domain.ChatRequest{
		UserMessage: "compare these",
		Provider:    domain.ProviderOpenAI,
		JDSetID:     &detail.ID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	readFrames(t, resp)

	loaded, err := st.GetSet(detail.ID)
	require.NoError(t, err)
	require.Len(t, loaded.ChatMessages, 2)
	assert.Equal(t, "user", loaded.ChatMessages[0].Role)
	assert.Equal(t, "compare these", loaded.ChatMessages[0].Content)
	assert.Equal(t, "assistant", loaded.ChatMessages[1].Role)
	assert.Equal(t, "answer", loaded.ChatMessages[1].Content)
}

func TestStreamChatRejectsBlankMessage(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{})

	resp := postJSON(t, srv.URL+"/chat/stream", domain.ChatRequest{UserMessage: "  ", Provider: domain.ProviderOpenAI})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
