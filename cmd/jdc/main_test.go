package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/jdc/internal/config"
	"github.com/pbaille/jdc/internal/domain"
)

// cliBackend fakes the workspace and label endpoints the client stack
// touches, counting label-extraction calls.
type cliBackend struct {
	mu         sync.Mutex
	labelCalls int
}

func (b *cliBackend) extractions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.labelCalls
}

func (b *cliBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/jd-sets":
		json.NewEncoder(w).Encode(domain.WorkspaceDetail{
			ID:           "ws-1",
			Name:         "Untitled Workspace",
			Items:        []domain.ItemRecord{},
			ChatMessages: []domain.MessageRecord{},
		})
	case r.Method == http.MethodPut && strings.HasSuffix(r.URL.Path, "/items"):
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	case r.Method == http.MethodPost && r.URL.Path == "/labels/extract":
		b.mu.Lock()
		b.labelCalls++
		b.mu.Unlock()
		w.Write([]byte(`{"title":"Platform Engineer","company":"Acme"}`))
	default:
		http.Error(w, `{"error":"unexpected route"}`, http.StatusTeapot)
	}
}

func newTestClient(t *testing.T) (*client, *cliBackend) {
	t.Helper()
	backend := &cliBackend{}
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	cfg = &config.Config{
		DataDir:       t.TempDir(),
		SaveDebounce:  10 * time.Millisecond,
		LabelDebounce: 10 * time.Millisecond,
	}
	serverURL = server.URL
	provider = "openai"

	c, err := buildClient()
	require.NoError(t, err)
	t.Cleanup(c.stop)
	require.NoError(t, c.manager.Init(context.Background()))
	return c, backend
}

func TestAddJDRunsDebouncedLabeling(t *testing.T) {
	c, backend := newTestClient(t)

	text := strings.Repeat("Senior Go engineer building distributed systems. ", 3)
	id, err := c.addJD(context.Background(), text)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, it := range c.store.Items() {
			if it.ID == id && it.LabelTitle != nil {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond, "labeling runs after the quiet period")

	for _, it := range c.store.Items() {
		if it.ID == id {
			assert.Equal(t, "Platform Engineer", *it.LabelTitle)
			require.NotNil(t, it.LabelCompany)
			assert.Equal(t, "Acme", *it.LabelCompany)
		}
	}
	assert.Equal(t, 1, backend.extractions())
}

func TestAddJDShortTextSkipsExtraction(t *testing.T) {
	c, backend := newTestClient(t)

	_, err := c.addJD(context.Background(), "too short")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, backend.extractions(), "short text never reaches the label endpoint")
}

func TestJobListingShowsLabelState(t *testing.T) {
	title := "SRE"
	assert.Equal(t, "(unlabeled)", itemLabel(domain.JDItem{}))
	assert.Equal(t, "(labeling...)", itemLabel(domain.JDItem{IsLabelLoading: true}))
	assert.Equal(t, "SRE", itemLabel(domain.JDItem{LabelTitle: &title}))
	company := "Acme"
	assert.Equal(t, "SRE @ Acme", itemLabel(domain.JDItem{LabelTitle: &title, LabelCompany: &company}))
}
