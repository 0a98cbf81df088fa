//go:build e2e

package e2e

import (
	"encoding/json"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestE2E_KnowledgeLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	tenant := "tenant-knowledge"

	t.Run("index and search", func(t *testing.T) {
		_, err := env.Post("/knowledge/index", map[string]interface{}{
			"type": "insight",
			"id":   "ins-1",
			"text": "Customers in the pilot program prefer weekly summary emails over daily digests.",
		}, tenant)
		require.NoError(t, err)

		resp, err := env.Post("/search", map[string]interface{}{
			"query": "weekly summary emails",
		}, tenant)
		require.NoError(t, err)

		var out struct {
			Results []struct {
				Type      string  `json:"type"`
				ContentID string  `json:"content_id"`
				Content   string  `json:"content"`
				Score     float32 `json:"score"`
			} `json:"results"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &out))
		require.Len(t, out.Results, 1)
		assert.Equal(t, "insight", out.Results[0].Type)
		assert.Equal(t, "ins-1", out.Results[0].ContentID)
		assert.Contains(t, out.Results[0].Content, "weekly summary emails")
		assert.Greater(t, out.Results[0].Score, float32(0.2))
	})

	t.Run("re-indexing replaces previous chunks", func(t *testing.T) {
		_, err := env.Post("/knowledge/index", map[string]interface{}{
			"type": "insight",
			"id":   "ins-1",
			"text": "Quarterly business reviews moved to the first Monday of the quarter.",
		}, tenant)
		require.NoError(t, err)

		resp, err := env.Post("/search", map[string]interface{}{
			"query": "weekly summary emails",
		}, tenant)
		require.NoError(t, err)

		var stale struct {
			Results []struct {
				Content string `json:"content"`
			} `json:"results"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &stale))
		for _, r := range stale.Results {
			assert.NotContains(t, r.Content, "weekly summary emails")
		}

		resp, err = env.Post("/search", map[string]interface{}{
			"query": "quarterly business reviews",
		}, tenant)
		require.NoError(t, err)

		var fresh struct {
			Results []struct {
				ContentID string `json:"content_id"`
			} `json:"results"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &fresh))
		require.Len(t, fresh.Results, 1)
		assert.Equal(t, "ins-1", fresh.Results[0].ContentID)
	})

	t.Run("remove deletes all chunks", func(t *testing.T) {
		_, err := env.Delete("/knowledge/insight/ins-1", tenant)
		require.NoError(t, err)

		resp, err := env.Post("/search", map[string]interface{}{
			"query": "quarterly business reviews",
		}, tenant)
		require.NoError(t, err)

		var out struct {
			Results []interface{} `json:"results"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &out))
		assert.Empty(t, out.Results)
	})

	t.Run("tenant isolation", func(t *testing.T) {
		_, err := env.Post("/knowledge/index", map[string]interface{}{
			"type": "transcript",
			"id":   "tr-1",
			"text": "The expansion roadmap targets three new regions next year.",
		}, tenant)
		require.NoError(t, err)

		resp, err := env.Post("/search", map[string]interface{}{
			"query": "expansion roadmap regions",
		}, "tenant-other")
		require.NoError(t, err)

		var out struct {
			Results []interface{} `json:"results"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &out))
		assert.Empty(t, out.Results)
	})

	t.Run("missing tenant header rejected", func(t *testing.T) {
		_, err := env.Post("/search", map[string]interface{}{"query": "anything"}, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})
}

func TestE2E_ConversationChat(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	tenant := "tenant-chat"

	_, err := env.Post("/knowledge/index", map[string]interface{}{
		"type": "insight",
		"id":   "ins-escalation",
		"text": "The support escalation policy requires a first response within four hours.",
	}, tenant)
	require.NoError(t, err)

	convResp, err := env.Post("/conversations", map[string]string{"user_id": "user-1"}, tenant)
	require.NoError(t, err)

	var conv struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(convResp.Data, &conv))
	require.NotEmpty(t, conv.ID)
	assert.Empty(t, conv.Title)

	var events []TurnEvent

	t.Run("turn streams sources then deltas then done", func(t *testing.T) {
		events, err = env.Chat(map[string]string{
			"conversation_id": conv.ID,
			"query":           "what is the support escalation policy",
		}, tenant)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(events), 3)

		assert.Equal(t, "sources", events[0].Type)
		require.NotEmpty(t, events[0].Sources)
		assert.Equal(t, "ins-escalation", events[0].Sources[0].ID)

		done := events[len(events)-1]
		assert.Equal(t, "done", done.Type)
		assert.NotEmpty(t, done.UserMessageID)
		assert.NotEmpty(t, done.AssistantMessageID)
		assert.NotEmpty(t, done.Title)

		for _, ev := range events[1 : len(events)-1] {
			assert.Equal(t, "delta", ev.Type)
		}
	})

	t.Run("turn is persisted as a message pair", func(t *testing.T) {
		resp, err := env.Get("/conversations/"+conv.ID+"/messages", tenant)
		require.NoError(t, err)

		var out struct {
			Messages []struct {
				ID      string `json:"id"`
				Role    string `json:"role"`
				Content string `json:"content"`
				Sources []struct {
					ID string `json:"id"`
				} `json:"sources"`
			} `json:"messages"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &out))
		require.Len(t, out.Messages, 2)

		assert.Equal(t, "user", out.Messages[0].Role)
		assert.Equal(t, "what is the support escalation policy", out.Messages[0].Content)

		var full string
		for _, ev := range events[1 : len(events)-1] {
			full += ev.Delta
		}
		assert.Equal(t, "assistant", out.Messages[1].Role)
		assert.Equal(t, full, out.Messages[1].Content)
		require.NotEmpty(t, out.Messages[1].Sources)
		assert.Equal(t, "ins-escalation", out.Messages[1].Sources[0].ID)
	})

	t.Run("conversation list carries the derived title", func(t *testing.T) {
		resp, err := env.Get("/conversations", tenant)
		require.NoError(t, err)

		var out struct {
			Items []struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"items"`
			HasMore bool `json:"has_more"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &out))
		require.Len(t, out.Items, 1)
		assert.Equal(t, conv.ID, out.Items[0].ID)
		assert.Equal(t, events[len(events)-1].Title, out.Items[0].Title)
		assert.False(t, out.HasMore)
	})

	t.Run("chat on unknown conversation fails before streaming", func(t *testing.T) {
		_, err := env.Chat(map[string]string{
			"conversation_id": "conv-missing",
			"query":           "anything",
		}, tenant)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})
}

func TestE2E_DocumentLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	tenant := "tenant-docs"
	text := "New hires complete security training during their first week."

	var docID string

	t.Run("upload stores body and indexes text", func(t *testing.T) {
		resp, err := env.Post("/documents", map[string]interface{}{
			"filename": "handbook.txt",
			"title":    "Onboarding Handbook",
			"text":     text,
		}, tenant)
		require.NoError(t, err)

		var doc struct {
			ID        string `json:"id"`
			Filename  string `json:"filename"`
			Title     string `json:"title"`
			SizeBytes int64  `json:"size_bytes"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &doc))
		require.NotEmpty(t, doc.ID)
		assert.Equal(t, "Onboarding Handbook", doc.Title)
		assert.Equal(t, int64(len(text)), doc.SizeBytes)
		docID = doc.ID

		body, err := env.S3Client.GetObject(env.Ctx, path.Join(tenant, "documents", doc.ID, "handbook.txt"))
		require.NoError(t, err)
		assert.Equal(t, text, string(body))

		searchResp, err := env.Post("/search", map[string]interface{}{
			"query":         "security training first week",
			"content_types": []string{"document"},
		}, tenant)
		require.NoError(t, err)

		var out struct {
			Results []struct {
				ContentID string `json:"content_id"`
			} `json:"results"`
		}
		require.NoError(t, json.Unmarshal(searchResp.Data, &out))
		require.Len(t, out.Results, 1)
		assert.Equal(t, doc.ID, out.Results[0].ContentID)
	})

	t.Run("list includes the upload", func(t *testing.T) {
		resp, err := env.Get("/documents", tenant)
		require.NoError(t, err)

		var out struct {
			Documents []struct {
				ID string `json:"id"`
			} `json:"documents"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &out))
		require.Len(t, out.Documents, 1)
		assert.Equal(t, docID, out.Documents[0].ID)
	})

	t.Run("delete removes chunks, body, and record", func(t *testing.T) {
		_, err := env.Delete("/documents/"+docID, tenant)
		require.NoError(t, err)

		searchResp, err := env.Post("/search", map[string]interface{}{
			"query": "security training first week",
		}, tenant)
		require.NoError(t, err)

		var out struct {
			Results []interface{} `json:"results"`
		}
		require.NoError(t, json.Unmarshal(searchResp.Data, &out))
		assert.Empty(t, out.Results)

		_, err = env.S3Client.GetObject(env.Ctx, path.Join(tenant, "documents", docID, "handbook.txt"))
		assert.Error(t, err)

		_, err = env.Get("/documents/"+docID, tenant)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})
}
