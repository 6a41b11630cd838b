package board

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/hitoshi/harryweb/internal/apiclient"
	"github.com/hitoshi/harryweb/internal/model"
)

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, message)
}

func (n *recordingNotifier) Error(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
}

func newTestHook(t *testing.T, handler http.HandlerFunc) (*Hook, *recordingNotifier) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	client, err := apiclient.New(apiclient.Config{BaseURL: server.URL + "/api"},
		apiclient.WithHTTPClient(server.Client()),
		apiclient.WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("apiclient.New() error = %v", err)
	}
	n := &recordingNotifier{}
	return NewHook(client, n, logger), n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

func seededPage() model.Page[model.Message] {
	return model.Page[model.Message]{
		Count: 2,
		Next:  strPtr("http://backend/api/msgboard/messages/?page=2"),
		Results: []model.Message{
			{ID: 1, Content: "first", Replies: []model.Reply{
				{ID: 11, Content: "r1", Replies: []model.SubReply{{ID: 111, Content: "s1"}}},
				{ID: 12, Content: "r2"},
			}},
			{ID: 2, Content: "second"},
		},
	}
}

func TestGetMessages_ReplacesListAndPage(t *testing.T) {
	var (
		mu    sync.Mutex
		pages []string
	)
	h, _ := newTestHook(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		pages = append(pages, r.URL.Query().Get("page"))
		mu.Unlock()
		writeJSON(w, http.StatusOK, seededPage())
	})

	h.GetMessages(context.Background(), 0)
	h.LoadNext(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(pages) != 2 || pages[0] != "1" || pages[1] != "2" {
		t.Errorf("pages = %v, want [1 2]", pages)
	}
	if h.Page() != 2 {
		t.Errorf("Page() = %d, want 2", h.Page())
	}
	if got := h.Messages(); len(got) != 2 || h.Cursor().Total != 2 {
		t.Errorf("Messages() = %+v, cursor = %+v", got, h.Cursor())
	}
}

func TestGetMessages_FailureNotifiesOnly(t *testing.T) {
	h, n := newTestHook(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	h.GetMessages(context.Background(), 1)

	if len(n.errors) != 1 || n.errors[0] != msgListFailed {
		t.Errorf("errors = %v", n.errors)
	}
	if h.Loading() {
		t.Error("Loading() should be false after failure")
	}
	if len(h.Messages()) != 0 {
		t.Error("Messages() should stay empty")
	}
}

func TestCreateMessage(t *testing.T) {
	h, n := newTestHook(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, seededPage())
			return
		}
		var in model.MessageInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		writeJSON(w, http.StatusCreated, model.Message{ID: 3, Content: in.Content})
	})

	h.GetMessages(context.Background(), 1)
	if !h.CreateMessage(context.Background(), "hello") {
		t.Fatal("CreateMessage() = false")
	}
	got := h.Messages()
	if len(got) != 3 || got[0].ID != 3 || got[0].Content != "hello" {
		t.Errorf("Messages() = %+v", got)
	}
	if h.Cursor().Total != 3 {
		t.Errorf("Total = %d, want 3", h.Cursor().Total)
	}
	if len(n.successes) != 1 {
		t.Errorf("successes = %v", n.successes)
	}
}

func TestCreateReply(t *testing.T) {
	t.Run("direct reply is appended to message", func(t *testing.T) {
		h, _ := newTestHook(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				writeJSON(w, http.StatusOK, seededPage())
				return
			}
			if r.URL.Path != "/api/msgboard/messages/2/create_reply/" {
				t.Errorf("path = %s", r.URL.Path)
			}
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if v, ok := body["parent_reply"]; !ok || v != nil {
				t.Errorf("parent_reply = %v, want explicit null", v)
			}
			writeJSON(w, http.StatusCreated, model.Reply{ID: 21, Content: "hi"})
		})

		h.GetMessages(context.Background(), 1)
		if err := h.CreateReply(context.Background(), 2, "hi", nil); err != nil {
			t.Fatalf("CreateReply() error = %v", err)
		}
		got := h.Messages()
		if len(got[1].Replies) != 1 || got[1].Replies[0].ID != 21 {
			t.Errorf("replies = %+v", got[1].Replies)
		}
	})

	t.Run("nested reply is appended to parent reply", func(t *testing.T) {
		h, _ := newTestHook(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				writeJSON(w, http.StatusOK, seededPage())
				return
			}
			var in model.ReplyInput
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in.ParentReply == nil || *in.ParentReply != 12 {
				t.Errorf("parent_reply = %v, want 12", in.ParentReply)
			}
			writeJSON(w, http.StatusCreated, model.Reply{ID: 121, Content: "nested"})
		})

		h.GetMessages(context.Background(), 1)
		if err := h.CreateReply(context.Background(), 1, "nested", int64Ptr(12)); err != nil {
			t.Fatalf("CreateReply() error = %v", err)
		}
		got := h.Messages()
		subs := got[0].Replies[1].Replies
		if len(subs) != 1 || subs[0].ID != 121 || subs[0].ReplyTo == nil || *subs[0].ReplyTo != 12 {
			t.Errorf("sub replies = %+v", subs)
		}
	})

	t.Run("failure notifies and returns error", func(t *testing.T) {
		h, n := newTestHook(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "返信できません"})
		})

		err := h.CreateReply(context.Background(), 1, "x", nil)
		if apiclient.StatusCode(err) != http.StatusBadRequest {
			t.Fatalf("err = %v, want 400 status error", err)
		}
		if len(n.errors) != 1 || n.errors[0] != "返信できません" {
			t.Errorf("errors = %v", n.errors)
		}
	})
}

func TestDeleteMessage_FiltersAndDecrementsTotal(t *testing.T) {
	h, _ := newTestHook(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, seededPage())
			return
		}
		if r.URL.Path != "/api/msgboard/messages/1/" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	h.GetMessages(context.Background(), 1)
	if !h.DeleteMessage(context.Background(), 1) {
		t.Fatal("DeleteMessage() = false")
	}
	got := h.Messages()
	if len(got) != 1 || got[0].ID != 2 {
		t.Errorf("Messages() = %+v", got)
	}
	if h.Cursor().Total != 1 {
		t.Errorf("Total = %d, want 1", h.Cursor().Total)
	}
}

func TestDeleteMessage_FailureKeepsList(t *testing.T) {
	h, n := newTestHook(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, seededPage())
			return
		}
		w.WriteHeader(http.StatusForbidden)
	})

	h.GetMessages(context.Background(), 1)
	if h.DeleteMessage(context.Background(), 1) {
		t.Error("DeleteMessage() = true, want false")
	}
	if len(h.Messages()) != 2 || h.Cursor().Total != 2 {
		t.Error("list should be unchanged after failure")
	}
	if len(n.errors) != 1 {
		t.Errorf("errors = %v", n.errors)
	}
}

func TestDeleteReply_PatchesNestedReplies(t *testing.T) {
	tests := []struct {
		name        string
		replyID     int64
		wantReplies int
		wantSubs    int
	}{
		{name: "top level reply", replyID: 12, wantReplies: 1, wantSubs: 1},
		{name: "sub reply", replyID: 111, wantReplies: 2, wantSubs: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHook(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodGet {
					writeJSON(w, http.StatusOK, seededPage())
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})

			h.GetMessages(context.Background(), 1)
			before := h.Messages()
			if !h.DeleteReply(context.Background(), 1, tt.replyID) {
				t.Fatal("DeleteReply() = false")
			}
			got := h.Messages()
			if len(got[0].Replies) != tt.wantReplies {
				t.Fatalf("replies = %+v", got[0].Replies)
			}
			if len(got[0].Replies[0].Replies) != tt.wantSubs {
				t.Errorf("sub replies = %+v", got[0].Replies[0].Replies)
			}
			if len(before[0].Replies) != 2 || len(before[0].Replies[0].Replies) != 1 {
				t.Error("previously returned copy must not change")
			}
		})
	}
}
