package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"
	"video-chat-go/internal/model"
	"video-chat-go/pkg/llm"
	"video-chat-go/pkg/tasks"
)

type fakeVideoRepo struct {
	mu     sync.Mutex
	videos map[string]model.Video
	err    error
	finds  int
}

func newFakeVideoRepo(videos ...model.Video) *fakeVideoRepo {
	r := &fakeVideoRepo{videos: map[string]model.Video{}}
	for _, v := range videos {
		r.videos[videoKey(v.TenantID, v.ID)] = v
	}
	return r
}

func videoKey(tenantID uint, id string) string {
	return strconv.FormatUint(uint64(tenantID), 10) + "/" + id
}

func (r *fakeVideoRepo) FindByTenantAndID(_ context.Context, tenantID uint, videoID string) (*model.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finds++
	if r.err != nil {
		return nil, r.err
	}
	v, ok := r.videos[videoKey(tenantID, videoID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &v, nil
}

func (r *fakeVideoRepo) Upsert(_ context.Context, video *model.Video) (*model.Video, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, false, r.err
	}
	k := videoKey(video.TenantID, video.ID)
	_, exists := r.videos[k]
	r.videos[k] = *video
	stored := *video
	return &stored, !exists, nil
}

type fakeConversationRepo struct {
	mu       sync.Mutex
	turns    map[model.SessionKey][]model.ChatTurn
	readErr  error
	writeErr error
	// failAfter > 0 时，第 failAfter 次之后的写入失败
	failAfter int
	reads     int
	writes    int
	writeCtxs []error
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{turns: map[model.SessionKey][]model.ChatTurn{}}
}

func (r *fakeConversationRepo) GetHistory(_ context.Context, key model.SessionKey) ([]model.ChatTurn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	if r.readErr != nil {
		return nil, r.readErr
	}
	return append([]model.ChatTurn(nil), r.turns[key]...), nil
}

func (r *fakeConversationRepo) AddMessage(ctx context.Context, key model.SessionKey, role model.Role, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	r.writeCtxs = append(r.writeCtxs, ctx.Err())
	if r.writeErr != nil {
		return r.writeErr
	}
	if r.failAfter > 0 && r.writes > r.failAfter {
		return errors.New("redis: connection refused")
	}
	r.turns[key] = append(r.turns[key], model.ChatTurn{Role: role, Content: content})
	return nil
}

func (r *fakeConversationRepo) TTL(_ context.Context, key model.SessionKey) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return 0, r.readErr
	}
	if _, ok := r.turns[key]; !ok {
		return 0, nil
	}
	return time.Hour, nil
}

func (r *fakeConversationRepo) ListSessions(_ context.Context, tenantID uint) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return nil, r.readErr
	}
	var out []string
	for k := range r.turns {
		if k.TenantID() == tenantID {
			out = append(out, k.SessionID())
		}
	}
	return out, nil
}

type fakeLLM struct {
	mu       sync.Mutex
	answer   string
	chunks   []string
	err      error
	calls    int
	model    string
	messages []llm.Message
	// onCall 在返回前被调用，用于模拟客户端在模型返回时断开
	onCall func()
}

func (f *fakeLLM) record(model string, messages []llm.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.model = model
	f.messages = append([]llm.Message(nil), messages...)
}

func (f *fakeLLM) Complete(_ context.Context, model string, messages []llm.Message, _ *llm.GenerationParams) (string, error) {
	f.record(model, messages)
	if f.onCall != nil {
		f.onCall()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeLLM) StreamChatMessages(_ context.Context, model string, messages []llm.Message, _ *llm.GenerationParams, writer llm.MessageWriter) (string, error) {
	f.record(model, messages)
	if f.err != nil {
		return "", f.err
	}
	var full string
	for _, c := range f.chunks {
		full += c
		if writer != nil {
			if err := writer.WriteMessage(1, []byte(c)); err != nil {
				return full, err
			}
		}
	}
	return full, nil
}

type fakePublisher struct {
	tasks []tasks.TranscriptIndexTask
	err   error
}

func (p *fakePublisher) PublishIndexTask(_ context.Context, task tasks.TranscriptIndexTask) error {
	p.tasks = append(p.tasks, task)
	return p.err
}

type fakeArchive struct {
	puts map[string]string
	err  error
}

func (a *fakeArchive) Put(_ context.Context, tenantID uint, videoID, text string) error {
	if a.err != nil {
		return a.err
	}
	if a.puts == nil {
		a.puts = map[string]string{}
	}
	a.puts[videoKey(tenantID, videoID)] = text
	return nil
}

func (a *fakeArchive) PresignedURL(_ context.Context, tenantID uint, videoID string) (string, error) {
	return "https://minio.local/transcripts/" + videoKey(tenantID, videoID), nil
}

type recordingWriter struct {
	chunks []string
}

func (w *recordingWriter) WriteMessage(_ int, data []byte) error {
	w.chunks = append(w.chunks, string(data))
	return nil
}
