package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// fakeCompleter replays a canned reply or error.
type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.reply}},
		},
	}, nil
}

func newTestRemote(api chatCompleter) *Remote {
	return &Remote{api: api, model: "test-model", timeout: time.Second}
}

func TestRemote_Labels(t *testing.T) {
	cases := []struct {
		reply string
		check func(Result) bool
	}{
		{"start", func(r Result) bool { return r.ClockIn == "09:00" }},
		{"END", func(r Result) bool { return r.ClockOut == "09:00" }},
		{" Other. ", func(r Result) bool { return r.Unclassified == "09:00" }},
	}
	for _, c := range cases {
		r := newTestRemote(&fakeCompleter{reply: c.reply}).
			Classify(context.Background(), Request{Body: "x", TimeLabel: "09:00"})
		assertExclusive(t, r)
		if !c.check(r) {
			t.Errorf("reply %q: unexpected result %+v", c.reply, r)
		}
	}
}

func TestRemote_UnrecognizedLabel(t *testing.T) {
	r := newTestRemote(&fakeCompleter{reply: "the user is clocking in"}).
		Classify(context.Background(), Request{Body: "x", TimeLabel: "10:00"})
	assertExclusive(t, r)
	if r.Unclassified != "10:00" {
		t.Fatalf("unrecognized label must degrade to unclassified, got %+v", r)
	}
}

func TestRemote_TransportError(t *testing.T) {
	r := newTestRemote(&fakeCompleter{err: errors.New("dial tcp: timeout")}).
		Classify(context.Background(), Request{Body: "x", TimeLabel: "10:00"})
	assertExclusive(t, r)
	if r.Unclassified != "10:00" {
		t.Fatalf("transport failure must degrade to unclassified, got %+v", r)
	}
}

func TestRemote_EmptyReply(t *testing.T) {
	api := &fakeCompleter{reply: ""}
	// A completion with an empty reply reduces to an unrecognized label.
	r := newTestRemote(api).Classify(context.Background(), Request{Body: "x", TimeLabel: "11:00"})
	if r.Unclassified != "11:00" {
		t.Fatalf("got %+v", r)
	}
}

func TestAll_PreservesOrder(t *testing.T) {
	reqs := make([]Request, 20)
	for i := range reqs {
		if i%2 == 0 {
			reqs[i] = Request{Body: "開始", TimeLabel: "09:00"}
		} else {
			reqs[i] = Request{Body: "終了", TimeLabel: "18:00"}
		}
	}
	for _, limit := range []int{0, 1, 4, 50} {
		out := All(context.Background(), Keyword{}, reqs, limit)
		if len(out) != len(reqs) {
			t.Fatalf("limit %d: got %d results", limit, len(out))
		}
		for i, r := range out {
			assertExclusive(t, r)
			if i%2 == 0 && r.ClockIn == "" {
				t.Fatalf("limit %d: index %d misordered: %+v", limit, i, r)
			}
			if i%2 == 1 && r.ClockOut == "" {
				t.Fatalf("limit %d: index %d misordered: %+v", limit, i, r)
			}
		}
	}
}

func TestAll_Empty(t *testing.T) {
	if out := All(context.Background(), Keyword{}, nil, 4); len(out) != 0 {
		t.Fatalf("got %d results for empty input", len(out))
	}
}
