package service

import (
	"context"
	"encoding/json"
	"image"
	"sync"

	"github.com/noah-isme/pass-request-client/pkg/apiclient"
	"github.com/noah-isme/pass-request-client/pkg/imaging"
)

type fakeAPI struct {
	mu     sync.Mutex
	calls  []apiclient.Request
	handle func(call int, req apiclient.Request, out any) error
}

func (f *fakeAPI) Do(_ context.Context, req apiclient.Request, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls) - 1
	handle := f.handle
	f.mu.Unlock()
	if handle == nil {
		return nil
	}
	return handle(n, req, out)
}

func (f *fakeAPI) Calls() []apiclient.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]apiclient.Request, len(f.calls))
	copy(out, f.calls)
	return out
}

// respond round-trips v through JSON into out, the way the real client does.
func respond(out any, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// respondRaw decodes a literal JSON body into out.
func respondRaw(out any, body string) error {
	return json.Unmarshal([]byte(body), out)
}

type fakeTokens struct {
	mu        sync.Mutex
	token     string
	loadErr   error
	deleteErr error
	saves     int
	deletes   int
}

func (f *fakeTokens) Save(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.token = token
	return nil
}

func (f *fakeTokens) Load(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.loadErr
}

func (f *fakeTokens) Delete(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.token = ""
	return nil
}

type fakeCompressor struct {
	calls int
}

func (f *fakeCompressor) Compress(img image.Image) (*imaging.Result, error) {
	f.calls++
	return &imaging.Result{Data: []byte("jpeg-bytes"), Quality: 30, Bounds: img.Bounds()}, nil
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 4, 3))
}
