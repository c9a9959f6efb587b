package lazytl

import (
	"context"
	"strings"
)

// coalescedTranslate shares one in-flight provider call between concurrent
// callers sending the same chunk for the same locale. The shared call is
// detached from every caller's cancellation and bounded by the chunk
// timeout; each caller stops waiting when its own context is done.
func (t *Translator) coalescedTranslate(ctx context.Context, req TranslateRequest, chunk []TranslationUnit, hashes []string) ([]string, error) {
	var key strings.Builder
	key.WriteString(string(req.TargetLang))
	key.WriteByte('|')
	key.WriteString(string(req.SourceLang))
	for _, u := range chunk {
		key.WriteByte('|')
		key.WriteString(hashes[u.Index])
	}

	shared := context.WithoutCancel(ctx)
	ch := t.flight.DoChan(key.String(), func() (any, error) {
		callCtx := shared
		if t.chunkTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(shared, t.chunkTimeout)
			defer cancel()
		}
		return t.provider.Translate(callCtx, req)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]string), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
