package settle

import (
	"context"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Attach subscribes the detector to a page's CDP event stream. rod enables
// the Network and Page domains on first subscription; the stream covers the
// top frame and same-process child frames, and follows auto-attached targets
// through rod's session handling. ctx must span the page's whole lifetime,
// never a single request: the subscription dies with ctx, and a detector cut
// off from its feed sees an empty in-flight set forever after.
func (d *Detector) Attach(ctx context.Context, page *rod.Page) {
	go page.Context(ctx).EachEvent(
		func(e *proto.NetworkRequestWillBeSent) {
			var url string
			if e.Request != nil {
				url = e.Request.URL
			}
			d.onRequest(string(e.RequestID), url, string(e.Type), string(e.FrameID))
		},
		func(e *proto.NetworkLoadingFinished) {
			d.onDone(string(e.RequestID))
		},
		func(e *proto.NetworkLoadingFailed) {
			d.onDone(string(e.RequestID))
		},
		func(e *proto.NetworkRequestServedFromCache) {
			d.onDone(string(e.RequestID))
		},
		func(e *proto.NetworkResponseReceived) {
			var url string
			if e.Response != nil {
				url = e.Response.URL
			}
			d.onResponse(string(e.RequestID), url)
		},
		func(e *proto.PageFrameStoppedLoading) {
			d.onFrameStopped(string(e.FrameID))
		},
	)()
}
